// Package benchmark provides performance benchmarks for the phonebook
// local store and its cryptographic helpers.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare the engines for one operation:
//
//	go test -bench=BenchmarkLoadContacts -benchmem -count=5 ./internal/tests/benchmark/... | tee bench.txt
//	benchstat old.txt bench.txt
package benchmark
