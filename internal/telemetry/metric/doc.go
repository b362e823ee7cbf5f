// Package metric provides Prometheus metrics for phonebook-cli.
//
//   - prometheus.go: the Registry and its remote, fallback and session metrics
//   - collector.go: a collector reporting local store key counts
//
// The CLI has no listener; the registry is printed in the text exposition
// format by "status --metrics".
package metric
