package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/storage"
	"github.com/jmoanes1/phonebook/pkg/token"
)

// BenchmarkLocalTokenGenerate benchmarks issuing a fallback token.
func BenchmarkLocalTokenGenerate(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := domain.GenerateLocalToken(); err != nil {
			b.Fatalf("GenerateLocalToken failed: %v", err)
		}
	}
}

// BenchmarkTokenHash benchmarks token hashing.
func BenchmarkTokenHash(b *testing.B) {
	tok, _ := token.Generate()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		domain.HashToken(tok)
	}
}

// BenchmarkTokenHashParallel benchmarks parallel token hashing.
func BenchmarkTokenHashParallel(b *testing.B) {
	tok, _ := token.Generate()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			token.Hash(tok)
		}
	})
}

// BenchmarkTokenExpiry benchmarks reading the expiry claim of a JWT bearer.
func BenchmarkTokenExpiry(b *testing.B) {
	bearer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("bench-secret"))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := domain.TokenExpiry(bearer); !ok {
			b.Fatal("expiry not found")
		}
	}
}

// BenchmarkFindAccountByToken benchmarks the fallback identity lookup.
func BenchmarkFindAccountByToken(b *testing.B) {
	for _, kind := range storeKinds[:2] {
		for _, count := range []int{10, 100} {
			b.Run(fmt.Sprintf("%s/accounts_%d", kind.name, count), func(b *testing.B) {
				ctx := context.Background()
				st := openStore(b, kind.engine, kind.passphrase)
				tokens := seedAccounts(b, st, count)

				b.ResetTimer()
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := st.FindAccountByToken(ctx, tokens[i%len(tokens)]); err != nil {
						b.Fatalf("FindAccountByToken failed: %v", err)
					}
				}
			})
		}
	}
}

func seedAccounts(b *testing.B, st *storage.Local, n int) []string {
	b.Helper()
	ctx := context.Background()
	tokens := make([]string, n)
	for i := range tokens {
		user := domain.User{
			ID:    newContactID(),
			Name:  fmt.Sprintf("User %d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		}
		acc, err := domain.NewAccount(user, "pw123456", time.Now().UnixMilli())
		if err != nil {
			b.Fatal(err)
		}
		if err := st.CreateAccount(ctx, acc); err != nil {
			b.Fatal(err)
		}
		tok, _, err := domain.GenerateLocalToken()
		if err != nil {
			b.Fatal(err)
		}
		if err := st.BindAccountToken(ctx, user.ID, tok); err != nil {
			b.Fatal(err)
		}
		tokens[i] = tok
	}
	return tokens
}
