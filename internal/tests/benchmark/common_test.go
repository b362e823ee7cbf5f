package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/storage"
)

// ContactCounts are the collection sizes measured.
var ContactCounts = []int{100, 1000, 5000}

const benchPassphrase = "correct horse battery staple"

// storeKinds are the store setups compared by the store benchmarks.
var storeKinds = []struct {
	name       string
	engine     string
	passphrase string
}{
	{"memory", storage.EngineMemory, ""},
	{"badger", storage.EngineBadger, ""},
	{"badger_sealed", storage.EngineBadger, benchPassphrase},
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newContactID returns a server-style contact id.
func newContactID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return strings.ToLower(id.String())
}

func newContacts(n int) domain.ContactList {
	list := make(domain.ContactList, n)
	for i := range list {
		list[i] = domain.Contact{
			ID:     newContactID(),
			Name:   fmt.Sprintf("Contact %05d", i),
			Number: fmt.Sprintf("555-%04d", i%10000),
		}
	}
	return list
}

// openStore opens a store in a temporary directory, closed with the benchmark.
func openStore(b *testing.B, engine, passphrase string) *storage.Local {
	b.Helper()
	cfg := storage.DefaultBadgerConfig(b.TempDir())
	cfg.GCInterval = 0
	st, err := storage.Open(context.Background(), storage.Config{
		Engine:     engine,
		Badger:     cfg,
		Passphrase: passphrase,
	}, discard)
	if err != nil {
		b.Fatalf("open %s store: %v", engine, err)
	}
	b.Cleanup(func() { st.Close() })
	return st
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

// runWithStores runs benchFn for every store setup and contact count.
func runWithStores(b *testing.B, counts []int, benchFn func(b *testing.B, st *storage.Local, count int)) {
	for _, kind := range storeKinds {
		for _, count := range counts {
			b.Run(fmt.Sprintf("%s/contacts_%d", kind.name, count), func(b *testing.B) {
				benchFn(b, openStore(b, kind.engine, kind.passphrase), count)
			})
		}
	}
}
