package metric

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.RemoteRequests == nil || r.RemoteLatency == nil {
		t.Error("remote metrics are nil")
	}
	if r.Fallbacks == nil || r.SessionState == nil || r.CachedContacts == nil {
		t.Error("session metrics are nil")
	}
	if r.Registerer() == nil || r.Gatherer() == nil {
		t.Error("Registerer/Gatherer should not be nil")
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry

	r.ObserveRemote("GET", "ok", time.Millisecond)
	r.RecordFallback("login")
	r.SetSessionState("anonymous")
	r.SetCachedContacts(3)
	if err := r.WriteText(&bytes.Buffer{}); err != nil {
		t.Errorf("WriteText on nil = %v", err)
	}
	if err := r.RegisterRuntime(); err != nil {
		t.Errorf("RegisterRuntime on nil = %v", err)
	}
	if r.Registerer() != nil || r.Gatherer() != nil {
		t.Error("nil registry should expose nil registerer and gatherer")
	}
}

func TestRegistry_ObserveRemote(t *testing.T) {
	r := NewRegistry()

	r.ObserveRemote("GET", "ok", 20*time.Millisecond)
	r.ObserveRemote("GET", "ok", 30*time.Millisecond)
	r.ObserveRemote("POST", "transport", time.Second)

	tests := []struct {
		method, outcome string
		want            float64
	}{
		{"GET", "ok", 2},
		{"POST", "transport", 1},
		{"POST", "ok", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(r.RemoteRequests.WithLabelValues(tt.method, tt.outcome)); got != tt.want {
			t.Errorf("requests{%s,%s} = %v, want %v", tt.method, tt.outcome, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(r.RemoteLatency); n != 2 {
		t.Errorf("latency series = %d, want 2", n)
	}
}

func TestRegistry_Fallbacks(t *testing.T) {
	r := NewRegistry()
	r.RecordFallback("login")
	r.RecordFallback("login")
	r.RecordFallback("contacts.list")

	if got := testutil.ToFloat64(r.Fallbacks.WithLabelValues("login")); got != 2 {
		t.Errorf("fallbacks{login} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.Fallbacks.WithLabelValues("contacts.list")); got != 1 {
		t.Errorf("fallbacks{contacts.list} = %v, want 1", got)
	}
}

func TestRegistry_SessionState(t *testing.T) {
	r := NewRegistry()

	r.SetSessionState("refreshing")
	r.SetSessionState("authenticated")

	if got := testutil.ToFloat64(r.SessionState.WithLabelValues("refreshing")); got != 0 {
		t.Errorf("state{refreshing} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.SessionState.WithLabelValues("authenticated")); got != 1 {
		t.Errorf("state{authenticated} = %v, want 1", got)
	}

	r.SetSessionState("authenticated")
	if got := testutil.ToFloat64(r.SessionState.WithLabelValues("authenticated")); got != 1 {
		t.Errorf("repeated state = %v, want 1", got)
	}

	r.SetCachedContacts(4)
	if got := testutil.ToFloat64(r.CachedContacts); got != 4 {
		t.Errorf("contacts = %v, want 4", got)
	}
}

func TestRegistry_WriteText(t *testing.T) {
	r := NewRegistry()
	r.ObserveRemote("GET", "ok", 10*time.Millisecond)
	r.RecordFallback("register")

	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	body := buf.String()

	for _, want := range []string{
		"phonebook_remote_requests_total",
		`method="GET"`,
		`outcome="ok"`,
		"phonebook_remote_request_duration_seconds_bucket{",
		`phonebook_fallbacks_total{operation="register"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestRegistry_RegisterRuntime(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterRuntime(); err != nil {
		t.Fatalf("RegisterRuntime failed: %v", err)
	}
	if err := r.RegisterRuntime(); err == nil {
		t.Error("second RegisterRuntime should fail with a duplicate registration")
	}
}

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f fakeCounter) KeyCounts(context.Context) (map[string]int, error) {
	return f.counts, f.err
}

func TestStoreCollector(t *testing.T) {
	c := NewStoreCollector(fakeCounter{counts: map[string]int{"contact": 3, "session": 2}})

	expected := `
# HELP phonebook_store_keys Keys in the local store by namespace.
# TYPE phonebook_store_keys gauge
phonebook_store_keys{namespace="contact"} 3
phonebook_store_keys{namespace="session"} 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "phonebook_store_keys"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(c); n != 3 {
		t.Errorf("series = %d, want 3", n)
	}
}

func TestStoreCollector_Error(t *testing.T) {
	c := NewStoreCollector(fakeCounter{err: errors.New("closed")})

	expected := `
# HELP phonebook_store_scrape_error 1 if reading the local store failed during the last collection.
# TYPE phonebook_store_scrape_error gauge
phonebook_store_scrape_error 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}
