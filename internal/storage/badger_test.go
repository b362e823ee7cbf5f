package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jmoanes1/phonebook/internal/storage/kv"
)

func newTestBadger(t *testing.T) *BadgerEngine {
	t.Helper()
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = 0
	cfg.SyncWrites = false

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestBadger(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("test-key"), []byte("test-value")); err != nil {
			t.Fatal(err)
		}
		got, err := engine.Get(ctx, []byte("test-key"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "test-value" {
			t.Errorf("expected test-value, got %s", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if !errors.Is(err, kv.ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("delete-key")
		if err := engine.Set(ctx, key, []byte("v")); err != nil {
			t.Fatal(err)
		}
		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, key); !errors.Is(err, kv.ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})

	if engine.Name() != EngineBadger {
		t.Errorf("Name() = %q", engine.Name())
	}
}

func TestBadgerEngine_ScanAndDeletePrefix(t *testing.T) {
	engine := newTestBadger(t)
	ctx := context.Background()

	for _, k := range []string{"contact/b", "contact/a", "session/token", "contact/c"} {
		if err := engine.Set(ctx, []byte(k), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	var keys []string
	if err := engine.Scan(ctx, []byte("contact/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != "contact/a" || keys[2] != "contact/c" {
		t.Errorf("Scan keys = %v", keys)
	}

	if err := engine.DeletePrefix(ctx, []byte("contact/")); err != nil {
		t.Fatal(err)
	}
	count := 0
	_ = engine.Scan(ctx, nil, func(_, _ []byte) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("keys after DeletePrefix = %d, want 1", count)
	}
}

func TestBadgerEngine_Snapshot(t *testing.T) {
	ctx := context.Background()
	src := newTestBadger(t)

	testData := map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"}
	for k, v := range testData {
		if err := src.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := src.SaveSnapshot(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	dst := newTestBadger(t)
	if err := dst.Set(ctx, []byte("stale"), []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := dst.LoadSnapshot(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	for k, v := range testData {
		got, err := dst.Get(ctx, []byte(k))
		if err != nil || string(got) != v {
			t.Errorf("Get(%s) = %q, %v", k, got, err)
		}
	}
	if _, err := dst.Get(ctx, []byte("stale")); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Error("LoadSnapshot should drop existing data")
	}
}

func TestBadgerEngine_GCAndStats(t *testing.T) {
	engine := newTestBadger(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		key := []byte{byte(i)}
		_ = engine.Set(ctx, key, bytes.Repeat([]byte("v"), 1024))
		_ = engine.Delete(ctx, key)
	}

	if _, err := engine.GC(ctx); err != nil {
		t.Fatalf("GC() error = %v", err)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Engine != EngineBadger {
		t.Errorf("Engine = %q", stats.Engine)
	}
	if stats.LastGCTime == 0 {
		t.Error("LastGCTime should be set after GC")
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestBadger(t)
	reg := prometheus.NewRegistry()

	if err := engine.RegisterMetrics(reg); err != nil {
		t.Fatal(err)
	}
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("gathered %d metrics, want 4", n)
	}
	if err := engine.RegisterMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}

func TestBadgerEngine_Close(t *testing.T) {
	cfg := DefaultBadgerConfig(t.TempDir())
	engine, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := engine.Set(context.Background(), []byte("k"), nil); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Set after close = %v, want ErrClosed", err)
	}
}

func TestNewBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(BadgerConfig{}, nil); err == nil {
		t.Error("empty dir should fail")
	}
}
