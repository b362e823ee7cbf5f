package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"

	"github.com/jmoanes1/phonebook/internal/storage/kv"
	"github.com/jmoanes1/phonebook/pkg/cmap"
)

// Name is the engine kind reported by Engine.Name.
const Name = "memory"

// Engine is an in-memory kv.Engine.
type Engine struct {
	items  *cmap.Map[[]byte]
	closed atomic.Bool
}

var _ kv.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*config)

type config struct {
	shards int
}

// WithShardCount sets the number of map shards (power of 2).
func WithShardCount(n int) Option {
	return func(c *config) {
		c.shards = n
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	cfg := config{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{items: cmap.NewWithShards[[]byte](cfg.shards)}
}

// Name implements kv.Engine.
func (e *Engine) Name() string { return Name }

// Get returns a copy of the stored value.
func (e *Engine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, kv.ErrClosed
	}
	v, ok := e.items.Get(string(key))
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// Set stores a copy of value.
func (e *Engine) Set(ctx context.Context, key, value []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	e.items.Set(string(key), bytes.Clone(value))
	return nil
}

// Delete removes a key.
func (e *Engine) Delete(ctx context.Context, key []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	e.items.Delete(string(key))
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (e *Engine) DeletePrefix(ctx context.Context, prefix []byte) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	e.items.DeletePrefix(string(prefix))
	return nil
}

// Scan visits keys with prefix in ascending order.
func (e *Engine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	for _, k := range e.items.KeysWithPrefix(string(prefix)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := e.items.Get(k)
		if !ok {
			continue // deleted after the key listing
		}
		if !fn([]byte(k), bytes.Clone(v)) {
			break
		}
	}
	return nil
}

// entry is one key-value pair of a snapshot.
type entry struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

// SaveSnapshot writes all pairs as a CBOR array, ordered by key.
func (e *Engine) SaveSnapshot(ctx context.Context, w io.Writer) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	var entries []entry
	if err := e.Scan(ctx, nil, func(k, v []byte) bool {
		entries = append(entries, entry{Key: bytes.Clone(k), Value: v})
		return true
	}); err != nil {
		return err
	}
	if err := cbor.NewEncoder(w).Encode(entries); err != nil {
		return fmt.Errorf("memory: encode snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot replaces all data with the snapshot read from r.
func (e *Engine) LoadSnapshot(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return kv.ErrClosed
	}
	var entries []entry
	if err := cbor.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("memory: decode snapshot: %w", err)
	}
	e.items.Clear()
	for _, en := range entries {
		e.items.Set(string(en.Key), en.Value)
	}
	return nil
}

// GC is a no-op; deleted values are released to the Go runtime immediately.
func (e *Engine) GC(ctx context.Context) (uint64, error) {
	return 0, nil
}

// Stats reports key count and payload size.
func (e *Engine) Stats(ctx context.Context) (*kv.Stats, error) {
	if e.closed.Load() {
		return nil, kv.ErrClosed
	}
	var size uint64
	e.items.Range(func(k string, v []byte) bool {
		size += uint64(len(k) + len(v))
		return true
	})
	return &kv.Stats{
		Engine:    Name,
		TotalKeys: uint64(e.items.Count()),
		TotalSize: size,
	}, nil
}

// Close drops all data.
func (e *Engine) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.items.Clear()
	}
	return nil
}
