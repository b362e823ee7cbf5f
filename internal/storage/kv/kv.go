// Package kv defines the contract shared by the embedded key-value engines
// behind the Local Store.
package kv

import (
	"context"
	"errors"
	"io"
)

// Engine errors.
var (
	ErrKeyNotFound = errors.New("kv: key not found")
	ErrClosed      = errors.New("kv: engine closed")
)

// Engine is an embedded key-value store.
//
// Implementations must be safe for concurrent use. Keys are compared
// bytewise; Scan visits keys in ascending order.
type Engine interface {
	// Name identifies the engine kind ("badger", "memory").
	Name() string

	// Get returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	Set(ctx context.Context, key, value []byte) error

	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key []byte) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix []byte) error

	// Scan calls fn for each key with prefix until fn returns false.
	// key and value are only valid until fn returns.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// SaveSnapshot writes the full contents in an engine-specific format.
	SaveSnapshot(ctx context.Context, w io.Writer) error

	// LoadSnapshot replaces the full contents with a snapshot written by
	// the same engine kind.
	LoadSnapshot(ctx context.Context, r io.Reader) error

	// GC reclaims space where the engine supports it. Returns bytes reclaimed.
	GC(ctx context.Context) (uint64, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// Stats contains engine statistics.
type Stats struct {
	Engine           string
	TotalKeys        uint64 // 0 when the engine cannot count cheaply
	TotalSize        uint64
	LSMSize          uint64
	ValueLogSize     uint64
	LastGCTime       int64 // Unix milliseconds
	GCBytesReclaimed uint64
}
