// Package cmap provides a string-keyed concurrent map split into shards.
//
// Each shard has its own RWMutex, so writers to different keys rarely
// contend. Iteration locks one shard at a time and therefore observes a
// view that may interleave with concurrent writes.
//
//	m := cmap.New[[]byte]()
//	m.Set("contact/1", raw)
//	v, ok := m.Get("contact/1")
//	keys := m.KeysWithPrefix("contact/")
package cmap
