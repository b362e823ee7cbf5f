// Package memory provides a process-local kv.Engine.
//
// It backs the Local Store when the durable engine cannot be opened, or when
// configured explicitly with store.engine: memory. Data lives in a sharded
// concurrent map and is lost when the process exits; snapshots are CBOR so
// a memory session can still be backed up.
package memory
