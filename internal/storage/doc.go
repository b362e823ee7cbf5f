// Package storage implements the Local Store: the persistence used by the
// session and contact components when the remote api is unreachable.
//
// Layout:
//
//   - kv: the engine contract (Get/Set/Delete/Scan/snapshots)
//   - BadgerEngine: durable engine on Badger v3 with value-log GC
//   - memory: process-local engine, swapped in when Badger cannot be opened
//   - Local: typed records over an engine, CBOR encoded and optionally
//     sealed with a passphrase-derived AEAD key
//
// Keys live in disjoint namespaces (session/, contact/, account*/, meta/),
// one per owning component.
package storage
