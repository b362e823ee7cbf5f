// Package token provides random secret generation and SHA-256 hashing.
//
// Secrets are Base64 RawURL encoded so they are safe in headers and URLs.
// Hashes are hex encoded. Only hashes are ever persisted; Verify compares
// in constant time.
package token
