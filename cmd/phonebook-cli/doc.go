// Package main provides the entry point for phonebook-cli.
//
// phonebook-cli manages a personal phone book kept on a contacts REST api,
// with a local store that keeps the session and contacts available while
// the api is unreachable:
//
//   - Account registration, login, logout and profile changes
//   - Contact listing, creation and deletion
//   - Configuration, local store backups and maintenance
//
// Usage:
//
//	phonebook-cli [global flags] command [flags] [args]
//	phonebook-cli login ann@example.com
//	phonebook-cli -o json contacts list
//	phonebook-cli shell
//
// Build information is injected with ldflags into the buildinfo package.
package main
