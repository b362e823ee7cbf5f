// Package config defines the phonebook-cli configuration.
//
//   - spec.go: CLIConfig and its defaults (~/.phonebook/cli.yaml)
//   - loader.go: loading with flag > env > file > default precedence, and saving
//   - verify.go: validation
//   - sanitize.go: masking secrets for display
package config
