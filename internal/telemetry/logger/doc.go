// Package logger provides structured logging for phonebook-cli.
//
//   - logger.go: slog-based Logger, levels and the global default
//   - context.go: context-aware logging with request IDs
//   - redact.go: sensitive data redaction
package logger
