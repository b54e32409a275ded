// Package logger defines the minimal structured logging interface used by
// the aauth service, with phuslu-style, slog and no-op backends.
package logger

// Logger accepts alternating key/value pairs as variadic arguments. The
// interface is deliberately small so hosts can adapt whatever logger they
// already run.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
