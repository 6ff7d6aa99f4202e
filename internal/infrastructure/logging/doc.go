// Package logging provides structured logging for the pool bridge.
//
// It wraps log/slog with configuration-driven setup: output format
// (JSON or text), level filtering, and default service fields attached
// to every record.
//
// Components receive a *Logger (or a narrower Logger interface they
// declare themselves) and must tolerate a nil logger by staying silent.
package logging
