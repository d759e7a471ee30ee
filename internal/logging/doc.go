// Package logging assembles structured slog loggers and formatting helpers used
// across bookscout.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so search and discovery code can
// tag log lines with the operation and request correlation ID. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
