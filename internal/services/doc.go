// Package services defines shared utilities consumed by the catalog adapters,
// the search service, and the HTTP API.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag every failure with
//     its source and operation so callers can classify it with errors.Is.
//   - Kind and Retryable, which translate markers into stable identifiers and
//     retry affordances for API payloads and CLI output.
//   - Context helpers that stamp request ids and operation names for logging.
//
// Use these helpers when wiring new integrations so error handling stays
// uniform across catalogs.
package services
