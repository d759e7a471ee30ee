// Package catalog defines the contract shared by the Google Books and Open
// Library adapters and the HTTP plumbing they both use.
//
// Transport wraps outbound requests with a per-source rate limiter, an
// exponential retry policy for transient failures, and a circuit breaker
// that trips on repeated upstream outages. Every error it returns carries a
// services marker and names the source, so callers can classify failures
// with errors.Is regardless of which catalog produced them.
//
// The normalization helpers (StripHTML, SecureURL) and the ReadThrough cache
// helper live here so both adapters apply identical rules.
package catalog
