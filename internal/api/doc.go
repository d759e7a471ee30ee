// Package api exposes the search, details, discovery and status operations
// over HTTP.
//
// # Routes
//
//	GET  /healthz           liveness probe, never authenticated
//	GET  /metrics           Prometheus exposition when a gatherer is configured
//	GET  /api/search        keyword search (q, author, max_results, start_index,
//	                        search_in, language, published_after, published_before)
//	GET  /api/books/{id}    record details; ?source= overrides the id prefix
//	POST /api/discover      prompt-driven discovery ({"prompt", "maxResults", ...})
//	GET  /api/status        configured catalogs, strategy and cache state
//
// # Errors
//
// Failures are rendered as {"error", "kind", "retryable"} where kind is
// services.Kind. Markers map to statuses: invalid query 400, not found 404,
// rate limited 429, unavailable or unconfigured 503, timeout 504, network and
// parse failures 502.
//
// # Design Notes
//
// Payloads use camelCase JSON tags. Every request carries an X-Request-ID,
// either echoed from the caller or generated, which is also attached to the
// request context for log correlation. When an API token is configured the
// /api routes require "Authorization: Bearer <token>".
package api
