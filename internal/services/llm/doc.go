// Package llm provides an OpenRouter-compatible chat client for JSON-only
// completions.
//
// The recommendation client uses it to turn a free-text reading prompt into a
// ranked list of title/author suggestions.
//
// # Configuration
//
// Requires api_key and model, optionally base_url, referer, title, timeout.
// When unconfigured, Configured reports false and callers skip AI features.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: tolerant decoder for fenced or chatty model output.
//
// # Retry Behaviour
//
// Requests are retried on 408/429/5xx, transport failures and empty replies,
// doubling from 1s up to 10s across at most 4 attempts. A Retry-After header
// replaces the computed delay. Failures carry services markers so callers can
// classify them with services.Kind.
package llm
