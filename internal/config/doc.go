// Package config loads and validates bookscout configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_BOOKS_API_KEY, BOOKSCOUT_LLM_API_KEY and BOOKSCOUT_REDIS_URL. The
// Config type centralizes every knob the CLI and API server need, so catalog
// credentials, search strategy, cache backend and ranking weights are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths and validated values.
package config
