// Package main hosts the bookscout CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, the response cache,
// both catalog adapters, the unified search service and the discovery
// orchestrator once per invocation, then hands them to search, show,
// discover, status, serve, config and cache subcommands. Every command
// accepts --json for machine-readable output.
//
// .env.local in the working directory is loaded before configuration so API
// keys can stay out of the TOML file.
package main
