// Package preflight provides readiness checks for the catalogs, the
// recommendation model, the response cache and the state directory.
//
// `bookscout status --check` runs RunAll and renders one line per check.
// Each check is gated by its config toggle, so disabled catalogs and a
// disabled discovery pipeline are skipped rather than reported as failures.
package preflight
