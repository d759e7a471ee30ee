package preflight

import (
	"context"

	"bookscout/internal/cache"
	"bookscout/internal/catalog/googlebooks"
	"bookscout/internal/catalog/openlibrary"
	"bookscout/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Catalog probes bypass the cache and never retry, so a failing upstream is
// reported as it is right now.
func RunAll(ctx context.Context, cfg *config.Config, cacheClient *cache.Client) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir)}

	if cfg.GoogleBooks.Enabled {
		probe := cfg.GoogleBooks
		probe.MaxRetries = 0
		results = append(results, CheckCatalog(ctx, "Google Books", googlebooks.New(probe)))
	}
	if cfg.OpenLibrary.Enabled {
		probe := cfg.OpenLibrary
		probe.MaxRetries = 0
		results = append(results, CheckCatalog(ctx, "Open Library", openlibrary.New(probe)))
	}

	switch {
	case !cfg.Discovery.Enabled:
	case cfg.LLM.APIKey == "":
		results = append(results, Result{
			Name:   "Recommendation LLM",
			Passed: true,
			Detail: "not configured; prompt searches use keyword search",
		})
	default:
		results = append(results, CheckLLM(ctx, "Recommendation LLM", cfg.LLM))
	}

	results = append(results, CheckCache(ctx, cacheClient))
	return results
}
