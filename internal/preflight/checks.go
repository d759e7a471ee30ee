package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"bookscout/internal/book"
	"bookscout/internal/cache"
	"bookscout/internal/catalog"
	"bookscout/internal/config"
	"bookscout/internal/services"
	"bookscout/internal/services/llm"
)

const (
	catalogProbeQuery = "dune"
	cacheProbeKey     = "preflight:probe"
)

// CheckCatalog runs a one-result search against adapter.
func CheckCatalog(ctx context.Context, name string, adapter catalog.Adapter) Result {
	if adapter == nil || !adapter.IsConfigured() {
		return Result{Name: name, Detail: "disabled"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	results, err := adapter.SearchBooks(checkCtx, book.SearchParams{Query: catalogProbeQuery, MaxResults: 1})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", services.Kind(err), summarizeError(err))}
	}
	detail := fmt.Sprintf("reachable in %s", time.Since(start).Round(time.Millisecond))
	if results.TotalItems == 0 {
		detail += ", but the probe query matched nothing"
	}
	if info := adapter.RateLimitInfo(); !info.HasKey && !info.Unlimited {
		detail += "; no api key, anonymous quota applies"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing; prompt searches fall back to keyword search"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", services.Kind(err), summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckCache writes, reads and deletes a probe entry. A nil client means the
// cache is disabled, which is a valid configuration.
func CheckCache(ctx context.Context, client *cache.Client) Result {
	const name = "Cache"
	if client == nil {
		return Result{Name: name, Passed: true, Detail: "disabled (backend none)"}
	}
	backend := client.BackendName()
	stamp := time.Now().UnixNano()
	if !client.Set(ctx, cacheProbeKey, stamp, time.Minute) {
		return Result{Name: name, Detail: fmt.Sprintf("%s: write failed (breaker %s)", backend, client.BreakerState())}
	}
	var got int64
	if !client.Get(ctx, cacheProbeKey, &got) || got != stamp {
		return Result{Name: name, Detail: fmt.Sprintf("%s: read back failed", backend)}
	}
	client.Delete(ctx, cacheProbeKey)
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", backend)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for probe failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (unreachable)"
	}
	return err.Error()
}
