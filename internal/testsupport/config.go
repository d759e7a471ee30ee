package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bookscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp state directory per
// test. Catalogs never retry and are not rate limited, the cache is in
// memory, and logging is quiet.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = ""
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	for _, cat := range []*config.Catalog{&cfgVal.GoogleBooks, &cfgVal.OpenLibrary.Catalog} {
		cat.MaxRetries = 0
		cat.RetryBaseDelayMS = 1
		cat.RequestsPerSecond = 0
	}
	cfgVal.Discovery.BatchDelayMS = 0
	cfgVal.Cache.Backend = "memory"
	cfgVal.Cache.SQLitePath = filepath.Join(base, "state", "cache.db")
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGoogleBooks points the Google Books adapter at baseURL.
func WithGoogleBooks(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GoogleBooks.Enabled = true
		b.cfg.GoogleBooks.BaseURL = baseURL
	}
}

// WithOpenLibrary points the Open Library adapter at baseURL.
func WithOpenLibrary(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenLibrary.Enabled = true
		b.cfg.OpenLibrary.BaseURL = baseURL
	}
}

// WithLLM configures the recommendation model endpoint and key.
func WithLLM(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.APIKey = apiKey
	}
}

// WithCacheBackend selects the cache backend.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
	}
}

// WithSearch overrides the merge and primary settings.
func WithSearch(merge bool, primary string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search.Merge = merge
		b.cfg.Search.Primary = primary
	}
}

// WriteConfig encodes cfg as TOML at path, creating parent directories.
func WriteConfig(t testing.TB, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// ClearEnv blanks every environment variable the config loader reads, so a
// developer's shell cannot leak keys into tests.
func ClearEnv(t testing.TB) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_BOOKS_API_KEY",
		"BOOKSCOUT_LLM_API_KEY",
		"OPENROUTER_API_KEY",
		"BOOKSCOUT_REDIS_URL",
		"BOOKSCOUT_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
