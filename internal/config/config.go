package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Catalog holds the HTTP settings shared by both catalog adapters.
type Catalog struct {
	Enabled           bool    `toml:"enabled"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	MaxRetries        int     `toml:"max_retries"`
	RetryBaseDelayMS  int     `toml:"retry_base_delay_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// RetryBaseDelay returns the first retry delay as a duration.
func (c Catalog) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// Timeout returns the HTTP client timeout as a duration.
func (c Catalog) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenLibrary extends the shared catalog settings with the covers host.
type OpenLibrary struct {
	Catalog
	CoversURL string `toml:"covers_url"`
}

// Search controls strategy selection in the unified search service.
type Search struct {
	// Primary names the catalog tried first: "google" or "openlibrary".
	Primary         string `toml:"primary"`
	Merge           bool   `toml:"merge"`
	Fallback        bool   `toml:"fallback"`
	TimeoutMS       int    `toml:"timeout_ms"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

// Discovery controls the prompt-mode pipeline.
type Discovery struct {
	Enabled        bool    `toml:"enabled"`
	BatchSize      int     `toml:"batch_size"`
	BatchDelayMS   int     `toml:"batch_delay_ms"`
	MinMatches     int     `toml:"min_matches"`
	MatchThreshold float64 `toml:"match_threshold"`
	MaxSuggestions int     `toml:"max_suggestions"`
}

// Ranking holds the quality score weights used when merging catalogs.
type Ranking struct {
	DescriptionMinLength int `toml:"description_min_length"`
	Description          int `toml:"description"`
	Cover                int `toml:"cover"`
	PublishedDate        int `toml:"published_date"`
	Publisher            int `toml:"publisher"`
	PageCount            int `toml:"page_count"`
	ISBN                 int `toml:"isbn"`
	Categories           int `toml:"categories"`
	Rating               int `toml:"rating"`
}

// Cache selects and tunes the key-value cache backend.
type Cache struct {
	// Backend is one of "memory", "sqlite", "redis" or "none".
	Backend                string `toml:"backend"`
	TTLSeconds             int    `toml:"ttl_seconds"`
	SQLitePath             string `toml:"sqlite_path"`
	RedisURL               string `toml:"redis_url"`
	KeyPrefix              string `toml:"key_prefix"`
	Compression            bool   `toml:"compression"`
	CompressionMinBytes    int    `toml:"compression_min_bytes"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

// LLM contains the recommendation model connection settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bookscout.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and API bind address
//   - GoogleBooks / OpenLibrary: catalog adapters
//   - Search: strategy, fallback, timeouts and result caching
//   - Discovery: prompt-mode batching and match floor
//   - Ranking: quality score weights
//   - Cache: backend selection, breaker and compression
//   - LLM: recommendation model settings
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	GoogleBooks Catalog     `toml:"google_books"`
	OpenLibrary OpenLibrary `toml:"open_library"`
	Search      Search      `toml:"search"`
	Discovery   Discovery   `toml:"discovery"`
	Ranking     Ranking     `toml:"ranking"`
	Cache       Cache       `toml:"cache"`
	LLM         LLM         `toml:"llm"`
	Logging     Logging     `toml:"logging"`
}

const defaultConfigPath = "~/.config/bookscout/config.toml"

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookscout.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the file `bookscout serve` holds to keep a single API instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "bookscout.lock")
}

// SearchTimeout returns the per-adapter call timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutMS) * time.Millisecond
}

// SearchCacheTTL returns how long whole search results stay cached.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLSeconds) * time.Second
}

// CacheTTL returns the adapter-level read-through cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// BreakerCooldown returns how long the cache circuit stays open.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Cache.BreakerCooldownSeconds) * time.Second
}

// DiscoveryBatchDelay returns the pause between metadata batches.
func (c *Config) DiscoveryBatchDelay() time.Duration {
	return time.Duration(c.Discovery.BatchDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
