package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalogs()
	c.normalizeSearch()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("BOOKSCOUT_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeCatalogs() {
	if value := lookupEnv("GOOGLE_BOOKS_API_KEY"); value != "" {
		c.GoogleBooks.APIKey = value
	}
	normalizeCatalog(&c.GoogleBooks, defaultGoogleBooksBaseURL)
	normalizeCatalog(&c.OpenLibrary.Catalog, defaultOpenLibraryBaseURL)
	c.OpenLibrary.CoversURL = strings.TrimRight(strings.TrimSpace(c.OpenLibrary.CoversURL), "/")
	if c.OpenLibrary.CoversURL == "" {
		c.OpenLibrary.CoversURL = defaultOpenLibraryCoversURL
	}
}

func normalizeCatalog(cat *Catalog, defaultBaseURL string) {
	cat.APIKey = strings.TrimSpace(cat.APIKey)
	cat.BaseURL = strings.TrimRight(strings.TrimSpace(cat.BaseURL), "/")
	if cat.BaseURL == "" {
		cat.BaseURL = defaultBaseURL
	}
	cat.UserAgent = strings.TrimSpace(cat.UserAgent)
	if cat.UserAgent == "" {
		cat.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeSearch() {
	c.Search.Primary = strings.ToLower(strings.TrimSpace(c.Search.Primary))
	if c.Search.Primary == "" {
		c.Search.Primary = defaultSearchPrimary
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if value := lookupEnv("BOOKSCOUT_REDIS_URL"); value != "" {
		c.Cache.RedisURL = value
	}
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	if strings.TrimSpace(c.Cache.SQLitePath) == "" {
		c.Cache.SQLitePath = defaultCacheSQLitePath
	}
	var err error
	if c.Cache.SQLitePath, err = expandPath(c.Cache.SQLitePath); err != nil {
		return fmt.Errorf("cache.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if value := lookupEnv("BOOKSCOUT_LLM_API_KEY", "OPENROUTER_API_KEY"); value != "" {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
