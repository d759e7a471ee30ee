package config

const (
	defaultStateDir               = "~/.local/share/bookscout"
	defaultLogDir                 = "~/.local/share/bookscout/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultUserAgent              = "bookscout/dev"
	defaultGoogleBooksBaseURL     = "https://www.googleapis.com/books/v1"
	defaultOpenLibraryBaseURL     = "https://openlibrary.org"
	defaultOpenLibraryCoversURL   = "https://covers.openlibrary.org"
	defaultCatalogMaxRetries      = 3
	defaultCatalogRetryBaseMS     = 1000
	defaultCatalogTimeoutSeconds  = 10
	defaultGoogleBooksRPS         = 5
	defaultOpenLibraryRPS         = 3
	defaultSearchPrimary          = "google"
	defaultSearchTimeoutMS        = 8000
	defaultSearchCacheTTLSeconds  = 300
	defaultDiscoveryBatchSize     = 3
	defaultDiscoveryBatchDelayMS  = 500
	defaultDiscoveryMinMatches    = 3
	defaultDiscoveryThreshold     = 0.6
	defaultDiscoveryMaxSuggest    = 10
	defaultCacheBackend           = "memory"
	defaultCacheTTLSeconds        = 3600
	defaultCacheSQLitePath        = "~/.local/share/bookscout/cache.db"
	defaultCacheKeyPrefix         = "bookscout:"
	defaultCompressionMinBytes    = 1024
	defaultBreakerThreshold       = 5
	defaultBreakerCooldownSeconds = 30
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/bookscout/bookscout"
	defaultLLMTitle               = "bookscout discovery"
	defaultLLMTimeoutSeconds      = 60
	defaultLLMTemperature         = 0.3
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		GoogleBooks: Catalog{
			Enabled:           true,
			BaseURL:           defaultGoogleBooksBaseURL,
			UserAgent:         defaultUserAgent,
			MaxRetries:        defaultCatalogMaxRetries,
			RetryBaseDelayMS:  defaultCatalogRetryBaseMS,
			RequestsPerSecond: defaultGoogleBooksRPS,
			TimeoutSeconds:    defaultCatalogTimeoutSeconds,
		},
		OpenLibrary: OpenLibrary{
			Catalog: Catalog{
				Enabled:           true,
				BaseURL:           defaultOpenLibraryBaseURL,
				UserAgent:         defaultUserAgent,
				MaxRetries:        defaultCatalogMaxRetries,
				RetryBaseDelayMS:  defaultCatalogRetryBaseMS,
				RequestsPerSecond: defaultOpenLibraryRPS,
				TimeoutSeconds:    defaultCatalogTimeoutSeconds,
			},
			CoversURL: defaultOpenLibraryCoversURL,
		},
		Search: Search{
			Primary:         defaultSearchPrimary,
			Merge:           true,
			Fallback:        true,
			TimeoutMS:       defaultSearchTimeoutMS,
			CacheTTLSeconds: defaultSearchCacheTTLSeconds,
		},
		Discovery: Discovery{
			Enabled:        true,
			BatchSize:      defaultDiscoveryBatchSize,
			BatchDelayMS:   defaultDiscoveryBatchDelayMS,
			MinMatches:     defaultDiscoveryMinMatches,
			MatchThreshold: defaultDiscoveryThreshold,
			MaxSuggestions: defaultDiscoveryMaxSuggest,
		},
		Ranking: Ranking{
			DescriptionMinLength: 100,
			Description:          3,
			Cover:                2,
			PublishedDate:        1,
			Publisher:            1,
			PageCount:            1,
			ISBN:                 2,
			Categories:           1,
			Rating:               2,
		},
		Cache: Cache{
			Backend:                defaultCacheBackend,
			TTLSeconds:             defaultCacheTTLSeconds,
			SQLitePath:             defaultCacheSQLitePath,
			KeyPrefix:              defaultCacheKeyPrefix,
			Compression:            true,
			CompressionMinBytes:    defaultCompressionMinBytes,
			BreakerThreshold:       defaultBreakerThreshold,
			BreakerCooldownSeconds: defaultBreakerCooldownSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Temperature:    defaultLLMTemperature,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
