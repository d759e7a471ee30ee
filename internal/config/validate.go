package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog("google_books", c.GoogleBooks); err != nil {
		return err
	}
	if err := c.validateCatalog("open_library", c.OpenLibrary.Catalog); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateRanking(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog(section string, cat Catalog) error {
	if cat.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", section)
	}
	if cat.RetryBaseDelayMS < 0 {
		return fmt.Errorf("%s.retry_base_delay_ms must be >= 0", section)
	}
	if cat.RequestsPerSecond < 0 {
		return fmt.Errorf("%s.requests_per_second must be >= 0", section)
	}
	if cat.TimeoutSeconds <= 0 {
		return fmt.Errorf("%s.timeout_seconds must be positive", section)
	}
	return nil
}

func (c *Config) validateSearch() error {
	switch c.Search.Primary {
	case "google", "openlibrary":
	default:
		return fmt.Errorf("search.primary must be google or openlibrary, got %q", c.Search.Primary)
	}
	if c.Search.TimeoutMS <= 0 {
		return errors.New("search.timeout_ms must be positive")
	}
	if c.Search.CacheTTLSeconds < 0 {
		return errors.New("search.cache_ttl_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if c.Discovery.BatchSize < 1 || c.Discovery.BatchSize > 3 {
		return errors.New("discovery.batch_size must be between 1 and 3")
	}
	if c.Discovery.BatchDelayMS < 0 {
		return errors.New("discovery.batch_delay_ms must be >= 0")
	}
	if c.Discovery.MinMatches < 0 {
		return errors.New("discovery.min_matches must be >= 0")
	}
	if c.Discovery.MatchThreshold < 0 || c.Discovery.MatchThreshold > 1 {
		return errors.New("discovery.match_threshold must be between 0 and 1")
	}
	if c.Discovery.MaxSuggestions <= 0 {
		return errors.New("discovery.max_suggestions must be positive")
	}
	return nil
}

func (c *Config) validateRanking() error {
	weights := map[string]int{
		"ranking.description":    c.Ranking.Description,
		"ranking.cover":          c.Ranking.Cover,
		"ranking.published_date": c.Ranking.PublishedDate,
		"ranking.publisher":      c.Ranking.Publisher,
		"ranking.page_count":     c.Ranking.PageCount,
		"ranking.isbn":           c.Ranking.ISBN,
		"ranking.categories":     c.Ranking.Categories,
		"ranking.rating":         c.Ranking.Rating,
	}
	for key, value := range weights {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	if c.Ranking.DescriptionMinLength < 0 {
		return errors.New("ranking.description_min_length must be >= 0")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory", "sqlite", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required when cache.backend is redis (or set BOOKSCOUT_REDIS_URL)")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, sqlite, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds < 0 {
		return errors.New("cache.ttl_seconds must be >= 0")
	}
	if c.Cache.BreakerThreshold <= 0 {
		return errors.New("cache.breaker_threshold must be positive")
	}
	if c.Cache.BreakerCooldownSeconds <= 0 {
		return errors.New("cache.breaker_cooldown_seconds must be positive")
	}
	if c.Cache.CompressionMinBytes < 0 {
		return errors.New("cache.compression_min_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
