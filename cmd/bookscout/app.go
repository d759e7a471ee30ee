package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bookscout/internal/cache"
	"bookscout/internal/catalog"
	"bookscout/internal/catalog/googlebooks"
	"bookscout/internal/catalog/openlibrary"
	"bookscout/internal/config"
	"bookscout/internal/discovery"
	"bookscout/internal/metrics"
	"bookscout/internal/ranking"
	"bookscout/internal/recommend"
	"bookscout/internal/search"
	"bookscout/internal/services/llm"
)

// app holds the wired services a command works with.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Collectors
	cache     *cache.Client
	adapters  []catalog.Adapter
	search    *search.Service
	discovery *discovery.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collectorSet := metrics.New(registry)

	cacheClient, err := cache.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	metrics.RegisterCache(registry, cacheClient)

	transportOpts := []catalog.TransportOption{
		catalog.WithLogger(logger),
		catalog.WithMetrics(collectorSet),
	}
	ttl := cfg.CacheTTL()
	adapters := []catalog.Adapter{
		googlebooks.New(cfg.GoogleBooks,
			googlebooks.WithCache(cacheClient, ttl),
			googlebooks.WithTransportOptions(transportOpts...),
		),
		openlibrary.New(cfg.OpenLibrary,
			openlibrary.WithCache(cacheClient, ttl),
			openlibrary.WithTransportOptions(transportOpts...),
		),
	}

	ranker := ranking.New(ranking.WeightsFromConfig(cfg.Ranking))
	searchSvc := search.New(search.SettingsFromConfig(cfg), adapters,
		search.WithCache(cacheClient),
		search.WithRanker(ranker),
		search.WithLogger(logger),
		search.WithMetrics(collectorSet),
	)

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		Temperature:    cfg.LLM.Temperature,
	}, llm.WithLogger(logger))
	recommender := recommend.NewFromLLM(llmClient,
		recommend.WithMaxSuggestions(cfg.Discovery.MaxSuggestions),
		recommend.WithLogger(logger),
	)
	orchestrator := discovery.New(discovery.SettingsFromConfig(cfg), recommender, searchSvc, adapters,
		discovery.WithLogger(logger),
		discovery.WithMetrics(collectorSet),
		discovery.WithRanker(ranker),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		metrics:   collectorSet,
		cache:     cacheClient,
		adapters:  adapters,
		search:    searchSvc,
		discovery: orchestrator,
	}, nil
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	return a.cache.Close()
}
