// Package metrics defines the Prometheus collectors bookscout exports on
// /metrics. Collectors are registered against an injected Registerer so tests
// can use a private registry; every method is safe on a nil *Collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bookscout/internal/cache"
)

const namespace = "bookscout"

// Collectors groups every metric the service records.
type Collectors struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	Searches         *prometheus.CounterVec
	SearchLatency    *prometheus.HistogramVec
	Fallbacks        *prometheus.CounterVec
	Discoveries      *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Catalog HTTP requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_seconds",
				Help:      "Catalog HTTP request latency in seconds, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Unified searches by strategy and result source",
			},
			[]string{"strategy", "result_source"},
		),
		SearchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_seconds",
				Help:      "Unified search latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_fallbacks_total",
				Help:      "Searches that fell back from one catalog to the other",
			},
			[]string{"from", "to", "outcome"},
		),
		Discoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discoveries_total",
				Help:      "Prompt-mode searches by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
	}
}

// ObserveUpstream records one catalog call.
func (c *Collectors) ObserveUpstream(source, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	c.UpstreamLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveSearch records one unified search.
func (c *Collectors) ObserveSearch(strategy, resultSource string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(strategy, resultSource).Inc()
	c.SearchLatency.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ObserveFallback records a fallback attempt and whether it succeeded.
func (c *Collectors) ObserveFallback(from, to string, ok bool) {
	if c == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	c.Fallbacks.WithLabelValues(from, to, outcome).Inc()
}

// ObserveDiscovery records how a prompt-mode search concluded.
func (c *Collectors) ObserveDiscovery(outcome string) {
	if c == nil {
		return
	}
	c.Discoveries.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records an API response.
func (c *Collectors) ObserveHTTP(route, status string) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, status).Inc()
}

// RegisterCache exports the cache client counters and breaker state. A nil
// client registers nothing.
func RegisterCache(reg prometheus.Registerer, client *cache.Client) {
	if client == nil {
		return
	}
	factory := promauto.With(reg)
	counter := func(name, help string, read func(cache.Stats) uint64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"backend": client.BackendName()},
		}, func() float64 { return float64(read(client.Stats())) })
	}
	counter("hits_total", "Cache reads that found an entry", func(s cache.Stats) uint64 { return s.Hits })
	counter("misses_total", "Cache reads that found nothing", func(s cache.Stats) uint64 { return s.Misses })
	counter("writes_total", "Successful cache writes", func(s cache.Stats) uint64 { return s.Writes })
	counter("errors_total", "Cache backend errors", func(s cache.Stats) uint64 { return s.Errors })
	counter("short_circuits_total", "Cache calls skipped by the open breaker", func(s cache.Stats) uint64 { return s.ShortCircuits })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "breaker_open",
		Help:        "1 when the cache circuit breaker is open or half-open",
		ConstLabels: prometheus.Labels{"backend": client.BackendName()},
	}, func() float64 {
		if client.BreakerState() == cache.BreakerClosed {
			return 0
		}
		return 1
	})
}
