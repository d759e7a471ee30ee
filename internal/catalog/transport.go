package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"bookscout/internal/logging"
	"bookscout/internal/metrics"
	"bookscout/internal/services"
)

const (
	defaultHTTPTimeout     = 10 * time.Second
	defaultRetryBaseDelay  = time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	defaultUserAgent       = "bookscout/1.0"
	maxErrorSnippet        = 256
	maxResponseBytes       = 8 << 20
	tracerName             = "bookscout/catalog"
	outcomeOK              = "ok"
)

// TransportConfig holds the per-source HTTP policy.
type TransportConfig struct {
	Source            string
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RequestsPerSecond float64
	BreakerFailures   int
	BreakerCooldown   time.Duration
}

// Transport issues GET requests against one catalog and decodes JSON bodies.
type Transport struct {
	cfg     TransportConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Collectors
	tracer  trace.Tracer
}

// TransportOption customizes a Transport.
type TransportOption func(*Transport)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records upstream request counts and latency.
func WithMetrics(m *metrics.Collectors) TransportOption {
	return func(t *Transport) { t.metrics = m }
}

// NewTransport builds a Transport. Zero values in cfg fall back to defaults;
// RequestsPerSecond <= 0 disables rate limiting.
func NewTransport(cfg TransportConfig, opts ...TransportOption) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	t := &Transport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, cfg.Source)

	failures := uint32(cfg.BreakerFailures)
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Source,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Caller mistakes (400, 404, 429) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !services.Retryable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logging.WarnWithContext(t.logger, "upstream circuit opened", "catalog_breaker_open",
					logging.String(logging.FieldSource, name),
					logging.String("from", from.String()),
					logging.Duration("cooldown", cfg.BreakerCooldown),
					logging.String(logging.FieldErrorHint, "requests fail fast until the cooldown elapses"),
					logging.String(logging.FieldImpact, "searches fall back to the other catalog"),
				)
				return
			}
			t.logger.Info("upstream circuit state changed",
				logging.String(logging.FieldSource, name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
	return t
}

// Source returns the catalog name used in error messages.
func (t *Transport) Source() string { return t.cfg.Source }

// BaseURL returns the configured API root without a trailing slash.
func (t *Transport) BaseURL() string { return t.cfg.BaseURL }

// RequestsPerSecond reports the configured limit, 0 when unlimited.
func (t *Transport) RequestsPerSecond() float64 {
	if t.limiter == nil {
		return 0
	}
	return t.cfg.RequestsPerSecond
}

// BreakerState reports the upstream breaker state ("closed", "open", "half-open").
func (t *Transport) BreakerState() string {
	return t.breaker.State().String()
}

// GetJSON requests path (relative to BaseURL) with query and decodes the body
// into target. Transient failures are retried with exponential backoff; 4xx
// responses and parse errors are returned immediately.
func (t *Transport) GetJSON(ctx context.Context, operation, path string, query url.Values, target any) error {
	endpoint := t.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, span := t.tracer.Start(ctx, "catalog."+operation, trace.WithAttributes(
		attribute.String("catalog.source", t.cfg.Source),
		attribute.String("http.path", path),
	))
	defer span.End()

	start := time.Now()
	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.retry(ctx, operation, endpoint, target)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = services.Wrap(services.ErrServiceUnavailable, t.cfg.Source, operation, "circuit open", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, services.Kind(err))
		t.metrics.ObserveUpstream(t.cfg.Source, services.Kind(err), time.Since(start))
		return err
	}
	t.metrics.ObserveUpstream(t.cfg.Source, outcomeOK, time.Since(start))
	return nil
}

func (t *Transport) retry(ctx context.Context, operation, endpoint string, target any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.cfg.RetryBaseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = t.cfg.RetryBaseDelay << uint(t.cfg.MaxRetries)
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempt := 0
	op := func() error {
		attempt++
		err := t.do(ctx, operation, endpoint, target)
		if err == nil || !services.Retryable(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Debug("retrying catalog request",
			logging.String(logging.FieldOperation, operation),
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.cfg.MaxRetries)), ctx), notify)
	if err == nil {
		return nil
	}
	// backoff reports the bare context error when the deadline interrupts a
	// wait; prefer the classified error when one was produced.
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return t.contextError(operation, ctxErr)
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (t *Transport) do(ctx context.Context, operation, endpoint string, target any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return t.contextError(operation, ctxErr)
			}
			return services.Wrap(services.ErrRateLimited, t.cfg.Source, operation, "local rate limit", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrInvalidQuery, t.cfg.Source, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return t.transportError(ctx, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return t.transportError(ctx, operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.statusError(operation, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return services.Wrap(services.ErrParse, t.cfg.Source, operation, "decode response", err)
	}
	return nil
}

func (t *Transport) statusError(operation string, status int, body []byte) error {
	message := fmt.Sprintf("status %d", status)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet] + "..."
		}
		message += ": " + snippet
	}
	var marker error
	switch {
	case status == http.StatusNotFound:
		marker = services.ErrNotFound
	case status == http.StatusTooManyRequests:
		marker = services.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		marker = services.ErrConfiguration
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		marker = services.ErrTimeout
	case status >= 500:
		marker = services.ErrServiceUnavailable
	default:
		marker = services.ErrInvalidQuery
	}
	return services.Wrap(marker, t.cfg.Source, operation, message, nil)
}

func (t *Transport) transportError(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return t.contextError(operation, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, t.cfg.Source, operation, "request timed out", err)
	}
	return services.Wrap(services.ErrNetwork, t.cfg.Source, operation, "request failed", err)
}

func (t *Transport) contextError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, t.cfg.Source, operation, "deadline exceeded", err)
	}
	return services.Wrap(services.ErrNetwork, t.cfg.Source, operation, "request canceled", err)
}
