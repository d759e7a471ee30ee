package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bookscout/internal/logging"
	"bookscout/internal/services"
)

const (
	sourceName        = "llm"
	defaultEndpoint   = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout    = 15 * time.Second
	defaultAttempts   = 4
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 10 * time.Second
	maxResponseBytes  = 1 << 20
	maxErrorSnippet   = 160
	responseFormatKey = "json_object"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	// Temperature applies to CompleteJSON. Health checks always use 0.
	Temperature float64
}

// Client wraps an OpenRouter-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleep     func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "llm")
		}
	}
}

// WithRetryMaxAttempts caps the total number of requests per call. Values
// below one mean a single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
	}
}

// WithRetryBackoff sets the first retry delay and the ceiling that both the
// doubling schedule and Retry-After hints are clamped to.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = max(baseDelay, 0)
		c.maxDelay = max(maxDelay, 0)
	}
}

// WithSleeper replaces the wait between attempts. Tests use it to record
// delays without sleeping.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether the client has the credentials it needs.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// CompleteJSON sends a JSON-mode chat completion and returns the raw payload
// the model produced. Errors carry services markers: a rejected key is
// ErrConfiguration, quota exhaustion ErrRateLimited, an empty or undecodable
// reply ErrParse.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrInvalidQuery, sourceName, "complete", "system and user prompts are required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, sourceName, "complete", "api key required", nil)
	}
	return c.complete(ctx, "complete", chatRequest{
		Model:          c.cfg.Model,
		Messages:       []chatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: userPrompt}},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]string{"type": responseFormatKey},
	})
}

// HealthCheck sends a trivial JSON prompt to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, sourceName, "health", "api key required", nil)
	}
	content, err := c.complete(ctx, "health", chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "Reply with JSON only."},
			{Role: "user", Content: `Reply with {"ok":true}`},
		},
		ResponseFormat: map[string]string{"type": responseFormatKey},
	})
	if err != nil {
		return err
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &reply); err != nil {
		return services.Wrap(services.ErrParse, sourceName, "health", "decode reply", err)
	}
	if !reply.OK {
		return services.Wrap(services.ErrParse, sourceName, "health", "model did not acknowledge", nil)
	}
	return nil
}

// complete runs the request with retries. Rate limits are retried too,
// waiting out any Retry-After hint.
func (c *Client) complete(ctx context.Context, operation string, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrInvalidQuery, sourceName, operation, "encode request", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = c.maxDelay
	policy.MaxElapsedTime = 0
	policy.Reset()

	for attempt := 1; ; attempt++ {
		content, err := c.send(ctx, operation, body)
		if err == nil {
			return content, nil
		}
		if attempt >= c.attempts || !retryable(err) || ctx.Err() != nil {
			if attempt > 1 {
				return "", fmt.Errorf("%w (after %d attempts)", err, attempt)
			}
			return "", err
		}

		wait := policy.NextBackOff()
		var status *statusError
		if errors.As(err, &status) && status.retryAfter > 0 {
			wait = min(status.retryAfter, c.maxDelay)
		}
		c.logger.Debug("retrying llm request",
			logging.String(logging.FieldOperation, operation),
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Error(err),
		)
		if err := c.wait(ctx, wait); err != nil {
			return "", services.Wrap(services.ErrTimeout, sourceName, operation, "interrupted while backing off", err)
		}
	}
}

func retryable(err error) bool {
	return services.Retryable(err) || errors.Is(err, services.ErrRateLimited) || errors.Is(err, errEmptyContent)
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.sleep != nil {
		c.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) send(ctx context.Context, operation string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, sourceName, operation, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(ctx, operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(operation, resp, raw)
	}

	var reply chatResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", services.Wrap(services.ErrParse, sourceName, operation, "decode response", err)
	}
	if reply.Error != nil {
		return "", services.Wrap(services.ErrServiceUnavailable, sourceName, operation, "provider error: "+strings.TrimSpace(reply.Error.Message), nil)
	}
	content, finish, refusal := reply.content()
	if content == "" {
		detail := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)", finish, refusal, snippet(string(raw)))
		return "", services.Wrap(services.ErrParse, sourceName, operation, detail, errEmptyContent)
	}
	return content, nil
}

func transportError(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, sourceName, operation, "deadline exceeded", err)
		}
		return services.Wrap(services.ErrNetwork, sourceName, operation, "canceled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, sourceName, operation, "request timed out", err)
	}
	return services.Wrap(services.ErrNetwork, sourceName, operation, "request failed", err)
}

var errEmptyContent = errors.New("model returned no content")

// statusError keeps the Retry-After hint of a non-2xx response.
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return "http " + strconv.Itoa(e.code)
}

func newStatusError(operation string, resp *http.Response, raw []byte) error {
	cause := &statusError{code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	message := snippet(string(raw))
	var marker error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusPaymentRequired:
		marker = services.ErrConfiguration
	case code == http.StatusTooManyRequests:
		marker = services.ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		marker = services.ErrTimeout
	case code >= 500:
		marker = services.ErrServiceUnavailable
	default:
		marker = services.ErrInvalidQuery
	}
	return services.Wrap(marker, sourceName, operation, message, cause)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message replyMessage `json:"message"`
	// Some providers answer with the streaming shape even when stream=false.
	Delta        replyMessage `json:"delta"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finish_reason"`
}

type replyMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (m replyMessage) text() string {
	if content := strings.TrimSpace(m.Content); content != "" {
		return content
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// content returns the first non-empty reply across choices, with the first
// finish reason and refusal seen.
func (r chatResponse) content() (text, finish, refusal string) {
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(cmp.Or(choice.Message.Refusal, choice.Delta.Refusal))
		}
		if text = cmp.Or(choice.Message.text(), choice.Delta.text(), strings.TrimSpace(choice.Text)); text != "" {
			return text, finish, refusal
		}
	}
	return "", finish, refusal
}
