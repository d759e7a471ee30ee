// Package recommend turns a free-text reading request into an ordered list of
// book suggestions using a JSON-mode chat completion.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bookscout/internal/logging"
	"bookscout/internal/services"
	"bookscout/internal/services/llm"
	"bookscout/internal/textutil"
)

const (
	defaultMaxSuggestions = 10
	maxPromptRunes        = 1000
	sourceName            = "llm"
)

const systemPrompt = `You recommend books. Read the user's request and answer with real, published books that fit it.

Respond with JSON only, using this shape:
{"books": [{"title": "exact published title", "author": "primary author full name", "reason": "one short sentence"}]}

Rules:
- Order the list from best to weakest match.
- Use the title as it appears on the cover, without series numbers or edition notes.
- Never invent books. Prefer fewer suggestions over uncertain ones.`

// Suggestion is one recommended book.
type Suggestion struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Reason string `json:"reason,omitempty"`
}

// Completer is the slice of the LLM client used here.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type configuredCompleter interface {
	Configured() bool
}

// Client produces suggestions for a prompt.
type Client struct {
	completer Completer
	max       int
	logger    *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithMaxSuggestions caps how many suggestions are requested and returned.
func WithMaxSuggestions(max int) Option {
	return func(c *Client) {
		if max > 0 {
			c.max = max
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps completer. A nil completer yields an unconfigured client.
func New(completer Completer, opts ...Option) *Client {
	c := &Client{completer: completer, max: defaultMaxSuggestions, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "recommend")
	return c
}

// NewFromLLM is a convenience constructor for the OpenRouter client.
func NewFromLLM(client *llm.Client, opts ...Option) *Client {
	if client == nil {
		return New(nil, opts...)
	}
	return New(client, opts...)
}

// Configured reports whether suggestions can be requested.
func (c *Client) Configured() bool {
	if c == nil || c.completer == nil {
		return false
	}
	if cc, ok := c.completer.(configuredCompleter); ok {
		return cc.Configured()
	}
	return true
}

type response struct {
	Books []Suggestion `json:"books"`
}

// Recommend asks the model for up to max suggestions (the client default
// when max <= 0). The result keeps model order with duplicate titles removed.
func (c *Client) Recommend(ctx context.Context, prompt string, max int) ([]Suggestion, error) {
	prompt = textutil.CollapseWhitespace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrInvalidQuery, sourceName, "recommend", "prompt must not be empty", nil)
	}
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, sourceName, "recommend", "llm api key not configured", nil)
	}
	if max <= 0 || max > c.max {
		max = c.max
	}
	if runes := []rune(prompt); len(runes) > maxPromptRunes {
		prompt = string(runes[:maxPromptRunes])
	}

	user := fmt.Sprintf("Request: %s\n\nSuggest up to %d books.", prompt, max)
	raw, err := c.completer.CompleteJSON(ctx, systemPrompt, user)
	if err != nil {
		return nil, completionError(ctx, err)
	}

	var parsed response
	if err := llm.DecodeLLMJSON(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrParse, sourceName, "recommend", "decode suggestions", err)
	}
	suggestions := clean(parsed.Books, max)
	c.logger.Debug("llm suggestions received",
		logging.Int("requested", max),
		logging.Int("returned", len(parsed.Books)),
		logging.Int("kept", len(suggestions)),
	)
	return suggestions, nil
}

// completionError keeps the marker the completer attached, so a rate-limited
// model still reads as rate_limited. A request the model rejects reads as
// service_unavailable.
func completionError(ctx context.Context, err error) error {
	switch kind := services.Kind(err); {
	case kind == "invalid_query":
		return services.Wrap(services.ErrServiceUnavailable, sourceName, "recommend", "completion rejected: "+err.Error(), nil)
	case kind != "internal":
		return fmt.Errorf("%s: recommend: %w", sourceName, err)
	case ctx.Err() != nil:
		return services.Wrap(services.ErrTimeout, sourceName, "recommend", "completion interrupted", err)
	default:
		return services.Wrap(services.ErrServiceUnavailable, sourceName, "recommend", "completion failed", err)
	}
}

func clean(raw []Suggestion, max int) []Suggestion {
	out := make([]Suggestion, 0, min(len(raw), max))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s.Title = textutil.CollapseWhitespace(s.Title)
		s.Author = textutil.CollapseWhitespace(s.Author)
		s.Reason = strings.TrimSpace(s.Reason)
		key := textutil.NormalizeKey(s.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}
