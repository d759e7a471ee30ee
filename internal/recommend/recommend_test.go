package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookscout/internal/services"
	"bookscout/internal/services/llm"
)

type fakeCompleter struct {
	response   string
	err        error
	configured bool
	lastUser   string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func TestRecommendParsesAndCleans(t *testing.T) {
	fake := &fakeCompleter{configured: true, response: "```json\n" + `{"books": [
		{"title": " Dune ", "author": "Frank Herbert", "reason": "Desert ecology epic"},
		{"title": "dune", "author": "Frank Herbert"},
		{"title": "", "author": "Nobody"},
		{"title": "Hyperion", "author": "Dan Simmons"},
		{"title": "Solaris", "author": "Stanisław Lem"}
	]}` + "\n```"}
	client := New(fake)

	got, err := client.Recommend(context.Background(), "  epic   science fiction  ", 2)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Dune" || got[1].Title != "Hyperion" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
	if !strings.Contains(fake.lastUser, "epic science fiction") || !strings.Contains(fake.lastUser, "up to 2") {
		t.Fatalf("unexpected user prompt %q", fake.lastUser)
	}
}

func TestRecommendCapsAtClientMaximum(t *testing.T) {
	fake := &fakeCompleter{configured: true, response: `{"books": []}`}
	client := New(fake, WithMaxSuggestions(3))
	got, err := client.Recommend(context.Background(), "anything", 50)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
	if !strings.Contains(fake.lastUser, "up to 3") {
		t.Fatalf("expected request capped at 3, got %q", fake.lastUser)
	}
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		prompt string
		marker error
	}{
		{"empty prompt", New(&fakeCompleter{configured: true}), "   ", services.ErrInvalidQuery},
		{"unconfigured", New(&fakeCompleter{configured: false}), "dune", services.ErrConfiguration},
		{"nil completer", New(nil), "dune", services.ErrConfiguration},
		{"upstream failure", New(&fakeCompleter{configured: true, err: errors.New("boom")}), "dune", services.ErrServiceUnavailable},
		{"bad json", New(&fakeCompleter{configured: true, response: "sorry, I cannot help"}), "dune", services.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Recommend(context.Background(), tt.prompt, 5)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestRecommendKeepsCompletionErrorKind(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	tests := []struct {
		name string
		ctx  context.Context
		err  error
		kind string
	}{
		{"rate limited", context.Background(), services.Wrap(services.ErrRateLimited, "llm", "complete", "status 429", nil), "rate_limited"},
		{"bad credentials", context.Background(), services.Wrap(services.ErrConfiguration, "llm", "complete", "status 401", nil), "configuration_error"},
		{"request rejected", context.Background(), services.Wrap(services.ErrInvalidQuery, "llm", "complete", "status 400", nil), "service_unavailable"},
		{"plain failure", context.Background(), errors.New("boom"), "service_unavailable"},
		{"caller gave up", cancelled, context.Canceled, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(&fakeCompleter{configured: true, err: tt.err})
			_, err := client.Recommend(tt.ctx, "dune", 5)
			if got := services.Kind(err); got != tt.kind {
				t.Fatalf("Kind = %q, want %q (err %v)", got, tt.kind, err)
			}
		})
	}
}

func TestNewFromLLMRespectsKey(t *testing.T) {
	if NewFromLLM(nil).Configured() {
		t.Fatal("expected nil llm client to be unconfigured")
	}
	if NewFromLLM(llm.NewClient(llm.Config{})).Configured() {
		t.Fatal("expected keyless llm client to be unconfigured")
	}
	if !NewFromLLM(llm.NewClient(llm.Config{APIKey: "k"})).Configured() {
		t.Fatal("expected keyed llm client to be configured")
	}
}
