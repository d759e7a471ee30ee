package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type payload struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

// flakyBackend fails every call while failing is set.
type flakyBackend struct {
	*MemoryBackend
	mu      sync.Mutex
	failing bool
	calls   int
}

var errBackendDown = errors.New("backend down")

func (f *flakyBackend) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyBackend) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return errBackendDown
	}
	return nil
}

func (f *flakyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.check(); err != nil {
		return nil, false, err
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.MemoryBackend.Set(ctx, key, value, ttl)
}

func newTestClient(t *testing.T, backend Backend, opts ...Option) *Client {
	t.Helper()
	client, err := New(backend, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientRoundTripWithTTL(t *testing.T) {
	clock := newFakeClock()
	client := newTestClient(t, NewMemoryBackend(clock.Now), WithPrefix("test:"), WithDefaultTTL(time.Minute))
	ctx := context.Background()

	want := payload{Title: "Dune", Authors: []string{"Frank Herbert"}}
	if !client.Set(ctx, "dune", want, 0) {
		t.Fatal("Set returned false")
	}
	got, ok := Get[payload](ctx, client, "dune")
	if !ok || got.Title != want.Title || len(got.Authors) != 1 {
		t.Fatalf("unexpected value %+v (found=%v)", got, ok)
	}
	if !client.Exists(ctx, "dune") {
		t.Fatal("expected key to exist")
	}

	clock.Advance(time.Minute)
	if _, ok := Get[payload](ctx, client, "dune"); ok {
		t.Fatal("expected entry to expire after default TTL")
	}
	if client.Exists(ctx, "dune") {
		t.Fatal("expected expired key to be absent")
	}

	stats := client.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Writes != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestClientDelete(t *testing.T) {
	client := newTestClient(t, NewMemoryBackend(nil))
	ctx := context.Background()
	client.Set(ctx, "k", "v", time.Hour)
	if !client.Delete(ctx, "k") {
		t.Fatal("expected Delete to report removal")
	}
	if client.Delete(ctx, "k") {
		t.Fatal("expected second Delete to report nothing removed")
	}
}

func TestClientCompressesLargeValues(t *testing.T) {
	backend := NewMemoryBackend(nil)
	client := newTestClient(t, backend, WithCompression(64))
	ctx := context.Background()

	large := payload{Title: strings.Repeat("spice must flow ", 100)}
	client.Set(ctx, "large", large, time.Hour)
	client.Set(ctx, "small", payload{Title: "Dune"}, time.Hour)

	raw, _, _ := backend.Get(ctx, "large")
	if raw[0] != headerZstd {
		t.Fatalf("expected zstd header, got %q", raw[0])
	}
	if len(raw) >= len(large.Title) {
		t.Fatalf("expected compressed entry smaller than payload, got %d bytes", len(raw))
	}
	raw, _, _ = backend.Get(ctx, "small")
	if raw[0] != headerJSON {
		t.Fatalf("expected json header for small value, got %q", raw[0])
	}

	got, ok := Get[payload](ctx, client, "large")
	if !ok || got.Title != large.Title {
		t.Fatal("expected compressed value to round trip")
	}
}

func TestClientReadsCompressedEntriesWithoutCompression(t *testing.T) {
	backend := NewMemoryBackend(nil)
	ctx := context.Background()
	writer := newTestClient(t, backend, WithCompression(0))
	writer.Set(ctx, "k", payload{Title: "Dune"}, time.Hour)

	reader := newTestClient(t, backend)
	if got, ok := Get[payload](ctx, reader, "k"); !ok || got.Title != "Dune" {
		t.Fatalf("expected reader to decode compressed entry, got %+v", got)
	}
}

func TestClientUndecodableEntryIsMiss(t *testing.T) {
	backend := NewMemoryBackend(nil)
	ctx := context.Background()
	_ = backend.Set(ctx, "k", []byte("?garbage"), 0)
	client := newTestClient(t, backend)
	if client.Get(ctx, "k", &payload{}) {
		t.Fatal("expected garbage entry to read as a miss")
	}
	if client.BreakerState() != BreakerClosed {
		t.Fatal("decode errors must not trip the breaker")
	}
}

func TestClientBreakerShortCircuitsFailingBackend(t *testing.T) {
	clock := newFakeClock()
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend(clock.Now)}
	client := newTestClient(t, backend, WithBreaker(2, 10*time.Second), WithClock(clock.Now))
	ctx := context.Background()

	backend.setFailing(true)
	for i := 0; i < 2; i++ {
		if client.Set(ctx, "k", "v", time.Hour) {
			t.Fatal("expected Set to fail")
		}
	}
	if client.BreakerState() != BreakerOpen {
		t.Fatalf("expected open breaker, got %s", client.BreakerState())
	}

	callsBefore := backend.calls
	if client.Get(ctx, "k", new(string)) {
		t.Fatal("expected miss while open")
	}
	if backend.calls != callsBefore {
		t.Fatal("expected open breaker to skip the backend")
	}
	if client.Stats().ShortCircuits != 1 {
		t.Fatalf("expected one short circuit, got %+v", client.Stats())
	}

	backend.setFailing(false)
	clock.Advance(10 * time.Second)
	if !client.Set(ctx, "k", "v", time.Hour) {
		t.Fatal("expected half-open trial to succeed")
	}
	if client.BreakerState() != BreakerClosed {
		t.Fatalf("expected closed breaker after success, got %s", client.BreakerState())
	}
	if got, ok := Get[string](ctx, client, "k"); !ok || got != "v" {
		t.Fatalf("expected value after recovery, got %q", got)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	ctx := context.Background()
	if client.Set(ctx, "k", "v", time.Minute) || client.Get(ctx, "k", new(string)) || client.Exists(ctx, "k") || client.Delete(ctx, "k") {
		t.Fatal("expected nil client to behave as an empty cache")
	}
	if client.BackendName() != "none" || client.BreakerState() != BreakerClosed {
		t.Fatal("unexpected nil client metadata")
	}
	if n, err := client.Clear(ctx); n != 0 || err != nil {
		t.Fatalf("unexpected Clear result %d/%v", n, err)
	}
}

func TestClientClearRespectsPrefix(t *testing.T) {
	backend := NewMemoryBackend(nil)
	ctx := context.Background()
	_ = backend.Set(ctx, "other:k", []byte("jx"), 0)
	client := newTestClient(t, backend, WithPrefix("bookscout:"))
	client.Set(ctx, "a", 1, 0)
	client.Set(ctx, "b", 2, 0)

	removed, err := client.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if removed != 2 || backend.Len() != 1 {
		t.Fatalf("expected 2 removed and foreign key kept, got %d removed, %d left", removed, backend.Len())
	}
}
