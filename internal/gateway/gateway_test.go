package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/resilience"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
	"github.com/MrWong99/orderbot/pkg/provider/llm/mock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// fakeFactory hands out one mock provider per profile kind and records every
// combination it was asked for.
type fakeFactory struct {
	mu        sync.Mutex
	providers map[string]*mock.Provider
	created   []string
	err       error
}

func (f *fakeFactory) create(kind, key, model, baseURL string) (llm.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, kind+"|"+key+"|"+model+"|"+baseURL)
	return f.providers[kind], nil
}

func reply(s string) *llm.CompletionResponse { return &llm.CompletionResponse{Content: s} }

func newTestGateway(t *testing.T, cfg Config, f *fakeFactory, h *recordingHandler) *Gateway {
	t.Helper()
	g, err := New(cfg, f.create, WithLogger(slog.New(h)), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

var twoProfiles = []Profile{
	{Name: "openai", Kind: "openai", Keys: []string{"sk-1"}, Models: []string{"gpt-4o-mini"}},
	{Name: "mistral", Kind: "mistral", Keys: []string{"ms-1"}, Models: []string{"mistral-small"}},
}

func TestComplete_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai":  {CompleteResponse: reply("  {\"it\":[]}\n")},
		"mistral": {CompleteResponse: reply("unused")},
	}}
	h := &recordingHandler{}
	g := newTestGateway(t, Config{Profiles: twoProfiles, Temperature: 0.2, MaxTokens: 256, JSONMode: true}, f, h)

	got, err := g.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "латте"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"it":[]}` {
		t.Fatalf("Complete = %q, want trimmed reply", got)
	}
	calls := f.providers["openai"].Calls()
	if len(calls) != 1 {
		t.Fatalf("openai calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.2 || req.MaxTokens != 256 || !req.JSONMode {
		t.Fatalf("request params = %+v", req)
	}
	if n := len(f.providers["mistral"].Calls()); n != 0 {
		t.Fatalf("mistral calls = %d, want 0", n)
	}
}

func TestComplete_FailoverLogsOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai":  {CompleteErr: errors.New("429 rate limited")},
		"mistral": {CompleteResponse: reply(`{"it":[],"pay":1}`)},
	}}
	h := &recordingHandler{}
	g := newTestGateway(t, Config{Profiles: twoProfiles}, f, h)

	got, err := g.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"it":[],"pay":1}` {
		t.Fatalf("Complete = %q", got)
	}
	if n := h.count(slog.LevelWarn, "provider failed, trying next"); n != 1 {
		t.Fatalf("warn records = %d, want exactly 1", n)
	}
}

func TestComplete_PrimaryMovedToFront(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai":  {CompleteResponse: reply("from openai")},
		"mistral": {CompleteResponse: reply("from mistral")},
	}}
	g := newTestGateway(t, Config{Profiles: twoProfiles, Primary: "mistral"}, f, &recordingHandler{})

	if names := g.Profiles(); names[0] != "mistral" || names[1] != "openai" {
		t.Fatalf("Profiles() = %v, want [mistral openai]", names)
	}
	got, err := g.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from mistral" {
		t.Fatalf("Complete = %q, want reply of the primary", got)
	}
}

func TestComplete_EmptyReplyFallsThrough(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai":  {CompleteResponse: reply("   ")},
		"mistral": {CompleteResponse: reply("ok")},
	}}
	g := newTestGateway(t, Config{Profiles: twoProfiles}, f, &recordingHandler{})

	got, err := g.Complete(context.Background(), nil)
	if err != nil || got != "ok" {
		t.Fatalf("Complete = %q, %v; want ok", got, err)
	}
}

func TestComplete_Exhausted(t *testing.T) {
	t.Parallel()

	errLast := errors.New("mistral unavailable")
	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai":  {CompleteErr: errors.New("openai unavailable")},
		"mistral": {CompleteErr: errLast},
	}}
	h := &recordingHandler{}
	g := newTestGateway(t, Config{Profiles: twoProfiles}, f, h)

	_, err := g.Complete(context.Background(), nil)
	var gee *GatewayExhaustedError
	if !errors.As(err, &gee) {
		t.Fatalf("error = %v, want *GatewayExhaustedError", err)
	}
	if gee.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", gee.Attempts)
	}
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatal("error does not wrap resilience.ErrAllFailed")
	}
	if !errors.Is(err, errLast) {
		t.Fatal("error does not wrap the last cause")
	}
	if n := h.count(slog.LevelWarn, "provider failed, trying next"); n != 2 {
		t.Fatalf("warn records = %d, want 2", n)
	}
}

func TestComplete_CancelledContext(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai": {CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		"mistral": {CompleteResponse: reply("ok")},
	}}
	g := newTestGateway(t, Config{Profiles: twoProfiles}, f, &recordingHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Complete(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if n := len(f.providers["mistral"].Calls()); n != 0 {
		t.Fatalf("mistral calls = %d, want 0 after cancellation", n)
	}
}

func TestComplete_AttemptTimeoutFallsThrough(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai": {CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		"mistral": {CompleteResponse: reply("ok")},
	}}
	g := newTestGateway(t, Config{Profiles: twoProfiles, Timeout: 10 * time.Millisecond}, f, &recordingHandler{})

	got, err := g.Complete(context.Background(), nil)
	if err != nil || got != "ok" {
		t.Fatalf("Complete = %q, %v; want ok from the second profile", got, err)
	}
}

func TestComplete_ClientsCachedPerCombo(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{providers: map[string]*mock.Provider{
		"openai": {CompleteResponse: reply("ok")},
	}}
	cfg := Config{Profiles: []Profile{{
		Name: "openai", Kind: "openai",
		Keys:     []string{"k1", "k2"},
		Models:   []string{"m"},
		BaseURLs: []string{"http://a", "http://b"},
	}}}
	g := newTestGateway(t, cfg, f, &recordingHandler{})

	for range 4 {
		if _, err := g.Complete(context.Background(), nil); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	want := []string{"openai|k1|m|http://a", "openai|k2|m|http://b"}
	if len(f.created) != len(want) {
		t.Fatalf("created = %v, want %v", f.created, want)
	}
	for i := range want {
		if f.created[i] != want[i] {
			t.Fatalf("created[%d] = %q, want %q", i, f.created[i], want[i])
		}
	}
}

func TestComplete_FactoryErrorFallsThrough(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{err: errors.New("bad key")}
	g := newTestGateway(t, Config{Profiles: twoProfiles}, f, &recordingHandler{})

	_, err := g.Complete(context.Background(), nil)
	var gee *GatewayExhaustedError
	if !errors.As(err, &gee) || gee.Attempts != 2 {
		t.Fatalf("error = %v, want exhaustion after 2 attempts", err)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	tests := []struct {
		name    string
		cfg     Config
		factory Factory
	}{
		{"no factory", Config{Profiles: twoProfiles}, nil},
		{"no profiles", Config{}, f.create},
		{"duplicate names", Config{Profiles: []Profile{{Name: "a"}, {Name: "a"}}}, f.create},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg, tt.factory); err == nil {
				t.Fatal("New: expected error")
			}
		})
	}
}

func TestKeyHint(t *testing.T) {
	t.Parallel()

	if got := keyHint("sk-abcdef1234"); got != "…1234" {
		t.Fatalf("keyHint = %q", got)
	}
	if got := keyHint("abc"); got != "***" {
		t.Fatalf("keyHint = %q", got)
	}
}
