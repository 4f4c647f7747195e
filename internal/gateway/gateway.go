// Package gateway sends chat-completion requests to an ordered list of model
// profiles and returns the first usable reply.
//
// Each profile rotates its own keys, models and endpoints with a [Selector].
// Failures fall through to the next profile via a
// [resilience.FallbackGroup], which also keeps a circuit breaker per
// profile. Every call tries each profile at most once and never sleeps.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/resilience"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
)

// ErrEmptyReply is returned by a profile whose model answered with no text.
// It counts as a failure so the next profile is tried.
var ErrEmptyReply = errors.New("gateway: empty model reply")

// Factory creates a provider client for one combination. Implementations
// are looked up by kind in the config registry.
type Factory func(kind, key, model, baseURL string) (llm.Provider, error)

// GatewayExhaustedError reports that no profile produced a reply.
type GatewayExhaustedError struct {
	// Attempts is the number of profiles actually called (profiles skipped
	// by an open circuit breaker are not counted).
	Attempts int

	// Err wraps [resilience.ErrAllFailed] and the last underlying cause.
	Err error
}

func (e *GatewayExhaustedError) Error() string {
	return fmt.Sprintf("gateway: exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GatewayExhaustedError) Unwrap() error { return e.Err }

// Config holds request parameters shared by all profiles.
type Config struct {
	// Profiles in priority order. The profile named Primary is moved to
	// the front; the others keep their order.
	Profiles []Profile
	Primary  string

	Temperature float64
	MaxTokens   int
	JSONMode    bool

	// Timeout bounds each profile attempt. Zero means no extra bound.
	Timeout time.Duration

	// CircuitBreaker is the per-profile breaker template.
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

type route struct {
	profile  Profile
	selector *Selector
}

// Gateway implements the model call of the order pipeline. Safe for
// concurrent use.
type Gateway struct {
	cfg     Config
	factory Factory
	group   *resilience.FallbackGroup[*route]
	log     *slog.Logger
	metrics *observe.Metrics

	mu      sync.Mutex
	clients map[clientKey]llm.Provider
}

type clientKey struct {
	kind string
	Combo
}

// New creates a Gateway. At least one profile is required and profile names
// must be unique.
func New(cfg Config, factory Factory, opts ...Option) (*Gateway, error) {
	if factory == nil {
		return nil, errors.New("gateway: factory is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, errors.New("gateway: at least one profile is required")
	}

	g := &Gateway{
		cfg:     cfg,
		factory: factory,
		clients: make(map[clientKey]llm.Provider),
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}

	g.group = resilience.NewFallbackGroup[*route](resilience.FallbackConfig{
		CircuitBreaker: cfg.CircuitBreaker,
		Logger:         g.log,
		OnFailure: func(name string, _ error) {
			g.metrics.RecordProviderError(context.Background(), name, "llm")
		},
	})

	seen := make(map[string]bool, len(cfg.Profiles))
	for _, p := range order(cfg.Profiles, cfg.Primary) {
		if seen[p.Name] {
			return nil, fmt.Errorf("gateway: duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
		g.group.Add(p.Name, &route{profile: p, selector: NewSelector(p)})
	}
	return g, nil
}

// order moves the primary profile to the front.
func order(profiles []Profile, primary string) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Name == primary {
			out = append(out, p)
		}
	}
	for _, p := range profiles {
		if p.Name != primary {
			out = append(out, p)
		}
	}
	return out
}

// Profiles returns the profile names in the order they are tried.
func (g *Gateway) Profiles() []string { return g.group.Names() }

// Complete sends messages to the profiles in order and returns the first
// non-empty reply, trimmed. When every profile fails it returns a
// *GatewayExhaustedError. A cancelled ctx stops the walk and its error is
// returned as is.
func (g *Gateway) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	req := llm.CompletionRequest{
		Messages:    messages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSONMode:    g.cfg.JSONMode,
	}

	attempts := 0
	reply, err := resilience.ExecuteWithResult(ctx, g.group, func(ctx context.Context, r *route) (string, error) {
		attempts++
		return g.attempt(ctx, r, req)
	})
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", &GatewayExhaustedError{Attempts: attempts, Err: err}
}

func (g *Gateway) attempt(ctx context.Context, r *route, req llm.CompletionRequest) (string, error) {
	combo := r.selector.Next()
	client, err := g.client(r.profile.Kind, combo)
	if err != nil {
		return "", err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	g.log.Debug("calling model",
		"provider", r.profile.Name,
		"model", combo.Model,
		"key_hint", keyHint(combo.Key),
		"base_url", combo.BaseURL)

	start := time.Now()
	resp, err := client.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.RecordProviderRequest(ctx, r.profile.Name, "llm", status, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	if resp == nil {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

// client returns the cached client for the combination, creating it on
// first use.
func (g *Gateway) client(kind string, c Combo) (llm.Provider, error) {
	key := clientKey{kind: kind, Combo: c}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.clients[key]; ok {
		return p, nil
	}
	p, err := g.factory(kind, c.Key, c.Model, c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: create %s client: %w", kind, err)
	}
	g.clients[key] = p
	return p, nil
}

// keyHint returns the last four characters of an API key for logs.
func keyHint(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "…" + key[len(key)-4:]
}
