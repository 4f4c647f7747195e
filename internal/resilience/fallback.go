package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// was skipped by an open circuit breaker. The last provider error is joined
// to it, so errors.Is works for both. When every entry was skipped, that is
// the failure which opened the most recently skipped breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each entry's breaker; Name is
	// overwritten with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Logger receives one Warn record per failed entry. Default: slog.Default().
	Logger *slog.Logger

	// OnFailure, when set, is called for every failed entry (not for entries
	// skipped by an open breaker).
	OnFailure func(name string, err error)
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable resources of one type in priority
// order. Execute walks them until one succeeds.
//
// Entries must be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	log     *slog.Logger

	mu     sync.Mutex
	causes map[int]error // last provider error per entry index
}

// NewFallbackGroup creates an empty [FallbackGroup].
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.CircuitBreaker.Logger == nil {
		cfg.CircuitBreaker.Logger = log
	}
	return &FallbackGroup[T]{cfg: cfg, log: log, causes: make(map[int]error)}
}

func (fg *FallbackGroup[T]) setCause(i int, err error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.causes[i] = err
}

func (fg *FallbackGroup[T]) cause(i int) error {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.causes[i]
}

// Add appends an entry. Entries are tried in the order they were added.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of entries.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Names returns the entry names in priority order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in order until one succeeds
// and returns its result. Entries with an open breaker are skipped. The walk
// stops early when ctx is done.
//
// It is a package-level function because Go methods cannot declare type
// parameters.
func ExecuteWithResult[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error // last provider error in this walk
		skipped error // cause behind the last open breaker
	)
	if len(fg.entries) == 0 {
		return zero, fmt.Errorf("%w: no providers configured", ErrAllFailed)
	}
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(ctx, entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			fg.log.Debug("skipping provider (circuit open)", "provider", entry.name)
			if cause := fg.cause(i); cause != nil {
				skipped = cause
			}
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, err
		}
		fg.setCause(i, err)
		fg.log.Warn("provider failed, trying next", "provider", entry.name, "error", err)
		if fg.cfg.OnFailure != nil {
			fg.cfg.OnFailure(entry.name, err)
		}
	}
	switch {
	case lastErr != nil:
		return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
	case skipped != nil:
		return zero, fmt.Errorf("%w: %w: %w", ErrAllFailed, ErrCircuitOpen, skipped)
	default:
		return zero, fmt.Errorf("%w: %w", ErrAllFailed, ErrCircuitOpen)
	}
}
