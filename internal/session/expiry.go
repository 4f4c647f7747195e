package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultSweepInterval is the period between expiry sweeps.
const defaultSweepInterval = time.Minute

// Expirer drops candidates that were neither confirmed nor cancelled within
// a TTL. It is optional: without one a candidate lives until it is
// confirmed, cancelled or replaced. A non-positive TTL expires nothing.
type Expirer struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// ExpirerConfig configures an [Expirer].
type ExpirerConfig struct {
	// TTL is the maximum age of a candidate. Zero disables expiry.
	TTL time.Duration

	// Interval between sweeps. Default: one minute, or TTL when smaller.
	Interval time.Duration
}

// NewExpirer creates an Expirer over m's store.
func NewExpirer(m *Manager, cfg ExpirerConfig) *Expirer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
		if cfg.TTL > 0 {
			interval = min(interval, cfg.TTL)
		}
	}
	return &Expirer{
		manager:  m,
		ttl:      cfg.TTL,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run sweeps periodically until ctx is cancelled or Stop is called.
func (e *Expirer) Run(ctx context.Context) error {
	if e.ttl <= 0 {
		return nil
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.done:
			return nil
		case <-ticker.C:
			if _, err := e.SweepNow(ctx); err != nil {
				e.manager.log.Warn("pending order sweep failed", "error", err)
			}
		}
	}
}

// Stop halts Run. Safe to call multiple times.
func (e *Expirer) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// SweepNow drops every candidate older than the TTL and returns how many
// were dropped.
func (e *Expirer) SweepNow(ctx context.Context) (int, error) {
	if e.ttl <= 0 {
		return 0, nil
	}
	m := e.manager
	expired, err := m.store.TakeOlderThan(ctx, m.now().Add(-e.ttl))
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	m.metrics.PendingOrders.Add(ctx, -int64(len(expired)))
	for _, p := range expired {
		m.log.LogAttrs(ctx, slog.LevelInfo, "pending order expired",
			slog.String("user_id", p.UserID),
			slog.Time("created_at", p.CreatedAt))
	}
	return len(expired), nil
}
