package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/resilience"
	"github.com/MrWong99/orderbot/internal/store"
)

// Persister writes a confirmed order atomically and returns its ID.
type Persister interface {
	AddOrder(ctx context.Context, lines []order.LineItem, userID, userName, rawText string, isStaff bool) (int64, error)
}

// Confirmation is the result of a successful [Manager.Confirm].
type Confirmation struct {
	OrderID int64
	Pending Pending
	IsStaff bool
}

// DefaultRetry is the write policy used for confirmations: three attempts
// half a second apart, retried only on lock contention.
var DefaultRetry = resilience.Retry{
	MaxAttempts: 3,
	Delay:       500 * time.Millisecond,
	Retryable:   store.IsContention,
	Name:        "add_order",
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(mt *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithRetry overrides [DefaultRetry].
func WithRetry(r resilience.Retry) Option {
	return func(m *Manager) { m.retry = r }
}

// WithClock sets the time source for CreatedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the pending candidates and their transition to stored orders.
// Safe for concurrent use.
type Manager struct {
	store     Store
	persister Persister
	retry     resilience.Retry
	log       *slog.Logger
	metrics   *observe.Metrics
	now       func() time.Time
}

// NewManager creates a Manager.
func NewManager(s Store, p Persister, opts ...Option) *Manager {
	m := &Manager{store: s, persister: p, retry: DefaultRetry, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	if m.retry.Logger == nil {
		m.retry.Logger = m.log
	}
	return m
}

// Propose stores p as the user's candidate, replacing any previous one.
// CreatedAt is stamped when zero.
func (m *Manager) Propose(ctx context.Context, p Pending) (replaced bool, err error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	replaced, err = m.store.Put(ctx, p)
	if err != nil {
		return false, fmt.Errorf("session: propose: %w", err)
	}
	if !replaced {
		m.metrics.PendingOrders.Add(ctx, 1)
	}
	m.log.Debug("order proposed",
		"user_id", p.UserID,
		"lines", len(p.Lines),
		"total", p.Total(),
		"replaced", replaced)
	return replaced, nil
}

// Pending returns the user's candidate without removing it.
func (m *Manager) Pending(ctx context.Context, userID string) (Pending, bool, error) {
	p, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return Pending{}, false, fmt.Errorf("session: get: %w", err)
	}
	return p, ok, nil
}

// Confirm removes the user's candidate and persists it. The candidate is gone
// afterwards whether or not the write succeeds, so a failed confirmation
// cannot be replayed by pressing the button again.
//
// It returns [ErrNoPending] when there is nothing to confirm.
func (m *Manager) Confirm(ctx context.Context, userID string, staff bool) (Confirmation, error) {
	p, ok, err := m.store.Take(ctx, userID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("session: take: %w", err)
	}
	if !ok {
		return Confirmation{}, ErrNoPending
	}
	m.metrics.PendingOrders.Add(ctx, -1)

	var id int64
	err = m.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			m.metrics.PersistRetries.Add(ctx, 1)
		}
		var addErr error
		id, addErr = m.persister.AddOrder(ctx, p.Lines, p.UserID, p.UserName, p.RawText, staff)
		return addErr
	})
	if err != nil {
		m.metrics.PersistFailures.Add(ctx, 1)
		m.log.Error("order could not be saved",
			"user_id", userID,
			"lines", len(p.Lines),
			"total", p.Total(),
			"error", err)
		return Confirmation{}, fmt.Errorf("session: persist: %w", err)
	}

	m.metrics.RecordConfirmed(ctx, staff, string(p.Payment))
	m.log.Info("order confirmed",
		"order_id", id,
		"user_id", userID,
		"total", p.Total(),
		"payment", p.Payment,
		"staff", staff)
	return Confirmation{OrderID: id, Pending: p, IsStaff: staff}, nil
}

// Cancel removes the user's candidate and reports whether one existed.
func (m *Manager) Cancel(ctx context.Context, userID string) (bool, error) {
	_, ok, err := m.store.Take(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("session: cancel: %w", err)
	}
	if ok {
		m.metrics.PendingOrders.Add(ctx, -1)
		m.metrics.OrdersCancelled.Add(ctx, 1)
		m.log.Info("order cancelled", "user_id", userID)
	}
	return ok, nil
}

// IsNoPending reports whether err means there was nothing to confirm.
func IsNoPending(err error) bool { return errors.Is(err, ErrNoPending) }
