package session

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/orderbot/internal/store"
)

func TestExpirer_SweepNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m, ms := newTestManager(t, store.NewMemStore(), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	old := candidate("u1", "Латте", 150)
	old.CreatedAt = now.Add(-20 * time.Minute)
	fresh := candidate("u2", "Капучино", 140)
	fresh.CreatedAt = now.Add(-time.Minute)
	_, _ = m.Propose(ctx, old)
	_, _ = m.Propose(ctx, fresh)

	e := NewExpirer(m, ExpirerConfig{TTL: 15 * time.Minute})
	n, err := e.SweepNow(ctx)
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	if _, ok, _ := m.Pending(ctx, "u1"); ok {
		t.Fatal("stale candidate survived the sweep")
	}
	if ms.Len() != 1 {
		t.Fatalf("remaining = %d, want 1", ms.Len())
	}
}

func TestExpirer_DefaultInterval(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, store.NewMemStore())
	if e := NewExpirer(m, ExpirerConfig{TTL: time.Hour}); e.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", e.interval)
	}
	if e := NewExpirer(m, ExpirerConfig{TTL: 10 * time.Second}); e.interval != 10*time.Second {
		t.Errorf("interval = %v, want TTL when smaller than a minute", e.interval)
	}
}

func TestExpirer_RunStop(t *testing.T) {
	t.Parallel()

	m, ms := newTestManager(t, store.NewMemStore())
	ctx := context.Background()

	p := candidate("u1", "Латте", 150)
	p.CreatedAt = time.Now().Add(-time.Hour)
	_, _ = m.Propose(ctx, p)

	e := NewExpirer(m, ExpirerConfig{TTL: time.Minute, Interval: 5 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ms.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()
	e.Stop()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ms.Len() != 0 {
		t.Fatal("periodic sweep did not expire the candidate")
	}
}

func TestExpirer_ZeroTTLKeepsCandidates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	st := store.NewMemStore()
	m, _ := newTestManager(t, st, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	_, _ = m.Propose(ctx, candidate("u1", "Латте", 150))
	clock = now.Add(31 * time.Minute)

	e := NewExpirer(m, ExpirerConfig{})
	if e.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", e.interval)
	}
	if n, err := e.SweepNow(ctx); err != nil || n != 0 {
		t.Fatalf("SweepNow = %d, %v; want 0, nil", n, err)
	}
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want immediate nil", err)
	}

	if _, err := m.Confirm(ctx, "u1", false); err != nil {
		t.Fatalf("Confirm after 31m: %v", err)
	}
	if page, _ := st.ListOrders(ctx, "u1", 0, 5); page.Total != 1 {
		t.Fatalf("persisted = %d, want 1", page.Total)
	}
}
