// Package session keeps each user's unconfirmed order candidate and commits
// it to the order store on confirmation.
//
// At most one candidate exists per user. A new proposal replaces the old one
// silently, and confirmation or cancellation removes it whatever the
// outcome.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/orderbot/internal/order"
)

// ErrNoPending is returned when a user has no candidate to confirm.
var ErrNoPending = errors.New("session: no pending order")

// Pending is an order candidate awaiting the user's decision.
type Pending struct {
	UserID   string
	UserName string

	// RawText is the utterance the candidate was parsed from (the
	// transcript for voice notes).
	RawText string

	Lines     []order.LineItem
	Payment   order.PaymentType
	CreatedAt time.Time
}

// Total is the sum of all line totals.
func (p Pending) Total() int { return order.Total(p.Lines) }

// Store holds pending candidates keyed by user ID. Implementations must be
// safe for concurrent use and make Take atomic: of two concurrent Takes for
// the same user at most one gets the candidate.
type Store interface {
	// Put stores p under p.UserID and reports whether a candidate was
	// replaced.
	Put(ctx context.Context, p Pending) (replaced bool, err error)

	// Get returns the candidate without removing it.
	Get(ctx context.Context, userID string) (Pending, bool, error)

	// Take removes and returns the candidate.
	Take(ctx context.Context, userID string) (Pending, bool, error)

	// TakeOlderThan removes and returns every candidate created before
	// cutoff.
	TakeOlderThan(ctx context.Context, cutoff time.Time) ([]Pending, error)
}

// MemStore is an in-process [Store].
type MemStore struct {
	mu      sync.Mutex
	pending map[string]Pending
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{pending: make(map[string]Pending)}
}

func (s *MemStore) Put(_ context.Context, p Pending) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.pending[p.UserID]
	s.pending[p.UserID] = clonePending(p)
	return replaced, nil
}

func (s *MemStore) Get(_ context.Context, userID string) (Pending, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok {
		return Pending{}, false, nil
	}
	return clonePending(p), true, nil
}

func (s *MemStore) Take(_ context.Context, userID string) (Pending, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	return p, ok, nil
}

func (s *MemStore) TakeOlderThan(_ context.Context, cutoff time.Time) ([]Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Pending
	for id, p := range s.pending {
		if p.CreatedAt.Before(cutoff) {
			out = append(out, p)
			delete(s.pending, id)
		}
	}
	return out, nil
}

// Len returns the number of stored candidates.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// clonePending copies the line and addon slices so callers cannot mutate
// stored state.
func clonePending(p Pending) Pending {
	lines := make([]order.LineItem, len(p.Lines))
	for i, l := range p.Lines {
		l.Addons = append([]order.Addon(nil), l.Addons...)
		lines[i] = l
	}
	p.Lines = lines
	return p
}
