package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/orderbot/internal/order"
)

// MemStore is an in-process [Store]. It keeps the same observable behaviour
// as [Postgres], including the action log. Safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  int64
	itemID  int64
	actID   int64
	orders  []Order
	actions []Action

	// addErrs are returned by the next AddOrder calls, one per call.
	addErrs []error
}

var _ Store = (*MemStore)(nil)

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) { s.now = now }
}

// NewMemStore creates an empty MemStore.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FailAdds makes the next len(errs) AddOrder calls fail with errs in order.
// A nil entry lets that call succeed.
func (s *MemStore) FailAdds(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addErrs = append(s.addErrs, errs...)
}

// AddOrder implements [Store].
func (s *MemStore) AddOrder(_ context.Context, lines []order.LineItem, userID, userName, rawText string, isStaff bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.addErrs) > 0 {
		err := s.addErrs[0]
		s.addErrs = s.addErrs[1:]
		if err != nil {
			return 0, wrap("add order", err)
		}
	}
	if len(lines) == 0 {
		return 0, errors.New("store: add order: no lines")
	}

	s.nextID++
	o := Order{
		ID:        s.nextID,
		CreatedAt: s.now(),
		UserID:    userID,
		UserName:  userName,
		Payment:   lines[0].Payment,
		RawText:   rawText,
		IsStaff:   isStaff,
	}
	for _, l := range lines {
		s.itemID++
		o.Items = append(o.Items, Item{
			ID:        s.itemID,
			Name:      l.ItemName,
			BasePrice: l.BasePrice,
			Price:     l.RowTotal(),
			Quantity:  l.Quantity,
			Addons:    append([]order.Addon(nil), l.Addons...),
			IsStaff:   isStaff,
		})
		s.logLocked(ActionAdd, o.ID, l.Payment, l.ItemName, userID, userName)
	}
	s.orders = append(s.orders, o)
	return o.ID, nil
}

// ListOrders implements [Store].
func (s *MemStore) ListOrders(_ context.Context, userID string, offset, limit int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []Order
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == userID {
			mine = append(mine, cloneOrder(s.orders[i]))
		}
	}
	page := Page{Total: len(mine)}
	if offset < len(mine) {
		end := len(mine)
		if limit > 0 {
			end = min(offset+limit, len(mine))
		}
		page.Orders = mine[offset:end]
	}
	return page, nil
}

// DeleteOrder implements [Store].
func (s *MemStore) DeleteOrder(_ context.Context, orderID int64, userID, userName string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.orders, func(o Order) bool { return o.ID == orderID && o.UserID == userID })
	if i < 0 {
		return Order{}, ErrNotFound
	}
	o := s.orders[i]
	s.orders = slices.Delete(s.orders, i, i+1)
	for _, it := range o.Items {
		s.logLocked(ActionDelete, o.ID, o.Payment, it.Name, userID, userName)
	}
	return o, nil
}

// DeleteOrdersOn implements [Store].
func (s *MemStore) DeleteOrdersOn(_ context.Context, userID, userName string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Range{}
	r.From, r.To = dayBounds(day)
	n := 0
	s.orders = slices.DeleteFunc(s.orders, func(o Order) bool {
		if o.UserID != userID || !r.contains(o.CreatedAt) {
			return false
		}
		n++
		for _, it := range o.Items {
			s.logLocked(ActionClearDay, o.ID, o.Payment, it.Name, userID, userName)
		}
		return true
	})
	return n, nil
}

// Orders implements [Store].
func (s *MemStore) Orders(_ context.Context, r Range) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if r.contains(o.CreatedAt) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

// Actions implements [Store].
func (s *MemStore) Actions(_ context.Context, r Range) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Action
	for _, a := range s.actions {
		if r.contains(a.At) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) Close() {}

func (s *MemStore) logLocked(kind ActionKind, orderID int64, payment order.PaymentType, item, userID, userName string) {
	s.actID++
	s.actions = append(s.actions, Action{
		ID:       s.actID,
		At:       s.now(),
		Kind:     kind,
		OrderID:  orderID,
		Payment:  payment,
		ItemName: item,
		UserID:   userID,
		UserName: userName,
	})
}

func cloneOrder(o Order) Order {
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.Addons = append([]order.Addon(nil), it.Addons...)
		items[i] = it
	}
	o.Items = items
	return o
}
