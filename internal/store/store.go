// Package store persists confirmed orders and the action log.
//
// [Postgres] is the production implementation on top of pgx; [MemStore] keeps
// everything in process for tests and single-instance development runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/orderbot/internal/order"
)

var (
	// ErrContention marks a write that lost a lock or serialization conflict.
	// Such writes may succeed when retried; see [IsContention].
	ErrContention = errors.New("store: lock contention")

	// ErrNotFound is returned when an order does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("store: not found")
)

// IsContention reports whether err is worth retrying.
func IsContention(err error) bool { return errors.Is(err, ErrContention) }

// Item is one stored line of an order.
type Item struct {
	ID        int64
	Name      string
	BasePrice int

	// Price is the row total: (BasePrice + addon prices) * Quantity.
	Price    int
	Quantity int
	Addons   []order.Addon
	IsStaff  bool
}

// Order is a confirmed, stored order.
type Order struct {
	ID        int64
	CreatedAt time.Time
	UserID    string
	UserName  string
	Payment   order.PaymentType
	RawText   string
	IsStaff   bool
	Items     []Item
}

// Total is the sum of item prices.
func (o Order) Total() int {
	sum := 0
	for _, it := range o.Items {
		sum += it.Price
	}
	return sum
}

// ActionKind classifies an audit log entry.
type ActionKind string

const (
	ActionAdd      ActionKind = "add"
	ActionDelete   ActionKind = "delete"
	ActionClearDay ActionKind = "clear_day"
)

// Label is the Russian name used in reports.
func (k ActionKind) Label() string {
	switch k {
	case ActionAdd:
		return "добавление"
	case ActionDelete:
		return "удаление"
	case ActionClearDay:
		return "очистка за день"
	default:
		return string(k)
	}
}

// Action is one audit log entry. One entry is written per affected item.
type Action struct {
	ID       int64
	At       time.Time
	Kind     ActionKind
	OrderID  int64
	Payment  order.PaymentType
	ItemName string
	UserID   string
	UserName string
}

// Page is one slice of a user's order history, newest first.
type Page struct {
	Orders []Order

	// Total is the number of orders the user has overall.
	Total int
}

// Range bounds report queries. A zero From or To leaves that side open.
type Range struct {
	From time.Time
	To   time.Time
}

// Store is the persistence boundary used by the bot.
type Store interface {
	// AddOrder writes the order, its items and one add action per item in
	// a single transaction and returns the new order ID.
	AddOrder(ctx context.Context, lines []order.LineItem, userID, userName, rawText string, isStaff bool) (int64, error)

	// ListOrders returns the user's orders newest first.
	ListOrders(ctx context.Context, userID string, offset, limit int) (Page, error)

	// DeleteOrder deletes one of the user's orders and logs the deletion.
	// It returns ErrNotFound when the order is not the user's.
	DeleteOrder(ctx context.Context, orderID int64, userID, userName string) (Order, error)

	// DeleteOrdersOn deletes the user's orders created on the calendar day
	// of day (in day's location) and returns how many were deleted.
	DeleteOrdersOn(ctx context.Context, userID, userName string, day time.Time) (int, error)

	// Orders returns all orders in r, oldest first.
	Orders(ctx context.Context, r Range) ([]Order, error)

	// Actions returns all audit entries in r, oldest first.
	Actions(ctx context.Context, r Range) ([]Action, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close()
}

// dayBounds returns [start of day, start of next day) in day's location.
func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Postgres error codes treated as contention.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// wrap annotates err with the operation and marks retryable Postgres
// failures with ErrContention.
func wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("store: %s: %w: %w", op, ErrContention, err)
		}
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrContention) {
		return err
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
