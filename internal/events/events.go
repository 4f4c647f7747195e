// Package events publishes confirmed orders to NATS so that other café
// systems (a kitchen display, a receipt printer bridge) can follow them
// without polling the order store.
//
// Events are JSON documents published with core NATS, at most once. The
// order store stays the source of truth; a missed event is never replayed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/ordering"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "orderbot"

// Publisher sends raw messages. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Item is one line of an [OrderConfirmed] event.
type Item struct {
	Name      string   `json:"name"`
	Qty       int      `json:"qty"`
	UnitPrice int      `json:"unit_price"`
	Subtotal  int      `json:"subtotal"`
	Addons    []string `json:"addons,omitempty"`
}

// OrderConfirmed is published once an order has been stored.
type OrderConfirmed struct {
	OrderID     int64     `json:"order_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Items       []Item    `json:"items"`
	Payment     string    `json:"payment"`
	Staff       bool      `json:"staff"`
	Total       int       `json:"total"`
	Text        string    `json:"text"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// FromNotice converts a staff notice into its event form.
func FromNotice(n ordering.Notice) OrderConfirmed {
	items := make([]Item, 0, len(n.Lines))
	for _, g := range order.GroupLines(n.Lines) {
		items = append(items, Item{
			Name:      g.Line.ItemName,
			Qty:       g.Count * g.Line.Quantity,
			UnitPrice: g.Line.BasePrice + g.Line.AddonTotal(),
			Subtotal:  g.Subtotal(),
			Addons:    g.Line.AddonNames(),
		})
	}
	return OrderConfirmed{
		OrderID:     n.OrderID,
		UserID:      n.User.ID,
		UserName:    n.User.Name,
		Items:       items,
		Payment:     string(n.Payment),
		Staff:       n.IsStaff,
		Total:       n.Total,
		Text:        n.RawText,
		ConfirmedAt: n.Received.UTC(),
	}
}

// Notifier publishes every confirmed order as an [OrderConfirmed] event on
// "<prefix>.orders.confirmed".
type Notifier struct {
	pub     Publisher
	subject string
}

var _ ordering.Notifier = (*Notifier)(nil)

// NewNotifier returns a Notifier publishing through pub. An empty prefix
// means [DefaultSubjectPrefix].
func NewNotifier(pub Publisher, prefix string) *Notifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Notifier{pub: pub, subject: prefix + ".orders.confirmed"}
}

// Subject is the subject events are published on.
func (n *Notifier) Subject() string { return n.subject }

// NotifyOrder implements [ordering.Notifier].
func (n *Notifier) NotifyOrder(ctx context.Context, notice ordering.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(FromNotice(notice))
	if err != nil {
		return fmt.Errorf("events: encode order %d: %w", notice.OrderID, err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("events: publish order %d: %w", notice.OrderID, err)
	}
	return nil
}

// Connect dials the NATS server at url. The connection reconnects forever
// and logs every state change through log.
func Connect(url, name string, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	return nc, nil
}
