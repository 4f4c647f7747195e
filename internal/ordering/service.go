// Package ordering implements the bot's use cases independently of the chat
// transport: interpreting an order message, confirming or cancelling it,
// browsing and deleting history, and producing reports.
//
// Every method returns a [Reply] that already carries the user-facing text.
// Infrastructure failures are logged here and surface to the user only as a
// short generic message.
package ordering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/orderbot/internal/gateway"
	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/orderparse"
	"github.com/MrWong99/orderbot/internal/session"
	"github.com/MrWong99/orderbot/internal/store"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
)

// PageSize is the number of orders shown per history page.
const PageSize = 5

// User identifies the person talking to the bot.
type User struct {
	ID   string
	Name string
}

// Interpreter turns an utterance into a classified parse outcome.
// [orderparse.Parser] implements it.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string) orderparse.Outcome
}

// History is the part of the order store used for browsing and deletion.
type History interface {
	ListOrders(ctx context.Context, userID string, offset, limit int) (store.Page, error)
	DeleteOrder(ctx context.Context, orderID int64, userID, userName string) (store.Order, error)
	DeleteOrdersOn(ctx context.Context, userID, userName string, day time.Time) (int, error)
}

// Reporter renders spreadsheet reports. [report.Generator] implements it.
type Reporter interface {
	Orders(ctx context.Context, r store.Range) (*bytes.Buffer, error)
	Actions(ctx context.Context, r store.Range) (*bytes.Buffer, error)
}

// Notice describes a freshly confirmed order for the staff channel.
type Notice struct {
	OrderID  int64
	User     User
	Lines    []order.LineItem
	Payment  order.PaymentType
	RawText  string
	IsStaff  bool
	Total    int
	Received time.Time
}

// Notifier forwards confirmed orders to the staff.
type Notifier interface {
	NotifyOrder(ctx context.Context, n Notice) error
}

// Notifiers fans a notice out to every notifier in order. One failing
// notifier does not stop the others; their errors are joined.
type Notifiers []Notifier

// NotifyOrder implements [Notifier].
func (ns Notifiers) NotifyOrder(ctx context.Context, n Notice) error {
	var errs []error
	for _, x := range ns {
		if err := x.NotifyOrder(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReplyKind classifies a [Reply] so the transport can decide how to show it.
type ReplyKind int

const (
	// ReplyInfo is a plain informational message.
	ReplyInfo ReplyKind = iota

	// ReplyProposal carries an order candidate; the transport attaches the
	// confirm and cancel buttons.
	ReplyProposal

	// ReplyConfirmed reports a stored order.
	ReplyConfirmed

	// ReplyRejected is a user-fixable problem with the message.
	ReplyRejected

	// ReplyFailed is an infrastructure failure.
	ReplyFailed
)

// Reply is the outcome of a use case, ready for display.
type Reply struct {
	Kind ReplyKind
	Text string

	// Transcript is the recognised text of a voice message.
	Transcript string

	// OrderID is set for ReplyConfirmed.
	OrderID int64
}

// Transient reports whether the reply is a short-lived notice rather than
// something worth keeping in the chat.
func (r Reply) Transient() bool {
	return r.Kind == ReplyRejected || r.Kind == ReplyFailed
}

// Report is a generated spreadsheet file.
type Report struct {
	Filename string
	Data     *bytes.Buffer
}

// Config holds the dependencies of a [Service]. Parser, Sessions and History
// are required.
type Config struct {
	Parser      Interpreter
	Transcriber stt.Transcriber
	Sessions    *session.Manager
	History     History
	Reports     Reporter
	Notifier    Notifier
	Menu        *menu.Catalog

	// Location is the time zone for "today" and displayed timestamps.
	// Default: time.Local.
	Location *time.Location

	Logger *slog.Logger

	// Now overrides the clock in tests. Default: time.Now.
	Now func() time.Time
}

// Service implements the bot's use cases. All methods are safe for
// concurrent use.
type Service struct {
	parser      Interpreter
	transcriber stt.Transcriber
	sessions    *session.Manager
	history     History
	reports     Reporter
	notifier    Notifier
	menu        *menu.Catalog
	loc         *time.Location
	log         *slog.Logger
	now         func() time.Time
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	var errs []error
	if cfg.Parser == nil {
		errs = append(errs, errors.New("parser is required"))
	}
	if cfg.Sessions == nil {
		errs = append(errs, errors.New("session manager is required"))
	}
	if cfg.History == nil {
		errs = append(errs, errors.New("order history is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("ordering: %w", err)
	}

	s := &Service{
		parser:      cfg.Parser,
		transcriber: cfg.Transcriber,
		sessions:    cfg.Sessions,
		history:     cfg.History,
		reports:     cfg.Reports,
		notifier:    cfg.Notifier,
		menu:        cfg.Menu,
		loc:         cfg.Location,
		log:         cfg.Logger,
		now:         cfg.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// HandleText interprets an order message and, on success, stores the result
// as the user's pending candidate, replacing any earlier one.
func (s *Service) HandleText(ctx context.Context, u User, text string) Reply {
	ctx, span, log := observe.Operation(ctx, "ordering.HandleText", s.log, u.ID)
	defer span.End()

	text = strings.TrimSpace(text)
	out := s.parser.Interpret(ctx, text)
	switch out.Kind {
	case orderparse.KindRejected:
		return Reply{Kind: ReplyRejected, Text: s.rejectionText(out)}
	case orderparse.KindFault:
		return Reply{Kind: ReplyFailed, Text: faultText(out.Err)}
	}

	p := session.Pending{
		UserID:    u.ID,
		UserName:  u.Name,
		RawText:   text,
		Lines:     out.Order.Lines,
		Payment:   out.Order.Payment,
		CreatedAt: s.now(),
	}
	if _, err := s.sessions.Propose(ctx, p); err != nil {
		observe.Fail(span, err)
		log.Error("could not store order candidate", "error", err)
		return Reply{Kind: ReplyFailed, Text: textGenericFailure}
	}
	return Reply{Kind: ReplyProposal, Text: s.proposalText(p, out.Order.Dropped)}
}

// HandleVoice transcribes a voice message and handles the transcript like a
// text message.
func (s *Service) HandleVoice(ctx context.Context, u User, audio stt.Audio) Reply {
	ctx, span, log := observe.Operation(ctx, "ordering.HandleVoice", s.log, u.ID)
	defer span.End()

	if s.transcriber == nil {
		return Reply{Kind: ReplyRejected, Text: textVoiceDisabled}
	}
	transcript, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Error("voice message could not be transcribed", "error", err, "bytes", len(audio.Data))
		return Reply{Kind: ReplyFailed, Text: textNoSpeech}
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		log.Info("voice message is silent", "bytes", len(audio.Data))
		return Reply{Kind: ReplyRejected, Text: textNoSpeech}
	}
	log.Debug("voice message transcribed", "transcript", transcript)

	r := s.HandleText(ctx, u, transcript)
	r.Transcript = transcript
	r.Text = fmt.Sprintf("🗣 «%s»\n\n%s", transcript, r.Text)
	return r
}

// Confirm stores the user's pending candidate. staff marks the order as a
// staff meal.
func (s *Service) Confirm(ctx context.Context, u User, staff bool) Reply {
	ctx, span, log := observe.Operation(ctx, "ordering.Confirm", s.log, u.ID)
	defer span.End()

	c, err := s.sessions.Confirm(ctx, u.ID, staff)
	switch {
	case session.IsNoPending(err):
		return Reply{Kind: ReplyRejected, Text: textNothingPending}
	case err != nil:
		observe.Fail(span, err)
		log.Error("could not confirm order", "error", err)
		return Reply{Kind: ReplyFailed, Text: textSaveFailed}
	}

	if s.notifier != nil {
		n := Notice{
			OrderID:  c.OrderID,
			User:     User{ID: c.Pending.UserID, Name: c.Pending.UserName},
			Lines:    c.Pending.Lines,
			Payment:  c.Pending.Payment,
			RawText:  c.Pending.RawText,
			IsStaff:  c.IsStaff,
			Total:    c.Pending.Total(),
			Received: s.now(),
		}
		if err := s.notifier.NotifyOrder(ctx, n); err != nil {
			log.Warn("staff notification failed", "order_id", c.OrderID, "error", err)
		}
	}
	return Reply{Kind: ReplyConfirmed, Text: confirmedText(c), OrderID: c.OrderID}
}

// Cancel drops the user's pending candidate.
func (s *Service) Cancel(ctx context.Context, u User) Reply {
	ok, err := s.sessions.Cancel(ctx, u.ID)
	if err != nil {
		observe.Logger(ctx, s.log).Error("could not cancel order", "user_id", u.ID, "error", err)
		return Reply{Kind: ReplyFailed, Text: textGenericFailure}
	}
	if !ok {
		return Reply{Kind: ReplyInfo, Text: textNothingPending}
	}
	return Reply{Kind: ReplyInfo, Text: textCancelled}
}

// HistoryPage is one page of a user's order history.
type HistoryPage struct {
	Reply

	// Page is the zero-based page index actually shown.
	Page    int
	Orders  []store.Order
	HasPrev bool
	HasNext bool
}

// History returns the given zero-based page of the user's orders, newest
// first. Pages past the end are clamped to the last page.
func (s *Service) History(ctx context.Context, u User, page int) HistoryPage {
	ctx, span, log := observe.Operation(ctx, "ordering.History", s.log, u.ID)
	defer span.End()

	if page < 0 {
		page = 0
	}
	p, err := s.history.ListOrders(ctx, u.ID, page*PageSize, PageSize)
	if err == nil && len(p.Orders) == 0 && p.Total > 0 {
		page = (p.Total - 1) / PageSize
		p, err = s.history.ListOrders(ctx, u.ID, page*PageSize, PageSize)
	}
	if err != nil {
		observe.Fail(span, err)
		log.Error("could not list orders", "error", err)
		return HistoryPage{Reply: Reply{Kind: ReplyFailed, Text: textGenericFailure}}
	}
	if len(p.Orders) == 0 {
		return HistoryPage{Reply: Reply{Kind: ReplyInfo, Text: textNoOrders}}
	}
	return HistoryPage{
		Reply:   Reply{Kind: ReplyInfo, Text: s.historyText(p.Orders)},
		Page:    page,
		Orders:  p.Orders,
		HasPrev: page > 0,
		HasNext: (page+1)*PageSize < p.Total,
	}
}

// DeleteOrder deletes one of the user's orders.
func (s *Service) DeleteOrder(ctx context.Context, u User, orderID int64) Reply {
	ctx, span, log := observe.Operation(ctx, "ordering.DeleteOrder", s.log, u.ID)
	defer span.End()
	log = log.With("order_id", orderID)

	o, err := s.history.DeleteOrder(ctx, orderID, u.ID, u.Name)
	if errors.Is(err, store.ErrNotFound) {
		return Reply{Kind: ReplyRejected, Text: textOrderNotFound}
	}
	if err != nil {
		observe.Fail(span, err)
		log.Error("could not delete order", "error", err)
		return Reply{Kind: ReplyFailed, Text: textGenericFailure}
	}
	log.Info("order deleted", "total", o.Total())
	return Reply{Kind: ReplyInfo, Text: deletedText(o)}
}

// ClearToday deletes all of the user's orders placed today.
func (s *Service) ClearToday(ctx context.Context, u User) Reply {
	ctx, span, log := observe.Operation(ctx, "ordering.ClearToday", s.log, u.ID)
	defer span.End()

	today := s.now().In(s.loc)
	n, err := s.history.DeleteOrdersOn(ctx, u.ID, u.Name, today)
	if err != nil {
		observe.Fail(span, err)
		log.Error("could not clear today's orders", "error", err)
		return Reply{Kind: ReplyFailed, Text: textGenericFailure}
	}
	day := today.Format(dateLayout)
	if n == 0 {
		return Reply{Kind: ReplyInfo, Text: fmt.Sprintf(textNothingToClear, day)}
	}
	log.Info("today's orders cleared", "count", n)
	return Reply{Kind: ReplyInfo, Text: fmt.Sprintf(textCleared, n, day)}
}

// ClearTodayPrompt is the question asked before [Service.ClearToday].
func (s *Service) ClearTodayPrompt() string { return textClearPrompt }

// Reports renders the order and action log workbooks over r.
func (s *Service) Reports(ctx context.Context, r store.Range) ([]Report, error) {
	ctx, span := observe.StartSpan(ctx, "ordering.Reports")
	defer span.End()

	if s.reports == nil {
		return nil, errors.New("ordering: reports are not configured")
	}
	orders, err := s.reports.Orders(ctx, r)
	if err != nil {
		observe.Fail(span, err)
		return nil, fmt.Errorf("ordering: orders report: %w", err)
	}
	actions, err := s.reports.Actions(ctx, r)
	if err != nil {
		observe.Fail(span, err)
		return nil, fmt.Errorf("ordering: actions report: %w", err)
	}
	return []Report{
		{Filename: reportOrdersFile, Data: orders},
		{Filename: reportActionsFile, Data: actions},
	}, nil
}

// MenuText renders the menu for display.
func (s *Service) MenuText() string {
	if s.menu == nil {
		return textNoMenu
	}
	return s.menu.RenderText()
}

// rejectionText explains a user-fixable parse rejection, with menu
// suggestions when the model named items that are not on the menu.
func (s *Service) rejectionText(out orderparse.Outcome) string {
	if out.Reason == orderparse.ReasonEmpty {
		return textEmptyMessage
	}
	var tooLarge *orderparse.QuantityTooLargeError
	if errors.As(out.Err, &tooLarge) {
		return fmt.Sprintf(textTooLarge, tooLarge.Item, tooLarge.Requested, tooLarge.Max)
	}
	var noItems *orderparse.NoRecognizedItemsError
	if errors.As(out.Err, &noItems) && len(noItems.Suggestions) > 0 {
		return textNoItems + "\n" + fmt.Sprintf(textDidYouMean, joinQuoted(noItems.Suggestions))
	}
	return textNoItems
}

// faultText maps a pipeline fault to the user-facing message.
func faultText(err error) string {
	var exhausted *gateway.GatewayExhaustedError
	var malformed *orderparse.MalformedReplyError
	switch {
	case errors.As(err, &malformed):
		return textMalformedReply
	case errors.As(err, &exhausted):
		return textModelUnavailable
	default:
		return textGenericFailure
	}
}
