package ordering

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/orderbot/internal/gateway"
	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/observe"
	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/orderparse"
	"github.com/MrWong99/orderbot/internal/resilience"
	"github.com/MrWong99/orderbot/internal/session"
	"github.com/MrWong99/orderbot/internal/store"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
	"github.com/MrWong99/orderbot/pkg/provider/stt"
	sttmock "github.com/MrWong99/orderbot/pkg/provider/stt/mock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	anna  = User{ID: "u1", Name: "Аня"}
	boris = User{ID: "u2", Name: "Борис"}
)

// fixedNow is 2026-03-14 12:00 UTC.
var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (n *recordingNotifier) NotifyOrder(_ context.Context, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

type stubReporter struct {
	err error
}

func (r stubReporter) Orders(context.Context, store.Range) (*bytes.Buffer, error) {
	if r.err != nil {
		return nil, r.err
	}
	return bytes.NewBufferString("orders"), nil
}

func (r stubReporter) Actions(context.Context, store.Range) (*bytes.Buffer, error) {
	return bytes.NewBufferString("actions"), nil
}

type fixture struct {
	svc      *Service
	model    *fakeCompleter
	orders   *store.MemStore
	notifier *recordingNotifier
	voice    *sttmock.Transcriber
}

func testMenu(t *testing.T) *menu.Catalog {
	t.Helper()
	cat, err := menu.New(
		[]menu.Entry{
			{Name: "Американо", Price: 90},
			{Name: "Латте", Price: 150},
			{Name: "Круассан", Price: 120},
		},
		[]menu.Entry{
			{Name: "Сироп", Price: 30},
			{Name: "Корица", Price: 0},
		},
	)
	if err != nil {
		t.Fatalf("menu.New: %v", err)
	}
	return cat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	now := func() time.Time { return fixedNow }
	cat := testMenu(t)
	f := &fixture{
		model:    &fakeCompleter{},
		orders:   store.NewMemStore(store.WithClock(now)),
		notifier: &recordingNotifier{},
		voice:    &sttmock.Transcriber{},
	}
	parser := orderparse.New(f.model, cat, orderparse.WithLogger(discard), orderparse.WithMetrics(metrics))
	sessions := session.NewManager(session.NewMemStore(), f.orders,
		session.WithLogger(discard),
		session.WithMetrics(metrics),
		session.WithRetry(resilience.Retry{MaxAttempts: 3, Retryable: store.IsContention}),
		session.WithClock(now))

	f.svc, err = New(Config{
		Parser:      parser,
		Transcriber: f.voice,
		Sessions:    sessions,
		History:     f.orders,
		Reports:     stubReporter{},
		Notifier:    f.notifier,
		Menu:        cat,
		Location:    time.UTC,
		Logger:      discard,
		Now:         now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	if err == nil {
		t.Fatal("New(Config{}) error = nil, want error")
	}
	for _, want := range []string{"parser", "session manager", "order history"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestHandleText_ProposesOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.model.reply = `{"it":[{"n":"Латте","q":2,"a":["Сироп"]},{"n":"Круассан","q":1,"a":[]}],"pay":1}`

	r := f.svc.HandleText(context.Background(), anna, "  два латте с сиропом и круассан, картой ")
	if r.Kind != ReplyProposal {
		t.Fatalf("Kind = %v, want ReplyProposal (text %q)", r.Kind, r.Text)
	}
	for _, want := range []string{"Безналичный", "Латте ×2 — 360₽", "• Сироп — 30₽", "Круассан — 120₽", "Итого: **480₽**"} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("proposal text missing %q:\n%s", want, r.Text)
		}
	}

	p, ok, err := f.svc.sessions.Pending(context.Background(), anna.ID)
	if err != nil || !ok {
		t.Fatalf("Pending = %v, %v, want candidate", ok, err)
	}
	if p.RawText != "два латте с сиропом и круассан, картой" {
		t.Errorf("RawText = %q, want trimmed utterance", p.RawText)
	}
	if got := len(p.Lines); got != 3 {
		t.Errorf("len(Lines) = %d, want 3", got)
	}
	if p.Total() != 480 {
		t.Errorf("Total = %d, want 480", p.Total())
	}
}

func TestHandleText_MentionsDroppedAndUnspecifiedPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.model.reply = `{"it":[{"n":"Американо","q":1,"a":[]},{"n":"Лате","q":1,"a":[]}],"pay":-1}`

	r := f.svc.HandleText(context.Background(), anna, "американо и лате")
	if r.Kind != ReplyProposal {
		t.Fatalf("Kind = %v, want ReplyProposal", r.Kind)
	}
	if !strings.Contains(r.Text, "«Лате»") {
		t.Errorf("text does not mention dropped item:\n%s", r.Text)
	}
	if !strings.Contains(r.Text, "Способ оплаты не указан") {
		t.Errorf("text does not mention missing payment:\n%s", r.Text)
	}
}

func TestHandleText_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		reply     string
		want      string
		wantCalls int
	}{
		{
			name:      "empty message",
			utterance: "   ",
			want:      textEmptyMessage,
			wantCalls: 0,
		},
		{
			name:      "nothing on the menu",
			utterance: "пицца",
			reply:     `{"it":[{"n":"Пицца","q":1,"a":[]}],"pay":0}`,
			want:      textNoItems,
			wantCalls: 1,
		},
		{
			name:      "quantity above the limit",
			utterance: "две тысячи американо",
			reply:     `{"it":[{"n":"Американо","q":2000}],"pay":0}`,
			want:      "⚠️ Слишком большое количество «Американо»: 2000.",
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.model.reply = tt.reply

			r := f.svc.HandleText(context.Background(), anna, tt.utterance)
			if r.Kind != ReplyRejected {
				t.Fatalf("Kind = %v, want ReplyRejected", r.Kind)
			}
			if !strings.HasPrefix(r.Text, tt.want) {
				t.Errorf("Text = %q, want prefix %q", r.Text, tt.want)
			}
			if !r.Transient() {
				t.Error("rejection should be transient")
			}
			if f.model.calls != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", f.model.calls, tt.wantCalls)
			}
			if _, ok, _ := f.svc.sessions.Pending(context.Background(), anna.ID); ok {
				t.Error("rejected message left a pending candidate")
			}
		})
	}
}

func TestHandleText_Faults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{
			name: "gateway exhausted",
			err:  &gateway.GatewayExhaustedError{Attempts: 2, Err: resilience.ErrAllFailed},
			want: textModelUnavailable,
		},
		{
			name:  "malformed reply",
			reply: "Извините, не понял заказ.",
			want:  textMalformedReply,
		},
		{
			name: "other error",
			err:  errors.New("boom"),
			want: textGenericFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.model.reply, f.model.err = tt.reply, tt.err

			r := f.svc.HandleText(context.Background(), anna, "латте")
			if r.Kind != ReplyFailed {
				t.Fatalf("Kind = %v, want ReplyFailed", r.Kind)
			}
			if r.Text != tt.want {
				t.Errorf("Text = %q, want %q", r.Text, tt.want)
			}
		})
	}
}

func TestHandleVoice(t *testing.T) {
	t.Parallel()

	t.Run("transcript is interpreted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.voice.Text = " латте наличными "
		f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`

		r := f.svc.HandleVoice(context.Background(), anna, stt.Audio{Data: []byte("ogg"), Filename: "voice.ogg"})
		if r.Kind != ReplyProposal {
			t.Fatalf("Kind = %v, want ReplyProposal (%q)", r.Kind, r.Text)
		}
		if r.Transcript != "латте наличными" {
			t.Errorf("Transcript = %q, want %q", r.Transcript, "латте наличными")
		}
		if !strings.HasPrefix(r.Text, "🗣 «латте наличными»") {
			t.Errorf("Text does not start with the transcript:\n%s", r.Text)
		}
		p, _, _ := f.svc.sessions.Pending(context.Background(), anna.ID)
		if p.RawText != "латте наличными" {
			t.Errorf("RawText = %q, want the transcript", p.RawText)
		}
	})

	t.Run("transcription error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.voice.Err = resilience.ErrAllFailed

		r := f.svc.HandleVoice(context.Background(), anna, stt.Audio{Data: []byte("ogg")})
		if r.Kind != ReplyFailed || r.Text != textNoSpeech {
			t.Errorf("reply = %v %q, want ReplyFailed %q", r.Kind, r.Text, textNoSpeech)
		}
		if f.model.calls != 0 {
			t.Errorf("model calls = %d, want 0", f.model.calls)
		}
	})

	t.Run("silence", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		r := f.svc.HandleVoice(context.Background(), anna, stt.Audio{Data: []byte("ogg")})
		if r.Kind != ReplyRejected || r.Text != textNoSpeech {
			t.Errorf("reply = %v %q, want ReplyRejected %q", r.Kind, r.Text, textNoSpeech)
		}
	})
}

func TestConfirm_StoresAndNotifies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.model.reply = `{"it":[{"n":"Американо","q":3,"a":[]}],"pay":0}`
	f.svc.HandleText(ctx, anna, "три американо наличными")

	r := f.svc.Confirm(ctx, anna, true)
	if r.Kind != ReplyConfirmed {
		t.Fatalf("Kind = %v, want ReplyConfirmed (%q)", r.Kind, r.Text)
	}
	if r.OrderID != 1 {
		t.Errorf("OrderID = %d, want 1", r.OrderID)
	}
	for _, want := range []string{"Заказ #1", "для персонала", "Американо ×3 — 270₽", "270₽"} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("confirmation missing %q:\n%s", want, r.Text)
		}
	}

	page, _ := f.orders.ListOrders(ctx, anna.ID, 0, 10)
	if page.Total != 1 || !page.Orders[0].IsStaff || page.Orders[0].Total() != 270 {
		t.Errorf("stored page = %+v, want one staff order of 270", page)
	}

	if len(f.notifier.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(f.notifier.notices))
	}
	n := f.notifier.notices[0]
	if n.OrderID != 1 || n.Total != 270 || !n.IsStaff || n.User != anna {
		t.Errorf("notice = %+v", n)
	}

	if again := f.svc.Confirm(ctx, anna, false); again.Text != textNothingPending {
		t.Errorf("second Confirm text = %q, want %q", again.Text, textNothingPending)
	}
}

func TestConfirm_NotifierFailureDoesNotFailOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.notifier.err = errors.New("channel gone")
	f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`
	f.svc.HandleText(context.Background(), anna, "латте")

	if r := f.svc.Confirm(context.Background(), anna, false); r.Kind != ReplyConfirmed {
		t.Errorf("Kind = %v, want ReplyConfirmed", r.Kind)
	}
}

func TestConfirm_SaveFailureClearsCandidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`
	f.svc.HandleText(ctx, anna, "латте")
	f.orders.FailAdds(store.ErrContention, store.ErrContention, store.ErrContention)

	r := f.svc.Confirm(ctx, anna, false)
	if r.Kind != ReplyFailed || r.Text != textSaveFailed {
		t.Fatalf("reply = %v %q, want ReplyFailed %q", r.Kind, r.Text, textSaveFailed)
	}
	if _, ok, _ := f.svc.sessions.Pending(ctx, anna.ID); ok {
		t.Error("candidate still pending after failed save")
	}
	if len(f.notifier.notices) != 0 {
		t.Errorf("notices = %d, want 0", len(f.notifier.notices))
	}
}

func TestConfirm_OverwriteCommitsLatest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`
	f.svc.HandleText(ctx, anna, "латте")
	f.model.reply = `{"it":[{"n":"Круассан","q":1,"a":[]}],"pay":1}`
	f.svc.HandleText(ctx, anna, "нет, круассан картой")

	f.svc.Confirm(ctx, anna, false)
	page, _ := f.orders.ListOrders(ctx, anna.ID, 0, 10)
	if page.Total != 1 {
		t.Fatalf("stored orders = %d, want 1", page.Total)
	}
	if got := page.Orders[0].Items[0].Name; got != "Круассан" {
		t.Errorf("stored item = %q, want Круассан", got)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if r := f.svc.Cancel(ctx, anna); r.Text != textNothingPending {
		t.Errorf("Cancel without candidate = %q, want %q", r.Text, textNothingPending)
	}

	f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`
	f.svc.HandleText(ctx, anna, "латте")
	if r := f.svc.Cancel(ctx, anna); r.Text != textCancelled {
		t.Errorf("Cancel = %q, want %q", r.Text, textCancelled)
	}
	if r := f.svc.Confirm(ctx, anna, false); r.Text != textNothingPending {
		t.Errorf("Confirm after Cancel = %q, want %q", r.Text, textNothingPending)
	}
}

func seedOrders(t *testing.T, f *fixture, u User, n int) {
	t.Helper()
	f.model.reply = `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":0}`
	for range n {
		f.svc.HandleText(context.Background(), u, "латте")
		if r := f.svc.Confirm(context.Background(), u, false); r.Kind != ReplyConfirmed {
			t.Fatalf("seed Confirm = %v %q", r.Kind, r.Text)
		}
	}
}

func TestHistory_Pagination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seedOrders(t, f, anna, 7)
	seedOrders(t, f, boris, 1)

	first := f.svc.History(ctx, anna, 0)
	if len(first.Orders) != PageSize || first.HasPrev || !first.HasNext {
		t.Fatalf("page 0: %d orders, prev %v, next %v", len(first.Orders), first.HasPrev, first.HasNext)
	}
	if first.Orders[0].ID != 7 {
		t.Errorf("newest order ID = %d, want 7", first.Orders[0].ID)
	}
	if !strings.Contains(first.Text, "2026-03-14 12:00") {
		t.Errorf("history text lacks timestamp:\n%s", first.Text)
	}

	second := f.svc.History(ctx, anna, 1)
	if len(second.Orders) != 2 || !second.HasPrev || second.HasNext {
		t.Errorf("page 1: %d orders, prev %v, next %v", len(second.Orders), second.HasPrev, second.HasNext)
	}

	clamped := f.svc.History(ctx, anna, 9)
	if clamped.Page != 1 || len(clamped.Orders) != 2 {
		t.Errorf("page 9 clamped to %d with %d orders, want page 1 with 2", clamped.Page, len(clamped.Orders))
	}

	if empty := f.svc.History(ctx, User{ID: "nobody"}, 0); empty.Text != textNoOrders {
		t.Errorf("empty history = %q, want %q", empty.Text, textNoOrders)
	}
}

func TestDeleteOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seedOrders(t, f, anna, 1)

	if r := f.svc.DeleteOrder(ctx, boris, 1); r.Text != textOrderNotFound {
		t.Errorf("foreign delete = %q, want %q", r.Text, textOrderNotFound)
	}
	r := f.svc.DeleteOrder(ctx, anna, 1)
	if !strings.Contains(r.Text, "Заказ #1 удалён") || !strings.Contains(r.Text, "Латте ×1 — 150₽") {
		t.Errorf("delete text = %q", r.Text)
	}
	if r := f.svc.DeleteOrder(ctx, anna, 1); r.Text != textOrderNotFound {
		t.Errorf("repeated delete = %q, want %q", r.Text, textOrderNotFound)
	}
}

func TestClearToday(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if r := f.svc.ClearToday(ctx, anna); !strings.Contains(r.Text, "Нет заказов за 2026-03-14") {
		t.Errorf("ClearToday on empty = %q", r.Text)
	}

	seedOrders(t, f, anna, 2)
	seedOrders(t, f, boris, 1)
	r := f.svc.ClearToday(ctx, anna)
	if !strings.Contains(r.Text, "Удалено заказов: 2") {
		t.Errorf("ClearToday = %q", r.Text)
	}
	if page, _ := f.orders.ListOrders(ctx, boris.ID, 0, 10); page.Total != 1 {
		t.Errorf("other user's orders = %d, want 1", page.Total)
	}
}

func TestReports(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	files, err := f.svc.Reports(context.Background(), store.Range{})
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(files) != 2 || files[0].Filename != "report.xlsx" || files[1].Filename != "log_report.xlsx" {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Data.String() != "orders" {
		t.Errorf("orders data = %q", files[0].Data.String())
	}

	f.svc.reports = stubReporter{err: errors.New("db down")}
	if _, err := f.svc.Reports(context.Background(), store.Range{}); err == nil {
		t.Error("Reports error = nil, want error")
	}
}

func TestMenuText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.svc.MenuText()
	if !strings.Contains(got, "Латте: 150 ₽") || !strings.Contains(got, "Корица: бесплатно") {
		t.Errorf("MenuText = %q", got)
	}
}

func TestNoticeText(t *testing.T) {
	t.Parallel()

	got := NoticeText(Notice{
		OrderID: 12,
		User:    User{ID: "42"},
		Payment: order.PaymentCash,
		IsStaff: true,
		Total:   0,
		RawText: "строка1\nстрока2",
	})
	for _, want := range []string{"Заказ #12 от **42** (персонал)", "Наличный", "> строка1\n> строка2"} {
		if !strings.Contains(got, want) {
			t.Errorf("NoticeText missing %q:\n%s", want, got)
		}
	}
}

func TestNotifiers(t *testing.T) {
	t.Parallel()

	broken := &recordingNotifier{err: errors.New("channel gone")}
	ok := &recordingNotifier{}
	err := Notifiers{broken, ok}.NotifyOrder(context.Background(), Notice{OrderID: 3})
	if err == nil || !strings.Contains(err.Error(), "channel gone") {
		t.Errorf("NotifyOrder() error = %v, want channel gone", err)
	}
	if len(ok.notices) != 1 || ok.notices[0].OrderID != 3 {
		t.Errorf("second notifier got %+v, want order 3", ok.notices)
	}
	if err := (Notifiers{}).NotifyOrder(context.Background(), Notice{}); err != nil {
		t.Errorf("empty Notifiers error = %v, want nil", err)
	}
}
