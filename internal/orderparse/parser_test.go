package orderparse

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/orderbot/internal/order"
)

func newTestParser(t *testing.T, model *fakeCompleter, buf *bytes.Buffer) *Parser {
	t.Helper()
	return New(model, testMenu(t), WithLogger(bufLogger(buf)))
}

func TestParser_Interpret_OK(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	model := &fakeCompleter{reply: "Конечно!\n```json\n{\"it\":[{\"n\":\"Aмерикано\",\"q\":3}],\"pay\":0}\n```"}
	p := newTestParser(t, model, &buf)

	out := p.Interpret(context.Background(), "три американо наличкой")
	if out.Kind != KindOK {
		t.Fatalf("Kind = %v, want ok (err %v)", out.Kind, out.Err)
	}
	if got := out.Order.Total(); got != 270 {
		t.Fatalf("Total() = %d, want 270", got)
	}
	if out.Order.Payment != order.PaymentCash {
		t.Fatalf("Payment = %q, want %q", out.Order.Payment, order.PaymentCash)
	}
	if model.callCount() != 1 {
		t.Fatalf("model calls = %d, want 1", model.callCount())
	}
	if got := model.calls[0][1].Content; got != "три американо наличкой" {
		t.Fatalf("user message = %q", got)
	}
}

func TestParser_Interpret_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		reply     string
		reason    string
		calls     int
	}{
		{"empty utterance", "   ", `{"it":[],"pay":-1}`, ReasonEmpty, 0},
		{"nothing on menu", "пицца", `{"it":[{"n":"Пицца","q":1}],"pay":-1}`, ReasonNoItems, 1},
		{"empty item list", "привет", `{"it":[],"pay":-1}`, ReasonNoItems, 1},
		{"quantity too large", "тысячу латте", `{"it":[{"n":"Латте","q":5000}],"pay":-1}`, ReasonTooLarge, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			model := &fakeCompleter{reply: tt.reply}
			out := newTestParser(t, model, &buf).Interpret(context.Background(), tt.utterance)
			if out.Kind != KindRejected {
				t.Fatalf("Kind = %v, want rejected", out.Kind)
			}
			if out.Reason != tt.reason {
				t.Fatalf("Reason = %q, want %q", out.Reason, tt.reason)
			}
			if model.callCount() != tt.calls {
				t.Fatalf("model calls = %d, want %d", model.callCount(), tt.calls)
			}
		})
	}
}

func TestParser_Interpret_Fault(t *testing.T) {
	t.Parallel()

	errDown := errors.New("gateway exhausted")
	tests := []struct {
		name      string
		model     *fakeCompleter
		malformed bool
	}{
		{"model error", &fakeCompleter{err: errDown}, false},
		{"prose reply", &fakeCompleter{reply: "Не понимаю, уточните заказ."}, true},
		{"truncated reply", &fakeCompleter{reply: `{"it":[{"n":"Латте"`}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			out := newTestParser(t, tt.model, &buf).Interpret(context.Background(), "латте")
			if out.Kind != KindFault {
				t.Fatalf("Kind = %v, want fault", out.Kind)
			}
			var mre *MalformedReplyError
			if got := errors.As(out.Err, &mre); got != tt.malformed {
				t.Fatalf("errors.As(MalformedReplyError) = %v, want %v (err %v)", got, tt.malformed, out.Err)
			}
			if !tt.malformed && !errors.Is(out.Err, errDown) {
				t.Fatalf("error = %v, want wrapped %v", out.Err, errDown)
			}
			if tt.malformed && !strings.Contains(buf.String(), "model reply has no usable JSON") {
				t.Fatalf("raw reply not logged: %s", buf.String())
			}
		})
	}
}

func TestParser_Extract(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	model := &fakeCompleter{reply: `{"it":[{"n":"Чай","q":2}],"pay":1}`}
	raw, err := newTestParser(t, model, &buf).Extract(context.Background(), "два чая")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(raw.Items) != 1 || raw.Items[0].Name != "Чай" || raw.Items[0].Quantity != 2 {
		t.Fatalf("Items = %+v", raw.Items)
	}
	if raw.PaymentCode != 1 {
		t.Fatalf("PaymentCode = %d, want 1", raw.PaymentCode)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	for k, want := range map[Kind]string{KindOK: "ok", KindRejected: "rejected", KindFault: "fault", Kind(9): "unknown"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
