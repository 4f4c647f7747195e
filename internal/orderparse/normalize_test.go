package orderparse

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/order"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNormalize_ExpandsQuantity(t *testing.T) {
	t.Parallel()

	raw := RawOrder{Items: []RawItem{{Name: "Американо", Quantity: 3}}, PaymentCode: -1}
	o, err := Normalize(raw, testMenu(t), discard)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(o.Lines) != 3 {
		t.Fatalf("len(Lines) = %d, want 3", len(o.Lines))
	}
	for i, l := range o.Lines {
		if l.ItemName != "Американо" || l.Quantity != 1 || l.BasePrice != 90 {
			t.Fatalf("Lines[%d] = %+v", i, l)
		}
	}
	if got := o.Total(); got != 270 {
		t.Fatalf("Total() = %d, want 270", got)
	}
	if o.Payment != order.PaymentUnspecified {
		t.Fatalf("Payment = %q, want %q", o.Payment, order.PaymentUnspecified)
	}
}

func TestNormalize_AddonsAndPayment(t *testing.T) {
	t.Parallel()

	raw := RawOrder{
		Items: []RawItem{
			{Name: " Латте ", Quantity: 2, Addons: []string{"Сироп", " ", "Мёд"}},
			{Name: "Круассан", Quantity: 1},
		},
		PaymentCode: 1,
	}
	o, err := Normalize(raw, testMenu(t), discard)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(o.Lines) != 3 {
		t.Fatalf("len(Lines) = %d, want 3", len(o.Lines))
	}
	wantAddons := []order.Addon{{Name: "Сироп", Price: 30}, {Name: "Мёд", Price: 0}}
	for _, l := range o.Lines[:2] {
		if !reflect.DeepEqual(l.Addons, wantAddons) {
			t.Fatalf("Addons = %+v, want %+v", l.Addons, wantAddons)
		}
	}
	for _, l := range o.Lines {
		if l.Payment != order.PaymentCashless {
			t.Fatalf("line payment = %q, want %q", l.Payment, order.PaymentCashless)
		}
	}
	// (150+30)*2 + 120
	if got := o.Total(); got != 480 {
		t.Fatalf("Total() = %d, want 480", got)
	}

	// Expanded lines must not share addon storage.
	o.Lines[0].Addons[0].Name = "changed"
	if o.Lines[1].Addons[0].Name != "Сироп" {
		t.Fatal("expanded lines share their addon slice")
	}
}

func TestNormalize_QuantityBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		q    int
		want int
	}{
		{0, 1},
		{-4, 1},
		{1, 1},
		{60, 60},
		{MaxQuantity, MaxQuantity},
	}
	for _, tt := range tests {
		raw := RawOrder{Items: []RawItem{{Name: "Американо", Quantity: tt.q}}, PaymentCode: -1}
		o, err := Normalize(raw, testMenu(t), discard)
		if err != nil {
			t.Fatalf("Normalize(q=%d): %v", tt.q, err)
		}
		if len(o.Lines) != tt.want {
			t.Fatalf("Normalize(q=%d) lines = %d, want %d", tt.q, len(o.Lines), tt.want)
		}
		if got := o.Total(); got != 90*tt.want {
			t.Fatalf("Normalize(q=%d) total = %d, want %d", tt.q, got, 90*tt.want)
		}
	}
}

func TestNormalize_QuantityTooLarge(t *testing.T) {
	t.Parallel()

	for _, q := range []int{MaxQuantity + 1, 1 << 30} {
		raw := RawOrder{
			Items:       []RawItem{{Name: "Латте", Quantity: 1}, {Name: "Американо", Quantity: q}},
			PaymentCode: 0,
		}
		o, err := Normalize(raw, testMenu(t), discard)
		var tooLarge *QuantityTooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("Normalize(q=%d) = %+v, %v; want *QuantityTooLargeError", q, o, err)
		}
		if tooLarge.Item != "Американо" || tooLarge.Requested != q || tooLarge.Max != MaxQuantity {
			t.Fatalf("error = %+v", tooLarge)
		}
	}
}

func TestNormalize_FoldsLatinOnlyNames(t *testing.T) {
	t.Parallel()

	cat, err := menu.New(
		[]menu.Entry{{Name: "Espresso", Price: 100}, {Name: "Сахар", Price: 10}},
		[]menu.Entry{{Name: "Сахар", Price: 5}},
	)
	if err != nil {
		t.Fatalf("menu.New: %v", err)
	}
	raw := RawOrder{
		Items: []RawItem{
			{Name: "Espresso", Quantity: 1, Addons: []string{"Caxap"}},
			{Name: "Caxap", Quantity: 1},
		},
		PaymentCode: -1,
	}
	o, err := Normalize(raw, cat, discard)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(o.Lines))
	}
	if o.Lines[0].ItemName != "Espresso" {
		t.Errorf("ItemName = %q, want Espresso left as written", o.Lines[0].ItemName)
	}
	if got := o.Lines[0].Addons; len(got) != 1 || got[0].Name != "Сахар" || got[0].Price != 5 {
		t.Errorf("Addons = %+v, want [Сахар 5]", got)
	}
	if o.Lines[1].ItemName != "Сахар" || o.Lines[1].BasePrice != 10 {
		t.Errorf("line = %+v, want Сахар at 10", o.Lines[1])
	}
}

func TestNormalize_DropsUnknownItems(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	raw := RawOrder{
		Items: []RawItem{
			{Name: "Латте", Quantity: 1},
			{Name: "Капучина", Quantity: 1},
			{Name: "латте", Quantity: 1},
			{Name: "", Quantity: 1},
		},
		PaymentCode: 0,
	}
	o, err := Normalize(raw, testMenu(t), bufLogger(&buf))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(o.Lines) != 1 || o.Lines[0].ItemName != "Латте" {
		t.Fatalf("Lines = %+v, want a single Латте", o.Lines)
	}
	if want := []string{"Капучина", "латте"}; !reflect.DeepEqual(o.Dropped, want) {
		t.Fatalf("Dropped = %q, want %q", o.Dropped, want)
	}
	if o.Payment != order.PaymentCash {
		t.Fatalf("Payment = %q, want %q", o.Payment, order.PaymentCash)
	}
	if !strings.Contains(buf.String(), "suggestion=Капучино") {
		t.Fatalf("log missing suggestion: %s", buf.String())
	}
}

func TestNormalize_NoRecognizedItems(t *testing.T) {
	t.Parallel()

	raw := RawOrder{
		Items: []RawItem{
			{Name: "Капучина", Quantity: 1},
			{Name: "капучино", Quantity: 2},
			{Name: "Пицца", Quantity: 1},
		},
		PaymentCode: -1,
	}
	o, err := Normalize(raw, testMenu(t), discard)
	if o != nil {
		t.Fatalf("Normalize returned order %+v, want nil", o)
	}
	var nri *NoRecognizedItemsError
	if !errors.As(err, &nri) {
		t.Fatalf("error = %v, want *NoRecognizedItemsError", err)
	}
	if want := []string{"Капучина", "капучино", "Пицца"}; !reflect.DeepEqual(nri.Dropped, want) {
		t.Fatalf("Dropped = %q, want %q", nri.Dropped, want)
	}
	if want := []string{"Капучино"}; !reflect.DeepEqual(nri.Suggestions, want) {
		t.Fatalf("Suggestions = %q, want %q", nri.Suggestions, want)
	}
}

func TestNormalize_EmptyReply(t *testing.T) {
	t.Parallel()

	_, err := Normalize(RawOrder{PaymentCode: 1}, testMenu(t), discard)
	var nri *NoRecognizedItemsError
	if !errors.As(err, &nri) {
		t.Fatalf("error = %v, want *NoRecognizedItemsError", err)
	}
	if len(nri.Dropped) != 0 {
		t.Fatalf("Dropped = %q, want none", nri.Dropped)
	}
}

// Every line the normalizer emits names a menu item, carries its menu price
// and has quantity one.
func TestNormalize_LinesAlwaysOnMenu(t *testing.T) {
	t.Parallel()

	cat := testMenu(t)
	names := []string{"Американо", "Капучино", "Латте", "Раф лаванда", "Круассан", "Чай", "Aмерикано", "раф"}
	var items []RawItem
	for i, n := range names {
		items = append(items, RawItem{Name: n, Quantity: i - 2})
	}
	o, err := Normalize(RawOrder{Items: items, PaymentCode: -1}, cat, discard)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, l := range o.Lines {
		price, ok := cat.Price(l.ItemName)
		if !ok {
			t.Fatalf("line %q is not on the menu", l.ItemName)
		}
		if l.BasePrice != price || l.Quantity != 1 {
			t.Fatalf("line %+v, want price %d and quantity 1", l, price)
		}
	}
}
