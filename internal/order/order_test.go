package order

import "testing"

func TestPaymentFromCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		want PaymentType
	}{
		{0, PaymentCash},
		{1, PaymentCashless},
		{-1, PaymentUnspecified},
		{2, PaymentUnspecified},
		{-7, PaymentUnspecified},
	}
	for _, tt := range tests {
		if got := PaymentFromCode(tt.code); got != tt.want {
			t.Errorf("PaymentFromCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestParsePaymentType(t *testing.T) {
	t.Parallel()
	if got := ParsePaymentType("cash"); got != PaymentCash {
		t.Errorf("ParsePaymentType(cash) = %q", got)
	}
	if got := ParsePaymentType("bitcoin"); got != PaymentUnspecified {
		t.Errorf("ParsePaymentType(bitcoin) = %q", got)
	}
}

func TestRowTotal(t *testing.T) {
	t.Parallel()
	l := LineItem{
		ItemName:  "Латте",
		Quantity:  1,
		BasePrice: 150,
		Addons:    []Addon{{"Сироп", 30}, {"Корица", 0}},
	}
	if got := l.RowTotal(); got != 180 {
		t.Fatalf("RowTotal() = %d, want 180", got)
	}
	l.Quantity = 2
	if got := l.RowTotal(); got != 360 {
		t.Fatalf("RowTotal() with quantity 2 = %d, want 360", got)
	}
}

func TestOrderTotal(t *testing.T) {
	t.Parallel()
	o := &Order{Lines: []LineItem{
		{ItemName: "Американо", Quantity: 1, BasePrice: 90},
		{ItemName: "Американо", Quantity: 1, BasePrice: 90},
		{ItemName: "Латте", Quantity: 1, BasePrice: 150, Addons: []Addon{{"Сироп", 30}}},
	}}
	if got := o.Total(); got != 360 {
		t.Fatalf("Total() = %d, want 360", got)
	}
}

func TestGroupLines(t *testing.T) {
	t.Parallel()
	lines := []LineItem{
		{ItemName: "Американо", Quantity: 1, BasePrice: 90},
		{ItemName: "Латте", Quantity: 1, BasePrice: 150, Addons: []Addon{{"Сироп", 30}}},
		{ItemName: "Американо", Quantity: 1, BasePrice: 90},
		{ItemName: "Латте", Quantity: 1, BasePrice: 150},
	}
	groups := GroupLines(lines)
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if groups[0].Line.ItemName != "Американо" || groups[0].Count != 2 || groups[0].Subtotal() != 180 {
		t.Errorf("groups[0] = %+v", groups[0])
	}
	if groups[1].Count != 1 || len(groups[1].Line.Addons) != 1 {
		t.Errorf("groups[1] = %+v, want latte with syrup", groups[1])
	}
	if groups[2].Line.ItemName != "Латте" || len(groups[2].Line.Addons) != 0 {
		t.Errorf("groups[2] = %+v, want plain latte", groups[2])
	}
}
