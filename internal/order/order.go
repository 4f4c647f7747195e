// Package order defines the priced order model shared by the parser, the
// session state, persistence and presentation.
package order

// PaymentType is the payment method of a whole order.
type PaymentType string

const (
	PaymentUnspecified PaymentType = "unspecified"
	PaymentCash        PaymentType = "cash"
	PaymentCashless    PaymentType = "cashless"
)

// PaymentFromCode maps the model's integer payment code: 0 is cash, 1 is
// cashless, anything else is unspecified.
func PaymentFromCode(code int) PaymentType {
	switch code {
	case 0:
		return PaymentCash
	case 1:
		return PaymentCashless
	default:
		return PaymentUnspecified
	}
}

// ParsePaymentType converts a stored value back to a PaymentType. Unknown
// values map to PaymentUnspecified.
func ParsePaymentType(s string) PaymentType {
	switch PaymentType(s) {
	case PaymentCash, PaymentCashless:
		return PaymentType(s)
	default:
		return PaymentUnspecified
	}
}

// Label is the Russian display name of the payment type.
func (p PaymentType) Label() string {
	switch p {
	case PaymentCash:
		return "Наличный"
	case PaymentCashless:
		return "Безналичный"
	default:
		return "Не указан"
	}
}

// Addon is a modifier attached to a line with its resolved price.
type Addon struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// LineItem is one purchasable unit. Quantities are expanded into repeated
// lines, so Quantity is 1 for every line the parser produces.
type LineItem struct {
	ItemName  string
	Quantity  int
	BasePrice int
	Addons    []Addon
	Payment   PaymentType
}

// AddonTotal is the sum of addon prices of one unit.
func (l LineItem) AddonTotal() int {
	sum := 0
	for _, a := range l.Addons {
		sum += a.Price
	}
	return sum
}

// RowTotal is (BasePrice + AddonTotal) * Quantity.
func (l LineItem) RowTotal() int {
	return (l.BasePrice + l.AddonTotal()) * l.Quantity
}

// AddonNames returns the addon names in order.
func (l LineItem) AddonNames() []string {
	out := make([]string, len(l.Addons))
	for i, a := range l.Addons {
		out[i] = a.Name
	}
	return out
}

// Order is a normalized, priced order proposal.
type Order struct {
	Lines   []LineItem
	Payment PaymentType

	// Dropped lists item names the model produced that are not on the menu.
	Dropped []string
}

// Total sums RowTotal over all lines.
func (o *Order) Total() int {
	return Total(o.Lines)
}

// Total sums RowTotal over lines.
func Total(lines []LineItem) int {
	sum := 0
	for _, l := range lines {
		sum += l.RowTotal()
	}
	return sum
}
