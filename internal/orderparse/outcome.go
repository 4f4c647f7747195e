package orderparse

import "github.com/MrWong99/orderbot/internal/order"

// Kind classifies the result of interpreting one utterance.
type Kind int

const (
	// KindOK means a priced order was produced.
	KindOK Kind = iota

	// KindRejected means the utterance could not be turned into an order for
	// a reason the user can fix by rephrasing.
	KindRejected

	// KindFault means infrastructure failed (model unreachable, unusable
	// reply). Rephrasing will not help.
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRejected:
		return "rejected"
	case KindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Rejection reasons.
const (
	ReasonEmpty    = "empty"
	ReasonNoItems  = "no_items"
	ReasonTooLarge = "quantity_too_large"
)

// Outcome is the tagged result of [Parser.Interpret]. Exactly one of Order
// (KindOK), Reason (KindRejected) or Err (KindFault) is meaningful; Err is also
// set for KindRejected when a typed error carries details.
type Outcome struct {
	Kind   Kind
	Order  *order.Order
	Reason string
	Err    error
}

// Ok wraps a successfully normalized order.
func Ok(o *order.Order) Outcome { return Outcome{Kind: KindOK, Order: o} }

// Rejected builds a rejection with an optional detail error.
func Rejected(reason string, err error) Outcome {
	return Outcome{Kind: KindRejected, Reason: reason, Err: err}
}

// Fault wraps an infrastructure error.
func Fault(err error) Outcome { return Outcome{Kind: KindFault, Err: err} }
