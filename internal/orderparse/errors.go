package orderparse

import (
	"fmt"
	"strings"
)

// Reasons carried by a MalformedReplyError.
const (
	ReasonNoJSON      = "no JSON value found"
	ReasonUnbalanced  = "unbalanced or truncated JSON"
	ReasonInvalidJSON = "invalid JSON"
)

// MalformedReplyError reports that the model reply did not contain a usable
// JSON value. Raw holds the offending text for logs only; it never appears in
// Error() so it cannot leak into user-facing messages.
type MalformedReplyError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orderparse: malformed model reply: %s: %v", e.Reason, e.Err)
	}
	return "orderparse: malformed model reply: " + e.Reason
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

// NoRecognizedItemsError reports that no item in the reply matched the menu.
type NoRecognizedItemsError struct {
	// Dropped lists the item names the model produced.
	Dropped []string

	// Suggestions lists close menu names for the dropped ones, deduplicated.
	Suggestions []string
}

func (e *NoRecognizedItemsError) Error() string {
	if len(e.Dropped) == 0 {
		return "orderparse: no recognized items"
	}
	return "orderparse: no recognized items among " + strings.Join(quoteAll(e.Dropped), ", ")
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// QuantityTooLargeError reports an entry whose quantity exceeds MaxQuantity.
// The order is rejected instead of being shortened.
type QuantityTooLargeError struct {
	Item      string
	Requested int
	Max       int
}

func (e *QuantityTooLargeError) Error() string {
	return fmt.Sprintf("orderparse: quantity %d of %q exceeds %d", e.Requested, e.Item, e.Max)
}
