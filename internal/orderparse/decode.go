package orderparse

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RawItem is one item entry as the model wrote it, before menu validation.
type RawItem struct {
	// Name is empty when the entry had no usable name.
	Name string

	// Quantity is the parsed quantity. Unparseable values become 1; zero and
	// negative values are kept here and floored during normalization.
	Quantity int

	Addons []string
}

// RawOrder is the model's answer after JSON decoding and homoglyph repair.
type RawOrder struct {
	Items []RawItem

	// PaymentCode is -1, 0 or 1. Anything else in the reply becomes -1.
	PaymentCode int
}

// Field spellings accepted from the model, in lookup order.
var (
	itemsKeys    = []string{"it", "items"}
	nameKeys     = []string{"n", "name", "item_name"}
	quantityKeys = []string{"q", "qty", "quantity"}
	addonKeys    = []string{"a", "addons"}
	paymentKeys  = []string{"pay", "payment"}
)

// DecodeReply parses JSON text in the reply schema into a RawOrder. A
// top-level array is taken as the item list with unspecified payment. It also
// reads hand-written reference answers.
func DecodeReply(raw string) (RawOrder, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return RawOrder{}, &MalformedReplyError{Reason: ReasonInvalidJSON, Raw: raw, Err: err}
	}
	v = RepairHomoglyphs(v)

	out := RawOrder{PaymentCode: -1}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if list, ok := lookup(t, itemsKeys).([]any); ok {
			items = list
		}
		out.PaymentCode = paymentCode(lookup(t, paymentKeys))
	default:
		return RawOrder{}, &MalformedReplyError{Reason: ReasonInvalidJSON, Raw: raw}
	}

	for _, entry := range items {
		switch e := entry.(type) {
		case map[string]any:
			name, _ := lookup(e, nameKeys).(string)
			out.Items = append(out.Items, RawItem{
				Name:     name,
				Quantity: quantity(lookup(e, quantityKeys)),
				Addons:   addonNames(lookup(e, addonKeys)),
			})
		case string:
			out.Items = append(out.Items, RawItem{Name: e, Quantity: 1})
		}
	}
	return out, nil
}

func lookup(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// number converts a JSON number or numeric string to a float64.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// intValue is number truncated to an int.
func intValue(v any) (int, bool) {
	f, ok := number(v)
	if !ok {
		return 0, false
	}
	return clampInt(f), true
}

func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func quantity(v any) int {
	if q, ok := intValue(v); ok {
		return q
	}
	return 1
}

// paymentCode maps anything but an exact 0 or 1 to -1. Fractions are not
// truncated: 0.9 is not cash.
func paymentCode(v any) int {
	f, ok := number(v)
	switch {
	case ok && f == 0:
		return 0
	case ok && f == 1:
		return 1
	}
	return -1
}

// addonNames accepts a list of strings, a single string, or an object whose
// values are the addon names (taken in key order).
func addonNames(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, a := range t {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if s, ok := t[k].(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// compactJSON re-encodes a JSON text without insignificant whitespace, for logs.
func compactJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
