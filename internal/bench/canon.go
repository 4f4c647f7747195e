package bench

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/orderbot/internal/orderparse"
)

// Item is one canonical order line.
type Item struct {
	Name   string   `json:"n"`
	Qty    int      `json:"q"`
	Addons []string `json:"a"`
}

// Canonical is an order reduced to the fields the benchmark scores, in a
// stable order so that two equivalent answers compare equal.
type Canonical struct {
	Items   []Item `json:"it"`
	Payment int    `json:"pay"`
}

// Canonicalize trims names, floors quantities at 1, sorts addons and items
// case-insensitively and maps payment codes other than 0 and 1 to -1.
func Canonicalize(raw orderparse.RawOrder) Canonical {
	c := Canonical{Payment: raw.PaymentCode, Items: make([]Item, 0, len(raw.Items))}
	if c.Payment != 0 && c.Payment != 1 {
		c.Payment = -1
	}
	for _, it := range raw.Items {
		addons := make([]string, 0, len(it.Addons))
		for _, a := range it.Addons {
			if a = strings.TrimSpace(a); a != "" {
				addons = append(addons, a)
			}
		}
		slices.SortFunc(addons, func(a, b string) int {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		})
		c.Items = append(c.Items, Item{
			Name:   strings.TrimSpace(it.Name),
			Qty:    max(it.Quantity, 1),
			Addons: addons,
		})
	}
	slices.SortFunc(c.Items, compareItems)
	return c
}

func compareItems(a, b Item) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if a.Qty != b.Qty {
		return a.Qty - b.Qty
	}
	return slices.Compare(a.Addons, b.Addons)
}

func (it Item) equal(o Item) bool {
	return it.Name == o.Name && it.Qty == o.Qty && slices.Equal(it.Addons, o.Addons)
}

func (it Item) String() string {
	return fmt.Sprintf("{%s x%d %v}", it.Name, it.Qty, it.Addons)
}

// Diff describes how got differs from want. It is empty when they match.
// Only the first differing item position is reported.
func Diff(want, got Canonical) string {
	var diffs []string
	if want.Payment != got.Payment {
		diffs = append(diffs, fmt.Sprintf("pay: expected %d, got %d", want.Payment, got.Payment))
	}
	if len(want.Items) != len(got.Items) {
		diffs = append(diffs, fmt.Sprintf("len(it): expected %d, got %d", len(want.Items), len(got.Items)))
	}
	common := min(len(want.Items), len(got.Items))
	for i := range common {
		if !want.Items[i].equal(got.Items[i]) {
			diffs = append(diffs, fmt.Sprintf("it[%d]: expected %s, got %s", i, want.Items[i], got.Items[i]))
			break
		}
	}
	if len(got.Items) > common {
		diffs = append(diffs, fmt.Sprintf("extra items: %v", got.Items[common:]))
	}
	if len(want.Items) > common {
		diffs = append(diffs, fmt.Sprintf("missing items: %v", want.Items[common:]))
	}
	return strings.Join(diffs, "; ")
}
