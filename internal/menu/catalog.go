// Package menu holds the café menu: purchasable items and addons with their
// prices in the smallest currency unit.
//
// A [Catalog] is built once at startup and never mutated, so it is shared
// read-only by every concurrent request without locking. Name lookups are
// exact and case-sensitive; fuzzy matching is only used to suggest
// alternatives to the user, never to accept an order line.
package menu

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyMenu is returned when a catalog would have no main items.
var ErrEmptyMenu = errors.New("menu: no main items")

// Entry is one named price.
type Entry struct {
	Name  string
	Price int
}

// Catalog is the immutable menu. Construct with [New] or [Load].
type Catalog struct {
	items  []Entry
	addons []Entry

	itemIdx  map[string]int
	addonIdx map[string]int
}

// New builds a Catalog from items and addons in display order. Items must be
// non-empty; names must be non-empty and unique within their list; prices must
// be non-negative.
func New(items, addons []Entry) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyMenu
	}
	c := &Catalog{
		items:    append([]Entry(nil), items...),
		addons:   append([]Entry(nil), addons...),
		itemIdx:  make(map[string]int, len(items)),
		addonIdx: make(map[string]int, len(addons)),
	}
	if err := index(c.items, c.itemIdx, "main"); err != nil {
		return nil, err
	}
	if err := index(c.addons, c.addonIdx, "addons"); err != nil {
		return nil, err
	}
	return c, nil
}

func index(entries []Entry, idx map[string]int, section string) error {
	var errs []error
	for i, e := range entries {
		switch {
		case strings.TrimSpace(e.Name) == "":
			errs = append(errs, fmt.Errorf("menu: %s[%d]: empty name", section, i))
		case e.Price < 0:
			errs = append(errs, fmt.Errorf("menu: %s %q: negative price %d", section, e.Name, e.Price))
		}
		if _, dup := idx[e.Name]; dup {
			errs = append(errs, fmt.Errorf("menu: %s %q: duplicate name", section, e.Name))
			continue
		}
		idx[e.Name] = i
	}
	return errors.Join(errs...)
}

// Price returns the price of the main item with exactly this name.
func (c *Catalog) Price(name string) (int, bool) {
	i, ok := c.itemIdx[name]
	if !ok {
		return 0, false
	}
	return c.items[i].Price, true
}

// AddonPrice returns the price of the addon with exactly this name.
func (c *Catalog) AddonPrice(name string) (int, bool) {
	i, ok := c.addonIdx[name]
	if !ok {
		return 0, false
	}
	return c.addons[i].Price, true
}

// Items returns the main item names in menu order.
func (c *Catalog) Items() []string { return names(c.items) }

// Addons returns the addon names in menu order.
func (c *Catalog) Addons() []string { return names(c.addons) }

// ItemEntries returns a copy of the main items in menu order.
func (c *Catalog) ItemEntries() []Entry { return append([]Entry(nil), c.items...) }

// AddonEntries returns a copy of the addons in menu order.
func (c *Catalog) AddonEntries() []Entry { return append([]Entry(nil), c.addons...) }

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
