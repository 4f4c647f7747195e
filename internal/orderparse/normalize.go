package orderparse

import (
	"log/slog"
	"strings"

	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/order"
)

// MaxQuantity bounds the quantity of a single entry. An entry above it
// rejects the whole order with a *QuantityTooLargeError.
const MaxQuantity = 1000

// Normalize validates a decoded reply against the menu and prices it.
//
// Entries whose name is not exactly a menu item are dropped with a warning. A
// name that misses is looked up once more with all Latin twins folded to
// Cyrillic, so "Caxap" still finds "Сахар". Quantities below 1 become 1. Addons are trimmed, empty ones discarded and
// unknown ones accepted at price 0. An entry with quantity N yields N lines of
// quantity 1, each with its own copy of the addons. The payment method applies
// to every line.
//
// When no entry survives, Normalize returns a *NoRecognizedItemsError. A
// quantity above MaxQuantity fails the whole order with a
// *QuantityTooLargeError.
func Normalize(raw RawOrder, cat *menu.Catalog, log *slog.Logger) (*order.Order, error) {
	if log == nil {
		log = slog.Default()
	}
	out := &order.Order{Payment: order.PaymentFromCode(raw.PaymentCode)}

	for _, item := range raw.Items {
		name, price, ok := resolve(cat.Price, strings.TrimSpace(item.Name))
		if !ok {
			if name == "" {
				log.Warn("dropping item without a name")
				continue
			}
			suggestion, _ := cat.Suggest(name)
			log.Warn("dropping item not on menu", "item", name, "suggestion", suggestion)
			out.Dropped = append(out.Dropped, name)
			continue
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if qty > MaxQuantity {
			return nil, &QuantityTooLargeError{Item: name, Requested: qty, Max: MaxQuantity}
		}

		addons := resolveAddons(item.Addons, cat)
		for range qty {
			out.Lines = append(out.Lines, order.LineItem{
				ItemName:  name,
				Quantity:  1,
				BasePrice: price,
				Addons:    append([]order.Addon(nil), addons...),
				Payment:   out.Payment,
			})
		}
	}

	if len(out.Lines) == 0 {
		return nil, noRecognizedItems(out.Dropped, cat)
	}
	return out, nil
}

func resolveAddons(names []string, cat *menu.Catalog) []order.Addon {
	var addons []order.Addon
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		n, price, _ := resolve(cat.AddonPrice, n)
		addons = append(addons, order.Addon{Name: n, Price: price})
	}
	return addons
}

func noRecognizedItems(dropped []string, cat *menu.Catalog) *NoRecognizedItemsError {
	err := &NoRecognizedItemsError{}
	seen := make(map[string]bool)
	for _, name := range dropped {
		err.Dropped = append(err.Dropped, name)
		if s, ok := cat.Suggest(name); ok && !seen[s] {
			seen[s] = true
			err.Suggestions = append(err.Suggestions, s)
		}
	}
	return err
}

// resolve looks name up with find, falling back to its folded spelling. On a
// miss the name is returned as written.
func resolve(find func(string) (int, bool), name string) (string, int, bool) {
	if price, ok := find(name); ok {
		return name, price, true
	}
	if folded := foldLatinTwins(name); folded != name {
		if price, ok := find(folded); ok {
			return folded, price, true
		}
	}
	return name, 0, false
}
