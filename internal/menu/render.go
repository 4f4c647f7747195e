package menu

import (
	"fmt"
	"strings"
)

// RenderText formats the catalog for display in chat: one item per line with
// its price, then the addons, with free addons marked as such.
func (c *Catalog) RenderText() string {
	var b strings.Builder
	b.WriteString("📋 Меню:\n")
	for _, e := range c.items {
		fmt.Fprintf(&b, "• %s: %d ₽\n", e.Name, e.Price)
	}
	if len(c.addons) > 0 {
		b.WriteString("\n➕ Добавки:\n")
		for _, e := range c.addons {
			if e.Price == 0 {
				fmt.Fprintf(&b, "• %s: бесплатно\n", e.Name)
				continue
			}
			fmt.Fprintf(&b, "• %s: %d ₽\n", e.Name, e.Price)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
