package order

import "strings"

// Group is a run of identical lines, used to display "Латте ×2" instead of
// two rows. Storage and totals always work on the individual lines.
type Group struct {
	Line  LineItem
	Count int
}

// Subtotal is the total over every line in the group.
func (g Group) Subtotal() int { return g.Line.RowTotal() * g.Count }

// GroupLines merges identical lines (same name, price and addons), keeping the
// order of first appearance.
func GroupLines(lines []LineItem) []Group {
	var groups []Group
	idx := make(map[string]int)
	for _, l := range lines {
		k := groupKey(l)
		if i, ok := idx[k]; ok {
			groups[i].Count++
			continue
		}
		idx[k] = len(groups)
		groups = append(groups, Group{Line: l, Count: 1})
	}
	return groups
}

func groupKey(l LineItem) string {
	var b strings.Builder
	b.WriteString(l.ItemName)
	b.WriteByte(0)
	for _, a := range l.Addons {
		b.WriteString(a.Name)
		b.WriteByte(1)
	}
	return b.String()
}
