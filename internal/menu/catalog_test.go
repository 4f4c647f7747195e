package menu

import (
	"errors"
	"strings"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("testdata/menu.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		items   []Entry
		addons  []Entry
		wantErr string
	}{
		{name: "empty main", wantErr: "no main items"},
		{name: "negative price", items: []Entry{{"Латте", -1}}, wantErr: "negative price"},
		{name: "blank name", items: []Entry{{" ", 10}}, wantErr: "empty name"},
		{name: "duplicate item", items: []Entry{{"Латте", 1}, {"Латте", 2}}, wantErr: "duplicate"},
		{name: "duplicate addon", items: []Entry{{"Латте", 1}}, addons: []Entry{{"Сироп", 1}, {"Сироп", 1}}, wantErr: "duplicate"},
		{name: "valid", items: []Entry{{"Латте", 150}}, addons: []Entry{{"Корица", 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.items, tt.addons)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_EmptyMenuSentinel(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, []Entry{{"Сироп", 30}}); !errors.Is(err, ErrEmptyMenu) {
		t.Fatalf("err = %v, want ErrEmptyMenu", err)
	}
}

func TestCatalog_Lookups(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	if p, ok := c.Price("Американо"); !ok || p != 90 {
		t.Errorf("Price(Американо) = %d, %v; want 90, true", p, ok)
	}
	if _, ok := c.Price("американо"); ok {
		t.Error("lookups must be case-sensitive")
	}
	if _, ok := c.Price("Сироп"); ok {
		t.Error("addon must not resolve as main item")
	}
	if p, ok := c.AddonPrice("Корица"); !ok || p != 0 {
		t.Errorf("AddonPrice(Корица) = %d, %v; want 0, true", p, ok)
	}
	if _, ok := c.AddonPrice("Мёд"); ok {
		t.Error("unknown addon must not resolve")
	}
}

func TestCatalog_OrderPreserved(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	want := []string{"Американо", "Капучино", "Латте", "Раф лаванда", "Круассан"}
	got := c.Items()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Items() = %v, want %v", got, want)
	}
	if got := c.Addons(); strings.Join(got, "|") != "Сироп|Овсяное молоко|Корица" {
		t.Fatalf("Addons() = %v", got)
	}
}

func TestCatalog_ReturnedSlicesAreCopies(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	items := c.Items()
	items[0] = "mutated"
	entries := c.ItemEntries()
	entries[0].Price = 1

	if c.Items()[0] != "Американо" {
		t.Fatal("Items() exposed internal storage")
	}
	if p, _ := c.Price("Американо"); p != 90 {
		t.Fatal("ItemEntries() exposed internal storage")
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)
	text := c.RenderText()

	for _, want := range []string{"• Американо: 90 ₽", "• Раф лаванда: 190 ₽", "• Сироп: 30 ₽", "• Корица: бесплатно"} {
		if !strings.Contains(text, want) {
			t.Errorf("RenderText() missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "Американо") > strings.Index(text, "Круассан") {
		t.Error("RenderText() must keep menu order")
	}
}

func TestRenderText_NoAddons(t *testing.T) {
	t.Parallel()
	c, err := New([]Entry{{"Латте", 150}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if strings.Contains(c.RenderText(), "Добавки") {
		t.Error("addon header rendered for empty addon list")
	}
}
