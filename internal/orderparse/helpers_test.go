package orderparse

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
)

func testMenu(t *testing.T) *menu.Catalog {
	t.Helper()
	cat, err := menu.New(
		[]menu.Entry{
			{Name: "Американо", Price: 90},
			{Name: "Капучино", Price: 140},
			{Name: "Латте", Price: 150},
			{Name: "Раф лаванда", Price: 190},
			{Name: "Круассан", Price: 120},
		},
		[]menu.Entry{
			{Name: "Сироп", Price: 30},
			{Name: "Овсяное молоко", Price: 50},
			{Name: "Корица", Price: 0},
		},
	)
	if err != nil {
		t.Fatalf("menu.New: %v", err)
	}
	return cat
}

// bufLogger returns a logger writing text records to buf.
func bufLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeCompleter returns a canned reply and records the messages it was sent.
type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msgs)
	return f.reply, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sprintf(format, s string) string {
	return fmt.Sprintf(format, s)
}
