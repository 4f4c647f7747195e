package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/orderbot/internal/config"
)

const (
	infoConfig    = minimalYAML + "server:\n  log_level: info\n"
	debugConfig   = minimalYAML + "server:\n  log_level: debug\ndiscord:\n  order_role_id: \"barista\"\n"
	brokenConfig  = "server:\n  log_level: bananas\n"
	pollInterval  = 20 * time.Millisecond
	settleTimeout = 2 * time.Second
)

// reloads records every callback invocation of a Watcher.
type reloads struct {
	mu    sync.Mutex
	diffs []config.ConfigDiff
}

func (r *reloads) record(old, next *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diffs = append(r.diffs, config.Diff(old, next))
}

func (r *reloads) snapshot() []config.ConfigDiff {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]config.ConfigDiff(nil), r.diffs...)
}

// watch writes content to a fresh config file and runs a Watcher on it until
// the test ends.
func watch(t *testing.T, content string) (string, *config.Watcher, *reloads) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, content, time.Now().Add(-time.Minute))

	r := &reloads{}
	w, err := config.NewWatcher(path, r.record, config.WithInterval(pollInterval))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return path, w, r
}

// rewrite replaces the file and pins its mtime so consecutive writes are
// never mistaken for an untouched file on coarse-grained filesystems.
func rewrite(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestWatcher_ReloadsValidEdit(t *testing.T) {
	t.Parallel()
	path, w, r := watch(t, infoConfig)

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Fatalf("initial log level = %q, want %q", got, config.LogInfo)
	}

	rewrite(t, path, debugConfig, time.Now())
	deadline := time.Now().Add(settleTimeout)
	for len(r.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no reload observed")
		}
		time.Sleep(pollInterval)
	}

	d := r.snapshot()[0]
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level change to debug", d)
	}
	if !d.AccessChanged {
		t.Errorf("diff = %+v, want access change", d)
	}
	if got := w.Current().Discord.OrderRoleID; got != "barista" {
		t.Errorf("Current().Discord.OrderRoleID = %q, want %q", got, "barista")
	}
}

func TestWatcher_IgnoresEdits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid config", content: brokenConfig},
		{name: "same bytes, new mtime", content: infoConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path, w, r := watch(t, infoConfig)

			rewrite(t, path, tt.content, time.Now())
			time.Sleep(10 * pollInterval)

			if n := len(r.snapshot()); n != 0 {
				t.Errorf("callback fired %d times, want 0", n)
			}
			if got := w.Current().Server.LogLevel; got != config.LogInfo {
				t.Errorf("Current().Server.LogLevel = %q, want %q", got, config.LogInfo)
			}
		})
	}
}

func TestNewWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher() error = nil, want missing file error")
	}
}

func TestWatcher_Stop(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, infoConfig, time.Now())

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
	if err := w.Run(context.Background()); err != nil {
		t.Errorf("Run() after Stop = %v, want nil", err)
	}
}
