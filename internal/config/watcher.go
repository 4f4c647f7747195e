package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// fingerprint identifies one version of the config file on disk. The sum
// covers the raw bytes, so changing only an environment variable that the
// file references is not picked up.
type fingerprint struct {
	modified time.Time
	sum      [sha256.Size]byte
}

// Watcher polls the config file and hands every valid new version to its
// callback together with the one it replaces. Edits that fail to parse or
// validate are logged and skipped.
type Watcher struct {
	path     string
	every    time.Duration
	onChange func(old, next *Config)
	log      *slog.Logger

	current atomic.Pointer[Config]
	seen    fingerprint // only touched by the polling goroutine after NewWatcher

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. Default: 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.every = d
		}
	}
}

// WithWatcherLogger sets the logger. Default: slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher reads path once so [Watcher.Current] is usable right away.
// Polling begins with [Watcher.Run].
func NewWatcher(path string, onChange func(old, next *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		every:    5 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current.Store(cfg)
	w.seen = fp
	return w, nil
}

// Current returns the last valid config read from disk.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run polls until ctx ends or Stop is called. It always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		case <-t.C:
			w.poll()
		}
	}
}

// Stop ends Run. It may be called more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config file unreadable", "path", w.path, "err", err)
		return
	}
	if info.ModTime().Equal(w.seen.modified) {
		return
	}

	cfg, fp, err := w.read()
	if err != nil {
		w.log.Warn("config edit rejected, keeping the running config", "path", w.path, "err", err)
		return
	}
	changed := fp.sum != w.seen.sum
	w.seen = fp
	if !changed {
		return
	}

	old := w.current.Swap(cfg)
	w.log.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) read() (*Config, fingerprint, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{modified: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
