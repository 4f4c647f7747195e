package resilience

import (
	"context"

	"github.com/MrWong99/orderbot/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Transcriber] over several backends,
// tried in registration order.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates an empty [TranscriberFallback].
func NewTranscriberFallback(cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{group: NewFallbackGroup[stt.Transcriber](cfg)}
}

// Add registers a backend.
func (f *TranscriberFallback) Add(name string, t stt.Transcriber) {
	f.group.Add(name, t)
}

// Len returns the number of registered backends.
func (f *TranscriberFallback) Len() int { return f.group.Len() }

// Transcribe implements [stt.Transcriber]. An empty transcript counts as
// success; only errors move on to the next backend.
func (f *TranscriberFallback) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, audio)
	})
}
