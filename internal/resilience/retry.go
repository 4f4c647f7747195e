package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retry is a bounded retry policy: at most MaxAttempts calls, a fixed Delay
// between them, and only while Retryable classifies the error as transient.
type Retry struct {
	// MaxAttempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Retryable reports whether err is worth another attempt. A nil
	// predicate retries nothing.
	Retryable func(err error) bool

	// Logger receives a Warn record per retried failure. Default: slog.Default().
	Logger *slog.Logger

	// Name labels log records.
	Name string
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The error of the last attempt is returned, wrapped with the
// attempt count when the budget ran out.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(r.MaxAttempts, 1)
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if r.Retryable == nil || !r.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		log.Warn("transient failure, retrying",
			"operation", r.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err)
		if r.Delay > 0 {
			t := time.NewTimer(r.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w (after %d attempts: %w)", ctx.Err(), attempt, err)
			case <-t.C:
			}
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
