package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WindowLimiter is a per-source sliding-window call gate: at most maxCalls
// recorded timestamps within the window. Acquire never rejects on quota; it
// suspends the caller until the oldest recorded call ages out of the window.
//
// One instance per source adapter. Not safe for concurrent callers sharing
// one instance: each adapter runs a single logical request stream.
type WindowLimiter struct {
	maxCalls int
	window   time.Duration
	calls    []time.Time
	now      func() time.Time
}

// NewWindowLimiter creates a limiter allowing maxCalls per window.
func NewWindowLimiter(maxCalls int, window time.Duration) *WindowLimiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &WindowLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// Acquire records a call, first discarding timestamps older than the window.
// If the retained count is already at maxCalls, the caller sleeps until the
// window frees before the call is recorded. The only error it can return is
// the context's.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	now := l.now()

	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if len(l.calls) >= l.maxCalls {
		// calls is in append order, so calls[0] is the oldest retained.
		wait := l.window - now.Sub(l.calls[0])
		if wait > 0 {
			zap.L().Debug("rate limit reached, waiting",
				zap.Duration("wait", wait),
				zap.Int("max_calls", l.maxCalls),
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			now = l.now()
		}
	}

	l.calls = append(l.calls, now)
	return nil
}
