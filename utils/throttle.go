package utils

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between consecutive requests.
type Throttle struct {
	interval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewThrottle creates a Throttle allowing one request per intervalMs.
// A non-positive interval disables waiting.
func NewThrottle(intervalMs int) *Throttle {
	return &Throttle{interval: time.Duration(intervalMs) * time.Millisecond}
}

// Wait blocks until the minimum interval since the previous call has
// elapsed, or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval > 0 && !t.lastRequest.IsZero() {
		if wait := t.interval - time.Since(t.lastRequest); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.lastRequest = time.Now()
	return nil
}
