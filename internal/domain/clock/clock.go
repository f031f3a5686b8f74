// Package clock holds the waiting primitives shared by the polling loops.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with the context error on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// Recorder is a Sleeper that returns immediately and remembers every wait.
// Tests use it to assert on the polling cadence. Sleep may be called from
// several goroutines; read Waits once they are done.
type Recorder struct {
	mu    sync.Mutex
	Waits []time.Duration
}

// Sleep records d and honors cancellation without blocking.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.Waits = append(r.Waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Total returns the sum of recorded waits.
func (r *Recorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, w := range r.Waits {
		total += w
	}
	return total
}
