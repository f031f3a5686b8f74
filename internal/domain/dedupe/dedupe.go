// Package dedupe tracks keys already handled within a run.
//
// Discovery uses it to keep the first occurrence of each URL, and the
// reconciler uses it to guarantee at most one monitor creation per URL.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen keys to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so it can be handled again. Used when the work
	// guarded by SeenAndRecord failed and the caller wants to allow a retry.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a mutex-guarded set.
type inMemoryDeduper struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	normalize func(string) string
	capacity  int
	size      atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		normalize: identity,
		capacity:  64,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{}, d.capacity)
	return d
}

func identity(s string) string { return s }

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	key = d.normalize(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord removes key from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	key = d.normalize(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
