package batch

import (
	"time"

	"github.com/okian/endpointeval/internal/domain/clock"
	"github.com/okian/endpointeval/pkg/logger"
)

// Default cadence and limits.
const (
	DefaultPollInterval    = 30 * time.Second
	DefaultSyncRetryDelay  = 30 * time.Second
	DefaultRunningInterval = 10 * time.Second
	DefaultMaxSyncRetries  = 20
	DefaultMaxPolls        = 360
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithPollInterval sets the wait between a retrigger and the next poll.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithSyncRetryDelay sets the wait before retriggering a synchronizing batch.
func WithSyncRetryDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.syncRetryDelay = d
		}
	}
}

// WithRunningInterval sets the wait between polls of a RUNNING batch.
func WithRunningInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.runningInterval = d
		}
	}
}

// WithMaxSyncRetries bounds retriggers. Zero means unbounded.
func WithMaxSyncRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxSyncRetries = n
		}
	}
}

// WithMaxPolls bounds status polls. Zero means unbounded.
func WithMaxPolls(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxPolls = n
		}
	}
}

// WithSleeper replaces the wait primitive.
func WithSleeper(s clock.Sleeper) Option {
	return func(r *Runner) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}
