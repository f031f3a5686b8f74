package service

import (
	"time"

	"github.com/okian/endpointeval/internal/domain/batch"
	"github.com/okian/endpointeval/internal/domain/clock"
	"github.com/okian/endpointeval/internal/domain/execution"
	"github.com/okian/endpointeval/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPlatform sets the monitoring platform client.
func WithPlatform(p Platform) Option {
	return func(s *Service) {
		if p != nil {
			s.platform = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMonitorTag sets the tag that marks monitors owned by the evaluator.
func WithMonitorTag(tag string) Option {
	return func(s *Service) {
		if tag != "" {
			s.tag = tag
		}
	}
}

// WithLocations sets the locations new monitors run from.
func WithLocations(locations []string) Option {
	return func(s *Service) {
		s.locations = append([]string(nil), locations...)
	}
}

// WithCreationSettleDelay sets the wait after creating monitors and before
// the first batch trigger. Zero skips the wait.
func WithCreationSettleDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

// WithBatchIntervals sets the batch poll, sync retry and RUNNING intervals.
// Non-positive values keep the defaults.
func WithBatchIntervals(poll, syncRetry, running time.Duration) Option {
	return func(s *Service) {
		s.batchOpts = append(s.batchOpts,
			batch.WithPollInterval(poll),
			batch.WithSyncRetryDelay(syncRetry),
			batch.WithRunningInterval(running),
		)
	}
}

// WithBatchLimits bounds sync retries and batch polls. Zero means unbounded.
func WithBatchLimits(maxSyncRetries, maxPolls int) Option {
	return func(s *Service) {
		s.batchOpts = append(s.batchOpts,
			batch.WithMaxSyncRetries(maxSyncRetries),
			batch.WithMaxPolls(maxPolls),
		)
	}
}

// WithExecutionPolling sets the execution poll interval and attempt budget.
func WithExecutionPolling(interval time.Duration, maxAttempts int) Option {
	return func(s *Service) {
		s.pollOpts = append(s.pollOpts,
			execution.WithInterval(interval),
			execution.WithMaxAttempts(maxAttempts),
		)
	}
}

// WithPollConcurrency sets how many executions are polled at once. One
// keeps the sequential order of the platform calls.
func WithPollConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSleeper replaces every wait of the run. Tests use it to skip delays.
func WithSleeper(sl clock.Sleeper) Option {
	return func(s *Service) {
		if sl != nil {
			s.sleep = sl
		}
	}
}

// WithClock replaces the wall clock used for timestamps and certificate
// expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHistory archives every run and reads previous scores from h.
func WithHistory(h History) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithRunID replaces the run ID generator.
func WithRunID(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
