// Package execution waits for execution reports to become available.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/endpointeval/internal/domain/clock"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// Defaults for the polling cadence.
const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 90
)

// ReportFetcher fetches the full report of an execution.
type ReportFetcher interface {
	FullReport(ctx context.Context, executionID string) (model.ExecutionReport, error)
}

// Option applies a configuration option to the Poller.
type Option func(*Poller)

// WithInterval sets the wait before every fetch.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts bounds fetches per execution. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n >= 0 {
			p.maxAttempts = n
		}
	}
}

// WithSleeper replaces the wait primitive.
func WithSleeper(s clock.Sleeper) Option {
	return func(p *Poller) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// Poller fetches an execution report until its data has been retrieved.
// It is safe for concurrent use by several poll workers.
type Poller struct {
	fetcher     ReportFetcher
	interval    time.Duration
	maxAttempts int
	sleep       clock.Sleeper
	log         logger.Logger
}

// NewPoller creates a poller with configuration options.
func NewPoller(fetcher ReportFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		sleep:       clock.Sleep,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollUntilReady waits, fetches, and repeats until the report stage is
// terminal. The content status is returned as-is; judging it is the
// scoring engine's job.
func (p *Poller) PollUntilReady(ctx context.Context, executionID string) (model.ExecutionReport, error) {
	for attempt := 1; ; attempt++ {
		if p.maxAttempts > 0 && attempt > p.maxAttempts {
			metrics.RecordError("execution", "timeout")
			return model.ExecutionReport{}, fmt.Errorf("%w: %s after %d attempts",
				ErrExecutionTimeout, executionID, p.maxAttempts)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return model.ExecutionReport{}, err
		}

		report, err := p.fetcher.FullReport(ctx, executionID)
		if err != nil {
			metrics.RecordError("execution", "fetch")
			return model.ExecutionReport{}, fmt.Errorf("%w %s: %w", ErrFetchReport, executionID, err)
		}
		metrics.RecordExecutionPoll(string(report.Stage))

		if report.Stage.IsTerminal() {
			if report.ExecutionID == "" {
				report.ExecutionID = executionID
			}
			p.log.Info(ctx, "execution report ready",
				logger.String("execution_id", executionID),
				logger.String("status", report.Status),
				logger.Int("steps", len(report.Steps)),
				logger.Int("attempts", attempt),
			)
			return report, nil
		}

		p.log.Debug(ctx, "execution not ready",
			logger.String("execution_id", executionID),
			logger.String("stage", string(report.Stage)),
			logger.Int("attempt", attempt),
		)
	}
}
