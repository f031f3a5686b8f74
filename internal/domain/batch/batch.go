// Package batch triggers every monitor as one batch and waits until the
// platform has started all executions.
//
// The runner is a small state machine:
//
//	TRIGGERED -> POLLING -> SUCCESS | SYNC_RETRY | RUNNING | FAILED
//
// SYNC_RETRY triggers a fresh batch after a delay, RUNNING keeps polling and
// FAILED aborts the run.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/endpointeval/internal/domain/clock"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// Status is the platform-reported batch status.
type Status string

// Known batch statuses.
const (
	StatusRunning         Status = "RUNNING"
	StatusSuccess         Status = "SUCCESS"
	StatusFailed          Status = "FAILED"
	StatusFailedToExecute Status = "FAILED_TO_EXECUTE"
	StatusNotTriggered    Status = "NOT_TRIGGERED"
)

// Failed reports whether the batch ended in failure.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusFailedToExecute
}

// TriggerResult is the platform answer to a batch trigger.
type TriggerResult struct {
	BatchID   string
	Triggered []model.Triggered
}

// BatchState is one observation of a batch.
type BatchState struct {
	Status        Status
	ProblemsCount int
	Causes        []string
}

// Platform is the remote side the runner talks to.
type Platform interface {
	TriggerBatch(ctx context.Context, monitorIDs []string) (TriggerResult, error)
	GetBatch(ctx context.Context, batchID string) (BatchState, error)
}

// Outcome is the settled batch.
type Outcome struct {
	FinalStatus Status
	BatchID     string
	// Triggered comes from the most recent trigger, so it always belongs
	// to BatchID.
	Triggered []model.Triggered
	Retries   int
	Polls     int
}

// Runner drives the batch state machine.
type Runner struct {
	platform        Platform
	pollInterval    time.Duration
	syncRetryDelay  time.Duration
	runningInterval time.Duration
	maxSyncRetries  int
	maxPolls        int
	sleep           clock.Sleeper
	log             logger.Logger
}

// NewRunner creates a runner with configuration options.
func NewRunner(platform Platform, opts ...Option) *Runner {
	r := &Runner{
		platform:        platform,
		pollInterval:    DefaultPollInterval,
		syncRetryDelay:  DefaultSyncRetryDelay,
		runningInterval: DefaultRunningInterval,
		maxSyncRetries:  DefaultMaxSyncRetries,
		maxPolls:        DefaultMaxPolls,
		sleep:           clock.Sleep,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run triggers one batch covering every endpoint and blocks until it has
// settled. Endpoints must carry monitor IDs.
func (r *Runner) Run(ctx context.Context, endpoints []model.Endpoint) (Outcome, error) {
	ids := model.MonitorIDs(endpoints)
	if len(ids) == 0 {
		return Outcome{}, ErrNoMonitors
	}

	trig, err := r.trigger(ctx, ids)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{BatchID: trig.BatchID, Triggered: trig.Triggered}

	// Once a poll shows zero triggering problems the batch is accepted and
	// only RUNNING or FAILED matter from then on.
	accepted := false
	for {
		if r.maxPolls > 0 && out.Polls >= r.maxPolls {
			metrics.RecordError("batch", "timeout")
			return Outcome{}, fmt.Errorf("%w: batch %s after %d polls", ErrBatchTimeout, out.BatchID, out.Polls)
		}

		state, err := r.platform.GetBatch(ctx, out.BatchID)
		if err != nil {
			metrics.RecordError("batch", "status")
			return Outcome{}, fmt.Errorf("%w %s: %w", ErrBatchStatus, out.BatchID, err)
		}
		out.Polls++
		metrics.RecordBatchPoll(string(state.Status))
		r.log.Debug(ctx, "batch polled",
			logger.String("batch_id", out.BatchID),
			logger.String("status", string(state.Status)),
			logger.Int("problems", state.ProblemsCount),
		)

		if state.Status.Failed() {
			metrics.RecordError("batch", "failed")
			return Outcome{}, fmt.Errorf("%w: batch %s status %s", ErrBatchFailed, out.BatchID, state.Status)
		}

		if !accepted {
			if state.ProblemsCount > 0 || len(state.Causes) > 0 {
				if err := r.syncRetry(ctx, ids, state, &out); err != nil {
					return Outcome{}, err
				}
				continue
			}
			accepted = true
			r.log.Info(ctx, "batch accepted", logger.String("batch_id", out.BatchID))
		}

		if state.Status == StatusRunning {
			if err := r.sleep(ctx, r.runningInterval); err != nil {
				return Outcome{}, err
			}
			continue
		}

		out.FinalStatus = state.Status
		r.log.Info(ctx, "batch settled",
			logger.String("batch_id", out.BatchID),
			logger.String("status", string(out.FinalStatus)),
			logger.Int("retries", out.Retries),
			logger.Int("polls", out.Polls),
		)
		return out, nil
	}
}

// syncRetry handles a poll that reported triggering problems. Only causes
// classified as recoverable lead to a fresh batch.
func (r *Runner) syncRetry(ctx context.Context, ids []string, state BatchState, out *Outcome) error {
	class, cause := classifyAll(state.Causes)
	if len(state.Causes) == 0 {
		class, cause = Fatal, "problems reported without a cause"
	}
	if class == Fatal {
		metrics.RecordError("batch", "triggering_problem")
		return fmt.Errorf("%w: batch %s: %s (all causes: %s)",
			ErrUnhandledTriggeringProblem, out.BatchID, cause, strings.Join(state.Causes, "; "))
	}

	if r.maxSyncRetries > 0 && out.Retries >= r.maxSyncRetries {
		metrics.RecordError("batch", "sync_retries")
		return fmt.Errorf("%w: batch %s after %d retries", ErrSyncRetriesExhausted, out.BatchID, out.Retries)
	}

	r.log.Info(ctx, "monitors still synchronizing, retriggering",
		logger.String("batch_id", out.BatchID),
		logger.Int("problems", state.ProblemsCount),
		logger.Duration("delay", r.syncRetryDelay),
	)
	if err := r.sleep(ctx, r.syncRetryDelay); err != nil {
		return err
	}

	trig, err := r.trigger(ctx, ids)
	if err != nil {
		return err
	}
	out.Retries++
	out.BatchID = trig.BatchID
	out.Triggered = trig.Triggered
	metrics.RecordBatchSyncRetry()

	return r.sleep(ctx, r.pollInterval)
}

func (r *Runner) trigger(ctx context.Context, ids []string) (TriggerResult, error) {
	trig, err := r.platform.TriggerBatch(ctx, ids)
	if err != nil {
		metrics.RecordError("batch", "trigger")
		return TriggerResult{}, fmt.Errorf("%w: %w", ErrTrigger, err)
	}
	if trig.BatchID == "" {
		metrics.RecordError("batch", "trigger")
		return TriggerResult{}, fmt.Errorf("%w: platform returned empty batch id", ErrTrigger)
	}
	metrics.RecordBatchTrigger()
	r.log.Info(ctx, "batch triggered",
		logger.String("batch_id", trig.BatchID),
		logger.Int("monitors", len(ids)),
		logger.Int("triggered", len(trig.Triggered)),
	)
	return trig, nil
}
