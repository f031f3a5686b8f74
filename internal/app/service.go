// Package service wires discovery output through reconciliation, the batch
// state machine, execution polling and scoring into one evaluation run.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/endpointeval/internal/adapters/mq/queue"
	"github.com/okian/endpointeval/internal/adapters/mq/worker"
	"github.com/okian/endpointeval/internal/adapters/repository"
	"github.com/okian/endpointeval/internal/domain/batch"
	"github.com/okian/endpointeval/internal/domain/clock"
	"github.com/okian/endpointeval/internal/domain/dedupe"
	"github.com/okian/endpointeval/internal/domain/execution"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/internal/domain/reconcile"
	"github.com/okian/endpointeval/internal/domain/scoring"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// Platform is everything a run needs from the monitoring platform.
type Platform interface {
	reconcile.Platform
	batch.Platform
	execution.ReportFetcher
}

// History archives runs. It is never consulted for monitor identity.
type History interface {
	LatestScores(ctx context.Context) (map[string]int, error)
	SaveRun(ctx context.Context, run repository.Run) error
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Endpoints []model.Endpoint
	Batch     batch.Outcome
	// Reports are in the sequential poll order: endpoint order, then
	// execution order within an endpoint.
	Reports []model.ExecutionReport
	Scores  []model.ScoreReport
	// Previous holds the scores of the last archived run, keyed by URL.
	Previous   map[string]int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Service runs evaluations. A Service holds no per-run state and may be
// reused, for example by watch mode.
type Service struct {
	platform    Platform
	history     History
	tag         string
	locations   []string
	settleDelay time.Duration
	concurrency int
	batchOpts   []batch.Option
	pollOpts    []execution.Option
	sleep       clock.Sleeper
	now         func() time.Time
	newID       func() string

	logger logger.Logger
}

// DefaultCreationSettleDelay is the wait between creating monitors and the
// first batch trigger.
const DefaultCreationSettleDelay = 60 * time.Second

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tag:         reconcile.DefaultTag,
		settleDelay: DefaultCreationSettleDelay,
		concurrency: 1,
		sleep:       clock.Sleep,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates urls end to end. Any platform failure aborts the run and no
// partial scores are returned. History failures are logged and skipped.
func (s *Service) Run(ctx context.Context, urls []string) (Result, error) {
	if s.platform == nil {
		return Result{}, ErrNoPlatform
	}
	if len(urls) == 0 {
		return Result{}, ErrNoEndpoints
	}

	res := Result{RunID: s.newID(), StartedAt: s.now()}
	log := s.logger.With(logger.String("run_id", res.RunID))
	metrics.UpdateEndpointsDiscovered(len(urls))
	log.Info(ctx, "evaluation started", logger.Int("endpoints", len(urls)))

	endpoints, err := s.reconcile(ctx, log, urls)
	if err != nil {
		return Result{}, err
	}

	outcome, err := batch.NewRunner(s.platform, append(append([]batch.Option(nil), s.batchOpts...),
		batch.WithSleeper(s.sleep),
		batch.WithLogger(log),
	)...).Run(ctx, endpoints)
	if err != nil {
		return Result{}, err
	}
	res.Batch = outcome
	res.Endpoints = attachExecutions(ctx, log, endpoints, outcome.Triggered)

	res.Reports, err = s.poll(ctx, log, jobsFor(ctx, res.Endpoints))
	if err != nil {
		return Result{}, err
	}

	res.Scores = s.score(res.Reports)
	res.FinishedAt = s.now()
	s.archive(ctx, log, &res)

	duration := res.FinishedAt.Sub(res.StartedAt)
	metrics.RecordRunFinished(duration.Seconds(), res.FinishedAt.Unix())
	log.Info(ctx, "evaluation finished",
		logger.String("batch_id", outcome.BatchID),
		logger.Int("executions", len(res.Reports)),
		logger.Int("scores", len(res.Scores)),
		logger.Duration("duration", duration),
	)
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, log logger.Logger, urls []string) ([]model.Endpoint, error) {
	rec := reconcile.New(s.platform,
		reconcile.WithTag(s.tag),
		reconcile.WithLocations(s.locations),
		reconcile.WithLogger(log),
	)
	out, err := rec.Reconcile(ctx, urls)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "monitors reconciled",
		logger.Int("matched", out.Matched),
		logger.Int("created", out.Created),
	)

	// New monitors need time to reach every location.
	if out.Created > 0 && s.settleDelay > 0 {
		log.Info(ctx, "waiting for new monitors", logger.Duration("delay", s.settleDelay))
		if err := s.sleep(ctx, s.settleDelay); err != nil {
			return nil, err
		}
	}
	return out.Endpoints, nil
}

// attachExecutions assigns triggered executions to endpoints by monitor ID.
func attachExecutions(ctx context.Context, log logger.Logger, endpoints []model.Endpoint, triggered []model.Triggered) []model.Endpoint {
	byMonitor := make(map[string][]model.ExecutionRef, len(triggered))
	for _, t := range triggered {
		byMonitor[t.MonitorID] = append(byMonitor[t.MonitorID], t.Executions...)
	}

	out := make([]model.Endpoint, len(endpoints))
	for i, ep := range endpoints {
		ep.Executions = byMonitor[ep.MonitorID]
		if len(ep.Executions) == 0 {
			log.Warn(ctx, "monitor missing from batch",
				logger.String("url", ep.URL),
				logger.String("monitor_id", ep.MonitorID),
			)
		}
		out[i] = ep
	}
	return out
}

// jobsFor lists every execution once, in endpoint order.
func jobsFor(ctx context.Context, endpoints []model.Endpoint) []queue.Job {
	seen := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(endpoints)))
	var jobs []queue.Job
	for _, ep := range endpoints {
		for _, ex := range ep.Executions {
			if seen.SeenAndRecord(ctx, ex.ExecutionID) {
				continue
			}
			jobs = append(jobs, queue.Job{Seq: len(jobs), URL: ep.URL, ExecutionID: ex.ExecutionID})
		}
	}
	return jobs
}

func (s *Service) poll(ctx context.Context, log logger.Logger, jobs []queue.Job) ([]model.ExecutionReport, error) {
	poller := execution.NewPoller(s.platform, append(append([]execution.Option(nil), s.pollOpts...),
		execution.WithSleeper(s.sleep),
		execution.WithLogger(log),
	)...)

	if s.concurrency <= 1 || len(jobs) <= 1 {
		reports := make([]model.ExecutionReport, 0, len(jobs))
		for _, job := range jobs {
			report, err := poller.PollUntilReady(ctx, job.ExecutionID)
			if err != nil {
				return nil, err
			}
			reports = append(reports, report)
		}
		return reports, nil
	}
	return s.pollParallel(ctx, log, poller, jobs)
}

// pollParallel fans jobs out to a worker pool and restores sequential order.
// The first failure cancels the remaining polls.
func (s *Service) pollParallel(ctx context.Context, log logger.Logger, poller worker.Poller, jobs []queue.Job) ([]model.ExecutionReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(jobs)))
	for _, job := range jobs {
		if !q.Enqueue(ctx, job) {
			_ = q.Close()
			return nil, fmt.Errorf("%w: queue rejected execution %s", ErrPoll, job.ExecutionID)
		}
	}
	_ = q.Close()

	pool := worker.NewPool(min(s.concurrency, len(jobs)), q, poller, worker.WithLogger(log))
	log.Debug(ctx, "polling executions in parallel",
		logger.Int("workers", pool.Size()),
		logger.Int("executions", len(jobs)),
	)
	pool.Start(ctx)

	var (
		results  = make([]worker.Result, 0, len(jobs))
		firstErr error
	)
	for r := range pool.Results() {
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
			cancel()
		}
		results = append(results, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(results) != len(jobs) {
		return nil, fmt.Errorf("%w: %d of %d executions reported", ErrPoll, len(results), len(jobs))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Job.Seq < results[j].Job.Seq })
	reports := make([]model.ExecutionReport, len(results))
	for i, r := range results {
		reports[i] = r.Report
	}
	return reports, nil
}

func (s *Service) score(reports []model.ExecutionReport) []model.ScoreReport {
	engine := scoring.NewEngine(scoring.WithClock(s.now))
	var scores []model.ScoreReport
	for _, report := range reports {
		stepScores := engine.ScoreReport(report)
		metrics.RecordExecutionScored()
		for _, sc := range stepScores {
			metrics.RecordStepScore(sc.Score)
			for _, d := range sc.Deductions {
				metrics.RecordDeduction(d.Rule)
			}
		}
		scores = append(scores, stepScores...)
	}
	return scores
}

// archive loads the previous scores before saving this run.
func (s *Service) archive(ctx context.Context, log logger.Logger, res *Result) {
	if s.history == nil {
		return
	}

	previous, err := s.history.LatestScores(ctx)
	if err != nil {
		metrics.RecordError("history", "read")
		log.Warn(ctx, "could not read previous scores", logger.Error(err))
	} else {
		res.Previous = previous
	}

	err = s.history.SaveRun(ctx, repository.Run{
		ID:         res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Scores:     res.Scores,
	})
	if err != nil {
		metrics.RecordError("history", "write")
		log.Warn(ctx, "could not archive run", logger.Error(err))
	}
}
