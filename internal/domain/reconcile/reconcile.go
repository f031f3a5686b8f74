// Package reconcile makes sure every desired URL has a synthetic monitor.
package reconcile

import (
	"context"
	"fmt"

	"github.com/okian/endpointeval/internal/domain/dedupe"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// DefaultTag marks monitors owned by the evaluator.
const DefaultTag = "git-action"

// Reconciliation outcomes, also used as metric labels.
const (
	OutcomeMatched = "matched"
	OutcomeCreated = "created"
)

// MonitorLister queries existing monitors carrying a tag.
type MonitorLister interface {
	ListMonitors(ctx context.Context, tag string) ([]model.Monitor, error)
}

// MonitorCreator creates a monitor and returns its ID.
type MonitorCreator interface {
	CreateMonitor(ctx context.Context, spec model.MonitorSpec) (string, error)
}

// Platform is the remote side the reconciler talks to.
type Platform interface {
	MonitorLister
	MonitorCreator
}

// Result is the outcome of a reconciliation.
type Result struct {
	Endpoints []model.Endpoint
	Matched   int
	Created   int
}

// Reconciler assigns a monitor ID to every desired URL, creating monitors
// for URLs that have none.
type Reconciler struct {
	platform  Platform
	tag       string
	locations []string
	created   dedupe.Deduper
	log       logger.Logger
}

// New creates a reconciler with configuration options.
func New(platform Platform, opts ...Option) *Reconciler {
	r := &Reconciler{
		platform: platform,
		tag:      DefaultTag,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.created == nil {
		r.created = dedupe.NewInMemoryDeduper()
	}
	return r
}

// Match builds one endpoint per desired URL, in order, and assigns the ID of
// the first existing monitor whose display name equals the URL exactly.
func Match(desired []string, existing []model.Monitor) []model.Endpoint {
	byName := make(map[string]string, len(existing))
	for _, m := range existing {
		if _, dup := byName[m.DisplayName]; !dup {
			byName[m.DisplayName] = m.ID
		}
	}

	endpoints := make([]model.Endpoint, 0, len(desired))
	for _, url := range desired {
		endpoints = append(endpoints, model.Endpoint{URL: url, MonitorID: byName[url]})
	}
	return endpoints
}

// Reconcile lists existing monitors, matches them to desired URLs and creates
// the missing ones. Any remote failure aborts the run; partial results are
// never returned.
func (r *Reconciler) Reconcile(ctx context.Context, desired []string) (Result, error) {
	existing, err := r.platform.ListMonitors(ctx, r.tag)
	if err != nil {
		metrics.RecordError("reconcile", "list")
		return Result{}, fmt.Errorf("%w: %w", ErrListMonitors, err)
	}
	r.log.Info(ctx, "existing monitors listed",
		logger.String("tag", r.tag),
		logger.Int("count", len(existing)),
	)

	res := Result{Endpoints: Match(desired, existing)}
	for i := range res.Endpoints {
		ep := &res.Endpoints[i]
		if ep.HasMonitor() {
			res.Matched++
			metrics.RecordMonitorReconciled(OutcomeMatched)
			r.log.Debug(ctx, "monitor already exists",
				logger.String("url", ep.URL),
				logger.String("monitor_id", ep.MonitorID),
			)
			continue
		}

		if r.created.SeenAndRecord(ctx, ep.URL) {
			// A duplicate URL slipped past discovery; never create twice.
			r.log.Warn(ctx, "skipping duplicate creation", logger.String("url", ep.URL))
			continue
		}

		id, err := r.create(ctx, ep.URL)
		if err != nil {
			r.created.Unrecord(ctx, ep.URL)
			metrics.RecordError("reconcile", "create")
			return Result{}, err
		}
		ep.MonitorID = id
		res.Created++
		metrics.RecordMonitorReconciled(OutcomeCreated)
		r.log.Info(ctx, "monitor created",
			logger.String("url", ep.URL),
			logger.String("monitor_id", id),
		)
	}

	// Fill in IDs for duplicates that were skipped above.
	fillDuplicates(res.Endpoints)

	return res, nil
}

func (r *Reconciler) create(ctx context.Context, url string) (string, error) {
	id, err := r.platform.CreateMonitor(ctx, model.NewMonitorSpec(url, r.tag, r.locations))
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrCreateMonitor, url, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w %s: %w", ErrCreateMonitor, url, ErrEmptyMonitorID)
	}
	return id, nil
}

func fillDuplicates(endpoints []model.Endpoint) {
	ids := make(map[string]string, len(endpoints))
	for _, ep := range endpoints {
		if ep.HasMonitor() {
			if _, ok := ids[ep.URL]; !ok {
				ids[ep.URL] = ep.MonitorID
			}
		}
	}
	for i := range endpoints {
		if !endpoints[i].HasMonitor() {
			endpoints[i].MonitorID = ids[endpoints[i].URL]
		}
	}
}
