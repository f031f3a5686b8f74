package reconcile

import (
	"github.com/okian/endpointeval/internal/domain/dedupe"
	"github.com/okian/endpointeval/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithTag sets the discovery tag used to list and label monitors.
func WithTag(tag string) Option {
	return func(r *Reconciler) {
		if tag != "" {
			r.tag = tag
		}
	}
}

// WithLocations sets the locations new monitors run from.
func WithLocations(locations []string) Option {
	return func(r *Reconciler) {
		r.locations = append([]string(nil), locations...)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDeduper replaces the per-run creation guard.
func WithDeduper(d dedupe.Deduper) Option {
	return func(r *Reconciler) {
		if d != nil {
			r.created = d
		}
	}
}
