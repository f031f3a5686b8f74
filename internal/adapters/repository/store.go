// Package repository archives evaluation runs so reports can show score
// movement between runs. The platform stays the only source of monitor
// identity; nothing here is consulted during reconciliation.
package repository

import (
	"context"
	"time"

	"github.com/okian/endpointeval/internal/domain/model"
)

// Run is one finished evaluation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Scores     []model.ScoreReport
}

// Summary describes an archived run without its scores.
type Summary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      int
	MinScore   int
}

// Store provides read/write access to the run archive.
type Store interface {
	// SaveRun archives run and its scores. Saving the same ID twice fails
	// with ErrDuplicateRun.
	SaveRun(ctx context.Context, run Run) error

	// LatestScores returns the scores of the most recent run keyed by URL.
	// When a URL has several steps in that run the lowest score wins.
	// An empty archive yields an empty map.
	LatestScores(ctx context.Context) (map[string]int, error)

	// Runs lists up to limit runs, newest first.
	Runs(ctx context.Context, limit int) ([]Summary, error)

	Close() error
}
