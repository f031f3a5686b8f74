package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	reasonSeparator = "\n"
	// Fixed width so text ordering matches time ordering.
	timeLayout      = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	retention int
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) the archive at path and migrates its schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrOpen, err)
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrOpen, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs (finished_at DESC);

CREATE TABLE IF NOT EXISTS scores (
	run_id  TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	url     TEXT NOT NULL,
	score   INTEGER NOT NULL,
	reasons TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_scores_url ON scores (url);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun archives run in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return ErrEmptyRunID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
	}

	for i, sc := range run.Scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scores (run_id, seq, url, score, reasons) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, sc.URL, sc.Score, strings.Join(sc.Reasons, reasonSeparator)); err != nil {
			return fmt.Errorf("failed to insert score %d: %w", i, err)
		}
	}

	if s.retention > 0 {
		if err := prune(ctx, tx, s.retention); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// prune drops every run older than the newest keep runs.
func prune(ctx context.Context, tx *sql.Tx, keep int) error {
	const stale = `SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return fmt.Errorf("failed to prune scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep); err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return nil
}

// LatestScores returns the per-URL scores of the newest run.
func (s *SQLiteStore) LatestScores(ctx context.Context) (map[string]int, error) {
	query := `
SELECT url, MIN(score) FROM scores
WHERE run_id = (SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1)
GROUP BY url`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			url   string
			score int
		)
		if err := rows.Scan(&url, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out[url] = score
	}
	return out, rows.Err()
}

// Runs lists archived runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	query := `
SELECT r.id, r.started_at, r.finished_at, COUNT(s.seq), COALESCE(MIN(s.score), 0)
FROM runs r LEFT JOIN scores s ON s.run_id = r.id
GROUP BY r.id
ORDER BY r.finished_at DESC, r.rowid DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum               Summary
			started, finished string
		)
		if err := rows.Scan(&sum.ID, &started, &finished, &sum.Steps, &sum.MinScore); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt, _ = time.Parse(timeLayout, started)
		sum.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
