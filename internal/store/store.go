// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verte-zerg/ruletype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for batch history.
type Store struct {
	db *sql.DB
}

// NewRunID returns a fresh identifier for one process run.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			from_index INTEGER NOT NULL,
			to_index INTEGER NOT NULL,
			first_rule INTEGER NOT NULL,
			settled_rule INTEGER NOT NULL,
			segments INTEGER NOT NULL,
			chars INTEGER NOT NULL,
			typos INTEGER NOT NULL,
			text_ms INTEGER NOT NULL,
			gauge_ms INTEGER NOT NULL,
			text_first INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_ended_at ON batches(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_run_id ON batches(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertBatch stores a finished batch. A record without a run id gets a new one.
func (s *Store) InsertBatch(ctx context.Context, rec model.BatchRecord) error {
	runID := rec.RunID
	if runID == "" {
		runID = NewRunID()
	} else if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (run_id, started_at, ended_at, from_index, to_index, first_rule, settled_rule, segments, chars, typos, text_ms, gauge_ms, text_first)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.EndedAt.UTC().Format(timeLayout),
		rec.FromIndex,
		rec.ToIndex,
		rec.FirstRule,
		rec.SettledRule,
		rec.SegmentCount,
		rec.Chars,
		rec.Typos,
		rec.TextMs,
		rec.GaugeMs,
		boolToInt(rec.TextFirst),
	)
	return err
}

// ListBatches returns batches filtered by cfg in chronological order. Last
// keeps only the most recent n matches.
func (s *Store) ListBatches(ctx context.Context, cfg model.HistoryConfig) ([]model.BatchRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, cfg.RunID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT run_id, started_at, ended_at, from_index, to_index, first_rule, settled_rule, segments, chars, typos, text_ms, gauge_ms, text_first
		FROM (
			SELECT * FROM batches
			WHERE %s
			ORDER BY ended_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var batches []model.BatchRecord
	for rows.Next() {
		var rec model.BatchRecord
		var startedAt, endedAt string
		var textFirst int
		if err := rows.Scan(&rec.RunID, &startedAt, &endedAt, &rec.FromIndex, &rec.ToIndex, &rec.FirstRule, &rec.SettledRule,
			&rec.SegmentCount, &rec.Chars, &rec.Typos, &rec.TextMs, &rec.GaugeMs, &textFirst); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		rec.TextFirst = textFirst != 0
		batches = append(batches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// LastSettledRule returns the most recent settled rule number. ok is false
// when nothing has been settled yet.
func (s *Store) LastSettledRule(ctx context.Context) (int, bool, error) {
	var num int
	err := s.db.QueryRowContext(ctx,
		`SELECT settled_rule FROM batches
		 WHERE settled_rule > 0
		 ORDER BY ended_at DESC, id DESC
		 LIMIT 1`).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return num, true, nil
}

// ListRuns aggregates batches per run, oldest run first.
func (s *Store) ListRuns(ctx context.Context) ([]model.RunAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, MIN(started_at), MAX(ended_at), COUNT(*), SUM(chars), SUM(typos), MAX(settled_rule)
		 FROM batches
		 GROUP BY run_id
		 ORDER BY MIN(started_at) ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var startedAt, endedAt string
		if err := rows.Scan(&agg.RunID, &startedAt, &endedAt, &agg.Batches, &agg.Chars, &agg.Typos, &agg.MaxRule); err != nil {
			return nil, err
		}
		if agg.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if agg.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		runs = append(runs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
