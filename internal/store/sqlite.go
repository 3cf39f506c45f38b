package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/report"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ RunStore = (*SQLiteStore)(nil)

// Timestamps are stored as Unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT    PRIMARY KEY,
    symbol           TEXT    NOT NULL,
    started_at       INTEGER NOT NULL,
    finished_at      INTEGER NOT NULL,
    samples          INTEGER NOT NULL DEFAULT 0,
    asset_change     REAL    NOT NULL DEFAULT 0,
    has_asset_change INTEGER NOT NULL DEFAULT 0,
    leader           TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS engine_results (
    run_id             TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    engine             TEXT    NOT NULL,
    rank               INTEGER NOT NULL,
    starting_allowance REAL    NOT NULL,
    ending_funds       REAL    NOT NULL,
    min_realized       REAL    NOT NULL,
    max_realized       REAL    NOT NULL,
    percent_change     REAL    NOT NULL DEFAULT 0,
    has_return         INTEGER NOT NULL DEFAULT 0,
    trades             INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, engine)
);

CREATE TABLE IF NOT EXISTS trade_events (
    run_id    TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    engine    TEXT    NOT NULL,
    seq       INTEGER NOT NULL,
    ts        INTEGER NOT NULL,
    amount    REAL    NOT NULL,
    is_sale   INTEGER NOT NULL,
    PRIMARY KEY (run_id, engine, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", dbPath, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ReportStore implementation
// ---------------------------------------------------------------------------

// SaveReport writes the run, its ranked engine results and every trade event
// in one transaction, replacing any earlier copy of the run.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *report.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, r.RunID); err != nil {
		return fmt.Errorf("deleting previous run %s: %w", r.RunID, err)
	}

	leader := ""
	if l, ok := r.Leader(); ok {
		leader = l.Summary.Name
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, symbol, started_at, finished_at, samples, asset_change, has_asset_change, leader)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Samples, r.AssetChange, boolInt(r.HasAssetChange), leader,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}

	resStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO engine_results (run_id, engine, rank, starting_allowance, ending_funds,
		   min_realized, max_realized, percent_change, has_return, trades)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing result insert: %w", err)
	}
	defer resStmt.Close()

	evStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trade_events (run_id, engine, seq, ts, amount, is_sale) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer evStmt.Close()

	for _, res := range r.Results {
		sum := res.Summary
		if _, err := resStmt.ExecContext(ctx,
			r.RunID, sum.Name, res.Rank, sum.StartingAllowance, sum.EndingFunds,
			sum.MinRealized, sum.MaxRealized, res.PercentChange, boolInt(res.HasReturn), len(res.Events),
		); err != nil {
			return fmt.Errorf("inserting result for %s: %w", sum.Name, err)
		}
		for i, ev := range res.Events {
			if _, err := evStmt.ExecContext(ctx,
				r.RunID, sum.Name, i, ev.Timestamp.UnixMilli(), ev.Amount, boolInt(ev.IsSale),
			); err != nil {
				return fmt.Errorf("inserting event %d for %s: %w", i, sum.Name, err)
			}
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// ListRuns returns the most recent runs, newest first, up to limit. A
// non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, started_at, finished_at, samples, asset_change, has_asset_change, leader
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			hasChange         int
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &started, &finished, &r.Samples,
			&r.AssetChange, &hasChange, &r.Leader); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		r.HasAssetChange = hasChange != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListResults returns the engine results of a run ordered by rank.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]EngineResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT engine, rank, starting_allowance, ending_funds, min_realized, max_realized,
		   percent_change, has_return, trades
		 FROM engine_results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results for %s: %w", runID, err)
	}
	defer rows.Close()

	var results []EngineResult
	for rows.Next() {
		res := EngineResult{RunID: runID}
		var hasReturn int
		if err := rows.Scan(&res.Summary.Name, &res.Rank, &res.Summary.StartingAllowance,
			&res.Summary.EndingFunds, &res.Summary.MinRealized, &res.Summary.MaxRealized,
			&res.PercentChange, &hasReturn, &res.Trades); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		res.HasReturn = hasReturn != 0
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListEvents returns the trade events of one engine in a run, in order.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID, engine string) ([]domain.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, amount, is_sale FROM trade_events
		 WHERE run_id = ? AND engine = ? ORDER BY seq`, runID, engine)
	if err != nil {
		return nil, fmt.Errorf("querying events for %s/%s: %w", runID, engine, err)
	}
	defer rows.Close()

	var events []domain.TradeEvent
	for rows.Next() {
		var (
			ts     int64
			ev     domain.TradeEvent
			isSale int
		)
		if err := rows.Scan(&ts, &ev.Amount, &isSale); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts)
		ev.IsSale = isSale != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
