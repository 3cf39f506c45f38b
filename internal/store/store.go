// Package store defines storage interfaces for persisting and retrieving
// price samples and simulation run results.
package store

import (
	"context"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/report"
)

// SampleStore persists and retrieves price samples.
type SampleStore interface {
	// WriteSamples persists a batch of samples for symbol. Samples with a
	// timestamp already stored replace the stored ones.
	WriteSamples(ctx context.Context, symbol string, samples []domain.PriceSample) error

	// ReadSamples returns samples for symbol within [start, end], ordered by
	// timestamp.
	ReadSamples(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceSample, error)

	// ListSymbols returns all symbols with archived samples.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ReportStore persists finished simulation reports.
type ReportStore interface {
	// SaveReport persists a report. Saving the same run twice replaces it.
	SaveReport(ctx context.Context, r *report.Report) error
}

// RunStore queries persisted runs.
type RunStore interface {
	ReportStore

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// ListResults returns the ranked engine results of a run.
	ListResults(ctx context.Context, runID string) ([]EngineResult, error)

	// ListEvents returns the trade events of one engine in a run, in order.
	ListEvents(ctx context.Context, runID, engine string) ([]domain.TradeEvent, error)
}

// Run is one persisted simulation run.
type Run struct {
	ID             string
	Symbol         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Samples        int
	AssetChange    float64
	HasAssetChange bool
	Leader         string
}

// EngineResult is one persisted engine row of a run.
type EngineResult struct {
	RunID         string
	Rank          int
	Summary       domain.Summary
	PercentChange float64
	HasReturn     bool
	Trades        int
}

// SaveAll saves r to every store, stopping at the first failure.
func SaveAll(ctx context.Context, r *report.Report, stores ...ReportStore) error {
	for _, s := range stores {
		if err := s.SaveReport(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
