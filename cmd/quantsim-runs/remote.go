package main

import (
	"context"
	"errors"

	"quantsim/internal/domain"
	"quantsim/internal/report"
	"quantsim/internal/store"
	"quantsim/pkg/quantsim"
)

// remoteRuns reads runs through the status API.
type remoteRuns struct {
	c *quantsim.Client
}

var _ store.RunStore = remoteRuns{}

func (remoteRuns) SaveReport(context.Context, *report.Report) error {
	return errors.New("remote run store is read-only")
}

func (r remoteRuns) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	runs, err := r.c.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]store.Run, 0, len(runs))
	for _, run := range runs {
		change, ok := deref(run.AssetChange)
		out = append(out, store.Run{
			ID:             run.ID,
			Symbol:         run.Symbol,
			StartedAt:      run.StartedAt,
			FinishedAt:     run.FinishedAt,
			Samples:        run.Samples,
			AssetChange:    change,
			HasAssetChange: ok,
			Leader:         run.Leader,
		})
	}
	return out, nil
}

func (r remoteRuns) ListResults(ctx context.Context, runID string) ([]store.EngineResult, error) {
	results, err := r.c.Results(ctx, runID)
	if errors.Is(err, quantsim.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]store.EngineResult, 0, len(results))
	for _, res := range results {
		pct, ok := deref(res.PercentChange)
		out = append(out, store.EngineResult{
			RunID: runID,
			Rank:  res.Rank,
			Summary: domain.Summary{
				Name:              res.Engine,
				StartingAllowance: res.Start,
				EndingFunds:       res.End,
				MinRealized:       res.MinRealized,
				MaxRealized:       res.MaxRealized,
			},
			PercentChange: pct,
			HasReturn:     ok,
			Trades:        res.Trades,
		})
	}
	return out, nil
}

func (r remoteRuns) ListEvents(ctx context.Context, runID, engine string) ([]domain.TradeEvent, error) {
	events, err := r.c.Events(ctx, runID, engine)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TradeEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, domain.TradeEvent{
			Amount:    ev.Amount,
			Timestamp: ev.Timestamp,
			IsSale:    ev.Side == string(domain.SideSell),
		})
	}
	return out, nil
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
