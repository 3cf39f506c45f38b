// Package httpapi provides an HTTP REST API over a running simulation and
// the persisted run history, in JSON format.
package httpapi

import (
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/report"
	"quantsim/internal/store"
)

// ResultJSON is the JSON representation of one ranked engine.
type ResultJSON struct {
	Rank          int      `json:"rank"`
	Engine        string   `json:"engine"`
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	MinRealized   float64  `json:"minRealized"`
	MaxRealized   float64  `json:"maxRealized"`
	Trades        int      `json:"trades"`
	PercentChange *float64 `json:"percentChange,omitempty"`
}

// ReportJSON is the JSON representation of a finished run.
type ReportJSON struct {
	RunID       string       `json:"runId"`
	Symbol      string       `json:"symbol"`
	StartedAt   time.Time    `json:"startedAt"`
	FinishedAt  time.Time    `json:"finishedAt"`
	Samples     int          `json:"samples"`
	AssetChange *float64     `json:"assetChange,omitempty"`
	Results     []ResultJSON `json:"results"`
}

// RunJSON is the JSON representation of a persisted run.
type RunJSON struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Samples     int       `json:"samples"`
	AssetChange *float64  `json:"assetChange,omitempty"`
	Leader      string    `json:"leader"`
}

// EventJSON is the JSON representation of one trade event.
type EventJSON struct {
	Side      domain.Side `json:"side"`
	Amount    float64     `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func convertSummary(rank int, s domain.Summary, trades int, pct float64, ok bool) ResultJSON {
	return ResultJSON{
		Rank:          rank,
		Engine:        s.Name,
		Start:         s.StartingAllowance,
		End:           s.EndingFunds,
		MinRealized:   s.MinRealized,
		MaxRealized:   s.MaxRealized,
		Trades:        trades,
		PercentChange: optional(pct, ok),
	}
}

func convertReport(r *report.Report) ReportJSON {
	out := ReportJSON{
		RunID:       r.RunID,
		Symbol:      r.Symbol,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Samples:     r.Samples,
		AssetChange: optional(r.AssetChange, r.HasAssetChange),
		Results:     make([]ResultJSON, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		out.Results = append(out.Results, convertSummary(res.Rank, res.Summary, len(res.Events), res.PercentChange, res.HasReturn))
	}
	return out
}

func convertRun(r store.Run) RunJSON {
	return RunJSON{
		ID:          r.ID,
		Symbol:      r.Symbol,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Samples:     r.Samples,
		AssetChange: optional(r.AssetChange, r.HasAssetChange),
		Leader:      r.Leader,
	}
}

func convertEvents(events []domain.TradeEvent) []EventJSON {
	out := make([]EventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, EventJSON{Side: ev.Side(), Amount: ev.Amount, Timestamp: ev.Timestamp})
	}
	return out
}
