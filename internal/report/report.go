// Package report turns closed engines into a comparative performance report:
// the ranking by realized value, per-engine percentage returns and a
// reference curve of the raw asset price scaled to the leader's first trade.
package report

import (
	"sort"
	"time"

	"quantsim/internal/domain"
)

// Outcome is what one closed engine contributes to a report.
type Outcome struct {
	Summary domain.Summary
	Events  []domain.TradeEvent
}

// Input collects everything needed to build a Report.
type Input struct {
	RunID      string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	// History is the master price history the engines were fed.
	History []domain.PriceSample
}

// EngineResult is one ranked engine.
type EngineResult struct {
	Rank    int
	Summary domain.Summary
	Events  []domain.TradeEvent
	// PercentChange is the change between the first and last trade event
	// amounts. HasReturn is false when it is undefined.
	PercentChange float64
	HasReturn     bool
}

// Report is the comparative result of one simulation run.
type Report struct {
	RunID      string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int

	Results []EngineResult

	// AssetChange is the price change of the asset over the history, in
	// percent. HasAssetChange is false when it is undefined.
	AssetChange    float64
	HasAssetChange bool
	// Reference is the asset price curve scaled so that it starts at
	// ReferenceBase, the leader's first trade amount.
	Reference     []domain.PriceSample
	ReferenceBase float64
}

// Build ranks the outcomes by ending funds, highest first, and derives the
// percentage labels and the reference curve. Ties keep their input order.
func Build(in Input) *Report {
	results := make([]EngineResult, len(in.Outcomes))
	for i, o := range in.Outcomes {
		pct, ok := PercentChange(o.Events)
		results[i] = EngineResult{
			Summary:       o.Summary,
			Events:        append([]domain.TradeEvent(nil), o.Events...),
			PercentChange: pct,
			HasReturn:     ok,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Summary.EndingFunds > results[j].Summary.EndingFunds
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	r := &Report{
		RunID:      in.RunID,
		Symbol:     in.Symbol,
		StartedAt:  in.StartedAt,
		FinishedAt: in.FinishedAt,
		Samples:    len(in.History),
		Results:    results,
	}
	r.AssetChange, r.HasAssetChange = priceChange(in.History)
	r.ReferenceBase = referenceBase(results)
	r.Reference = Normalize(in.History, r.ReferenceBase)
	return r
}

// Leader returns the top-ranked result. ok is false for an empty report.
func (r *Report) Leader() (EngineResult, bool) {
	if len(r.Results) == 0 {
		return EngineResult{}, false
	}
	return r.Results[0], true
}

// PercentChange returns (last-first)/first*100 over the event amounts. ok is
// false when there are no events or the first amount is zero.
func PercentChange(events []domain.TradeEvent) (pct float64, ok bool) {
	if len(events) == 0 {
		return 0, false
	}
	first, last := events[0].Amount, events[len(events)-1].Amount
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// Normalize scales prices so the curve starts at base. It returns nil for an
// empty history or a zero first price.
func Normalize(history []domain.PriceSample, base float64) []domain.PriceSample {
	if len(history) == 0 || history[0].Price == 0 {
		return nil
	}
	scale := base / history[0].Price
	out := make([]domain.PriceSample, len(history))
	for i, s := range history {
		out[i] = domain.PriceSample{Price: s.Price * scale, Timestamp: s.Timestamp}
	}
	return out
}

func priceChange(history []domain.PriceSample) (float64, bool) {
	if len(history) == 0 || history[0].Price == 0 {
		return 0, false
	}
	first, last := history[0].Price, history[len(history)-1].Price
	return (last - first) / first * 100, true
}

// referenceBase is the leader's first trade amount. Without a leading trade
// it falls back to the first engine that traded, then to the leader's
// allowance.
func referenceBase(results []EngineResult) float64 {
	if len(results) == 0 {
		return 0
	}
	if ev := results[0].Events; len(ev) > 0 {
		return ev[0].Amount
	}
	for _, r := range results[1:] {
		if len(r.Events) > 0 {
			return r.Events[0].Amount
		}
	}
	return results[0].Summary.StartingAllowance
}
