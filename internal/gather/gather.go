// Package gather provides the price feeds that supply samples to a
// simulation: the Alpaca market-data feed for history and live prices, a
// recorder that archives whatever a feed returns, and an archive feed that
// replays recorded samples offline.
package gather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantsim/internal/domain"
)

// Feed is the interface for all price sources.
type Feed interface {
	// History returns samples for symbol at the given interval covering the
	// span that ends now, ordered by timestamp.
	History(ctx context.Context, symbol string, interval Interval, span Span) ([]domain.PriceSample, error)
	// Current returns the latest price of symbol.
	Current(ctx context.Context, symbol string) (domain.PriceSample, error)
}

// ErrNoLiveData is returned by feeds that have no live price source.
var ErrNoLiveData = errors.New("feed has no live data")

// ErrUnsupportedInterval is returned for intervals a feed cannot serve.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ---------------------------------------------------------------------------
// Intervals and spans
// ---------------------------------------------------------------------------

// Interval is the time between historical data points.
type Interval struct {
	Name string
	Step time.Duration
}

var intervals = map[string]Interval{
	"15second": {"15second", 15 * time.Second},
	"minute":   {"minute", time.Minute},
	"5minute":  {"5minute", 5 * time.Minute},
	"10minute": {"10minute", 10 * time.Minute},
	"15minute": {"15minute", 15 * time.Minute},
	"hour":     {"hour", time.Hour},
	"day":      {"day", 24 * time.Hour},
	"week":     {"week", 7 * 24 * time.Hour},
}

// ParseInterval parses an interval name: 15second, minute, 5minute,
// 10minute, 15minute, hour, day or week.
func ParseInterval(s string) (Interval, error) {
	iv, ok := intervals[s]
	if !ok {
		return Interval{}, fmt.Errorf("unknown interval %q", s)
	}
	return iv, nil
}

// Span is the entire time frame covered by a history request.
type Span struct {
	Name   string
	years  int
	months int
	dur    time.Duration
}

var spans = map[string]Span{
	"hour":   {Name: "hour", dur: time.Hour},
	"day":    {Name: "day", dur: 24 * time.Hour},
	"week":   {Name: "week", dur: 7 * 24 * time.Hour},
	"month":  {Name: "month", months: 1},
	"3month": {Name: "3month", months: 3},
	"year":   {Name: "year", years: 1},
	"5year":  {Name: "5year", years: 5},
}

// ParseSpan parses a span name: hour, day, week, month, 3month, year or
// 5year.
func ParseSpan(s string) (Span, error) {
	sp, ok := spans[s]
	if !ok {
		return Span{}, fmt.Errorf("unknown span %q", s)
	}
	return sp, nil
}

// Range returns the date range of the span ending at end.
func (s Span) Range(end time.Time) DateRange {
	start := end.AddDate(-s.years, -s.months, 0).Add(-s.dur)
	return DateRange{Start: start, End: end}
}
