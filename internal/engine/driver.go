// Package engine drives a set of trading engines through a price history:
// historical backfill first, then live polling, one sample at a time, and
// produces the comparative report when the simulation ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/gather"
	"quantsim/internal/report"
	"quantsim/internal/strategy"
	"quantsim/internal/util"
)

// TradeHook is called after an engine completes a buy or sell. ev is the
// event just appended to the engine's log.
type TradeHook func(ctx context.Context, e *strategy.Engine, ev domain.TradeEvent)

// TickHook is called after every accepted sample, once all engines have
// been updated and have traded. It runs on the driver goroutine, so it may
// read engine state.
type TickHook func(ctx context.Context, s domain.PriceSample, engines []*strategy.Engine)

// Option customises a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// WithTradeHook registers a hook called after every completed trade.
func WithTradeHook(h TradeHook) Option {
	return func(d *Driver) { d.hooks = append(d.hooks, h) }
}

// WithTickHook registers a hook called after every accepted sample.
func WithTickHook(h TickHook) Option {
	return func(d *Driver) { d.tickHooks = append(d.tickHooks, h) }
}

// WithClock sets the clock used for run start and finish times.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// RunConfig parameterises Simulate.
type RunConfig struct {
	RunID        string
	Symbol       string
	Interval     gather.Interval
	Span         gather.Span
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	// BackfillOnly ends the run after the history backfill.
	BackfillOnly bool
}

// Driver owns the engines of one simulation and the master price history
// they are fed. Engines are updated and polled sequentially, in the order
// given, on every tick. A Driver is not safe for concurrent use.
type Driver struct {
	engines []*strategy.Engine
	history []domain.PriceSample
	hooks   []TradeHook

	tickHooks []TickHook

	startedAt time.Time
	closed    bool

	now func() time.Time
	log *slog.Logger
}

// NewDriver creates a Driver over engines.
func NewDriver(engines []*strategy.Engine, opts ...Option) *Driver {
	d := &Driver{
		engines: engines,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default().With("component", "driver")
	}
	d.startedAt = d.now()
	return d
}

// Engines returns the engines in iteration order.
func (d *Driver) Engines() []*strategy.Engine { return d.engines }

// History returns a copy of the master price history.
func (d *Driver) History() []domain.PriceSample {
	return append([]domain.PriceSample(nil), d.history...)
}

// ---------------------------------------------------------------------------
// Ticks
// ---------------------------------------------------------------------------

// Tick feeds one sample to every engine and lets each one trade. Samples
// older than the last accepted one, and non-positive or non-finite prices,
// are dropped with a warning; Tick then reports false.
//
// Each engine buys if it signals a buy; only otherwise is a sell considered.
func (d *Driver) Tick(ctx context.Context, s domain.PriceSample) bool {
	if d.closed {
		d.log.Warn("tick after close dropped", "price", s.Price, "ts", s.Timestamp)
		return false
	}
	if s.Price <= 0 || math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
		d.log.Warn("invalid price dropped", "price", s.Price, "ts", s.Timestamp)
		return false
	}
	if n := len(d.history); n > 0 && s.Timestamp.Before(d.history[n-1].Timestamp) {
		d.log.Warn("out-of-order sample dropped",
			"ts", s.Timestamp,
			"last", d.history[n-1].Timestamp,
		)
		return false
	}

	d.history = append(d.history, s)
	for _, e := range d.engines {
		e.Update(s.Price, s.Timestamp)
	}
	for _, e := range d.engines {
		d.decide(ctx, e)
	}
	for _, h := range d.tickHooks {
		h(ctx, s, d.engines)
	}
	return true
}

func (d *Driver) decide(ctx context.Context, e *strategy.Engine) {
	var err error
	switch {
	case e.ShouldBuy():
		err = e.Buy()
	case e.ShouldSell():
		err = e.Sell()
	default:
		return
	}
	if err != nil {
		// Invalid operations are no-ops; the engine has logged them.
		d.log.Debug("trade not executed", "engine", e.Name(), "error", err)
		return
	}

	d.notify(ctx, e)
}

// notify passes the engine's latest event to every hook.
func (d *Driver) notify(ctx context.Context, e *strategy.Engine) {
	events := e.Events()
	if len(events) == 0 {
		return
	}
	ev := events[len(events)-1]
	for _, h := range d.hooks {
		h(ctx, e, ev)
	}
}

// Backfill ticks every sample in order and returns how many were accepted.
// It stops early when ctx is cancelled between ticks.
func (d *Driver) Backfill(ctx context.Context, samples []domain.PriceSample) int {
	fed := 0
	for _, s := range samples {
		if ctx.Err() != nil {
			break
		}
		if d.Tick(ctx, s) {
			fed++
		}
	}
	d.log.Info("backfill complete", "samples", len(samples), "accepted", fed)
	return fed
}

// ---------------------------------------------------------------------------
// Feeds
// ---------------------------------------------------------------------------

// Simulate backfills from feed's history and then, unless BackfillOnly is
// set, polls feed for live prices until ctx is cancelled. A failed backfill
// is returned as an error. Cancellation ends the run normally.
func (d *Driver) Simulate(ctx context.Context, feed gather.Feed, rc RunConfig) error {
	samples, err := util.RetryValue(ctx, attempts(rc.MaxRetries), rc.RetryDelay, func() ([]domain.PriceSample, error) {
		return feed.History(ctx, rc.Symbol, rc.Interval, rc.Span)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("backfilling %s: %w", rc.Symbol, err)
	}
	d.Backfill(ctx, samples)

	if rc.BackfillOnly || ctx.Err() != nil {
		return nil
	}
	return d.Poll(ctx, feed, rc)
}

// Poll fetches the current price once per PollInterval and ticks it, until
// ctx is cancelled. Fetch failures are retried, then logged and skipped.
func (d *Driver) Poll(ctx context.Context, feed gather.Feed, rc RunConfig) error {
	limiter := util.NewRateLimiter(rc.PollInterval)
	d.log.Info("live polling started", "symbol", rc.Symbol, "interval", limiter.Interval())

	for {
		if err := limiter.Wait(ctx); err != nil {
			// Cancelled: a stop request between ticks.
			d.log.Info("live polling stopped", "samples", len(d.history))
			return nil
		}
		s, err := util.RetryValue(ctx, attempts(rc.MaxRetries), rc.RetryDelay, func() (domain.PriceSample, error) {
			return feed.Current(ctx, rc.Symbol)
		})
		if err != nil {
			if ctx.Err() != nil {
				d.log.Info("live polling stopped", "samples", len(d.history))
				return nil
			}
			if errors.Is(err, gather.ErrNoLiveData) {
				return fmt.Errorf("polling %s: %w", rc.Symbol, err)
			}
			d.log.Warn("fetching current price failed", "symbol", rc.Symbol, "error", err)
			continue
		}
		d.log.Debug("current price", "symbol", rc.Symbol, "price", s.Price, "ts", s.Timestamp)
		d.Tick(ctx, s)
	}
}

func attempts(maxRetries int) int {
	if maxRetries < 1 {
		return 1
	}
	return maxRetries
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

// Close force-sells every open position, ranks the engines and returns the
// report. Later ticks are dropped; calling Close again rebuilds the same
// report without trading.
//
// The forced sales are passed to the trade hooks like any other sale.
func (d *Driver) Close(ctx context.Context, runID, symbol string) *report.Report {
	outcomes := make([]report.Outcome, len(d.engines))
	for i, e := range d.engines {
		var s domain.Summary
		if d.closed {
			s = e.Summary()
		} else {
			wasInvested := e.Invested()
			s = e.Close()
			if wasInvested {
				d.notify(ctx, e)
			}
		}
		outcomes[i] = report.Outcome{Summary: s, Events: e.Events()}
	}
	d.closed = true

	r := report.Build(report.Input{
		RunID:      runID,
		Symbol:     symbol,
		StartedAt:  d.startedAt,
		FinishedAt: d.now(),
		Outcomes:   outcomes,
		History:    d.History(),
	})
	if leader, ok := r.Leader(); ok {
		d.log.Info("simulation closed",
			"run", runID,
			"engines", len(r.Results),
			"leader", leader.Summary.Name,
			"ending_funds", leader.Summary.EndingFunds,
		)
	}
	return r
}
