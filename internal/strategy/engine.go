package strategy

import (
	"fmt"
	"log/slog"
	"time"

	"quantsim/internal/domain"
)

// Params holds the bookkeeping and gating parameters of an Engine.
type Params struct {
	// Allowance is the starting cash.
	Allowance float64
	// MinSamples is the number of samples required before the derived series
	// is computed and before trading is permitted.
	MinSamples int
	// Cooldown is the minimum wall-clock time since the last trade anchor.
	Cooldown time.Duration
	// EmergencyEscapeThreshold is the fraction of the purchase price at or
	// below which an emergency escape fires.
	EmergencyEscapeThreshold float64
	// ResetCooldownOnTrade re-anchors the cooldown at the wall clock on every
	// completed buy or sell. When false the anchor is only set by the first
	// sample.
	ResetCooldownOnTrade bool
}

// DefaultParams returns the default engine parameters: a 100.00 allowance,
// 60 samples of warm-up, a one-minute cooldown and a 10% emergency drawdown.
func DefaultParams() Params {
	return Params{
		Allowance:                100.00,
		MinSamples:               60,
		Cooldown:                 time.Minute,
		EmergencyEscapeThreshold: 0.9,
	}
}

// Option customises an Engine at construction.
type Option func(*Engine)

// WithName overrides the engine name reported in summaries.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithClock sets the wall clock used by the cooldown gate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine is one independent trading strategy instance. It owns its funds,
// position and price history; nothing is shared between engines.
//
// Invariants: Invested is true exactly when SharesOwned is positive; funds
// move only by the dollar amount of each trade; the event log is append-only.
type Engine struct {
	name   string
	policy Policy
	params Params

	seedMoney         float64
	fundsAvailable    float64
	sharesOwned       float64
	invested          bool
	lastPurchasePrice float64
	hasPurchased      bool
	minFundValue      float64
	maxFundValue      float64

	prices          []float64
	times           []time.Time
	series          Series
	timeOfLastTrade time.Time
	events          []domain.TradeEvent

	now func() time.Time
	log *slog.Logger
}

// NewEngine creates an Engine driven by policy. A nil policy yields an
// engine whose decision methods panic with ErrNotImplemented.
func NewEngine(policy Policy, params Params, opts ...Option) *Engine {
	e := &Engine{
		name:   "Unnamed",
		policy: policy,
		params: params,
		now:    time.Now,
	}
	if policy != nil {
		e.name = policy.Name()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("engine", e.name)

	e.seedMoney = params.Allowance
	e.fundsAvailable = params.Allowance
	e.minFundValue = params.Allowance
	e.maxFundValue = params.Allowance
	e.timeOfLastTrade = e.now()
	return e
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// Policy returns the decision policy.
func (e *Engine) Policy() Policy { return e.policy }

// FundsAvailable returns the cash on hand.
func (e *Engine) FundsAvailable() float64 { return e.fundsAvailable }

// SharesOwned returns the fractional position size.
func (e *Engine) SharesOwned() float64 { return e.sharesOwned }

// Invested reports whether the engine holds the asset.
func (e *Engine) Invested() bool { return e.invested }

// SeedMoney returns the starting allowance.
func (e *Engine) SeedMoney() float64 { return e.seedMoney }

// MinFundValue returns the smallest realized sale value, seeded with the
// allowance.
func (e *Engine) MinFundValue() float64 { return e.minFundValue }

// MaxFundValue returns the largest realized sale value, seeded with the
// allowance.
func (e *Engine) MaxFundValue() float64 { return e.maxFundValue }

// LastPurchasePrice returns the price of the most recent buy. ok is false
// before the first buy.
func (e *Engine) LastPurchasePrice() (price float64, ok bool) {
	return e.lastPurchasePrice, e.hasPurchased
}

// SampleCount returns the number of samples observed.
func (e *Engine) SampleCount() int { return len(e.prices) }

// LatestPrice returns the most recent price. ok is false before the first
// update.
func (e *Engine) LatestPrice() (price float64, ok bool) {
	if len(e.prices) == 0 {
		return 0, false
	}
	return e.prices[len(e.prices)-1], true
}

// LatestTime returns the timestamp of the most recent sample, or the zero
// time before the first update.
func (e *Engine) LatestTime() time.Time {
	if len(e.times) == 0 {
		return time.Time{}
	}
	return e.times[len(e.times)-1]
}

// TimeOfLastTrade returns the cooldown anchor.
func (e *Engine) TimeOfLastTrade() time.Time { return e.timeOfLastTrade }

// Series returns the derived series as of the last update.
func (e *Engine) Series() Series { return e.series }

// Logger returns the engine-scoped logger.
func (e *Engine) Logger() *slog.Logger { return e.log }

// Events returns a copy of the trade event log.
func (e *Engine) Events() []domain.TradeEvent {
	return append([]domain.TradeEvent(nil), e.events...)
}

// ---------------------------------------------------------------------------
// Contract
// ---------------------------------------------------------------------------

// Update appends a sample to the history. The first sample anchors the
// trade cooldown. Once MinSamples have been seen the derived series is
// recomputed from the whole history. Update never trades.
func (e *Engine) Update(price float64, ts time.Time) {
	order := e.mustPolicy("Update").DerivativeOrder()

	if len(e.times) == 0 {
		e.timeOfLastTrade = ts
	}
	e.prices = append(e.prices, price)
	e.times = append(e.times, ts)

	if order > 0 && len(e.prices) >= e.params.MinSamples {
		x := make([]float64, len(e.times))
		for i, t := range e.times {
			x[i] = domain.UnixSeconds(t)
		}
		e.series = Derive(x, e.prices, order)
	}
}

// ShouldBuy asks the policy whether to buy now.
func (e *Engine) ShouldBuy() bool {
	return e.mustPolicy("ShouldBuy").ShouldBuy(e)
}

// ShouldSell asks the policy whether to sell now.
func (e *Engine) ShouldSell() bool {
	return e.mustPolicy("ShouldSell").ShouldSell(e)
}

// HowMuchToBuy returns the dollar amount a buy spends: all available funds.
func (e *Engine) HowMuchToBuy() float64 {
	return e.fundsAvailable
}

// Buy spends HowMuchToBuy at the latest price. It fails without changing
// state when already invested, before any price is known, or when there are
// no funds to spend.
func (e *Engine) Buy() error {
	if e.invested {
		e.log.Warn("trying to buy when already invested")
		return ErrAlreadyInvested
	}
	price, ok := e.LatestPrice()
	if !ok || price <= 0 {
		e.log.Warn("trying to buy without a price")
		return ErrNoPrice
	}
	amount := e.HowMuchToBuy()
	if amount <= 0 {
		e.log.Warn("trying to buy without funds", "funds", e.fundsAvailable)
		return ErrInsufficientFunds
	}

	shares := amount / price
	e.fundsAvailable -= amount
	e.sharesOwned += shares
	e.invested = true
	e.lastPurchasePrice = price
	e.hasPurchased = true
	e.afterTrade()

	e.log.Info("buy", "shares", shares, "price", price, "amount", amount)
	e.events = append(e.events, domain.TradeEvent{
		Amount:    amount,
		Timestamp: e.LatestTime(),
		IsSale:    false,
	})
	return nil
}

// Sell liquidates the whole position at the latest price. It fails without
// changing state when not invested.
func (e *Engine) Sell() error {
	if !e.invested {
		e.log.Warn("trying to sell when not invested")
		return ErrNotInvested
	}
	price, _ := e.LatestPrice()

	sold := e.sharesOwned
	amount := sold * price
	e.fundsAvailable += amount
	e.sharesOwned = 0
	e.invested = false

	if amount > e.maxFundValue {
		e.maxFundValue = amount
	}
	if amount < e.minFundValue {
		e.minFundValue = amount
	}
	e.afterTrade()

	e.log.Info("sell", "shares", sold, "price", price, "amount", amount)
	e.events = append(e.events, domain.TradeEvent{
		Amount:    amount,
		Timestamp: e.LatestTime(),
		IsSale:    true,
	})
	return nil
}

// CanTrade returns an empty string when trading is permitted, or the reason
// it is denied: too few samples, or too little wall-clock time since the
// cooldown anchor.
func (e *Engine) CanTrade() string {
	if len(e.prices) < e.params.MinSamples {
		return fmt.Sprintf("not enough samples to trade - num samples: %d", len(e.prices))
	}
	elapsed := e.now().Sub(e.timeOfLastTrade)
	if elapsed < e.params.Cooldown {
		return fmt.Sprintf("not enough time since last trade - time elapsed: %.2f min", elapsed.Minutes())
	}
	return ""
}

// Permit checks CanTrade on behalf of a policy that wants to trade, logging
// the denial reason when trading is gated.
func (e *Engine) Permit(side domain.Side) bool {
	if reason := e.CanTrade(); reason != "" {
		e.log.Info("trade denied", "side", side, "reason", reason)
		return false
	}
	return true
}

// EmergencyEscape reports whether price has fallen to or below the last
// purchase price scaled by the emergency threshold. It is false before the
// first buy.
func (e *Engine) EmergencyEscape(price float64) bool {
	last, ok := e.LastPurchasePrice()
	if !ok {
		e.log.Warn("last purchase price not initialized")
		return false
	}
	return price <= last*e.params.EmergencyEscapeThreshold
}

// Close force-sells any open position and returns the engine summary.
func (e *Engine) Close() domain.Summary {
	if e.invested {
		_ = e.Sell()
	}
	s := e.Summary()
	e.log.Info("engine closed",
		"start", s.StartingAllowance,
		"end", s.EndingFunds,
		"min", s.MinRealized,
		"max", s.MaxRealized,
	)
	return s
}

// Summary returns the current summary without closing the engine.
func (e *Engine) Summary() domain.Summary {
	return domain.Summary{
		Name:              e.name,
		StartingAllowance: e.seedMoney,
		EndingFunds:       e.fundsAvailable,
		MinRealized:       e.minFundValue,
		MaxRealized:       e.maxFundValue,
	}
}

func (e *Engine) afterTrade() {
	// CanTrade measures against the wall clock, so the anchor must be on it
	// too; sample times are historical during backfill.
	if e.params.ResetCooldownOnTrade {
		e.timeOfLastTrade = e.now()
	}
}

func (e *Engine) mustPolicy(op string) Policy {
	if e.policy == nil {
		panic(fmt.Errorf("%w: %s on engine %q without a policy", ErrNotImplemented, op, e.name))
	}
	return e.policy
}
