package builtins

import "quantsim/internal/strategy"

// Compile-time interface check.
var _ strategy.Policy = (*Baseline)(nil)

// Baseline buys at the first opportunity and never sells. It ignores the
// trade gate and serves as the buy-and-hold reference.
type Baseline struct{}

// NewBaseline creates a Baseline policy.
func NewBaseline() *Baseline { return &Baseline{} }

// Name returns "Baseline".
func (b *Baseline) Name() string { return "Baseline" }

// DerivativeOrder returns 0: no derived series is kept.
func (b *Baseline) DerivativeOrder() int { return 0 }

// ShouldBuy is true whenever the engine is not invested.
func (b *Baseline) ShouldBuy(e *strategy.Engine) bool { return !e.Invested() }

// ShouldSell is always false.
func (b *Baseline) ShouldSell(_ *strategy.Engine) bool { return false }
