// Package builtins provides the built-in trading policies: derivative
// threshold momentum, time-of-day windows and the buy-and-hold baseline.
package builtins

import (
	"fmt"

	"quantsim/internal/domain"
	"quantsim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Policy = (*DerivativeThreshold)(nil)

const (
	// DefaultBuyThreshold is the derivative at or above which a momentum
	// entry is signalled.
	DefaultBuyThreshold = 0.01
	// DefaultSellThreshold is the derivative at or below which an exit is
	// signalled.
	DefaultSellThreshold = 0.0
)

// DerivativeThreshold buys when the latest derivative sample of the price
// history is at or above BuyThreshold and sells when it is at or below
// SellThreshold. Order selects which derivative is used: 1 is price velocity,
// 2 its acceleration and so on.
type DerivativeThreshold struct {
	Order         int
	BuyThreshold  float64
	SellThreshold float64
}

// NewDerivativeThreshold creates a first-order policy with the default
// thresholds.
func NewDerivativeThreshold() *DerivativeThreshold {
	return NewNthDerivativeThreshold(1)
}

// NewNthDerivativeThreshold creates a policy over the order-th derivative with
// the default thresholds. Orders below 1 are raised to 1.
func NewNthDerivativeThreshold(order int) *DerivativeThreshold {
	if order < 1 {
		order = 1
	}
	return &DerivativeThreshold{
		Order:         order,
		BuyThreshold:  DefaultBuyThreshold,
		SellThreshold: DefaultSellThreshold,
	}
}

// Name returns "DerivativeThreshold" for the first order and
// "DerivativeThreshold[n]" for higher orders.
func (d *DerivativeThreshold) Name() string {
	if d.Order <= 1 {
		return "DerivativeThreshold"
	}
	return fmt.Sprintf("DerivativeThreshold[%d]", d.Order)
}

// DerivativeOrder returns the configured order.
func (d *DerivativeThreshold) DerivativeOrder() int { return d.Order }

// ShouldBuy signals on a derivative at or above the buy threshold.
func (d *DerivativeThreshold) ShouldBuy(e *strategy.Engine) bool {
	last, ok := e.Series().Last()
	if !ok || e.Invested() {
		return false
	}
	if last >= d.BuyThreshold {
		return e.Permit(domain.SideBuy)
	}
	return false
}

// ShouldSell signals on a derivative at or below the sell threshold.
func (d *DerivativeThreshold) ShouldSell(e *strategy.Engine) bool {
	last, ok := e.Series().Last()
	if !ok || !e.Invested() {
		return false
	}
	if last <= d.SellThreshold {
		return e.Permit(domain.SideSell)
	}
	return false
}
