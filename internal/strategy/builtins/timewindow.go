package builtins

import (
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/strategy"
	"quantsim/internal/util"
)

// Compile-time interface check.
var _ strategy.Policy = (*TimeWindow)(nil)

// TimeWindow buys in the window right after the market closes and sells in
// the window right after it opens, betting that after-hours dislocation
// reverts. An invested engine also sells unconditionally once the price has
// fallen through its emergency escape threshold.
//
// Window membership is judged on the latest sample's clock time in Location.
type TimeWindow struct {
	BuyWindow  util.Window
	SellWindow util.Window
	Location   *time.Location
}

// NewTimeWindow creates a policy with the default 16:00-16:30 buy window and
// 08:00-08:30 sell window evaluated in loc. A nil loc means time.Local.
func NewTimeWindow(loc *time.Location) *TimeWindow {
	if loc == nil {
		loc = time.Local
	}
	return &TimeWindow{
		BuyWindow:  util.MarketJustClosed,
		SellWindow: util.MarketJustOpened,
		Location:   loc,
	}
}

// Name returns "TimeWindow".
func (w *TimeWindow) Name() string { return "TimeWindow" }

// DerivativeOrder returns 1. The derived series only serves as the warm-up
// gate for this policy.
func (w *TimeWindow) DerivativeOrder() int { return 1 }

// ShouldBuy signals inside the buy window.
func (w *TimeWindow) ShouldBuy(e *strategy.Engine) bool {
	if e.Series().Len() < 1 || e.Invested() {
		return false
	}
	if w.BuyWindow.Contains(e.LatestTime(), w.Location) {
		return e.Permit(domain.SideBuy)
	}
	return false
}

// ShouldSell signals on an emergency escape, which bypasses the trade gate,
// or inside the sell window.
func (w *TimeWindow) ShouldSell(e *strategy.Engine) bool {
	if !e.Invested() {
		return false
	}
	if price, ok := e.LatestPrice(); ok && e.EmergencyEscape(price) {
		e.Logger().Info("initiating sale for emergency escape", "price", price)
		return true
	}
	if e.Series().Len() < 1 {
		return false
	}
	if w.SellWindow.Contains(e.LatestTime(), w.Location) {
		if !e.Permit(domain.SideSell) {
			return false
		}
		e.Logger().Info("initiating sale for market open")
		return true
	}
	return false
}
