// Package domain holds the value types shared across the simulator: price
// samples, trade events, engine summaries and broker orders.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// PriceSample is a single observed price of the traded asset. Samples are
// immutable once appended to a history.
type PriceSample struct {
	Price     float64
	Timestamp time.Time
}

// Seconds returns the sample timestamp as fractional Unix seconds.
func (s PriceSample) Seconds() float64 {
	return UnixSeconds(s.Timestamp)
}

// UnixSeconds converts t to fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts fractional Unix seconds to a time.Time.
func FromUnixSeconds(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent records one executed buy or sell. Amount is the dollar value of
// the trade. Events are never mutated once logged.
type TradeEvent struct {
	Amount    float64
	Timestamp time.Time
	IsSale    bool
}

// Side reports whether the event was a buy or a sale.
func (e TradeEvent) Side() Side {
	if e.IsSale {
		return SideSell
	}
	return SideBuy
}

// Summary is the closing record of one engine.
type Summary struct {
	Name              string
	StartingAllowance float64
	EndingFunds       float64
	MinRealized       float64
	MaxRealized       float64
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderStatus tracks an order submitted to a broker.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a dollar-notional order handed to a broker.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Notional      float64
	Status        OrderStatus
	CreatedAt     time.Time
}
