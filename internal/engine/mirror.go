package engine

import (
	"context"
	"fmt"
	"log/slog"

	"quantsim/internal/broker"
	"quantsim/internal/domain"
	"quantsim/internal/strategy"
)

// Mirror forwards the trades of one named engine to a broker. Trades from
// other engines are ignored. Broker failures are logged and never affect
// the simulation.
//
// A sell is forwarded only while a mirrored buy is open, so a buy rejected
// by the notional limit or by the broker is never followed by its sale.
// Sells of an open position skip the limit.
type Mirror struct {
	broker      broker.Broker
	symbol      string
	engine      string
	maxNotional float64
	open        bool
	orders      []domain.Order
	log         *slog.Logger
}

// NewMirror creates a Mirror of engine's trades in symbol.
//
//   - maxNotional: largest dollar amount forwarded in a single order; zero
//     means no limit.
func NewMirror(b broker.Broker, symbol, engine string, maxNotional float64) *Mirror {
	return &Mirror{
		broker:      b,
		symbol:      symbol,
		engine:      engine,
		maxNotional: maxNotional,
		log:         slog.Default().With("component", "mirror", "broker", b.Name(), "engine", engine),
	}
}

// CheckTrade reports whether a trade of notional dollars may be forwarded.
func (m *Mirror) CheckTrade(notional float64) error {
	if notional <= 0 {
		return fmt.Errorf("notional %.2f is not positive", notional)
	}
	if m.maxNotional > 0 && notional > m.maxNotional {
		return fmt.Errorf("notional %.2f exceeds limit %.2f", notional, m.maxNotional)
	}
	return nil
}

// Hook returns the TradeHook to register on a Driver.
func (m *Mirror) Hook() TradeHook {
	return func(ctx context.Context, e *strategy.Engine, ev domain.TradeEvent) {
		if e.Name() != m.engine {
			return
		}
		side := ev.Side()
		switch {
		case side == domain.SideBuy && m.open:
			m.log.Warn("mirrored buy skipped, position already open", "amount", ev.Amount)
			return
		case side == domain.SideSell && !m.open:
			m.log.Warn("mirrored sell skipped, no mirrored position", "amount", ev.Amount)
			return
		case side == domain.SideBuy:
			if err := m.CheckTrade(ev.Amount); err != nil {
				m.log.Warn("mirrored trade rejected", "side", side, "error", err)
				return
			}
		}

		o, err := m.broker.SubmitTrade(ctx, m.symbol, side, ev.Amount)
		if err != nil {
			m.log.Error("mirrored trade failed", "side", side, "amount", ev.Amount, "error", err)
			return
		}
		m.open = side == domain.SideBuy
		m.orders = append(m.orders, *o)
	}
}

// Open reports whether a mirrored buy is awaiting its sale.
func (m *Mirror) Open() bool { return m.open }

// Orders returns the orders placed so far.
func (m *Mirror) Orders() []domain.Order {
	return append([]domain.Order(nil), m.orders...)
}
