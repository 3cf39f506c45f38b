// Package broker defines the Broker interface that receives mirrored trades
// and provides implementations for the Alpaca paper/live API and an
// in-memory simulator.
package broker

import (
	"context"
	"fmt"

	"quantsim/internal/config"
	"quantsim/internal/domain"
)

// Broker accepts dollar-notional market orders. The simulation engines never
// depend on it; it only receives trades mirrored from one engine.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitTrade places a market order for notional dollars of symbol.
	SubmitTrade(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.Order, error)
}

// New builds the broker named in the trading config.
func New(cfg *config.Config) (Broker, error) {
	switch cfg.Trading.Broker {
	case "", "simulator":
		return NewSimulatorBroker(), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("alpaca broker requires api_key and api_secret")
		}
		return NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Trading.Broker)
	}
}

func validate(symbol string, side domain.Side, notional float64) error {
	if symbol == "" {
		return fmt.Errorf("order symbol is empty")
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return fmt.Errorf("unknown order side %q", side)
	}
	if notional <= 0 {
		return fmt.Errorf("order notional must be positive, got %v", notional)
	}
	return nil
}
