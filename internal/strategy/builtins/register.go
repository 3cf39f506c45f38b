package builtins

import (
	"fmt"
	"time"

	"quantsim/internal/config"
	"quantsim/internal/strategy"
	"quantsim/internal/util"
)

// Engine kinds accepted in the engines section of the config file.
const (
	KindDerivative = "derivative"
	KindTimeWindow = "time_window"
	KindBaseline   = "baseline"
)

// NewRegistry returns a registry with every built-in policy registered.
// Time windows are evaluated in loc.
func NewRegistry(loc *time.Location) *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r, loc)
	return r
}

// Register adds the built-in policies to r.
func Register(r *strategy.Registry, loc *time.Location) {
	r.Register(KindDerivative, func(ec config.EngineConfig) (strategy.Policy, error) {
		if ec.Order < 0 {
			return nil, fmt.Errorf("derivative order must be positive, got %d", ec.Order)
		}
		p := NewNthDerivativeThreshold(ec.Order)
		if ec.BuyThreshold != nil {
			p.BuyThreshold = *ec.BuyThreshold
		}
		if ec.SellThreshold != nil {
			p.SellThreshold = *ec.SellThreshold
		}
		return p, nil
	})

	r.Register(KindTimeWindow, func(ec config.EngineConfig) (strategy.Policy, error) {
		p := NewTimeWindow(loc)
		if ec.BuyWindow != "" {
			w, err := util.ParseWindow(ec.BuyWindow)
			if err != nil {
				return nil, fmt.Errorf("buy window: %w", err)
			}
			p.BuyWindow = w
		}
		if ec.SellWindow != "" {
			w, err := util.ParseWindow(ec.SellWindow)
			if err != nil {
				return nil, fmt.Errorf("sell window: %w", err)
			}
			p.SellWindow = w
		}
		return p, nil
	})

	r.Register(KindBaseline, func(_ config.EngineConfig) (strategy.Policy, error) {
		return NewBaseline(), nil
	})
}
