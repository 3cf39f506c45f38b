// Package strategy defines the Engine contract shared by every trading
// strategy: funds and position bookkeeping, the derived price series, the
// warm-up and cooldown gate, and the Policy interface through which concrete
// strategies decide when to buy and sell.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"quantsim/internal/config"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrInvalidOperation is the class of errors returned by Buy and Sell when
// the engine is in the wrong state for the operation. They are local
// diagnostics: the call is a no-op and the simulation continues.
var ErrInvalidOperation = errors.New("invalid operation")

var (
	ErrAlreadyInvested   = fmt.Errorf("%w: already invested", ErrInvalidOperation)
	ErrNotInvested       = fmt.Errorf("%w: not invested", ErrInvalidOperation)
	ErrNoPrice           = fmt.Errorf("%w: no price observed", ErrInvalidOperation)
	ErrInsufficientFunds = fmt.Errorf("%w: no funds available", ErrInvalidOperation)
)

// ErrNotImplemented is raised (as a panic value) when an Engine without a
// Policy is asked for a decision. It signals a programming error.
var ErrNotImplemented = errors.New("not implemented")

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

// Policy is the decision logic plugged into an Engine. Policies must not
// mutate the engine they are given.
type Policy interface {
	// Name returns the default engine name for this policy.
	Name() string

	// DerivativeOrder is the order of the derived series the engine keeps up
	// to date for this policy. Zero disables the derived series.
	DerivativeOrder() int

	// ShouldBuy reports whether the engine should buy at its latest price.
	ShouldBuy(e *Engine) bool

	// ShouldSell reports whether the engine should sell at its latest price.
	ShouldSell(e *Engine) bool
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Factory builds a Policy from its engine configuration.
type Factory func(cfg config.EngineConfig) (Policy, error)

// Registry maps engine kinds (as written in the config file) to the
// factories that build their policies.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for kind, replacing any previous one.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Get retrieves the factory for kind. The second return value indicates
// whether the kind was found.
func (r *Registry) Get(kind string) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

// List returns a sorted slice of all registered kinds.
func (r *Registry) List() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs an Engine for one engine config. Per-engine settings win
// over the trading defaults.
func (r *Registry) Build(trading config.TradingConfig, ec config.EngineConfig, opts ...Option) (*Engine, error) {
	policy, err := r.policy(ec)
	if err != nil {
		return nil, err
	}
	if ec.Name != "" {
		opts = append(opts[:len(opts):len(opts)], WithName(ec.Name))
	}
	return NewEngine(policy, ParamsFor(trading, ec), opts...), nil
}

// BuildAll constructs one Engine per config, in order. Engine names are
// unique: explicit names must not repeat, and a default policy name already
// in use gets a "#n" suffix, e.g. "TimeWindow#2".
func (r *Registry) BuildAll(trading config.TradingConfig, ecs []config.EngineConfig, opts ...Option) ([]*Engine, error) {
	policies := make([]Policy, len(ecs))
	taken := make(map[string]bool, len(ecs))
	for i, ec := range ecs {
		p, err := r.policy(ec)
		if err != nil {
			return nil, fmt.Errorf("engine %d: %w", i, err)
		}
		policies[i] = p
		if ec.Name == "" {
			continue
		}
		if taken[ec.Name] {
			return nil, fmt.Errorf("engine %d: duplicate name %q", i, ec.Name)
		}
		taken[ec.Name] = true
	}

	engines := make([]*Engine, 0, len(ecs))
	for i, ec := range ecs {
		name := ec.Name
		if name == "" {
			name = uniqueName(policies[i].Name(), taken)
			taken[name] = true
		}
		engineOpts := append(opts[:len(opts):len(opts)], WithName(name))
		engines = append(engines, NewEngine(policies[i], ParamsFor(trading, ec), engineOpts...))
	}
	return engines, nil
}

func (r *Registry) policy(ec config.EngineConfig) (Policy, error) {
	f, ok := r.Get(ec.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown engine kind %q (known: %v)", ec.Kind, r.List())
	}
	policy, err := f(ec)
	if err != nil {
		return nil, fmt.Errorf("building %s engine: %w", ec.Kind, err)
	}
	return policy, nil
}

// uniqueName returns base, or base#n for the smallest n >= 2 not in taken.
func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		if name := fmt.Sprintf("%s#%d", base, n); !taken[name] {
			return name
		}
	}
}

// ParamsFor resolves the bookkeeping parameters of an engine from the
// trading defaults and the engine's own overrides.
func ParamsFor(trading config.TradingConfig, ec config.EngineConfig) Params {
	p := DefaultParams()
	if trading.Allowance > 0 {
		p.Allowance = trading.Allowance
	}
	if trading.MinSamples > 0 {
		p.MinSamples = trading.MinSamples
	}
	if trading.Cooldown != nil {
		p.Cooldown = *trading.Cooldown
	}
	if trading.EmergencyThreshold > 0 {
		p.EmergencyEscapeThreshold = trading.EmergencyThreshold
	}
	p.ResetCooldownOnTrade = trading.ResetCooldownOnTrade

	if ec.Allowance > 0 {
		p.Allowance = ec.Allowance
	}
	if ec.MinSamples > 0 {
		p.MinSamples = ec.MinSamples
	}
	if ec.Cooldown != nil {
		p.Cooldown = *ec.Cooldown
	}
	if ec.EmergencyThreshold > 0 {
		p.EmergencyEscapeThreshold = ec.EmergencyThreshold
	}
	return p
}
