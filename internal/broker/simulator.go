package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantsim/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface in memory. Every order
// fills immediately and no external API is called.
type SimulatorBroker struct {
	mu     sync.Mutex
	orders []domain.Order
	now    func() time.Time
}

// NewSimulatorBroker creates a new SimulatorBroker with an empty order log.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{now: time.Now}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitTrade records the order and marks it filled.
func (b *SimulatorBroker) SubmitTrade(_ context.Context, symbol string, side domain.Side, notional float64) (*domain.Order, error) {
	if err := validate(symbol, side, notional); err != nil {
		return nil, err
	}
	o := domain.Order{
		ID:            uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Notional:      notional,
		Status:        domain.OrderStatusFilled,
		CreatedAt:     b.now(),
	}

	b.mu.Lock()
	b.orders = append(b.orders, o)
	b.mu.Unlock()
	return &o, nil
}

// Orders returns a copy of every order submitted so far, oldest first.
func (b *SimulatorBroker) Orders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Order(nil), b.orders...)
}
