package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quantsim/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// orderPlacer is the subset of *alpaca.Client used by AlpacaBroker.
type orderPlacer interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// AlpacaBroker implements the Broker interface using the Alpaca trading API.
// Point baseURL at https://paper-api.alpaca.markets for paper trading.
type AlpacaBroker struct {
	client orderPlacer
	log    *slog.Logger
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	return newAlpacaBroker(alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}))
}

func newAlpacaBroker(client orderPlacer) *AlpacaBroker {
	return &AlpacaBroker{
		client: client,
		log:    slog.Default().With("broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitTrade places a notional market order. Crypto orders are good till
// cancelled; equity orders are day orders, as Alpaca requires for
// fractional quantities.
func (b *AlpacaBroker) SubmitTrade(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.Order, error) {
	if err := validate(symbol, side, notional); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	amount := decimal.NewFromFloat(notional).Round(2)
	req := alpaca.PlaceOrderRequest{
		Symbol:        symbol,
		Notional:      &amount,
		Side:          alpaca.Buy,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	}
	if side == domain.SideSell {
		req.Side = alpaca.Sell
	}
	if strings.Contains(symbol, "/") {
		req.TimeInForce = alpaca.GTC
	}

	o, err := b.client.PlaceOrder(req)
	if err != nil {
		return nil, fmt.Errorf("placing %s order for %s: %w", side, symbol, err)
	}

	order := &domain.Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        symbol,
		Side:          side,
		Notional:      amount.InexactFloat64(),
		Status:        orderStatus(o.Status),
		CreatedAt:     o.CreatedAt,
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	b.log.Info("order placed",
		"id", order.ID,
		"symbol", symbol,
		"side", side,
		"notional", amount.StringFixed(2),
		"status", order.Status,
	)
	return order, nil
}

func orderStatus(s string) domain.OrderStatus {
	switch s {
	case "new", "pending_new":
		return domain.OrderStatusNew
	case "filled", "partially_filled":
		return domain.OrderStatusFilled
	case "rejected":
		return domain.OrderStatusRejected
	case "canceled", "expired":
		return domain.OrderStatusCancelled
	default:
		return domain.OrderStatusAccepted
	}
}
