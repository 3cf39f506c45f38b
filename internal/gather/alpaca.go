package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantsim/internal/domain"
)

// Compile-time interface check.
var _ Feed = (*AlpacaFeed)(nil)

// marketDataClient is the subset of *marketdata.Client used by AlpacaFeed.
type marketDataClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetLatestCryptoTrade(symbol string, req marketdata.GetLatestCryptoTradeRequest) (*marketdata.CryptoTrade, error)
}

// AlpacaFeed reads prices from the Alpaca market-data API. Symbols
// containing "/" (e.g. "BTC/USD") are crypto pairs; anything else is a US
// equity.
//
// Historical samples use each bar's open price at the bar's start time.
type AlpacaFeed struct {
	client marketDataClient
	feed   string
	now    func() time.Time
	log    *slog.Logger
}

// NewAlpacaFeed creates an AlpacaFeed with the given credentials. dataURL
// overrides the market-data endpoint when set; feed selects the stock data
// feed ("iex" or "sip").
func NewAlpacaFeed(apiKey, apiSecret, dataURL, feed string) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaFeed(marketdata.NewClient(opts), feed, time.Now)
}

func newAlpacaFeed(client marketDataClient, feed string, now func() time.Time) *AlpacaFeed {
	return &AlpacaFeed{
		client: client,
		feed:   feed,
		now:    now,
		log:    slog.Default().With("feed", "alpaca"),
	}
}

// History fetches bars covering span at the given interval.
func (f *AlpacaFeed) History(ctx context.Context, symbol string, interval Interval, span Span) ([]domain.PriceSample, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tf, err := timeFrame(interval)
	if err != nil {
		return nil, err
	}
	r := span.Range(f.now())

	var samples []domain.PriceSample
	if isCrypto(symbol) {
		bars, err := f.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: tf,
			Start:     r.Start,
			End:       r.End,
		})
		if err != nil {
			return nil, fmt.Errorf("GetCryptoBars %s: %w", symbol, err)
		}
		samples = make([]domain.PriceSample, 0, len(bars))
		for _, b := range bars {
			samples = append(samples, domain.PriceSample{Price: b.Open, Timestamp: b.Timestamp})
		}
	} else {
		bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     r.Start,
			End:       r.End,
			Feed:      marketdata.Feed(f.feed),
		})
		if err != nil {
			return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
		}
		samples = make([]domain.PriceSample, 0, len(bars))
		for _, b := range bars {
			samples = append(samples, domain.PriceSample{Price: b.Open, Timestamp: b.Timestamp})
		}
	}

	f.log.Info("history fetched",
		"symbol", symbol,
		"interval", interval.Name,
		"span", span.Name,
		"samples", len(samples),
	)
	return samples, nil
}

// Current fetches the latest trade price.
func (f *AlpacaFeed) Current(ctx context.Context, symbol string) (domain.PriceSample, error) {
	if ctx.Err() != nil {
		return domain.PriceSample{}, ctx.Err()
	}
	if isCrypto(symbol) {
		t, err := f.client.GetLatestCryptoTrade(symbol, marketdata.GetLatestCryptoTradeRequest{})
		if err != nil {
			return domain.PriceSample{}, fmt.Errorf("GetLatestCryptoTrade %s: %w", symbol, err)
		}
		if t == nil {
			return domain.PriceSample{}, fmt.Errorf("no latest trade for %s", symbol)
		}
		return domain.PriceSample{Price: t.Price, Timestamp: t.Timestamp}, nil
	}

	t, err := f.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{
		Feed: marketdata.Feed(f.feed),
	})
	if err != nil {
		return domain.PriceSample{}, fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
	}
	if t == nil {
		return domain.PriceSample{}, fmt.Errorf("no latest trade for %s", symbol)
	}
	return domain.PriceSample{Price: t.Price, Timestamp: t.Timestamp}, nil
}

// timeFrame maps an interval onto an Alpaca bar time frame. Alpaca bars are
// at least a minute wide.
func timeFrame(iv Interval) (marketdata.TimeFrame, error) {
	switch {
	case iv.Step == 7*24*time.Hour:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case iv.Step == 24*time.Hour:
		return marketdata.OneDay, nil
	case iv.Step == time.Hour:
		return marketdata.OneHour, nil
	case iv.Step >= time.Minute && iv.Step%time.Minute == 0 && iv.Step < time.Hour:
		return marketdata.NewTimeFrame(int(iv.Step/time.Minute), marketdata.Min), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedInterval, iv.Name)
	}
}

func isCrypto(symbol string) bool {
	return strings.Contains(symbol, "/")
}
