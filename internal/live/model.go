// Package live provides a shared in-memory model of a running simulation:
// the latest engine states, recent trades and the final report, with
// pub/sub for streaming updates to HTTP clients.
package live

import (
	"context"
	"sync"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/report"
	"quantsim/internal/strategy"
)

// maxRecentTrades bounds the trade log kept for late subscribers.
const maxRecentTrades = 200

// EngineState is a point-in-time view of one engine.
type EngineState struct {
	Name     string  `json:"name"`
	Funds    float64 `json:"funds"`
	Shares   float64 `json:"shares"`
	Invested bool    `json:"invested"`
	// Equity is funds plus the position marked at the latest price.
	Equity float64 `json:"equity"`
	Trades int     `json:"trades"`
	// Gate is the reason trading is currently denied, empty when permitted.
	Gate string `json:"gate,omitempty"`
}

// Trade is one executed trade of a named engine.
type Trade struct {
	Engine    string      `json:"engine"`
	Side      domain.Side `json:"side"`
	Amount    float64     `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}

// Snapshot is the state of the simulation after the latest tick.
type Snapshot struct {
	Symbol    string        `json:"symbol"`
	Samples   int           `json:"samples"`
	Price     float64       `json:"price"`
	Timestamp time.Time     `json:"timestamp"`
	Engines   []EngineState `json:"engines"`
	Closed    bool          `json:"closed"`
}

// Update is emitted to subscribers after every tick and once on Finish.
type Update struct {
	Snapshot Snapshot `json:"snapshot"`
	// Trades are the trades executed since the previous update.
	Trades []Trade `json:"trades,omitempty"`
}

// Model holds the live view of one simulation. Observe and RecordTrade are
// called from the driver goroutine; readers may call the rest concurrently.
type Model struct {
	mu      sync.RWMutex
	snap    Snapshot
	recent  []Trade
	pending []Trade
	report  *report.Report

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Update
}

// NewModel creates an empty model for symbol.
func NewModel(symbol string) *Model {
	return &Model{
		snap: Snapshot{Symbol: symbol, Engines: []EngineState{}},
		subs: make(map[int]chan Update),
	}
}

// Observe records the engine states after sample s. Its signature matches
// the driver's tick hook.
func (m *Model) Observe(_ context.Context, s domain.PriceSample, engines []*strategy.Engine) {
	states := make([]EngineState, len(engines))
	for i, e := range engines {
		states[i] = EngineState{
			Name:     e.Name(),
			Funds:    e.FundsAvailable(),
			Shares:   e.SharesOwned(),
			Invested: e.Invested(),
			Equity:   e.FundsAvailable() + e.SharesOwned()*s.Price,
			Trades:   len(e.Events()),
			Gate:     e.CanTrade(),
		}
	}

	m.mu.Lock()
	m.snap.Samples++
	m.snap.Price = s.Price
	m.snap.Timestamp = s.Timestamp
	m.snap.Engines = states
	u := m.flushLocked()
	m.mu.Unlock()

	m.publish(u)
}

// RecordTrade queues a trade for the next update. Its signature matches the
// driver's trade hook.
func (m *Model) RecordTrade(_ context.Context, e *strategy.Engine, ev domain.TradeEvent) {
	m.mu.Lock()
	m.pending = append(m.pending, Trade{
		Engine:    e.Name(),
		Side:      ev.Side(),
		Amount:    ev.Amount,
		Timestamp: ev.Timestamp,
	})
	m.mu.Unlock()
}

// Finish marks the simulation closed, stores its report and publishes the
// final update, including the forced closing sales. Engines are listed in
// ranking order from then on.
func (m *Model) Finish(r *report.Report) {
	m.mu.Lock()
	m.report = r
	m.snap.Closed = true
	states := make([]EngineState, 0, len(r.Results))
	for _, res := range r.Results {
		states = append(states, EngineState{
			Name:   res.Summary.Name,
			Funds:  res.Summary.EndingFunds,
			Equity: res.Summary.EndingFunds,
			Trades: len(res.Events),
		})
	}
	m.snap.Engines = states
	u := m.flushLocked()
	m.mu.Unlock()

	m.publish(u)
}

// flushLocked moves pending trades to the recent log and returns the update
// describing the current state. m.mu must be held.
func (m *Model) flushLocked() Update {
	u := Update{Snapshot: m.snapshotLocked(), Trades: m.pending}
	m.recent = append(m.recent, m.pending...)
	if over := len(m.recent) - maxRecentTrades; over > 0 {
		m.recent = append([]Trade(nil), m.recent[over:]...)
	}
	m.pending = nil
	return u
}

func (m *Model) snapshotLocked() Snapshot {
	s := m.snap
	s.Engines = append([]EngineState(nil), m.snap.Engines...)
	return s
}

func (m *Model) publish(u Update) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- u:
		default:
			// Slow subscriber, drop update.
		}
	}
}

// Snapshot returns a copy of the latest state.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// RecentTrades returns a copy of the most recent trades, oldest first.
func (m *Model) RecentTrades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Trade{}, m.recent...)
}

// Report returns the final report. ok is false while the simulation runs.
func (m *Model) Report() (r *report.Report, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report, m.report != nil
}

// Subscribe creates a new subscription channel for updates.
func (m *Model) Subscribe(bufSize int) (id int, ch <-chan Update) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id = m.nextSubID
	m.nextSubID++
	c := make(chan Update, bufSize)
	m.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Model) Unsubscribe(id int) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}
