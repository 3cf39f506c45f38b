package builtins

import (
	"math"
	"testing"
	"time"

	"quantsim/internal/config"
	"quantsim/internal/strategy"
	"quantsim/internal/util"
)

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

func params(minSamples int, cooldown time.Duration) strategy.Params {
	p := strategy.DefaultParams()
	p.MinSamples = minSamples
	p.Cooldown = cooldown
	return p
}

// frozen pins the engine wall clock at the given instant.
func frozen(t time.Time) strategy.Option {
	return strategy.WithClock(func() time.Time { return t })
}

func TestBaselineBuyAndHold(t *testing.T) {
	t0 := time.Unix(0, 0)
	e := strategy.NewEngine(NewBaseline(), strategy.DefaultParams(), frozen(t0))

	e.Update(50, t0)
	if !e.ShouldBuy() {
		t.Fatal("Baseline ShouldBuy() = false on first sample")
	}
	if err := e.Buy(); err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}
	if e.SharesOwned() != 2.0 || e.FundsAvailable() != 0 || !e.Invested() {
		t.Errorf("after buy shares=%v funds=%v invested=%v, want 2, 0, true",
			e.SharesOwned(), e.FundsAvailable(), e.Invested())
	}
	if e.ShouldBuy() {
		t.Error("Baseline ShouldBuy() = true while invested")
	}

	e.Update(60, t0.Add(time.Minute))
	if e.ShouldSell() {
		t.Error("Baseline ShouldSell() = true, want never")
	}

	shares := e.SharesOwned()
	s := e.Close()
	if want := shares * 60; s.EndingFunds != want {
		t.Errorf("EndingFunds = %v, want %v", s.EndingFunds, want)
	}
	if s.Name != "Baseline" {
		t.Errorf("Name = %q, want %q", s.Name, "Baseline")
	}
}

func TestDerivativeThresholdSignals(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC)
	e := strategy.NewEngine(NewDerivativeThreshold(), params(3, 0), frozen(t0.Add(time.Hour)))

	e.Update(10, t0)
	e.Update(11, t0.Add(time.Second))
	if e.ShouldBuy() {
		t.Error("ShouldBuy() = true before the derived series exists")
	}
	e.Update(12, t0.Add(2*time.Second))
	if !e.ShouldBuy() {
		t.Fatal("ShouldBuy() = false with derivative 1.0 >= 0.01")
	}
	if err := e.Buy(); err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}
	if e.ShouldSell() {
		t.Error("ShouldSell() = true with a rising price")
	}

	e.Update(11, t0.Add(3*time.Second))
	if !e.ShouldSell() {
		t.Error("ShouldSell() = false with derivative -1.0 <= 0")
	}
}

func TestDerivativeThresholdBelowBuyThreshold(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC)
	e := strategy.NewEngine(NewDerivativeThreshold(), params(2, 0), frozen(t0.Add(time.Hour)))

	// 0.5 over a minute is below 0.01 per second.
	e.Update(10, t0)
	e.Update(10.5, t0.Add(time.Minute))
	if e.ShouldBuy() {
		t.Error("ShouldBuy() = true with derivative below threshold")
	}
}

func TestDerivativeThresholdGated(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC)
	// Clock sits at the first sample, so the cooldown has not elapsed.
	e := strategy.NewEngine(NewDerivativeThreshold(), params(2, time.Minute), frozen(t0))

	e.Update(10, t0)
	e.Update(20, t0.Add(time.Second))
	if e.ShouldBuy() {
		t.Error("ShouldBuy() = true while the cooldown gate denies trading")
	}
}

func TestDerivativeThresholdNames(t *testing.T) {
	tests := []struct {
		order int
		want  string
	}{
		{0, "DerivativeThreshold"},
		{1, "DerivativeThreshold"},
		{2, "DerivativeThreshold[2]"},
		{4, "DerivativeThreshold[4]"},
	}
	for _, tt := range tests {
		p := NewNthDerivativeThreshold(tt.order)
		if got := p.Name(); got != tt.want {
			t.Errorf("NewNthDerivativeThreshold(%d).Name() = %q, want %q", tt.order, got, tt.want)
		}
		if p.DerivativeOrder() < 1 {
			t.Errorf("DerivativeOrder() = %d, want >= 1", p.DerivativeOrder())
		}
	}
}

func TestSecondOrderDerivative(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC)
	e := strategy.NewEngine(NewNthDerivativeThreshold(2), params(3, 0), frozen(t0.Add(time.Hour)))

	// Accelerating price: second derivative 2 per second squared.
	e.Update(0, t0)
	e.Update(1, t0.Add(time.Second))
	e.Update(4, t0.Add(2*time.Second))
	if v, ok := e.Series().Last(); !ok || math.Abs(v-2) > 1e-9 {
		t.Fatalf("Series().Last() = %v, %v; want 2, true", v, ok)
	}
	if !e.ShouldBuy() {
		t.Error("ShouldBuy() = false with positive acceleration")
	}
}

func TestTimeWindowBuysAfterClose(t *testing.T) {
	day := time.Date(2024, 6, 14, 0, 0, 0, 0, newYork)
	e := strategy.NewEngine(NewTimeWindow(newYork), params(2, 0), frozen(day.Add(24*time.Hour)))

	e.Update(100, day.Add(15*time.Hour+50*time.Minute))
	e.Update(100, day.Add(15*time.Hour+55*time.Minute))
	if e.ShouldBuy() {
		t.Error("ShouldBuy() = true at 15:55, outside the buy window")
	}

	e.Update(100, day.Add(16*time.Hour+10*time.Minute))
	if !e.ShouldBuy() {
		t.Fatal("ShouldBuy() = false at 16:10")
	}
	if err := e.Buy(); err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}

	e.Update(101, day.Add(24*time.Hour+8*time.Hour+15*time.Minute))
	if !e.ShouldSell() {
		t.Error("ShouldSell() = false at 08:15 the next morning")
	}
}

func TestTimeWindowEmergencyEscapeBypassesGate(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 3, 0, 0, 0, newYork)
	// Default warm-up of 60 samples and a frozen clock keep CanTrade denying.
	e := strategy.NewEngine(NewTimeWindow(newYork), strategy.DefaultParams(), frozen(t0))

	e.Update(100, t0)
	if err := e.Buy(); err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}
	e.Update(89, t0.Add(time.Minute))

	if e.CanTrade() == "" {
		t.Fatal("CanTrade() permitted trading, test setup is wrong")
	}
	if !e.ShouldSell() {
		t.Error("ShouldSell() = false at 89 against a 100 purchase, want emergency escape")
	}
}

func TestTimeWindowNoEscapeAboveThreshold(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 3, 0, 0, 0, newYork)
	e := strategy.NewEngine(NewTimeWindow(newYork), strategy.DefaultParams(), frozen(t0))

	e.Update(100, t0)
	_ = e.Buy()
	e.Update(95, t0.Add(time.Minute))
	if e.ShouldSell() {
		t.Error("ShouldSell() = true at 95 outside the sell window")
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry(newYork)
	kinds := r.List()
	want := []string{KindBaseline, KindDerivative, KindTimeWindow}
	if len(kinds) != len(want) {
		t.Fatalf("List() = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}

	buy, sell := 0.5, -0.5
	e, err := r.Build(config.TradingConfig{}, config.EngineConfig{
		Kind: KindDerivative, Order: 3, BuyThreshold: &buy, SellThreshold: &sell,
	})
	if err != nil {
		t.Fatalf("Build derivative: %v", err)
	}
	d, ok := e.Policy().(*DerivativeThreshold)
	if !ok {
		t.Fatalf("Policy() = %T, want *DerivativeThreshold", e.Policy())
	}
	if d.Order != 3 || d.BuyThreshold != 0.5 || d.SellThreshold != -0.5 {
		t.Errorf("derivative policy = %+v, unexpected", d)
	}
	if e.Name() != "DerivativeThreshold[3]" {
		t.Errorf("Name() = %q, want %q", e.Name(), "DerivativeThreshold[3]")
	}

	e, err = r.Build(config.TradingConfig{}, config.EngineConfig{
		Kind: KindTimeWindow, BuyWindow: "17:00-18:00", SellWindow: "23:30-00:30",
	})
	if err != nil {
		t.Fatalf("Build time_window: %v", err)
	}
	w := e.Policy().(*TimeWindow)
	if w.BuyWindow.Start != util.Clock(17, 0) || w.SellWindow.End != util.Clock(0, 30) {
		t.Errorf("time window policy = %v / %v, unexpected", w.BuyWindow, w.SellWindow)
	}

	if _, err := r.Build(config.TradingConfig{}, config.EngineConfig{Kind: KindTimeWindow, BuyWindow: "bogus"}); err == nil {
		t.Error("Build should reject a malformed window")
	}
}

func TestBuildAllNamesRepeatedKinds(t *testing.T) {
	engines, err := NewRegistry(newYork).BuildAll(config.TradingConfig{}, []config.EngineConfig{
		{Kind: KindTimeWindow},
		{Kind: KindTimeWindow},
		{Kind: KindDerivative},
		{Kind: KindDerivative, Order: 1},
	})
	if err != nil {
		t.Fatalf("BuildAll returned error: %v", err)
	}
	want := []string{"TimeWindow", "TimeWindow#2", "DerivativeThreshold", "DerivativeThreshold#2"}
	for i, e := range engines {
		if e.Name() != want[i] {
			t.Errorf("engines[%d].Name() = %q, want %q", i, e.Name(), want[i])
		}
	}
}

func TestDerivativeThresholdRepeatedTimestamp(t *testing.T) {
	t0 := time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC)
	e := strategy.NewEngine(NewDerivativeThreshold(), params(3, 0), frozen(t0.Add(time.Hour)))

	e.Update(10, t0)
	e.Update(12, t0.Add(time.Second))
	e.Update(12, t0.Add(2*time.Second))
	// A jump at the same instant has no slope: the flat slope stays the signal.
	e.Update(20, t0.Add(2*time.Second))

	s := e.Series()
	if s.Len() != 2 {
		t.Fatalf("Series().Len() = %d, want 2", s.Len())
	}
	for i, v := range s.YPrime {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("YPrime[%d] = %v, want finite", i, v)
		}
	}
	if last, _ := s.Last(); last != 0 {
		t.Errorf("Series().Last() = %v, want 0", last)
	}
	if e.ShouldBuy() {
		t.Error("ShouldBuy() = true on the flat slope")
	}

	e.Update(21, t0.Add(3*time.Second))
	if last, _ := e.Series().Last(); last != 1 {
		t.Errorf("Series().Last() = %v, want 1", last)
	}
	if !e.ShouldBuy() {
		t.Error("ShouldBuy() = false once time advances with a rising price")
	}
}
