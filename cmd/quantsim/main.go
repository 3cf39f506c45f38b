// Command quantsim runs a trading simulation against Alpaca market data:
// it backfills the configured history, polls live prices until interrupted
// and prints the engine ranking.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"quantsim/internal/broker"
	"quantsim/internal/config"
	"quantsim/internal/engine"
	"quantsim/internal/gather"
	"quantsim/internal/httpapi"
	"quantsim/internal/live"
	"quantsim/internal/report"
	"quantsim/internal/store"
	"quantsim/internal/strategy"
	"quantsim/internal/strategy/builtins"
	"quantsim/internal/util"
)

func main() {
	runID := flag.String("run-id", "", "run identifier (default: random UUID)")
	backfillOnly := flag.Bool("backfill-only", false, "stop after the history backfill")
	flag.Parse()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *backfillOnly {
		cfg.Feed.BackfillOnly = true
	}
	if *runID == "" {
		*runID = uuid.NewString()
	}

	util.SetDefault(util.NewLogger(util.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}))

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	engines, err := builtins.NewRegistry(loc).BuildAll(cfg.Trading, cfg.Engines)
	if err != nil {
		log.Fatalf("failed to build engines: %v", err)
	}

	interval, err := gather.ParseInterval(cfg.Feed.HistoryInterval)
	if err != nil {
		log.Fatalf("invalid history interval: %v", err)
	}
	span, err := gather.ParseSpan(cfg.Feed.HistorySpan)
	if err != nil {
		log.Fatalf("invalid history span: %v", err)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	for _, dir := range []string{cfg.Storage.DataDir, filepath.Dir(cfg.Storage.SQLitePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer runs.Close()

	var feed gather.Feed = gather.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed)
	if cfg.Feed.Record {
		feed = gather.NewRecorder(feed, pstore)
	}

	var opts []engine.Option
	if name := cfg.Trading.MirrorEngine; name != "" {
		if !hasEngine(engines, name) {
			log.Fatalf("mirror engine %q is not configured", name)
		}
		b, err := broker.New(cfg)
		if err != nil {
			log.Fatalf("failed to create broker: %v", err)
		}
		m := engine.NewMirror(b, cfg.Symbol, name, cfg.Trading.MaxMirrorNotional)
		opts = append(opts, engine.WithTradeHook(m.Hook()))
		slog.Info("mirroring trades", "engine", name, "broker", b.Name())
	}
	model := live.NewModel(cfg.Symbol)
	opts = append(opts,
		engine.WithTickHook(model.Observe),
		engine.WithTradeHook(model.RecordTrade),
	)
	driver := engine.NewDriver(engines, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if addr := cfg.HTTP.Addr; addr != "" {
		srv := httpapi.NewStatusServer(model, runs, nil)
		go func() {
			if err := srv.Serve(ctx, addr); err != nil {
				slog.Error("status server stopped", "error", err)
			}
		}()
	}

	slog.Info("starting simulation",
		"run", *runID,
		"symbol", cfg.Symbol,
		"engines", len(engines),
		"interval", interval.Name,
		"span", span.Name,
		"backfillOnly", cfg.Feed.BackfillOnly,
	)
	err = driver.Simulate(ctx, feed, engine.RunConfig{
		RunID:        *runID,
		Symbol:       cfg.Symbol,
		Interval:     interval,
		Span:         span,
		PollInterval: cfg.Feed.PollInterval,
		MaxRetries:   cfg.Feed.MaxRetries,
		RetryDelay:   cfg.Feed.RetryDelay,
		BackfillOnly: cfg.Feed.BackfillOnly,
	})
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	// The signal context may already be cancelled; shutdown work gets its own.
	shutdown := context.Background()
	r := driver.Close(shutdown, *runID, cfg.Symbol)
	model.Finish(r)
	if err := report.Render(os.Stdout, r); err != nil {
		slog.Error("rendering report failed", "error", err)
	}
	if err := store.SaveAll(shutdown, r, runs, pstore); err != nil {
		log.Fatalf("failed to save report: %v", err)
	}
	slog.Info("report saved", "run", r.RunID, "db", cfg.Storage.SQLitePath)
}

func hasEngine(engines []*strategy.Engine, name string) bool {
	for _, e := range engines {
		if e.Name() == name {
			return true
		}
	}
	return false
}
