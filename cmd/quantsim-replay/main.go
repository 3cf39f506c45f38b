// Command quantsim-replay re-runs the configured engines over price samples
// previously archived by quantsim, without touching the network.
//
// Usage:
//
//	quantsim-replay [-symbol BTC/USD] [-start 2024-06-01] [-end 2024-06-30]
//
// Without -start and -end the whole archive for the symbol is replayed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"quantsim/internal/config"
	"quantsim/internal/engine"
	"quantsim/internal/gather"
	"quantsim/internal/report"
	"quantsim/internal/store"
	"quantsim/internal/strategy/builtins"
	"quantsim/internal/util"
)

const dateLayout = "2006-01-02"

func main() {
	symbol := flag.String("symbol", "", "symbol to replay (default: config symbol)")
	start := flag.String("start", "", "first day to replay, YYYY-MM-DD")
	end := flag.String("end", "", "last day to replay, YYYY-MM-DD")
	save := flag.Bool("save", true, "persist the report to the run stores")
	flag.Parse()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
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

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	dr, err := replayRange(pstore, cfg.Symbol, *start, *end)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	slog.Info("replaying archive",
		"run", runID,
		"symbol", cfg.Symbol,
		"start", dr.Start.Format(dateLayout),
		"end", dr.End.Format(dateLayout),
		"engines", len(engines),
	)

	driver := engine.NewDriver(engines)
	err = driver.Simulate(ctx, gather.NewArchiveFeed(pstore, dr), engine.RunConfig{
		RunID:        runID,
		Symbol:       cfg.Symbol,
		BackfillOnly: true,
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	shutdown := context.Background()
	r := driver.Close(shutdown, runID, cfg.Symbol)
	if err := report.Render(os.Stdout, r); err != nil {
		slog.Error("rendering report failed", "error", err)
	}
	if !*save {
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		log.Fatalf("failed to create %s: %v", filepath.Dir(cfg.Storage.SQLitePath), err)
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer runs.Close()
	if err := store.SaveAll(shutdown, r, runs, pstore); err != nil {
		log.Fatalf("failed to save report: %v", err)
	}
	slog.Info("report saved", "run", r.RunID)
}

// replayRange resolves the replay window from the flags, falling back to the
// archived extent of symbol for any bound left empty.
func replayRange(s *store.ParquetStore, symbol, start, end string) (gather.DateRange, error) {
	first, last, ok := s.SampleRange(symbol)
	if !ok && (start == "" || end == "") {
		return gather.DateRange{}, fmt.Errorf("no archived samples for %s; run quantsim with feed.record enabled first", symbol)
	}
	dr := gather.DateRange{Start: first, End: last}
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return gather.DateRange{}, fmt.Errorf("invalid -start: %w", err)
		}
		dr.Start = t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return gather.DateRange{}, fmt.Errorf("invalid -end: %w", err)
		}
		dr.End = t.Add(24*time.Hour - time.Millisecond)
	}
	return dr, nil
}
