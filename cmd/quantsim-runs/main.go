// Command quantsim-runs lists simulation runs persisted in the SQLite run
// store, or served by a running quantsim's status API.
//
// Usage:
//
//	quantsim-runs [-limit 20]          list recent runs
//	quantsim-runs -run <id>            show the ranking of one run
//	quantsim-runs -run <id> -engine N  show the trades of one engine
//	quantsim-runs -addr URL -status    show the live engine states
//
// With -addr every query goes to the status API at URL instead of the local
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/olekukonko/tablewriter"

	"quantsim/internal/config"
	"quantsim/internal/report"
	"quantsim/internal/store"
	"quantsim/pkg/quantsim"
)

const timeLayout = "2006-01-02 15:04:05"

func main() {
	limit := flag.Int("limit", 20, "maximum number of runs to list (0 for all)")
	runID := flag.String("run", "", "show the engine results of this run")
	engineName := flag.String("engine", "", "with -run, show the trades of this engine")
	addr := flag.String("addr", "", "query the status API at this URL, e.g. http://localhost:8080")
	status := flag.Bool("status", false, "with -addr, show the live engine states")
	flag.Parse()

	ctx := context.Background()
	if *status && *addr == "" {
		log.Fatalf("-status requires -addr")
	}

	var runs store.RunStore
	if *addr != "" {
		client := quantsim.NewClient(*addr)
		if *status {
			if err := printStatus(ctx, client); err != nil {
				log.Fatalf("%v", err)
			}
			return
		}
		runs = remoteRuns{client}
	} else {
		cfg, err := config.Load(config.PathFromEnv())
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer db.Close()
		runs = db
	}

	var err error
	switch {
	case *runID != "" && *engineName != "":
		err = printEvents(ctx, runs, *runID, *engineName)
	case *runID != "":
		err = printResults(ctx, runs, *runID)
	default:
		err = printRuns(ctx, runs, *limit)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func printRuns(ctx context.Context, s store.RunStore, limit int) error {
	list, err := s.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run", "Symbol", "Started", "Finished", "Samples", "Asset", "Leader")
	for _, r := range list {
		if err := table.Append(
			r.ID,
			r.Symbol,
			r.StartedAt.Format(timeLayout),
			r.FinishedAt.Format(timeLayout),
			report.FormatCount(r.Samples),
			report.FormatPercent(r.AssetChange, r.HasAssetChange),
			r.Leader,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printResults(ctx context.Context, s store.RunStore, runID string) error {
	results, err := s.ListResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("listing results of %s: %w", runID, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Engine", "Start", "End", "Min", "Max", "Trades", "Return")
	for _, res := range results {
		sum := res.Summary
		if err := table.Append(
			fmt.Sprintf("%d", res.Rank),
			sum.Name,
			report.FormatMoney(sum.StartingAllowance),
			report.FormatMoney(sum.EndingFunds),
			report.FormatMoney(sum.MinRealized),
			report.FormatMoney(sum.MaxRealized),
			fmt.Sprintf("%d", res.Trades),
			report.FormatPercent(res.PercentChange, res.HasReturn),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printEvents(ctx context.Context, s store.RunStore, runID, engine string) error {
	events, err := s.ListEvents(ctx, runID, engine)
	if err != nil {
		return fmt.Errorf("listing trades of %s in %s: %w", engine, runID, err)
	}
	if len(events) == 0 {
		fmt.Printf("%s made no trades in run %s\n", engine, runID)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Side", "Amount")
	for _, ev := range events {
		if err := table.Append(
			ev.Timestamp.Format(timeLayout),
			string(ev.Side()),
			report.FormatMoney(ev.Amount),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printStatus(ctx context.Context, c *quantsim.Client) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	state := "running"
	if st.Closed {
		state = "closed"
	}
	fmt.Printf("%s  %s  %s samples  last %s at %s\n",
		st.Symbol, state, report.FormatCount(st.Samples), report.FormatMoney(st.Price), st.Timestamp.Format(timeLayout))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Engine", "Funds", "Shares", "Equity", "Trades", "Gate")
	for _, e := range st.Engines {
		if err := table.Append(
			e.Name,
			report.FormatMoney(e.Funds),
			fmt.Sprintf("%.6f", e.Shares),
			report.FormatMoney(e.Equity),
			fmt.Sprintf("%d", e.Trades),
			e.Gate,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
