package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

const timeLayout = "2006-01-02 15:04:05"

// Render writes the ranking table and the asset reference line to w.
func Render(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "\nRun %s  %s  %s samples\n", r.RunID, r.Symbol, FormatCount(r.Samples))
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "%s to %s\n", r.StartedAt.Format(timeLayout), r.FinishedAt.Format(timeLayout))
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Engine", "Start", "End", "Min", "Max", "Trades", "Return")
	for _, res := range r.Results {
		s := res.Summary
		if err := table.Append(
			fmt.Sprintf("%d", res.Rank),
			s.Name,
			FormatMoney(s.StartingAllowance),
			FormatMoney(s.EndingFunds),
			FormatMoney(s.MinRealized),
			FormatMoney(s.MaxRealized),
			fmt.Sprintf("%d", len(res.Events)),
			FormatPercent(res.PercentChange, res.HasReturn),
		); err != nil {
			return fmt.Errorf("appending row for %s: %w", s.Name, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering ranking: %w", err)
	}

	fmt.Fprintf(w, "  %s from %s\n",
		Label("Normalized price for comp", r.AssetChange, r.HasAssetChange),
		FormatMoney(r.ReferenceBase))
	return nil
}
