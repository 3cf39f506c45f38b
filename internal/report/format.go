package report

import (
	"fmt"
	"math"
)

// FormatMoney formats a dollar amount as $X.XX.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatPercent formats a percentage with an explicit sign, e.g. "+12.34%".
// Undefined values render as "-".
func FormatPercent(pct float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", pct)
}

// Label is the legend label of an engine curve: its name followed by the
// percentage change, e.g. "Baseline (12.34)".
func Label(name string, pct float64, ok bool) string {
	if !ok {
		return name
	}
	return fmt.Sprintf("%s (%.2f)", name, pct)
}

// FormatCount formats a count, using K suffix for large values.
func FormatCount(n int) string {
	if n >= 100_000 {
		return fmt.Sprintf("%.0fK", float64(n)/1e3)
	}
	if n >= 10_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return fmt.Sprintf("%d", n)
}
