package dashboard

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPct formats a fraction as a signed percentage with two decimals,
// e.g. 0.0659 -> "+6.59%". Missing values render as "-".
func FormatPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

// FormatCellPct formats a heatmap cell compactly with one decimal and no
// sign for positives, e.g. 0.0123 -> "1.2". Missing cells are empty.
// Drops the decimal for magnitudes >= 100% to keep width compact.
func FormatCellPct(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	pct := v * 100
	if math.Abs(pct) >= 100 {
		return fmt.Sprintf("%.0f", pct)
	}
	return fmt.Sprintf("%.1f", pct)
}

// FormatRatio formats a dimensionless ratio such as a Sharpe ratio.
func FormatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
