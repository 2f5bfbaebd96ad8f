// Package httpapi serves a finished backtest over HTTP: JSON endpoints for
// the comparison table, heatmaps, holdings and summary statistics, the
// rendered PNG charts, and a single-page HTML dashboard.
package httpapi

import (
	"math"
	"time"

	"magicformula/internal/dashboard"
	"magicformula/internal/domain"
)

// SummaryJSON describes the run and its headline statistics.
type SummaryJSON struct {
	RunID     string           `json:"runId"`
	Strategy  string           `json:"strategy"`
	Benchmark string           `json:"benchmark"`
	Generated string           `json:"generated"`
	Periods   int              `json:"periods"`
	First     string           `json:"first,omitempty"`
	Last      string           `json:"last,omitempty"`
	Stats     []SummaryRowJSON `json:"stats"`
}

// SummaryRowJSON is one formatted statistic for both series.
type SummaryRowJSON struct {
	Label     string `json:"label"`
	Strategy  string `json:"strategy"`
	Benchmark string `json:"benchmark"`
}

// PeriodJSON is one row of the cumulative comparison. Missing values are
// encoded as null.
type PeriodJSON struct {
	Date                string   `json:"date"`
	StrategyReturn      *float64 `json:"strategyReturn"`
	BenchmarkReturn     *float64 `json:"benchmarkReturn"`
	StrategyCumulative  *float64 `json:"strategyCumulative"`
	BenchmarkCumulative *float64 `json:"benchmarkCumulative"`
}

// ComparisonJSON is the full comparison table.
type ComparisonJSON struct {
	Strategy  string       `json:"strategy"`
	Benchmark string       `json:"benchmark"`
	Periods   []PeriodJSON `json:"periods"`
}

// HeatmapJSON is a year-by-month grid of returns.
type HeatmapJSON struct {
	Name  string            `json:"name"`
	Years []HeatmapYearJSON `json:"years"`
}

// HeatmapYearJSON holds twelve monthly cells and the year total.
type HeatmapYearJSON struct {
	Year   int        `json:"year"`
	Months []*float64 `json:"months"`
	Total  *float64   `json:"total"`
}

// HoldingsJSON lists the portfolio selected at one period.
type HoldingsJSON struct {
	Date    string   `json:"date"`
	Label   string   `json:"label"`
	Tickers []string `json:"tickers"`
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toSummaryJSON(v *dashboard.View) SummaryJSON {
	out := SummaryJSON{
		RunID:     v.RunID,
		Strategy:  v.StrategyName,
		Benchmark: v.BenchmarkName,
		Generated: v.Generated.UTC().Format(time.RFC3339),
		Periods:   len(v.Periods),
	}
	if n := len(v.Periods); n > 0 {
		out.First = v.Periods[0].Key
		out.Last = v.Periods[n-1].Key
	}
	for _, row := range v.Summary {
		out.Stats = append(out.Stats, SummaryRowJSON(row))
	}
	return out
}

func toComparisonJSON(v *dashboard.View) ComparisonJSON {
	out := ComparisonJSON{
		Strategy:  v.StrategyName,
		Benchmark: v.BenchmarkName,
		Periods:   make([]PeriodJSON, 0, len(v.Periods)),
	}
	for _, p := range v.Periods {
		out.Periods = append(out.Periods, PeriodJSON{
			Date:                domain.PeriodKey(p.Period),
			StrategyReturn:      optional(p.StrategyReturn),
			BenchmarkReturn:     optional(p.BenchmarkReturn),
			StrategyCumulative:  optional(p.StrategyCumulative),
			BenchmarkCumulative: optional(p.BenchmarkCumulative),
		})
	}
	return out
}

func toHeatmapJSON(h dashboard.Heatmap) HeatmapJSON {
	out := HeatmapJSON{Name: h.Name, Years: make([]HeatmapYearJSON, 0, len(h.Years))}
	for i, y := range h.Years {
		yr := HeatmapYearJSON{Year: y, Months: make([]*float64, 12), Total: optional(h.YearTotals[i])}
		for m, v := range h.Cells[i] {
			yr.Months[m] = optional(v)
		}
		out.Years = append(out.Years, yr)
	}
	return out
}

func toHoldingsJSON(h dashboard.MonthHoldings) HoldingsJSON {
	return HoldingsJSON{Date: h.Key, Label: h.Label, Tickers: h.Tickers}
}
