// Package dashboard turns a backtest result into presentation-ready views:
// the cumulative comparison, monthly heatmaps, per-period holdings, and
// summary statistics. It is shared by the HTTP dashboard, the terminal
// browser, and the CLI report writers.
package dashboard

import (
	"math"
	"time"

	"magicformula/internal/backtest"
	"magicformula/internal/domain"
)

// ChartTitle prefixes the cumulative comparison chart title.
const ChartTitle = "Cumulative return"

// View is the read-only presentation model of one run.
type View struct {
	RunID         string
	StrategyName  string
	BenchmarkName string
	Generated     time.Time

	Comparison []backtest.ComparisonRow
	Periods    []PeriodReturns

	StrategyHeatmap  Heatmap
	BenchmarkHeatmap Heatmap

	Holdings []MonthHoldings
	Summary  []SummaryRow

	// earned maps a holdings key to the returns that portfolio produced.
	earned map[string]PeriodReturns
}

// PeriodReturns pairs the periodic and cumulative returns of both series at
// one strategy period.
type PeriodReturns struct {
	Period              time.Time
	Key                 string
	StrategyReturn      float64
	BenchmarkReturn     float64
	StrategyCumulative  float64
	BenchmarkCumulative float64
}

// SummaryRow is one statistic for both series, pre-formatted.
type SummaryRow struct {
	Label     string
	Strategy  string
	Benchmark string
}

// Build assembles the View for a result.
func Build(res *backtest.Result, generated time.Time) *View {
	v := &View{
		RunID:            res.RunID,
		StrategyName:     res.Params.StrategyName,
		BenchmarkName:    res.Params.BenchmarkName,
		Generated:        generated,
		Comparison:       res.Comparison,
		StrategyHeatmap:  MonthlyHeatmap(res.StrategyCumulative),
		BenchmarkHeatmap: MonthlyHeatmap(res.BenchmarkCumulative),
		Holdings:         Holdings(res.Portfolios),
		Summary:          Summarize(res.StrategyStats, res.BenchmarkStats),
	}

	for i, row := range res.Comparison {
		pr := PeriodReturns{
			Period:              row.Period,
			Key:                 domain.PeriodKey(row.Period),
			StrategyCumulative:  row.Strategy,
			BenchmarkCumulative: row.Benchmark,
			StrategyReturn:      math.NaN(),
			BenchmarkReturn:     math.NaN(),
		}
		if i < res.StrategyReturns.Len() {
			pr.StrategyReturn = res.StrategyReturns.Points[i].Value
		}
		if i < res.BenchmarkReturns.Len() {
			pr.BenchmarkReturn = res.BenchmarkReturns.Points[i].Value
		}
		v.Periods = append(v.Periods, pr)
	}

	// The portfolio formed at one period earns the return reported at the
	// next period in the sequence, whatever the calendar gap.
	byPeriod := make(map[int64]PeriodReturns, len(v.Periods))
	for _, pr := range v.Periods {
		byPeriod[pr.Period.UnixMilli()] = pr
	}
	v.earned = make(map[string]PeriodReturns, len(res.Portfolios))
	for i := 1; i < len(res.Portfolios); i++ {
		if pr, ok := byPeriod[res.Portfolios[i].Period.UnixMilli()]; ok {
			v.earned[domain.PeriodKey(res.Portfolios[i-1].Period)] = pr
		}
	}
	return v
}

// EarnedBy returns the period returns produced by the portfolio h, or false
// when that portfolio has no following period in the comparison.
func (v *View) EarnedBy(h MonthHoldings) (PeriodReturns, bool) {
	pr, ok := v.earned[h.Key]
	return pr, ok
}

// ReturnsFor returns the period returns whose month matches t.
func (v *View) ReturnsFor(t time.Time) (PeriodReturns, bool) {
	mk := domain.MonthKey(t)
	for _, p := range v.Periods {
		if domain.MonthKey(p.Period).Equal(mk) {
			return p, true
		}
	}
	return PeriodReturns{}, false
}

// Summarize formats the statistics of both series side by side.
func Summarize(s, b backtest.Stats) []SummaryRow {
	return []SummaryRow{
		{"Periods", FormatInt(s.Periods), FormatInt(b.Periods)},
		{"Total return", FormatPct(s.TotalReturn), FormatPct(b.TotalReturn)},
		{"CAGR", FormatPct(s.CAGR), FormatPct(b.CAGR)},
		{"Volatility (ann.)", FormatPct(s.Volatility), FormatPct(b.Volatility)},
		{"Sharpe", FormatRatio(s.Sharpe), FormatRatio(b.Sharpe)},
		{"Max drawdown", formatDrawdown(s.MaxDrawdown), formatDrawdown(b.MaxDrawdown)},
		{"Best month", FormatPct(s.BestPeriod), FormatPct(b.BestPeriod)},
		{"Worst month", FormatPct(s.WorstPeriod), FormatPct(b.WorstPeriod)},
	}
}

// formatDrawdown renders a positive drawdown fraction as a loss.
func formatDrawdown(dd float64) string {
	if dd == 0 {
		return FormatPct(0)
	}
	return FormatPct(-dd)
}
