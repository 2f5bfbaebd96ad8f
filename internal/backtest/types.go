// Package backtest implements the Magic Formula factor backtest: forward
// returns per asset, cross-sectional factor ranking, tie-inclusive top-N
// portfolio construction, and cumulative comparison against a benchmark.
//
// Every function in this package is pure and deterministic. Missing values
// are NaN and propagate through arithmetic.
package backtest

import (
	"fmt"
	"time"

	"magicformula/internal/domain"
)

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// Alignment selects how the benchmark series is matched to strategy periods.
type Alignment string

const (
	// AlignPositional assigns benchmark values by row position and fails when
	// the two series differ in length.
	AlignPositional Alignment = "positional"
	// AlignDate joins benchmark returns to strategy periods by calendar month.
	AlignDate Alignment = "date"
)

// ParseAlignment converts a configuration string into an Alignment. The
// empty string selects AlignPositional.
func ParseAlignment(s string) (Alignment, error) {
	switch Alignment(s) {
	case "", AlignPositional:
		return AlignPositional, nil
	case AlignDate:
		return AlignDate, nil
	default:
		return "", fmt.Errorf("unknown alignment %q (want %q or %q)", s, AlignPositional, AlignDate)
	}
}

// Default parameter values.
const (
	DefaultPortfolioSize = 10
	DefaultMinVolume     = 1_000_000
	DefaultStrategyName  = "Magic Formula"
	DefaultBenchmarkName = "Ibovespa"
)

// Params controls a single backtest run.
type Params struct {
	// PortfolioSize is N in the selection predicate combined_rank <= N.
	PortfolioSize int
	// MinVolume is the exclusive lower bound on traded volume.
	MinVolume float64
	Alignment Alignment

	StrategyName  string
	BenchmarkName string
}

// DefaultParams returns the parameters of the canonical Magic Formula run.
func DefaultParams() Params {
	return Params{
		PortfolioSize: DefaultPortfolioSize,
		MinVolume:     DefaultMinVolume,
		Alignment:     AlignPositional,
		StrategyName:  DefaultStrategyName,
		BenchmarkName: DefaultBenchmarkName,
	}
}

// ---------------------------------------------------------------------------
// Derived records
// ---------------------------------------------------------------------------

// DerivedObservation is an Observation extended with the values computed by
// the pipeline. Fields are NaN where undefined.
type DerivedObservation struct {
	domain.Observation

	ForwardReturn float64
	RankA         float64
	RankB         float64
	CombinedRaw   float64
	CombinedRank  float64
}

// PortfolioPeriod is the portfolio formed at one rebalancing period.
type PortfolioPeriod struct {
	Period time.Time
	// MeanForwardReturn is the equal-weighted forward return of the
	// holdings, ignoring missing values. NaN when no holding has one.
	MeanForwardReturn float64
	// Holdings is ordered by combined rank ascending, ties by asset id.
	Holdings []string
}

// Point is one dated value of a series.
type Point struct {
	Period time.Time
	Value  float64
}

// Series is an ordered, named sequence of dated values.
type Series struct {
	Name   string
	Points []Point
}

// Values returns the series values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// ComparisonRow is one period of the strategy/benchmark cumulative table.
type ComparisonRow struct {
	Period    time.Time
	Strategy  float64
	Benchmark float64
}

// Result is the complete, read-only output of one backtest run.
type Result struct {
	RunID  string
	Params Params

	// Derived holds every observation that passed the liquidity filter.
	Derived    []DerivedObservation
	Portfolios []PortfolioPeriod

	// StrategyReturns and BenchmarkReturns are the aligned periodic returns
	// that were compounded into Comparison.
	StrategyReturns  Series
	BenchmarkReturns Series

	StrategyCumulative  Series
	BenchmarkCumulative Series
	Comparison          []ComparisonRow

	StrategyStats  Stats
	BenchmarkStats Stats
}
