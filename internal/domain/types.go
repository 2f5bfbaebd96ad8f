// Package domain defines the core data types shared across the backtest:
// per-asset monthly observations and the benchmark index series.
package domain

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Missing values
// ---------------------------------------------------------------------------

// Missing is the sentinel for an absent numeric value. All numeric fields
// use NaN for "no data" so that arithmetic propagates absence.
var Missing = math.NaN()

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// DateLayout is the canonical period format used on the wire and as map keys.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// Observation is one asset at one rebalancing period. Price is the adjusted
// close; FactorA is EBIT/EV and FactorB is ROIC (higher is better for both).
type Observation struct {
	AssetID      string
	Period       time.Time
	Price        float64
	TradedVolume float64
	FactorA      float64
	FactorB      float64
}

// BenchmarkPoint is one level of the benchmark index. Period is the zero time
// when the source carries no date column.
type BenchmarkPoint struct {
	Period time.Time
	Close  float64
}

// HasPeriod reports whether the point carries a date.
func (p BenchmarkPoint) HasPeriod() bool {
	return !p.Period.IsZero()
}

// PeriodKey formats a period as YYYY-MM-DD.
func PeriodKey(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthKey truncates a period to its calendar month, used to match series
// whose observations fall on different days of the same month.
func MonthKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
