package backtest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PeriodsPerYear is the annualisation factor for monthly rebalancing.
const PeriodsPerYear = 12.0

// Stats summarises a periodic return series.
type Stats struct {
	Periods     int
	TotalReturn float64
	CAGR        float64
	Volatility  float64 // annualised sample standard deviation
	Sharpe      float64 // risk-free rate of zero
	MaxDrawdown float64 // positive fraction of the running peak
	BestPeriod  float64
	WorstPeriod float64
}

// ComputeStats derives summary statistics from periodic returns. Missing
// returns are skipped. Statistics that are undefined for the input (too few
// periods, zero volatility) are left at zero.
func ComputeStats(returns []float64) Stats {
	rs := presentValues(returns)
	st := Stats{Periods: len(rs)}
	if len(rs) == 0 {
		return st
	}

	growth := make([]float64, len(rs))
	for i, r := range rs {
		growth[i] = 1 + r
	}
	wealth := floats.CumProd(make([]float64, len(rs)), growth)
	w := wealth[len(wealth)-1]
	st.BestPeriod, st.WorstPeriod = floats.Max(rs), floats.Min(rs)
	st.TotalReturn = w - 1
	st.MaxDrawdown = MaxDrawdown(append([]float64{1}, wealth...))

	years := float64(len(rs)) / PeriodsPerYear
	if w > 0 {
		st.CAGR = math.Pow(w, 1/years) - 1
	} else {
		st.CAGR = -1
	}

	if len(rs) < 2 {
		return st
	}
	mean, sd := stat.MeanStdDev(rs, nil)
	st.Volatility = sd * math.Sqrt(PeriodsPerYear)
	if sd > 0 {
		st.Sharpe = mean * PeriodsPerYear / st.Volatility
	}
	return st
}

// MaxDrawdown returns the largest peak-to-trough decline of a wealth curve
// as a positive fraction of the peak. Non-positive wealth values are skipped.
func MaxDrawdown(wealth []float64) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, v := range wealth {
		if v > peak {
			peak = v
		}
		if peak > 0 && v >= 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
