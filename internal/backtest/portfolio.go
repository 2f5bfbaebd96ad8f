package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ConstructPortfolios selects, per period, every asset whose combined rank is
// at most size. Ties at the boundary are all admitted, so a period can hold
// more than size assets. Periods with no selected asset are omitted.
func ConstructPortfolios(derived []DerivedObservation, size int) []PortfolioPeriod {
	limit := float64(size)
	var out []PortfolioPeriod

	for _, group := range groupByPeriod(derived) {
		var selected []DerivedObservation
		for _, idx := range group {
			if derived[idx].CombinedRank <= limit {
				selected = append(selected, derived[idx])
			}
		}
		if len(selected) == 0 {
			continue
		}

		sort.SliceStable(selected, func(i, j int) bool {
			if selected[i].CombinedRank != selected[j].CombinedRank {
				return selected[i].CombinedRank < selected[j].CombinedRank
			}
			return selected[i].AssetID < selected[j].AssetID
		})

		holdings := make([]string, len(selected))
		returns := make([]float64, len(selected))
		for i, s := range selected {
			holdings[i] = s.AssetID
			returns[i] = s.ForwardReturn
		}

		out = append(out, PortfolioPeriod{
			Period:            selected[0].Period,
			MeanForwardReturn: meanSkipMissing(returns),
			Holdings:          holdings,
		})
	}
	return out
}

// StrategyReturns shifts the portfolio return series forward by one period:
// the mean forward return formed at period t is attributed to the next
// period in the sequence. The first period, and any period whose shifted
// value is missing, are dropped.
func StrategyReturns(portfolios []PortfolioPeriod, name string) Series {
	s := Series{Name: name}
	for i := 1; i < len(portfolios); i++ {
		v := portfolios[i-1].MeanForwardReturn
		if math.IsNaN(v) {
			continue
		}
		s.Points = append(s.Points, Point{Period: portfolios[i].Period, Value: v})
	}
	return s
}

// meanSkipMissing averages the non-missing values; NaN when there are none.
func meanSkipMissing(values []float64) float64 {
	present := presentValues(values)
	if len(present) == 0 {
		return math.NaN()
	}
	return stat.Mean(present, nil)
}

// presentValues returns the non-NaN values in order.
func presentValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
