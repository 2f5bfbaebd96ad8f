package backtest

import (
	"math"
	"sort"

	"magicformula/internal/domain"
)

// BuildForwardReturns sorts observations by (asset, period) and attaches each
// asset's forward return: price[t+1]/price[t] - 1, where t+1 is the asset's
// next recorded period. The last period of every asset has no forward return.
//
// A missing price is carried forward from the asset's previous price before
// the change is computed, so a gap yields a zero return rather than a hole.
// A leading missing price yields a missing return.
//
// Returns are computed on the full table; liquidity filtering happens later.
func BuildForwardReturns(obs []domain.Observation) []DerivedObservation {
	derived := make([]DerivedObservation, len(obs))
	for i, o := range obs {
		derived[i] = DerivedObservation{
			Observation:   o,
			ForwardReturn: math.NaN(),
			RankA:         math.NaN(),
			RankB:         math.NaN(),
			CombinedRaw:   math.NaN(),
			CombinedRank:  math.NaN(),
		}
	}

	sort.SliceStable(derived, func(i, j int) bool {
		if derived[i].AssetID != derived[j].AssetID {
			return derived[i].AssetID < derived[j].AssetID
		}
		return derived[i].Period.Before(derived[j].Period)
	})

	start := 0
	for start < len(derived) {
		end := start + 1
		for end < len(derived) && derived[end].AssetID == derived[start].AssetID {
			end++
		}
		fillForwardReturns(derived[start:end])
		start = end
	}
	return derived
}

// fillForwardReturns computes forward returns for a single asset's rows,
// already ordered by period.
func fillForwardReturns(rows []DerivedObservation) {
	filled := make([]float64, len(rows))
	last := math.NaN()
	for i := range rows {
		if !math.IsNaN(rows[i].Price) {
			last = rows[i].Price
		}
		filled[i] = last
	}
	for i := 0; i+1 < len(rows); i++ {
		rows[i].ForwardReturn = filled[i+1]/filled[i] - 1
	}
}

// FilterLiquidity keeps observations whose traded volume is strictly greater
// than minVolume. Missing volume fails the predicate.
func FilterLiquidity(derived []DerivedObservation, minVolume float64) []DerivedObservation {
	out := make([]DerivedObservation, 0, len(derived))
	for _, d := range derived {
		if d.TradedVolume > minVolume {
			out = append(out, d)
		}
	}
	return out
}
