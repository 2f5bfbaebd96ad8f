package backtest

import (
	"math"
	"sort"
	"time"
)

// Order is the direction of a ranking.
type Order int

const (
	// Ascending gives rank 1 to the smallest value.
	Ascending Order = iota
	// Descending gives rank 1 to the largest value.
	Descending
)

// FractionalRank ranks values from 1..k where k is the number of non-missing
// values. Tied values share the mean of the positions they occupy. Missing
// values receive a missing rank and do not count towards k.
//
//	FractionalRank([]float64{10, 10, 5}, Descending) == []float64{1.5, 1.5, 3}
func FractionalRank(values []float64, order Order) []float64 {
	ranks := make([]float64, len(values))
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			ranks[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}

	sort.SliceStable(idx, func(a, b int) bool {
		if order == Descending {
			return values[idx[a]] > values[idx[b]]
		}
		return values[idx[a]] < values[idx[b]]
	})

	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		// Positions i..j-1 are 0-based; ranks are 1-based.
		mean := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = mean
		}
		i = j
	}
	return ranks
}

// RankFactors assigns, within each period, the descending fractional ranks of
// FactorA and FactorB, their sum, and the ascending fractional rank of that
// sum. The slice is modified in place and also returned.
func RankFactors(derived []DerivedObservation) []DerivedObservation {
	for _, group := range groupByPeriod(derived) {
		a := make([]float64, len(group))
		b := make([]float64, len(group))
		for i, idx := range group {
			a[i] = derived[idx].FactorA
			b[i] = derived[idx].FactorB
		}
		rankA := FractionalRank(a, Descending)
		rankB := FractionalRank(b, Descending)

		raw := make([]float64, len(group))
		for i := range group {
			raw[i] = rankA[i] + rankB[i]
		}
		combined := FractionalRank(raw, Ascending)

		for i, idx := range group {
			derived[idx].RankA = rankA[i]
			derived[idx].RankB = rankB[i]
			derived[idx].CombinedRaw = raw[i]
			derived[idx].CombinedRank = combined[i]
		}
	}
	return derived
}

// groupByPeriod returns row indices grouped by period, groups ordered
// chronologically and rows within a group in slice order.
func groupByPeriod(derived []DerivedObservation) [][]int {
	byPeriod := make(map[time.Time][]int)
	var periods []time.Time
	for i, d := range derived {
		p := d.Period.UTC()
		if _, ok := byPeriod[p]; !ok {
			periods = append(periods, p)
		}
		byPeriod[p] = append(byPeriod[p], i)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	groups := make([][]int, len(periods))
	for i, p := range periods {
		groups[i] = byPeriod[p]
	}
	return groups
}
