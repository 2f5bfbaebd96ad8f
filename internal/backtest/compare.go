package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"magicformula/internal/domain"
)

// Compound turns a periodic return series into a cumulative one:
// cum[t] = prod_{i<=t}(1+ret[i]) - 1. Missing returns are skipped and
// their cumulative value is missing.
func Compound(returns Series) Series {
	out := Series{Name: returns.Name, Points: make([]Point, len(returns.Points))}
	growth := make([]float64, 0, len(returns.Points))
	for _, p := range returns.Points {
		if !math.IsNaN(p.Value) {
			growth = append(growth, 1+p.Value)
		}
	}
	wealth := floats.CumProd(make([]float64, len(growth)), growth)

	j := 0
	for i, p := range returns.Points {
		if math.IsNaN(p.Value) {
			out.Points[i] = Point{Period: p.Period, Value: math.NaN()}
			continue
		}
		out.Points[i] = Point{Period: p.Period, Value: wealth[j] - 1}
		j++
	}
	return out
}

// BenchmarkReturns computes the simple percentage change of the benchmark
// level. A missing level is carried forward from the previous one. The first
// observation and any undefined change are dropped. Each return carries the
// period of the later observation (zero time for undated benchmarks).
func BenchmarkReturns(points []domain.BenchmarkPoint, name string) Series {
	s := Series{Name: name}
	prev := math.NaN()
	for _, p := range points {
		cur := p.Close
		if math.IsNaN(cur) {
			cur = prev
		}
		r := cur/prev - 1
		prev = cur
		if math.IsNaN(r) {
			continue
		}
		s.Points = append(s.Points, Point{Period: p.Period, Value: r})
	}
	return s
}

// AlignBenchmark matches benchmark returns to the strategy periods and
// returns the benchmark series re-dated to those periods.
//
// AlignPositional pairs the i-th strategy period with the i-th benchmark
// return and requires equal lengths. AlignDate pairs them by calendar month
// and requires every strategy month to be present in the benchmark.
func AlignBenchmark(strategy, benchmark Series, mode Alignment) (Series, error) {
	out := Series{Name: benchmark.Name, Points: make([]Point, len(strategy.Points))}

	switch mode {
	case AlignPositional, "":
		if strategy.Len() != benchmark.Len() {
			return Series{}, fmt.Errorf("%w: strategy has %d periods, benchmark has %d returns",
				ErrMisaligned, strategy.Len(), benchmark.Len())
		}
		for i, p := range strategy.Points {
			out.Points[i] = Point{Period: p.Period, Value: benchmark.Points[i].Value}
		}

	case AlignDate:
		byMonth := make(map[int64]float64, benchmark.Len())
		for _, p := range benchmark.Points {
			if p.Period.IsZero() {
				return Series{}, fmt.Errorf("%w: date alignment needs a dated benchmark", ErrMisaligned)
			}
			byMonth[domain.MonthKey(p.Period).Unix()] = p.Value
		}
		for i, p := range strategy.Points {
			v, ok := byMonth[domain.MonthKey(p.Period).Unix()]
			if !ok {
				return Series{}, fmt.Errorf("%w: no benchmark return for %s",
					ErrMisaligned, p.Period.Format("2006-01"))
			}
			out.Points[i] = Point{Period: p.Period, Value: v}
		}

	default:
		return Series{}, fmt.Errorf("unknown alignment %q", mode)
	}
	return out, nil
}

// Compare builds the cumulative comparison table keyed by strategy period.
// Both inputs must already be aligned and of equal length.
func Compare(strategyCum, benchmarkCum Series) ([]ComparisonRow, error) {
	if strategyCum.Len() != benchmarkCum.Len() {
		return nil, fmt.Errorf("%w: %d strategy rows vs %d benchmark rows",
			ErrMisaligned, strategyCum.Len(), benchmarkCum.Len())
	}
	rows := make([]ComparisonRow, strategyCum.Len())
	for i, p := range strategyCum.Points {
		rows[i] = ComparisonRow{
			Period:    p.Period,
			Strategy:  p.Value,
			Benchmark: benchmarkCum.Points[i].Value,
		}
	}
	return rows, nil
}
