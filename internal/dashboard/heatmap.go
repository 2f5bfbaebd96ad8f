package dashboard

import (
	"math"
	"sort"
	"time"

	"magicformula/internal/backtest"
)

// Heatmap is a year-by-month grid of periodic returns. Absent cells are NaN.
type Heatmap struct {
	Name       string
	Years      []int         // ascending
	Cells      [][12]float64 // Cells[i][m] is year Years[i], month m+1
	YearTotals []float64     // compounded over the year's present cells
}

// Deaccumulate recovers periodic returns from a cumulative series:
// r[0] = cum[0] and r[t] = (1+cum[t])/(1+cum[t-1]) - 1. A missing
// cumulative value yields a missing return and is skipped as a base. After a
// total loss (cumulative -1) the next return has no base and is missing.
func Deaccumulate(cum backtest.Series) backtest.Series {
	out := backtest.Series{Name: cum.Name, Points: make([]backtest.Point, len(cum.Points))}
	prevWealth := 1.0
	for i, p := range cum.Points {
		if math.IsNaN(p.Value) {
			out.Points[i] = backtest.Point{Period: p.Period, Value: math.NaN()}
			continue
		}
		wealth := 1 + p.Value
		r := math.NaN()
		if prevWealth != 0 {
			r = wealth/prevWealth - 1
		}
		out.Points[i] = backtest.Point{Period: p.Period, Value: r}
		prevWealth = wealth
	}
	return out
}

// MonthlyHeatmap de-compounds a cumulative series and buckets the periodic
// returns by calendar year and month. Several returns falling in the same
// month are compounded together.
func MonthlyHeatmap(cum backtest.Series) Heatmap {
	returns := Deaccumulate(cum)

	byYear := make(map[int]*[12]float64)
	for _, p := range returns.Points {
		if math.IsNaN(p.Value) {
			continue
		}
		y := p.Period.Year()
		row, ok := byYear[y]
		if !ok {
			row = new([12]float64)
			for m := range row {
				row[m] = math.NaN()
			}
			byYear[y] = row
		}
		m := int(p.Period.Month()) - 1
		if math.IsNaN(row[m]) {
			row[m] = p.Value
		} else {
			row[m] = (1+row[m])*(1+p.Value) - 1
		}
	}

	h := Heatmap{Name: cum.Name}
	for y := range byYear {
		h.Years = append(h.Years, y)
	}
	sort.Ints(h.Years)
	for _, y := range h.Years {
		row := *byYear[y]
		h.Cells = append(h.Cells, row)
		h.YearTotals = append(h.YearTotals, compoundCells(row[:]))
	}
	return h
}

// Cell returns the value for a year and month, or NaN when absent.
func (h Heatmap) Cell(year int, month time.Month) float64 {
	for i, y := range h.Years {
		if y == year {
			return h.Cells[i][month-1]
		}
	}
	return math.NaN()
}

// Range returns the minimum and maximum present cell values. Both are 0 for
// an empty heatmap.
func (h Heatmap) Range() (lo, hi float64) {
	first := true
	for _, row := range h.Cells {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

func compoundCells(cells []float64) float64 {
	wealth := 1.0
	present := false
	for _, v := range cells {
		if math.IsNaN(v) {
			continue
		}
		wealth *= 1 + v
		present = true
	}
	if !present {
		return math.NaN()
	}
	return wealth - 1
}
