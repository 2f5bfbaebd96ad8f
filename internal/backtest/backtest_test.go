package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"magicformula/internal/domain"
)

const eps = 1e-9

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func approxEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < eps
}

func floatsEqual(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !approxEqual(got[i], want[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Ranking
// ---------------------------------------------------------------------------

func TestFractionalRank(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		values []float64
		order  Order
		want   []float64
	}{
		{"ties descending", []float64{10, 10, 5}, Descending, []float64{1.5, 1.5, 3}},
		{"ties ascending", []float64{10, 10, 5}, Ascending, []float64{2.5, 2.5, 1}},
		{"unique", []float64{3, 1, 2}, Ascending, []float64{3, 1, 2}},
		{"three-way tie", []float64{7, 7, 7, 1}, Descending, []float64{2, 2, 2, 4}},
		{"missing excluded", []float64{4, nan, 8}, Descending, []float64{2, nan, 1}},
		{"all missing", []float64{nan, nan}, Ascending, []float64{nan, nan}},
		{"empty", nil, Ascending, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FractionalRank(tt.values, tt.order)
			if !floatsEqual(got, tt.want) {
				t.Errorf("FractionalRank(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestRankFactorsCommutative(t *testing.T) {
	p := month(2020, 1)
	build := func(swap bool) []DerivedObservation {
		rows := []domain.Observation{
			{AssetID: "A", Period: p, FactorA: 0.30, FactorB: 0.10},
			{AssetID: "B", Period: p, FactorA: 0.20, FactorB: 0.30},
			{AssetID: "C", Period: p, FactorA: 0.10, FactorB: 0.20},
			{AssetID: "D", Period: p, FactorA: 0.05, FactorB: 0.05},
		}
		if swap {
			for i := range rows {
				rows[i].FactorA, rows[i].FactorB = rows[i].FactorB, rows[i].FactorA
			}
		}
		return RankFactors(BuildForwardReturns(rows))
	}

	a, b := build(false), build(true)
	for i := range a {
		if !approxEqual(a[i].CombinedRank, b[i].CombinedRank) {
			t.Errorf("%s: CombinedRank = %v with swapped factors, want %v",
				a[i].AssetID, b[i].CombinedRank, a[i].CombinedRank)
		}
	}
}

func TestRankFactorsUniqueScoresGiveIntegerRanks(t *testing.T) {
	p := month(2020, 1)
	rows := []domain.Observation{
		{AssetID: "A", Period: p, FactorA: 4, FactorB: 4},
		{AssetID: "B", Period: p, FactorA: 3, FactorB: 3},
		{AssetID: "C", Period: p, FactorA: 2, FactorB: 2},
		{AssetID: "D", Period: p, FactorA: 1, FactorB: 1},
	}
	derived := RankFactors(BuildForwardReturns(rows))
	want := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4}
	for _, d := range derived {
		if d.CombinedRank != math.Trunc(d.CombinedRank) {
			t.Errorf("%s: CombinedRank = %v, want an integer", d.AssetID, d.CombinedRank)
		}
		if d.CombinedRank != want[d.AssetID] {
			t.Errorf("%s: CombinedRank = %v, want %v", d.AssetID, d.CombinedRank, want[d.AssetID])
		}
	}
}

func TestRankFactorsMissingFactor(t *testing.T) {
	p := month(2020, 1)
	rows := []domain.Observation{
		{AssetID: "A", Period: p, FactorA: 2, FactorB: 2},
		{AssetID: "B", Period: p, FactorA: math.NaN(), FactorB: 9},
		{AssetID: "C", Period: p, FactorA: 1, FactorB: 1},
	}
	derived := RankFactors(BuildForwardReturns(rows))
	for _, d := range derived {
		switch d.AssetID {
		case "A":
			if d.RankA != 1 || d.CombinedRank != 1 {
				t.Errorf("A: RankA = %v, CombinedRank = %v, want 1, 1", d.RankA, d.CombinedRank)
			}
		case "B":
			if !math.IsNaN(d.RankA) || !math.IsNaN(d.CombinedRank) {
				t.Errorf("B: RankA = %v, CombinedRank = %v, want NaN", d.RankA, d.CombinedRank)
			}
			if d.RankB != 1 {
				t.Errorf("B: RankB = %v, want 1", d.RankB)
			}
		case "C":
			if d.CombinedRank != 2 {
				t.Errorf("C: CombinedRank = %v, want 2", d.CombinedRank)
			}
		}
	}
}

func TestRankFactorsPerPeriod(t *testing.T) {
	rows := []domain.Observation{
		{AssetID: "A", Period: month(2020, 1), FactorA: 1, FactorB: 1},
		{AssetID: "B", Period: month(2020, 1), FactorA: 2, FactorB: 2},
		{AssetID: "A", Period: month(2020, 2), FactorA: 3, FactorB: 3},
	}
	derived := RankFactors(BuildForwardReturns(rows))
	for _, d := range derived {
		if d.AssetID == "A" && d.Period.Equal(month(2020, 2)) && d.CombinedRank != 1 {
			t.Errorf("A in Feb: CombinedRank = %v, want 1 (alone in its period)", d.CombinedRank)
		}
		if d.AssetID == "A" && d.Period.Equal(month(2020, 1)) && d.CombinedRank != 2 {
			t.Errorf("A in Jan: CombinedRank = %v, want 2", d.CombinedRank)
		}
	}
}

// ---------------------------------------------------------------------------
// Returns and liquidity
// ---------------------------------------------------------------------------

func TestBuildForwardReturns(t *testing.T) {
	// Rows deliberately out of order.
	rows := []domain.Observation{
		{AssetID: "B", Period: month(2020, 2), Price: 19},
		{AssetID: "A", Period: month(2020, 3), Price: 9},
		{AssetID: "A", Period: month(2020, 1), Price: 10},
		{AssetID: "B", Period: month(2020, 1), Price: 20},
		{AssetID: "A", Period: month(2020, 2), Price: 11},
		{AssetID: "C", Period: month(2020, 1), Price: 5},
	}
	derived := BuildForwardReturns(rows)

	want := []struct {
		asset string
		month time.Month
		ret   float64
	}{
		{"A", time.January, 0.1},
		{"A", time.February, 9.0/11.0 - 1},
		{"A", time.March, math.NaN()},
		{"B", time.January, -0.05},
		{"B", time.February, math.NaN()},
		{"C", time.January, math.NaN()},
	}
	if len(derived) != len(want) {
		t.Fatalf("len(derived) = %d, want %d", len(derived), len(want))
	}
	for i, w := range want {
		d := derived[i]
		if d.AssetID != w.asset || d.Period.Month() != w.month {
			t.Fatalf("row %d = %s/%s, want %s/%s", i, d.AssetID, d.Period.Month(), w.asset, w.month)
		}
		if !approxEqual(d.ForwardReturn, w.ret) {
			t.Errorf("%s %s: ForwardReturn = %v, want %v", w.asset, w.month, d.ForwardReturn, w.ret)
		}
	}
}

func TestBuildForwardReturnsMissingPrice(t *testing.T) {
	rows := []domain.Observation{
		{AssetID: "A", Period: month(2020, 1), Price: math.NaN()},
		{AssetID: "A", Period: month(2020, 2), Price: 10},
		{AssetID: "A", Period: month(2020, 3), Price: math.NaN()},
		{AssetID: "A", Period: month(2020, 4), Price: 12},
	}
	derived := BuildForwardReturns(rows)
	want := []float64{math.NaN(), 0, 0.2, math.NaN()}
	for i, d := range derived {
		if !approxEqual(d.ForwardReturn, want[i]) {
			t.Errorf("period %d: ForwardReturn = %v, want %v", i, d.ForwardReturn, want[i])
		}
	}
}

func TestFilterLiquidityCounts(t *testing.T) {
	rows := []domain.Observation{
		{AssetID: "A", Period: month(2020, 1), TradedVolume: 2_000_000},
		{AssetID: "B", Period: month(2020, 1), TradedVolume: 1_000_000},
		{AssetID: "C", Period: month(2020, 1), TradedVolume: math.NaN()},
		{AssetID: "A", Period: month(2020, 2), TradedVolume: 1_000_001},
		{AssetID: "B", Period: month(2020, 2), TradedVolume: 5_000_000},
		{AssetID: "C", Period: month(2020, 2), TradedVolume: 10},
	}
	kept := RankFactors(FilterLiquidity(BuildForwardReturns(rows), DefaultMinVolume))

	counts := make(map[time.Month]int)
	for _, d := range kept {
		counts[d.Period.Month()]++
	}
	if counts[time.January] != 1 {
		t.Errorf("January ranked count = %d, want 1", counts[time.January])
	}
	if counts[time.February] != 2 {
		t.Errorf("February ranked count = %d, want 2", counts[time.February])
	}
}

func TestForwardReturnComputedBeforeFilter(t *testing.T) {
	// B's February row is illiquid; its January forward return must still
	// use the February price.
	rows := []domain.Observation{
		{AssetID: "B", Period: month(2020, 1), Price: 20, TradedVolume: 2e6},
		{AssetID: "B", Period: month(2020, 2), Price: 22, TradedVolume: 10},
	}
	kept := FilterLiquidity(BuildForwardReturns(rows), DefaultMinVolume)
	if len(kept) != 1 {
		t.Fatalf("len(kept) = %d, want 1", len(kept))
	}
	if !approxEqual(kept[0].ForwardReturn, 0.1) {
		t.Errorf("ForwardReturn = %v, want 0.1", kept[0].ForwardReturn)
	}
}

// ---------------------------------------------------------------------------
// Portfolio construction
// ---------------------------------------------------------------------------

func TestConstructPortfoliosTieInclusive(t *testing.T) {
	p := month(2020, 1)
	ranks := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 12}
	var derived []DerivedObservation
	for i, r := range ranks {
		derived = append(derived, DerivedObservation{
			Observation:   domain.Observation{AssetID: string(rune('A' + i)), Period: p},
			ForwardReturn: 0.01,
			CombinedRank:  r,
		})
	}
	got := ConstructPortfolios(derived, 10)
	if len(got) != 1 {
		t.Fatalf("len(portfolios) = %d, want 1", len(got))
	}
	if n := len(got[0].Holdings); n != 11 {
		t.Errorf("holdings = %d, want 11", n)
	}
	if got[0].Holdings[9] != "J" || got[0].Holdings[10] != "K" {
		t.Errorf("tied holdings = %v, want J then K", got[0].Holdings[9:])
	}
}

func TestConstructPortfoliosMean(t *testing.T) {
	p1, p2, p3 := month(2020, 1), month(2020, 2), month(2020, 3)
	derived := []DerivedObservation{
		{Observation: domain.Observation{AssetID: "B", Period: p2}, ForwardReturn: 0.04, CombinedRank: 2},
		{Observation: domain.Observation{AssetID: "A", Period: p1}, ForwardReturn: 0.10, CombinedRank: 1},
		{Observation: domain.Observation{AssetID: "C", Period: p1}, ForwardReturn: math.NaN(), CombinedRank: 2},
		{Observation: domain.Observation{AssetID: "A", Period: p2}, ForwardReturn: 0.02, CombinedRank: 1},
		{Observation: domain.Observation{AssetID: "Z", Period: p2}, ForwardReturn: 0.50, CombinedRank: 3},
		{Observation: domain.Observation{AssetID: "A", Period: p3}, ForwardReturn: math.NaN(), CombinedRank: 1},
		{Observation: domain.Observation{AssetID: "Y", Period: p3}, ForwardReturn: 0.9, CombinedRank: math.NaN()},
	}
	got := ConstructPortfolios(derived, 2)
	if len(got) != 3 {
		t.Fatalf("len(portfolios) = %d, want 3", len(got))
	}
	wantMeans := []float64{0.10, 0.03, math.NaN()}
	wantHoldings := [][]string{{"A", "C"}, {"A", "B"}, {"A"}}
	for i, pp := range got {
		if !approxEqual(pp.MeanForwardReturn, wantMeans[i]) {
			t.Errorf("period %d: MeanForwardReturn = %v, want %v", i, pp.MeanForwardReturn, wantMeans[i])
		}
		if len(pp.Holdings) != len(wantHoldings[i]) {
			t.Errorf("period %d: Holdings = %v, want %v", i, pp.Holdings, wantHoldings[i])
			continue
		}
		for j := range pp.Holdings {
			if pp.Holdings[j] != wantHoldings[i][j] {
				t.Errorf("period %d: Holdings = %v, want %v", i, pp.Holdings, wantHoldings[i])
				break
			}
		}
	}
}

func TestStrategyReturnsShift(t *testing.T) {
	portfolios := []PortfolioPeriod{
		{Period: month(2020, 1), MeanForwardReturn: 0.1},
		{Period: month(2020, 2), MeanForwardReturn: math.NaN()},
		{Period: month(2020, 3), MeanForwardReturn: 0.2},
		{Period: month(2020, 4), MeanForwardReturn: math.NaN()},
	}
	got := StrategyReturns(portfolios, "S")
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2: %+v", got.Len(), got.Points)
	}
	if !got.Points[0].Period.Equal(month(2020, 2)) || got.Points[0].Value != 0.1 {
		t.Errorf("Points[0] = %+v, want Feb 0.1", got.Points[0])
	}
	if !got.Points[1].Period.Equal(month(2020, 4)) || got.Points[1].Value != 0.2 {
		t.Errorf("Points[1] = %+v, want Apr 0.2", got.Points[1])
	}
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

func TestCompound(t *testing.T) {
	in := Series{Name: "S", Points: []Point{
		{Period: month(2020, 1), Value: 0.10},
		{Period: month(2020, 2), Value: -0.05},
		{Period: month(2020, 3), Value: 0.02},
	}}
	got := Compound(in).Values()
	want := []float64{0.10, 0.045, 0.0659}
	if !floatsEqual(got, want) {
		t.Errorf("Compound = %v, want %v", got, want)
	}
}

func TestCompoundSkipsMissing(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"gap", []float64{0.10, math.NaN(), -0.05}, []float64{0.10, math.NaN(), 0.045}},
		{"leading gap", []float64{math.NaN(), 0.20, 0.10}, []float64{math.NaN(), 0.20, 0.32}},
		{"all missing", []float64{math.NaN(), math.NaN()}, []float64{math.NaN(), math.NaN()}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Series{Name: "S"}
			for i, v := range tt.in {
				in.Points = append(in.Points, Point{Period: month(2020, time.Month(i+1)), Value: v})
			}
			got := Compound(in)
			if got.Len() != len(tt.want) {
				t.Fatalf("Len() = %d, want %d", got.Len(), len(tt.want))
			}
			if !floatsEqual(got.Values(), tt.want) {
				t.Errorf("Compound = %v, want %v", got.Values(), tt.want)
			}
			for i, p := range got.Points {
				if !p.Period.Equal(in.Points[i].Period) {
					t.Errorf("point %d period = %v, want %v", i, p.Period, in.Points[i].Period)
				}
			}
		})
	}
}

func TestBenchmarkReturns(t *testing.T) {
	pts := []domain.BenchmarkPoint{
		{Close: 100},
		{Close: 110},
		{Close: math.NaN()},
		{Close: 121},
	}
	got := BenchmarkReturns(pts, "B").Values()
	want := []float64{0.10, 0, 0.10}
	if !floatsEqual(got, want) {
		t.Errorf("BenchmarkReturns = %v, want %v", got, want)
	}
}

func TestAlignBenchmarkPositionalMismatch(t *testing.T) {
	strat := Series{Points: []Point{{Period: month(2020, 2), Value: 0.1}}}
	bench := Series{Points: []Point{{Value: 0.1}, {Value: 0.2}}}
	_, err := AlignBenchmark(strat, bench, AlignPositional)
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("AlignBenchmark err = %v, want ErrMisaligned", err)
	}
}

func TestAlignBenchmarkByDate(t *testing.T) {
	strat := Series{Points: []Point{
		{Period: month(2020, 2), Value: 0.1},
		{Period: month(2020, 3), Value: 0.2},
	}}
	bench := Series{Name: "B", Points: []Point{
		{Period: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Value: 0.01},
		{Period: time.Date(2020, 2, 28, 0, 0, 0, 0, time.UTC), Value: 0.02},
		{Period: time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), Value: 0.03},
	}}
	got, err := AlignBenchmark(strat, bench, AlignDate)
	if err != nil {
		t.Fatalf("AlignBenchmark: %v", err)
	}
	if !floatsEqual(got.Values(), []float64{0.02, 0.03}) {
		t.Errorf("aligned = %v, want [0.02 0.03]", got.Values())
	}
	if !got.Points[0].Period.Equal(month(2020, 2)) {
		t.Errorf("aligned period = %v, want strategy period", got.Points[0].Period)
	}

	strat.Points = append(strat.Points, Point{Period: month(2020, 4), Value: 0})
	if _, err := AlignBenchmark(strat, bench, AlignDate); !errors.Is(err, ErrMisaligned) {
		t.Errorf("missing month err = %v, want ErrMisaligned", err)
	}

	undated := Series{Points: []Point{{Value: 0.02}, {Value: 0.03}}}
	if _, err := AlignBenchmark(strat, undated, AlignDate); !errors.Is(err, ErrMisaligned) {
		t.Errorf("undated err = %v, want ErrMisaligned", err)
	}
}

func TestParseAlignment(t *testing.T) {
	tests := []struct {
		in      string
		want    Alignment
		wantErr bool
	}{
		{"", AlignPositional, false},
		{"positional", AlignPositional, false},
		{"date", AlignDate, false},
		{"index", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlignment(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlignment(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAlignment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
