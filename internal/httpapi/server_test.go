package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"magicformula/internal/backtest"
	"magicformula/internal/chart"
	"magicformula/internal/dashboard"
)

func testServer(t *testing.T) *DashboardServer {
	t.Helper()
	strat := backtest.Series{Name: "Magic Formula", Points: []backtest.Point{
		{Period: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Value: 0.10},
		{Period: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), Value: -0.05},
	}}
	bench := backtest.Series{Name: "Ibovespa", Points: []backtest.Point{
		{Period: strat.Points[0].Period, Value: 0.02},
		{Period: strat.Points[1].Period, Value: 0.01},
	}}
	sc, bc := backtest.Compound(strat), backtest.Compound(bench)
	rows, err := backtest.Compare(sc, bc)
	if err != nil {
		t.Fatal(err)
	}
	res := &backtest.Result{
		RunID:  "run-1",
		Params: backtest.DefaultParams(),
		Portfolios: []backtest.PortfolioPeriod{
			{Period: time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), Holdings: []string{"WEGE3", "VALE3"}},
			{Period: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Holdings: []string{"ITUB4"}},
		},
		StrategyReturns:     strat,
		BenchmarkReturns:    bench,
		StrategyCumulative:  sc,
		BenchmarkCumulative: bc,
		Comparison:          rows,
		StrategyStats:       backtest.ComputeStats(strat.Values()),
		BenchmarkStats:      backtest.ComputeStats(bench.Values()),
	}
	v := dashboard.Build(res, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	img := &chart.Images{
		Cumulative:      []byte("\x89PNGcum"),
		StrategyHeatmap: []byte("\x89PNGstrat"),
	}
	return NewDashboardServer(v, img, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSummary(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/api/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got SummaryJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || got.Periods != 2 || got.First != "2020-01-31" || got.Last != "2020-02-29" {
		t.Errorf("summary = %+v", got)
	}
	if len(got.Stats) == 0 || got.Stats[0].Label != "Periods" {
		t.Errorf("stats = %+v", got.Stats)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestComparison(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/api/comparison")
	var got ComparisonJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Strategy != "Magic Formula" || len(got.Periods) != 2 {
		t.Fatalf("comparison = %+v", got)
	}
	p := got.Periods[1]
	if p.StrategyCumulative == nil || *p.StrategyCumulative < 0.0449 || *p.StrategyCumulative > 0.0451 {
		t.Errorf("strategy cumulative = %v, want 0.045", p.StrategyCumulative)
	}
}

func TestHoldingsRoutes(t *testing.T) {
	h := testServer(t).Handler()

	var all []HoldingsJSON
	if err := json.NewDecoder(get(t, h, "/api/holdings").Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Label != "December 2019" || all[0].Tickers[0] != "WEGE3" {
		t.Errorf("holdings = %+v", all)
	}

	rec := get(t, h, "/api/holdings/2020-01")
	var one HoldingsJSON
	if err := json.NewDecoder(rec.Body).Decode(&one); err != nil {
		t.Fatal(err)
	}
	if one.Date != "2020-01-31" || len(one.Tickers) != 1 {
		t.Errorf("holdings/2020-01 = %+v", one)
	}

	if rec := get(t, h, "/api/holdings/1999-01-31"); rec.Code != http.StatusNotFound {
		t.Errorf("absent period status = %d, want 404", rec.Code)
	}
}

func TestHeatmapRoute(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/api/heatmap/strategy")
	var got HeatmapJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Years) != 1 || got.Years[0].Year != 2020 || len(got.Years[0].Months) != 12 {
		t.Fatalf("heatmap = %+v", got)
	}
	if got.Years[0].Months[0] == nil || got.Years[0].Months[2] != nil {
		t.Errorf("months = %v, want Jan present and Mar null", got.Years[0].Months)
	}
	if rec := get(t, h, "/api/heatmap/other"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown series status = %d, want 404", rec.Code)
	}
}

func TestChartRoutes(t *testing.T) {
	h := testServer(t).Handler()
	tests := []struct {
		path   string
		status int
	}{
		{"/chart/cumulative.png", http.StatusOK},
		{"/chart/heatmap/strategy.png", http.StatusOK},
		{"/chart/heatmap/benchmark.png", http.StatusNotFound},
		{"/chart/heatmap/other.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := get(t, h, tt.path)
		if rec.Code != tt.status {
			t.Errorf("%s status = %d, want %d", tt.path, rec.Code, tt.status)
		}
		if tt.status == http.StatusOK && rec.Header().Get("Content-Type") != "image/png" {
			t.Errorf("%s content type = %q", tt.path, rec.Header().Get("Content-Type"))
		}
	}
}

func TestIndexAndHealth(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Magic Formula vs Ibovespa", "Portfolio for January 2020", "<li>ITUB4</li>", "chart/cumulative.png"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/summary", nil)
	rec := httptest.NewRecorder()
	testServer(t).Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
}
