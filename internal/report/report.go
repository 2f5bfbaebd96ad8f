// Package report wires a configured backtest end to end: load the input
// tables, run the engine, build the presentation view, render the charts,
// and write the run artifacts.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"magicformula/internal/backtest"
	"magicformula/internal/chart"
	"magicformula/internal/config"
	"magicformula/internal/dashboard"
	"magicformula/internal/store"
)

// Artifact file names written next to the chart images.
const (
	HoldingsFile = "holdings.md"
	ResultFile   = "result.parquet"
)

// Report is one completed run with everything needed to present it.
type Report struct {
	Result *backtest.Result
	View   *dashboard.View
	Images *chart.Images
}

// Inputs returns the store specs of the configured asset and benchmark
// tables.
func Inputs(cfg *config.Config) (assets, benchmark store.Spec) {
	assets = store.Spec{Path: cfg.Input.Assets, Format: cfg.Input.Format, Table: cfg.Input.AssetsTable}
	benchmark = store.Spec{Path: cfg.Input.Benchmark, Format: cfg.Input.Format, Table: cfg.Input.BenchmarkTable}
	return assets, benchmark
}

// Compute loads the inputs and runs the backtest without rendering charts.
func Compute(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backtest.Result, error) {
	assets, bench := Inputs(cfg)
	in, err := store.Load(ctx, assets, bench)
	if err != nil {
		return nil, err
	}
	log.Info("inputs loaded",
		"assets", assets.Path, "observations", len(in.Observations),
		"benchmark", bench.Path, "levels", len(in.Benchmark))

	res, err := backtest.NewEngine(cfg.Params(), log).Run(in.Observations, in.Benchmark)
	if err != nil {
		return nil, err
	}
	log.Info("backtest complete",
		"run", res.RunID, "periods", len(res.Comparison), "portfolios", len(res.Portfolios))
	return res, nil
}

// Build runs the backtest and renders its charts.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Report, error) {
	res, err := Compute(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	view := dashboard.Build(res, time.Now())
	images, err := chart.RenderAll(ctx, view, res, chart.Options{Width: cfg.Output.Width, Height: cfg.Output.Height})
	if err != nil {
		return nil, fmt.Errorf("rendering charts: %w", err)
	}
	return &Report{Result: res, View: view, Images: images}, nil
}

// WriteArtifacts writes the chart images, the Markdown holdings listing and
// the Parquet comparison export into dir. It returns the written paths.
func (r *Report) WriteArtifacts(dir string) ([]string, error) {
	paths, err := chart.WriteFiles(dir, r.Images)
	if err != nil {
		return paths, err
	}

	md := dashboard.HoldingsMarkdown(HoldingsTitle(r.View), r.View.Holdings)
	mdPath := filepath.Join(dir, HoldingsFile)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return paths, fmt.Errorf("writing %s: %w", mdPath, err)
	}
	paths = append(paths, mdPath)

	pqPath := filepath.Join(dir, ResultFile)
	if err := store.WriteComparisonParquet(pqPath, ComparisonRecords(r.Result)); err != nil {
		return paths, fmt.Errorf("writing %s: %w", pqPath, err)
	}
	return append(paths, pqPath), nil
}

// HoldingsTitle is the heading of the holdings listing.
func HoldingsTitle(v *dashboard.View) string {
	return v.StrategyName + " holdings"
}

// ComparisonRecords flattens a result into export rows. Each row carries
// the holdings whose forward return produced that period's strategy return,
// i.e. the portfolio formed at the preceding rebalancing period.
func ComparisonRecords(res *backtest.Result) []store.ComparisonRecord {
	heldBy := make(map[int64][]string, len(res.Portfolios))
	for i := 1; i < len(res.Portfolios); i++ {
		heldBy[res.Portfolios[i].Period.UnixMilli()] = res.Portfolios[i-1].Holdings
	}

	out := make([]store.ComparisonRecord, len(res.Comparison))
	for i, row := range res.Comparison {
		ms := row.Period.UnixMilli()
		out[i] = store.ComparisonRecord{
			RunID:               res.RunID,
			Date:                ms,
			StrategyCumulative:  row.Strategy,
			BenchmarkCumulative: row.Benchmark,
			Holdings:            heldBy[ms],
		}
		if i < res.StrategyReturns.Len() {
			out[i].StrategyReturn = res.StrategyReturns.Points[i].Value
		}
		if i < res.BenchmarkReturns.Len() {
			out[i].BenchmarkReturn = res.BenchmarkReturns.Points[i].Value
		}
	}
	return out
}

// SummaryLines formats one line per series for terminal output.
func SummaryLines(v *dashboard.View) []string {
	var total, cagr, dd dashboard.SummaryRow
	for _, row := range v.Summary {
		switch row.Label {
		case "Total return":
			total = row
		case "CAGR":
			cagr = row
		case "Max drawdown":
			dd = row
		}
	}
	first, last := "", ""
	if n := len(v.Periods); n > 0 {
		first, last = v.Periods[0].Key, v.Periods[n-1].Key
	}
	return []string{
		fmt.Sprintf("%-16s %s..%s  total %s  cagr %s  max dd %s", v.StrategyName, first, last, total.Strategy, cagr.Strategy, dd.Strategy),
		fmt.Sprintf("%-16s %s..%s  total %s  cagr %s  max dd %s", v.BenchmarkName, first, last, total.Benchmark, cagr.Benchmark, dd.Benchmark),
	}
}
