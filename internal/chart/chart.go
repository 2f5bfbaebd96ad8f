// Package chart renders the dashboard figures as PNG images: the cumulative
// return line chart and one monthly-return heatmap table per series.
package chart

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/vicanso/go-charts/v2"
	"golang.org/x/sync/errgroup"

	"magicformula/internal/backtest"
	"magicformula/internal/dashboard"
)

// Default image dimensions.
const (
	DefaultWidth  = 900
	DefaultHeight = 500
)

// File names written by WriteFiles.
const (
	CumulativeFile       = "cumulative.png"
	StrategyHeatmapFile  = "heatmap_strategy.png"
	BenchmarkHeatmapFile = "heatmap_benchmark.png"
)

// Options controls image size.
type Options struct {
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// Images holds the rendered PNGs of one run.
type Images struct {
	Cumulative       []byte
	StrategyHeatmap  []byte
	BenchmarkHeatmap []byte
}

// ---------------------------------------------------------------------------
// Cumulative line chart
// ---------------------------------------------------------------------------

// Cumulative renders both cumulative series as percentages on one line chart
// with a legend naming each series.
func Cumulative(title string, strategy, benchmark backtest.Series, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	if strategy.Len() == 0 {
		return nil, fmt.Errorf("cumulative chart: no data")
	}

	xLabels := make([]string, strategy.Len())
	for i, p := range strategy.Points {
		xLabels[i] = p.Period.Format("2006-01")
	}
	values := [][]float64{percentSeries(strategy), percentSeries(benchmark)}
	names := []string{strategy.Name, benchmark.Name}

	yMin, yMax := bounds(values)
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 1
	}
	yMin -= pad
	yMax += pad

	split := 12
	if len(xLabels) <= 24 {
		split = max(len(xLabels)/2, 2)
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.PNGTypeOption(),
		charts.TitleTextOptionFunc(title, "cumulative return, %"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Left: charts.PositionRight}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(opt.Width),
		charts.HeightOptionFunc(opt.Height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render cumulative chart: %w", err)
	}
	return p.Bytes()
}

// percentSeries scales to percent and carries the last value over gaps so
// the line stays continuous.
func percentSeries(s backtest.Series) []float64 {
	out := make([]float64, s.Len())
	last := 0.0
	for i, p := range s.Points {
		if !math.IsNaN(p.Value) {
			last = p.Value * 100
		}
		out[i] = last
	}
	return out
}

func bounds(values [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, vs := range values {
		for _, v := range vs {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) {
		return 0, 0
	}
	return lo, hi
}

// ---------------------------------------------------------------------------
// Batch rendering
// ---------------------------------------------------------------------------

// RenderAll renders the line chart and both heatmaps concurrently.
func RenderAll(ctx context.Context, v *dashboard.View, res *backtest.Result, opt Options) (*Images, error) {
	var out Images
	title := fmt.Sprintf("%s: %s vs %s", dashboard.ChartTitle, v.StrategyName, v.BenchmarkName)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := Cumulative(title, res.StrategyCumulative, res.BenchmarkCumulative, opt)
		out.Cumulative = b
		return err
	})
	g.Go(func() error {
		b, err := Heatmap(v.StrategyHeatmap, opt)
		out.StrategyHeatmap = b
		return err
	})
	g.Go(func() error {
		b, err := Heatmap(v.BenchmarkHeatmap, opt)
		out.BenchmarkHeatmap = b
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// WriteFiles writes the images into dir and returns the written paths.
func WriteFiles(dir string, img *Images) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{CumulativeFile, img.Cumulative},
		{StrategyHeatmapFile, img.StrategyHeatmap},
		{BenchmarkHeatmapFile, img.BenchmarkHeatmap},
	}
	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
