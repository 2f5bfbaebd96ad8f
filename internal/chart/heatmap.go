package chart

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/vicanso/go-charts/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"magicformula/internal/dashboard"
)

var (
	colorNeutral = drawing.Color{R: 255, G: 255, B: 255, A: 255}
	colorGain    = drawing.Color{R: 46, G: 160, B: 67, A: 255}
	colorLoss    = drawing.Color{R: 215, G: 58, B: 73, A: 255}
	colorHeader  = drawing.Color{R: 80, G: 90, B: 110, A: 255}
)

// HeatmapRows lays out a heatmap as table text: a header of the series name,
// the twelve month abbreviations and "Year", then one row per year with
// percentages to one decimal. Missing cells are empty.
func HeatmapRows(h dashboard.Heatmap) (header []string, rows [][]string) {
	header = make([]string, 0, 14)
	header = append(header, h.Name)
	for m := time.January; m <= time.December; m++ {
		header = append(header, m.String()[:3])
	}
	header = append(header, "Year")

	for i, y := range h.Years {
		row := make([]string, 0, 14)
		row = append(row, strconv.Itoa(y))
		for _, v := range h.Cells[i] {
			row = append(row, dashboard.FormatCellPct(v))
		}
		row = append(row, dashboard.FormatCellPct(h.YearTotals[i]))
		rows = append(rows, row)
	}
	return header, rows
}

// CellColor shades a return between white and green (gains) or red
// (losses), with intensity relative to the largest magnitude in the map.
func CellColor(v, lo, hi float64) drawing.Color {
	if math.IsNaN(v) || v == 0 {
		return colorNeutral
	}
	scale := math.Max(math.Abs(lo), math.Abs(hi))
	if scale == 0 {
		return colorNeutral
	}
	t := math.Min(math.Abs(v)/scale, 1)
	target := colorGain
	if v < 0 {
		target = colorLoss
	}
	return blend(colorNeutral, target, t)
}

func blend(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// Heatmap renders a monthly-return heatmap as a colored PNG table.
func Heatmap(h dashboard.Heatmap, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	header, rows := HeatmapRows(h)
	if len(rows) == 0 {
		rows = [][]string{make([]string, len(header))}
	}
	lo, hi := h.Range()

	p, err := charts.TableOptionRender(charts.TableChartOption{
		Type:                  charts.ChartOutputPNG,
		Width:                 opt.Width,
		Header:                header,
		Data:                  rows,
		HeaderBackgroundColor: colorHeader,
		CellStyle: func(tc charts.TableCell) *charts.Style {
			// Row 0 is the header and column 0 the year label.
			if tc.Row == 0 || tc.Column == 0 || tc.Row > len(h.Years) {
				return nil
			}
			i := tc.Row - 1
			var v float64
			if tc.Column <= 12 {
				v = h.Cells[i][tc.Column-1]
			} else {
				v = h.YearTotals[i]
			}
			return &charts.Style{FillColor: CellColor(v, lo, hi)}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render heatmap %q: %w", h.Name, err)
	}
	return p.Bytes()
}
