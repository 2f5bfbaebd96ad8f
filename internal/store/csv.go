package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"magicformula/internal/domain"
)

// Compile-time interface checks.
var _ ObservationSource = (*CSVSource)(nil)
var _ BenchmarkSource = (*CSVSource)(nil)

// CSVSource reads an input table from a CSV file with a header row. Columns
// are located by name, so order is free and extra columns are ignored.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a CSVSource for the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// ReadObservations parses the asset table.
func (s *CSVSource) ReadObservations(ctx context.Context) ([]domain.Observation, error) {
	header, rows, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	cols, err := locate(header, ColTicker, ColDate, ColPrice, ColVolume, ColEBITEV, ColROIC)
	if err != nil {
		return nil, unavailable(s.Path, err)
	}

	obs := make([]domain.Observation, 0, len(rows))
	for i, rec := range rows {
		period, err := ParseDate(cell(rec, cols[ColDate]))
		if err != nil {
			return nil, unavailable(s.Path, fmt.Errorf("row %d: %w", i+2, err))
		}
		obs = append(obs, domain.Observation{
			AssetID:      strings.TrimSpace(cell(rec, cols[ColTicker])),
			Period:       period,
			Price:        ParseNumber(cell(rec, cols[ColPrice])),
			TradedVolume: ParseNumber(cell(rec, cols[ColVolume])),
			FactorA:      ParseNumber(cell(rec, cols[ColEBITEV])),
			FactorB:      ParseNumber(cell(rec, cols[ColROIC])),
		})
	}
	return obs, nil
}

// ReadBenchmark parses the benchmark table. The date column is optional.
func (s *CSVSource) ReadBenchmark(ctx context.Context) ([]domain.BenchmarkPoint, error) {
	header, rows, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	cols, err := locate(header, ColBenchmark)
	if err != nil {
		return nil, unavailable(s.Path, err)
	}
	dateIdx, hasDate := indexOf(header, ColDate)

	pts := make([]domain.BenchmarkPoint, 0, len(rows))
	for i, rec := range rows {
		p := domain.BenchmarkPoint{Close: ParseNumber(cell(rec, cols[ColBenchmark]))}
		if hasDate {
			if raw := strings.TrimSpace(cell(rec, dateIdx)); raw != "" {
				t, err := ParseDate(raw)
				if err != nil {
					return nil, unavailable(s.Path, fmt.Errorf("row %d: %w", i+2, err))
				}
				p.Period = t
			}
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// readAll returns the header and data rows of the file.
func (s *CSVSource) readAll(ctx context.Context) ([]string, [][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, unavailable(s.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, unavailable(s.Path, fmt.Errorf("reading header: %w", err))
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, unavailable(s.Path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// locate finds the index of every required column.
func locate(header []string, names ...string) (map[string]int, error) {
	cols := make(map[string]int, len(names))
	for _, name := range names {
		idx, ok := indexOf(header, name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[name] = idx
	}
	return cols, nil
}

func indexOf(header []string, name string) (int, bool) {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i, true
		}
	}
	return -1, false
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteObservationsCSV writes observations in the asset table layout.
// Missing values become empty cells.
func WriteObservationsCSV(path string, obs []domain.Observation) error {
	rows := make([][]string, 0, len(obs)+1)
	rows = append(rows, []string{ColTicker, ColDate, ColPrice, ColVolume, ColEBITEV, ColROIC})
	for _, o := range obs {
		rows = append(rows, []string{
			o.AssetID,
			domain.PeriodKey(o.Period),
			formatNumber(o.Price),
			formatNumber(o.TradedVolume),
			formatNumber(o.FactorA),
			formatNumber(o.FactorB),
		})
	}
	return writeCSV(path, rows)
}

// WriteBenchmarkCSV writes benchmark points; the date column is written only
// when every point carries a period.
func WriteBenchmarkCSV(path string, pts []domain.BenchmarkPoint) error {
	dated := len(pts) > 0
	for _, p := range pts {
		if !p.HasPeriod() {
			dated = false
			break
		}
	}
	header := []string{ColBenchmark}
	if dated {
		header = []string{ColDate, ColBenchmark}
	}
	rows := [][]string{header}
	for _, p := range pts {
		if dated {
			rows = append(rows, []string{domain.PeriodKey(p.Period), formatNumber(p.Close)})
		} else {
			rows = append(rows, []string{formatNumber(p.Close)})
		}
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func formatNumber(v float64) string {
	if domain.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
