// Package store reads the backtest input tables (per-asset observations and
// the benchmark index) from CSV, Parquet, or SQLite sources, and writes the
// one-shot export of a run's results.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"magicformula/internal/domain"
)

// ErrInputUnavailable is wrapped by every error caused by a missing or
// unreadable input source.
var ErrInputUnavailable = errors.New("input unavailable")

// Column names of the asset and benchmark tables.
const (
	ColTicker    = "ticker"
	ColDate      = "data"
	ColPrice     = "preco_fechamento_ajustado"
	ColVolume    = "volume_negociado"
	ColEBITEV    = "ebit_ev"
	ColROIC      = "roic"
	ColBenchmark = "fechamento"
)

// ObservationSource yields the per-asset observation table.
type ObservationSource interface {
	// ReadObservations returns every row of the asset table.
	ReadObservations(ctx context.Context) ([]domain.Observation, error)
}

// BenchmarkSource yields the benchmark level series in row order.
type BenchmarkSource interface {
	// ReadBenchmark returns the benchmark rows in their stored order.
	ReadBenchmark(ctx context.Context) ([]domain.BenchmarkPoint, error)
}

// Spec locates one input table.
type Spec struct {
	Path string
	// Format is "csv", "parquet" or "sqlite"; empty infers it from Path.
	Format string
	// Table names the SQLite table. Ignored for other formats.
	Table string
}

// Inputs is a loaded pair of tables.
type Inputs struct {
	Observations []domain.Observation
	Benchmark    []domain.BenchmarkPoint
}

// DetectFormat infers the source format from a file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".parquet", ".pq":
		return "parquet", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q", ErrInputUnavailable, path)
	}
}

func resolveFormat(spec Spec) (string, error) {
	if spec.Format != "" {
		return strings.ToLower(spec.Format), nil
	}
	return DetectFormat(spec.Path)
}

// OpenObservations returns a source for the asset table described by spec.
// Close the returned closer when done; it is a no-op for file formats.
func OpenObservations(spec Spec) (ObservationSource, func() error, error) {
	format, err := resolveFormat(spec)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case "csv":
		return NewCSVSource(spec.Path), noClose, nil
	case "parquet":
		return NewParquetSource(spec.Path), noClose, nil
	case "sqlite":
		s, err := NewSQLiteSource(spec.Path, spec.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown format %q", ErrInputUnavailable, format)
	}
}

// OpenBenchmark returns a source for the benchmark table described by spec.
func OpenBenchmark(spec Spec) (BenchmarkSource, func() error, error) {
	format, err := resolveFormat(spec)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case "csv":
		return NewCSVSource(spec.Path), noClose, nil
	case "parquet":
		return NewParquetSource(spec.Path), noClose, nil
	case "sqlite":
		s, err := NewSQLiteSource(spec.Path, spec.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown format %q", ErrInputUnavailable, format)
	}
}

// Load opens and reads both tables. Any failure aborts the load and is
// reported as a single error wrapping ErrInputUnavailable.
func Load(ctx context.Context, assets, benchmark Spec) (*Inputs, error) {
	obsSrc, closeObs, err := OpenObservations(assets)
	if err != nil {
		return nil, err
	}
	defer closeObs()

	benchSrc, closeBench, err := OpenBenchmark(benchmark)
	if err != nil {
		return nil, err
	}
	defer closeBench()

	obs, err := obsSrc.ReadObservations(ctx)
	if err != nil {
		return nil, err
	}
	bench, err := benchSrc.ReadBenchmark(ctx)
	if err != nil {
		return nil, err
	}
	return &Inputs{Observations: obs, Benchmark: bench}, nil
}

func noClose() error { return nil }

// unavailable wraps err so that errors.Is(err, ErrInputUnavailable) holds.
func unavailable(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInputUnavailable, path, err)
}

// ---------------------------------------------------------------------------
// Cell parsing
// ---------------------------------------------------------------------------

var dateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a period cell. Times are normalised to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseNumber parses a numeric cell. Empty or malformed cells are missing.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
