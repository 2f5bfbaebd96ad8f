package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"magicformula/internal/domain"
)

// Compile-time interface checks.
var _ ObservationSource = (*ParquetSource)(nil)
var _ BenchmarkSource = (*ParquetSource)(nil)

// ParquetSource reads an input table from a Parquet file whose columns use
// the same names as the CSV layout.
type ParquetSource struct {
	Path string
}

// NewParquetSource creates a ParquetSource for the file at path.
func NewParquetSource(path string) *ParquetSource {
	return &ParquetSource{Path: path}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// ObservationRecord is the Parquet schema of the asset table. Nullable
// numeric columns are optional.
type ObservationRecord struct {
	Ticker string   `parquet:"ticker"`
	Date   int64    `parquet:"data,timestamp(millisecond)"` // Unix ms
	Price  *float64 `parquet:"preco_fechamento_ajustado,optional"`
	Volume *float64 `parquet:"volume_negociado,optional"`
	EBITEV *float64 `parquet:"ebit_ev,optional"`
	ROIC   *float64 `parquet:"roic,optional"`
}

// BenchmarkRecord is the Parquet schema of the benchmark table. Date is 0
// for undated benchmarks.
type BenchmarkRecord struct {
	Date  int64    `parquet:"data,timestamp(millisecond)"` // Unix ms
	Close *float64 `parquet:"fechamento,optional"`
}

// ComparisonRecord is the Parquet schema of a run's exported comparison
// table: one row per strategy period.
type ComparisonRecord struct {
	RunID               string   `parquet:"run_id"`
	Date                int64    `parquet:"data,timestamp(millisecond)"` // Unix ms
	StrategyReturn      float64  `parquet:"strategy_return"`
	BenchmarkReturn     float64  `parquet:"benchmark_return"`
	StrategyCumulative  float64  `parquet:"strategy_cumulative"`
	BenchmarkCumulative float64  `parquet:"benchmark_cumulative"`
	Holdings            []string `parquet:"holdings,list"`
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

// ReadObservations reads the asset table.
func (s *ParquetSource) ReadObservations(_ context.Context) ([]domain.Observation, error) {
	records, err := parquet.ReadFile[ObservationRecord](s.Path)
	if err != nil {
		return nil, unavailable(s.Path, err)
	}
	obs := make([]domain.Observation, len(records))
	for i, r := range records {
		obs[i] = domain.Observation{
			AssetID:      r.Ticker,
			Period:       time.UnixMilli(r.Date).UTC(),
			Price:        fromOptional(r.Price),
			TradedVolume: fromOptional(r.Volume),
			FactorA:      fromOptional(r.EBITEV),
			FactorB:      fromOptional(r.ROIC),
		}
	}
	return obs, nil
}

// ReadBenchmark reads the benchmark table in stored row order.
func (s *ParquetSource) ReadBenchmark(_ context.Context) ([]domain.BenchmarkPoint, error) {
	records, err := parquet.ReadFile[BenchmarkRecord](s.Path)
	if err != nil {
		return nil, unavailable(s.Path, err)
	}
	pts := make([]domain.BenchmarkPoint, len(records))
	for i, r := range records {
		pts[i] = domain.BenchmarkPoint{Period: periodOrZero(r.Date), Close: fromOptional(r.Close)}
	}
	return pts, nil
}

// ---------------------------------------------------------------------------
// Writers
// ---------------------------------------------------------------------------

// WriteObservationsParquet writes observations in the asset table schema.
func WriteObservationsParquet(path string, obs []domain.Observation) error {
	records := make([]ObservationRecord, len(obs))
	for i, o := range obs {
		records[i] = ObservationRecord{
			Ticker: o.AssetID,
			Date:   o.Period.UnixMilli(),
			Price:  toOptional(o.Price),
			Volume: toOptional(o.TradedVolume),
			EBITEV: toOptional(o.FactorA),
			ROIC:   toOptional(o.FactorB),
		}
	}
	return writeParquetFile(path, records)
}

// WriteBenchmarkParquet writes benchmark points in the benchmark schema.
func WriteBenchmarkParquet(path string, pts []domain.BenchmarkPoint) error {
	records := make([]BenchmarkRecord, len(pts))
	for i, p := range pts {
		var ms int64
		if p.HasPeriod() {
			ms = p.Period.UnixMilli()
		}
		records[i] = BenchmarkRecord{Date: ms, Close: toOptional(p.Close)}
	}
	return writeParquetFile(path, records)
}

// WriteComparisonParquet exports a run's comparison table.
func WriteComparisonParquet(path string, records []ComparisonRecord) error {
	return writeParquetFile(path, records)
}

// ReadComparisonParquet reads an exported comparison table.
func ReadComparisonParquet(path string) ([]ComparisonRecord, error) {
	return readParquetFile[ComparisonRecord](path)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// readParquetFile reads all records of type T from a Parquet file.
func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// writeParquetFile writes records to a Parquet file, creating parent
// directories as needed.
func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return parquet.WriteFile(path, records)
}

func fromOptional(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func toOptional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// periodOrZero converts a Unix millisecond timestamp, treating 0 as absent.
func periodOrZero(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
