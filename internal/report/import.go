package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"magicformula/internal/config"
	"magicformula/internal/store"
)

// Import reads the configured input tables in whatever format they are
// stored and writes them as the target format. For Parquet, out is a
// directory receiving <assets_table>.parquet and <benchmark_table>.parquet;
// for SQLite, out is the database file holding both tables. The written
// paths are returned.
func Import(ctx context.Context, cfg *config.Config, format, out string) ([]string, error) {
	assets, bench := Inputs(cfg)
	in, err := store.Load(ctx, assets, bench)
	if err != nil {
		return nil, err
	}

	switch format {
	case config.FormatParquet:
		if err := os.MkdirAll(out, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", out, err)
		}
		assetsPath := filepath.Join(out, cfg.Input.AssetsTable+".parquet")
		if err := store.WriteObservationsParquet(assetsPath, in.Observations); err != nil {
			return nil, fmt.Errorf("writing %s: %w", assetsPath, err)
		}
		benchPath := filepath.Join(out, cfg.Input.BenchmarkTable+".parquet")
		if err := store.WriteBenchmarkParquet(benchPath, in.Benchmark); err != nil {
			return nil, fmt.Errorf("writing %s: %w", benchPath, err)
		}
		return []string{assetsPath, benchPath}, nil

	case config.FormatSQLite:
		if dir := filepath.Dir(out); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		w, err := store.NewSQLiteWriter(out)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", out, err)
		}
		defer w.Close()
		if err := w.WriteObservations(ctx, cfg.Input.AssetsTable, in.Observations); err != nil {
			return nil, err
		}
		if err := w.WriteBenchmark(ctx, cfg.Input.BenchmarkTable, in.Benchmark); err != nil {
			return nil, err
		}
		return []string{out}, nil

	default:
		return nil, fmt.Errorf("unsupported import target %q (want %q or %q)", format, config.FormatParquet, config.FormatSQLite)
	}
}
