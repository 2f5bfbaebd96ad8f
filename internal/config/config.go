package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"magicformula/internal/backtest"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a backtest run.
type Config struct {
	Input    Input    `yaml:"input"`
	Backtest Backtest `yaml:"backtest"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

// Input locates the asset and benchmark tables.
type Input struct {
	Assets    string `yaml:"assets"`
	Benchmark string `yaml:"benchmark"`
	// Format forces the reader ("csv", "parquet", "sqlite"). Empty infers it
	// from each file's extension.
	Format         string `yaml:"format"`
	AssetsTable    string `yaml:"assets_table"`
	BenchmarkTable string `yaml:"benchmark_table"`
}

// Backtest holds the engine parameters.
type Backtest struct {
	PortfolioSize  int     `yaml:"portfolio_size"`
	MinVolume      float64 `yaml:"min_volume"`
	Alignment      string  `yaml:"alignment"`
	StrategyLabel  string  `yaml:"strategy_label"`
	BenchmarkLabel string  `yaml:"benchmark_label"`
}

// Output controls where run artifacts are written and chart dimensions.
type Output struct {
	Dir    string `yaml:"dir"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Server holds the dashboard listener address.
type Server struct {
	Addr string `yaml:"addr"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Supported input formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// Default returns the configuration used when no file is present: the
// canonical Magic Formula run over dados_empresas.csv and ibov.csv.
func Default() *Config {
	return &Config{
		Input: Input{
			Assets:         "dados_empresas.csv",
			Benchmark:      "ibov.csv",
			AssetsTable:    "dados_empresas",
			BenchmarkTable: "ibov",
		},
		Backtest: Backtest{
			PortfolioSize:  backtest.DefaultPortfolioSize,
			MinVolume:      backtest.DefaultMinVolume,
			Alignment:      string(backtest.AlignPositional),
			StrategyLabel:  backtest.DefaultStrategyName,
			BenchmarkLabel: backtest.DefaultBenchmarkName,
		},
		Output: Output{
			Dir:    "out",
			Width:  900,
			Height: 500,
		},
		Server:  Server{Addr: ":8080"},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Default(), then applies a .env file from the working directory if one
// exists, then environment variable overrides. A missing config file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MF_ASSETS"); v != "" {
		cfg.Input.Assets = v
	}
	if v := os.Getenv("MF_BENCHMARK"); v != "" {
		cfg.Input.Benchmark = v
	}
	if v := os.Getenv("MF_FORMAT"); v != "" {
		cfg.Input.Format = v
	}
	if v := os.Getenv("MF_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("MF_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MF_ALIGNMENT"); v != "" {
		cfg.Backtest.Alignment = v
	}

	if v := os.Getenv("MF_PORTFOLIO_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MF_PORTFOLIO_SIZE: %w", err)
		}
		cfg.Backtest.PortfolioSize = n
	}
	if v := os.Getenv("MF_MIN_VOLUME"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MF_MIN_VOLUME: %w", err)
		}
		cfg.Backtest.MinVolume = f
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Backtest.PortfolioSize < 1 {
		return fmt.Errorf("backtest.portfolio_size must be >= 1, got %d", c.Backtest.PortfolioSize)
	}
	if c.Backtest.MinVolume < 0 {
		return fmt.Errorf("backtest.min_volume must be >= 0, got %v", c.Backtest.MinVolume)
	}
	if _, err := backtest.ParseAlignment(c.Backtest.Alignment); err != nil {
		return fmt.Errorf("backtest.alignment: %w", err)
	}
	switch strings.ToLower(c.Input.Format) {
	case "", FormatCSV, FormatParquet, FormatSQLite:
	default:
		return fmt.Errorf("input.format: unknown format %q", c.Input.Format)
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("output: chart size must be positive, got %dx%d", c.Output.Width, c.Output.Height)
	}
	return nil
}

// Params converts the backtest section into engine parameters.
func (c *Config) Params() backtest.Params {
	align, _ := backtest.ParseAlignment(c.Backtest.Alignment)
	return backtest.Params{
		PortfolioSize: c.Backtest.PortfolioSize,
		MinVolume:     c.Backtest.MinVolume,
		Alignment:     align,
		StrategyName:  c.Backtest.StrategyLabel,
		BenchmarkName: c.Backtest.BenchmarkLabel,
	}
}
