package backtest

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"magicformula/internal/domain"
)

// Engine runs the four backtest stages in order: forward returns, factor
// ranking, portfolio construction, and benchmark comparison.
type Engine struct {
	params Params
	log    *slog.Logger
}

// NewEngine creates an Engine. Zero-valued parameters fall back to
// DefaultParams. A nil logger uses slog.Default().
func NewEngine(params Params, log *slog.Logger) *Engine {
	def := DefaultParams()
	if params.PortfolioSize <= 0 {
		params.PortfolioSize = def.PortfolioSize
	}
	if params.Alignment == "" {
		params.Alignment = def.Alignment
	}
	if params.StrategyName == "" {
		params.StrategyName = def.StrategyName
	}
	if params.BenchmarkName == "" {
		params.BenchmarkName = def.BenchmarkName
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{params: params, log: log}
}

// Params returns the effective parameters.
func (e *Engine) Params() Params { return e.params }

// Run executes the backtest over the asset observations and benchmark levels.
// The inputs are not modified.
func (e *Engine) Run(obs []domain.Observation, bench []domain.BenchmarkPoint) (*Result, error) {
	runID := uuid.NewString()
	log := e.log.With("run", runID)

	derived := BuildForwardReturns(obs)
	log.Debug("forward returns built", "observations", len(derived))

	derived = FilterLiquidity(derived, e.params.MinVolume)
	log.Debug("liquidity filter applied", "kept", len(derived), "min_volume", e.params.MinVolume)

	derived = RankFactors(derived)
	portfolios := ConstructPortfolios(derived, e.params.PortfolioSize)
	log.Debug("portfolios constructed", "periods", len(portfolios))

	stratRet := StrategyReturns(portfolios, e.params.StrategyName)
	if stratRet.Len() == 0 {
		return nil, ErrEmptyResult
	}

	benchRet, err := AlignBenchmark(stratRet, BenchmarkReturns(bench, e.params.BenchmarkName), e.params.Alignment)
	if err != nil {
		return nil, fmt.Errorf("aligning benchmark (%s): %w", e.params.Alignment, err)
	}

	stratCum := Compound(stratRet)
	benchCum := Compound(benchRet)
	rows, err := Compare(stratCum, benchCum)
	if err != nil {
		return nil, err
	}
	log.Debug("comparison built", "rows", len(rows))

	return &Result{
		RunID:               runID,
		Params:              e.params,
		Derived:             derived,
		Portfolios:          portfolios,
		StrategyReturns:     stratRet,
		BenchmarkReturns:    benchRet,
		StrategyCumulative:  stratCum,
		BenchmarkCumulative: benchCum,
		Comparison:          rows,
		StrategyStats:       ComputeStats(stratRet.Values()),
		BenchmarkStats:      ComputeStats(benchRet.Values()),
	}, nil
}
