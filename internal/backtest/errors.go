package backtest

import "errors"

var (
	// ErrMisaligned is returned when the strategy and benchmark series cannot
	// be matched period by period.
	ErrMisaligned = errors.New("strategy and benchmark series are misaligned")

	// ErrEmptyResult is returned when no strategy period survives the
	// pipeline, e.g. every observation failed the liquidity filter.
	ErrEmptyResult = errors.New("backtest produced no strategy periods")
)
