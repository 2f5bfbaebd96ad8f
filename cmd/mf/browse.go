package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"magicformula/internal/dashboard"
	"magicformula/internal/report"
	"magicformula/internal/tui"
)

type browseCmd struct {
	configFlags
}

func (*browseCmd) Name() string     { return "browse" }
func (*browseCmd) Synopsis() string { return "browse the holdings month by month in the terminal" }
func (*browseCmd) Usage() string {
	return `mf browse [-config <file>]

  Runs the backtest and opens an interactive browser of the per-period
  holdings and monthly returns. Logs go to /tmp/mf-browse-<date>.log.
`
}

func (c *browseCmd) SetFlags(f *flag.FlagSet) {
	c.configFlags.register(f)
}

func (c *browseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logPath := fmt.Sprintf("/tmp/mf-browse-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fail(fmt.Errorf("opening log file: %w", err))
	}
	defer logFile.Close()

	cfg, logger, err := c.load(logFile)
	if err != nil {
		return fail(err)
	}
	res, err := report.Compute(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	if err := tui.Run(dashboard.Build(res, time.Now())); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
