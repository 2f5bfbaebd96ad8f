package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"magicformula/internal/report"
)

type runCmd struct {
	configFlags
	out string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the backtest and write charts, holdings and the result table" }
func (*runCmd) Usage() string {
	return `mf run [-config <file>] [-out <dir>]

  Runs the backtest and writes cumulative.png, heatmap_strategy.png,
  heatmap_benchmark.png, holdings.md and result.parquet into the output
  directory.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	c.configFlags.register(f)
	f.StringVar(&c.out, "out", "", "output directory (overrides output.dir)")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := c.load(os.Stderr)
	if err != nil {
		return fail(err)
	}
	if c.out != "" {
		cfg.Output.Dir = c.out
	}

	rep, err := report.Build(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	paths, err := rep.WriteArtifacts(cfg.Output.Dir)
	if err != nil {
		return fail(err)
	}
	for _, p := range paths {
		logger.Info("wrote artifact", "path", p)
	}
	for _, line := range report.SummaryLines(rep.View) {
		fmt.Println(line)
	}
	return subcommands.ExitSuccess
}
