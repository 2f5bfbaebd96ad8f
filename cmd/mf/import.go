package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"magicformula/internal/config"
	"magicformula/internal/report"
)

type importCmd struct {
	configFlags
	to  string
	out string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "convert the input tables to Parquet or SQLite" }
func (*importCmd) Usage() string {
	return `mf import [-config <file>] -to parquet|sqlite -out <path>

  Reads the configured asset and benchmark tables and writes them in the
  target format. For parquet, -out is a directory; for sqlite, a database
  file holding both tables.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	c.configFlags.register(f)
	f.StringVar(&c.to, "to", config.FormatParquet, "target format (parquet, sqlite)")
	f.StringVar(&c.out, "out", "", "output directory (parquet) or database file (sqlite)")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.out == "" {
		fmt.Fprintln(os.Stderr, "Error: -out is required")
		return subcommands.ExitUsageError
	}
	cfg, logger, err := c.load(os.Stderr)
	if err != nil {
		return fail(err)
	}

	paths, err := report.Import(ctx, cfg, strings.ToLower(c.to), c.out)
	if err != nil {
		return fail(err)
	}
	for _, p := range paths {
		logger.Info("wrote table", "path", p, "format", c.to)
	}
	return subcommands.ExitSuccess
}
