package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"magicformula/internal/config"
	"magicformula/internal/util"
)

const defaultConfigPath = "config/magicformula.yaml"

// configFlags is embedded by every command that reads the configuration.
type configFlags struct {
	path string
}

func (c *configFlags) register(f *flag.FlagSet) {
	p := defaultConfigPath
	if v := os.Getenv("MF_CONFIG"); v != "" {
		p = v
	}
	f.StringVar(&c.path, "config", p, "path to the YAML configuration file (env MF_CONFIG)")
}

// load reads the configuration and installs a logger writing to w.
func (c *configFlags) load(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return cfg, logger, nil
}

// fail reports err as a single line on stderr.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}
