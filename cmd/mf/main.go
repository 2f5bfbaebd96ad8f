// Command mf runs the Magic Formula factor backtest against a benchmark and
// presents the result as image files, an HTTP dashboard, a terminal browser
// or a Markdown holdings listing.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&runCmd{}, "backtest")
	commander.Register(&serveCmd{}, "backtest")
	commander.Register(&browseCmd{}, "backtest")
	commander.Register(&holdingsCmd{}, "backtest")
	commander.Register(&importCmd{}, "data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
