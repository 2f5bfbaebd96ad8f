package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"magicformula/internal/dashboard"
	"magicformula/internal/domain"
	"magicformula/internal/report"
	"magicformula/pkg/mfclient"
)

type holdingsCmd struct {
	configFlags
	period string
	raw    bool
	remote string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "print the portfolio holdings of every period" }
func (*holdingsCmd) Usage() string {
	return `mf holdings [-config <file>] [-p YYYY-MM] [-raw] [-remote <url>]

  Prints the holdings of each rebalancing period ordered by combined rank.
  With -remote the listing is fetched from a running "mf serve" dashboard
  instead of running the backtest locally.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	c.configFlags.register(f)
	f.StringVar(&c.period, "p", "", "only print this period (YYYY-MM or YYYY-MM-DD)")
	f.BoolVar(&c.raw, "raw", false, "print plain Markdown instead of rendering it")
	f.StringVar(&c.remote, "remote", "", "dashboard base URL, e.g. http://localhost:8080")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var (
		title string
		list  []dashboard.MonthHoldings
		err   error
	)
	if c.remote != "" {
		title, list, err = c.fetchRemote(ctx)
	} else {
		title, list, err = c.computeLocal(ctx)
	}
	if err != nil {
		return fail(err)
	}

	if c.period != "" {
		h, ok := dashboard.FindHoldings(list, c.period)
		if !ok {
			return fail(fmt.Errorf("no holdings for period %s", c.period))
		}
		list = []dashboard.MonthHoldings{h}
	}
	md := dashboard.HoldingsMarkdown(title, list)

	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	if err := printMarkdown(md); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *holdingsCmd) computeLocal(ctx context.Context) (string, []dashboard.MonthHoldings, error) {
	cfg, logger, err := c.load(os.Stderr)
	if err != nil {
		return "", nil, err
	}
	res, err := report.Compute(ctx, cfg, logger)
	if err != nil {
		return "", nil, err
	}
	view := dashboard.Build(res, time.Now())
	return report.HoldingsTitle(view), view.Holdings, nil
}

func (c *holdingsCmd) fetchRemote(ctx context.Context) (string, []dashboard.MonthHoldings, error) {
	client := mfclient.NewClient(c.remote)
	sum, err := client.Summary(ctx)
	if err != nil {
		return "", nil, err
	}
	remote, err := client.Holdings(ctx)
	if err != nil {
		return "", nil, err
	}
	list := make([]dashboard.MonthHoldings, 0, len(remote))
	for _, h := range remote {
		period, err := time.Parse(domain.DateLayout, h.Date)
		if err != nil {
			return "", nil, fmt.Errorf("holdings period %q: %w", h.Date, err)
		}
		list = append(list, dashboard.MonthHoldings{Period: period, Key: h.Date, Label: h.Label, Tickers: h.Tickers})
	}
	return sum.Strategy + " holdings", list, nil
}

func printMarkdown(md string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	fmt.Print(out)
	return nil
}
