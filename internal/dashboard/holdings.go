package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"magicformula/internal/backtest"
	"magicformula/internal/domain"
)

// MonthHoldings is the selected assets of one rebalancing period.
type MonthHoldings struct {
	Period  time.Time
	Key     string // YYYY-MM-DD
	Label   string // e.g. "January 2020"
	Tickers []string
}

// MonthLabel formats a period as "January 2020".
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}

// Holdings lists every period with at least one selected asset in
// chronological order, each list ordered by combined rank.
func Holdings(portfolios []backtest.PortfolioPeriod) []MonthHoldings {
	out := make([]MonthHoldings, 0, len(portfolios))
	for _, p := range portfolios {
		if len(p.Holdings) == 0 {
			continue
		}
		out = append(out, MonthHoldings{
			Period:  p.Period,
			Key:     domain.PeriodKey(p.Period),
			Label:   MonthLabel(p.Period),
			Tickers: append([]string(nil), p.Holdings...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// HoldingsByPeriod maps YYYY-MM-DD period keys to ordered holdings.
func HoldingsByPeriod(portfolios []backtest.PortfolioPeriod) map[string][]string {
	m := make(map[string][]string, len(portfolios))
	for _, h := range Holdings(portfolios) {
		m[h.Key] = h.Tickers
	}
	return m
}

// FindHoldings returns the holdings for a period key, accepting either
// YYYY-MM-DD or YYYY-MM.
func FindHoldings(list []MonthHoldings, key string) (MonthHoldings, bool) {
	for _, h := range list {
		if h.Key == key || h.Period.Format("2006-01") == key {
			return h, true
		}
	}
	return MonthHoldings{}, false
}

// HoldingsMarkdown renders the listing as a Markdown document with one
// section per period.
func HoldingsMarkdown(title string, list []MonthHoldings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(list) == 0 {
		b.WriteString("_No holdings._\n")
		return b.String()
	}
	for _, h := range list {
		fmt.Fprintf(&b, "## Portfolio for %s\n\n", h.Label)
		for i, t := range h.Tickers {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t)
		}
		b.WriteString("\n")
	}
	return b.String()
}
