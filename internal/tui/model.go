// Package tui is a terminal browser for a finished backtest: one page per
// rebalancing period with its holdings and returns, plus a heatmap page.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"magicformula/internal/dashboard"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	tickerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type page int

const (
	pageHoldings page = iota
	pageHeatmap
)

// Model is the bubbletea model of the browser.
type Model struct {
	view     *dashboard.View
	idx      int
	page     page
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// New creates a browser positioned on the latest period.
func New(v *dashboard.View) Model {
	m := Model{view: v}
	if n := len(v.Holdings); n > 0 {
		m.idx = n - 1
	}
	return m
}

// Run starts the browser in the alternate screen and blocks until it exits.
func Run(v *dashboard.View) error {
	p := tea.NewProgram(New(v), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Index returns the position of the selected period.
func (m Model) Index() int { return m.idx }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "left":
			m.move(m.idx - 1)
			return m, nil
		case "right":
			m.move(m.idx + 1)
			return m, nil
		case "home":
			m.move(0)
			return m, nil
		case "end":
			m.move(len(m.view.Holdings) - 1)
			return m, nil
		case "tab":
			if m.page == pageHoldings {
				m.page = pageHeatmap
			} else {
				m.page = pageHoldings
			}
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) move(idx int) {
	if len(m.view.Holdings) == 0 {
		return
	}
	idx = max(0, min(idx, len(m.view.Holdings)-1))
	if idx == m.idx {
		return
	}
	m.idx = idx
	m.refresh()
	if m.ready {
		m.viewport.GotoTop()
	}
}

func (m *Model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var headerText string
	if m.page == pageHeatmap {
		headerText = fmt.Sprintf(" %s vs %s    monthly returns ", m.view.StrategyName, m.view.BenchmarkName)
	} else if len(m.view.Holdings) == 0 {
		headerText = fmt.Sprintf(" %s    no holdings ", m.view.StrategyName)
	} else {
		h := m.view.Holdings[m.idx]
		headerText = fmt.Sprintf(" %s    %s    [%d/%d] ",
			m.view.StrategyName, h.Label, m.idx+1, len(m.view.Holdings))
	}
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	footerLeft := " q quit  left/right period  home/end first/last  tab heatmap  pgup/dn scroll"
	footerRight := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
	gap := max(m.width-ansi.StringWidth(footerLeft)-ansi.StringWidth(footerRight), 0)
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m Model) renderContent() string {
	var b strings.Builder
	if m.page == pageHeatmap {
		renderHeatmap(&b, m.view.StrategyHeatmap)
		b.WriteString("\n")
		renderHeatmap(&b, m.view.BenchmarkHeatmap)
		return b.String()
	}
	if len(m.view.Holdings) == 0 {
		b.WriteString(dimStyle.Render("  No holdings."))
		return b.String()
	}

	h := m.view.Holdings[m.idx]
	b.WriteString(titleStyle.Render(" Portfolio for " + h.Label + " "))
	b.WriteString("\n\n")
	for i, t := range h.Tickers {
		fmt.Fprintf(&b, "  %3d. %s\n", i+1, tickerStyle.Render(t))
	}

	if pr, ok := m.view.EarnedBy(h); ok {
		b.WriteString("\n")
		b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-14s %12s %12s", "held until "+pr.Key, "period", "cumulative")))
		b.WriteString("\n")
		writeReturnLine(&b, m.view.StrategyName, pr.StrategyReturn, pr.StrategyCumulative)
		writeReturnLine(&b, m.view.BenchmarkName, pr.BenchmarkReturn, pr.BenchmarkCumulative)
	}
	return b.String()
}

func writeReturnLine(b *strings.Builder, name string, ret, cum float64) {
	fmt.Fprintf(b, "  %-14s %s %s\n", padOrTrunc(name, 14), pctStyle(ret).Render(fmt.Sprintf("%12s", dashboard.FormatPct(ret))),
		pctStyle(cum).Render(fmt.Sprintf("%12s", dashboard.FormatPct(cum))))
}

func renderHeatmap(b *strings.Builder, h dashboard.Heatmap) {
	b.WriteString(titleStyle.Render(" " + h.Name + " "))
	b.WriteString("\n")
	var hdr strings.Builder
	hdr.WriteString("  Year ")
	for mo := time.January; mo <= time.December; mo++ {
		fmt.Fprintf(&hdr, "%7s", mo.String()[:3])
	}
	fmt.Fprintf(&hdr, "%8s", "Total")
	b.WriteString(colHeaderStyle.Render(hdr.String()))
	b.WriteString("\n")

	for i, y := range h.Years {
		fmt.Fprintf(b, "  %4d ", y)
		for _, v := range h.Cells[i] {
			b.WriteString(pctStyle(v).Render(fmt.Sprintf("%7s", dashboard.FormatCellPct(v))))
		}
		b.WriteString(pctStyle(h.YearTotals[i]).Render(fmt.Sprintf("%8s", dashboard.FormatCellPct(h.YearTotals[i]))))
		b.WriteString("\n")
	}
	if len(h.Years) == 0 {
		b.WriteString(dimStyle.Render("  no data"))
		b.WriteString("\n")
	}
}

func pctStyle(v float64) lipgloss.Style {
	switch {
	case math.IsNaN(v):
		return dimStyle
	case v < 0:
		return lossStyle
	default:
		return gainStyle
	}
}

// padOrTrunc pads s with spaces to width cells, or truncates it if wider.
func padOrTrunc(s string, width int) string {
	n := ansi.StringWidth(s)
	if n >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-n)
}
