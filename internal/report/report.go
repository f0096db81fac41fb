// Package report renders simulation, Monte Carlo and search results as text tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/montecarlo"
)

var p = message.NewPrinter(language.English)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func money(v float64) string   { return p.Sprintf("%.2f", v) }
func percent(v float64) string { return p.Sprintf("%.2f%%", v*100) }
func ratio(v float64) string   { return p.Sprintf("%.3f", v) }

// Backtest writes the performance summary of one simulation
func Backtest(w io.Writer, res *backtest.Result) {
	fmt.Fprintf(w, "%s %s: %s to %s, %d bars\n", res.Symbol, res.Strategy,
		formatTime(res.StartDate), formatTime(res.EndDate), res.Bars)

	s := res.Stats
	table := newTable(w, "Metric", "Value")
	table.Append([]string{"Final equity", money(s.FinalEquity)})
	table.Append([]string{"Strategy return", percent(s.TotalReturn)})
	table.Append([]string{"Market return", percent(s.MarketReturn)})
	table.Append([]string{"Max drawdown", percent(s.MaxDrawdown)})
	table.Append([]string{"Drawdown period", fmt.Sprintf("%d bars", s.DrawdownBars)})
	if s.MaxDrawdown > 0 {
		table.Append([]string{"Drawdown start", formatTime(s.DrawdownStart)})
		table.Append([]string{"Drawdown end", formatTime(s.DrawdownEnd)})
	}
	table.Append([]string{"RAR", ratio(s.RAR)})
	table.Append([]string{"Trades", p.Sprintf("%d", s.TradeCount)})
	table.Append([]string{"Win rate", percent(s.WinRate)})
	table.Append([]string{"Profit factor", ratio(s.ProfitFactor)})
	table.Append([]string{"Sharpe ratio", ratio(s.SharpeRatio)})
	table.Render()
}

// MonteCarlo writes the observed outcome against the resampled distributions
func MonteCarlo(w io.Writer, res *montecarlo.Result) {
	fmt.Fprintf(w, "Monte Carlo %s: %d attempted, %d completed, %d skipped",
		res.Config.Method, res.Attempted, res.Completed, res.Skipped)
	if res.Cancelled {
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w)

	table := newTable(w, "", "Observed", "Percentile", "Mean", "StdDev", "P5", "P50", "P95")
	obs := res.Observed.Stats
	e, d := res.EquitySummary, res.DrawdownSummary
	table.Append([]string{"Final equity", money(obs.FinalEquity), p.Sprintf("%.1f", res.EquityPercentile),
		money(e.Mean), money(e.StdDev), money(e.P5), money(e.P50), money(e.P95)})
	table.Append([]string{"Max drawdown", percent(obs.MaxDrawdown), p.Sprintf("%.1f", res.DrawdownPercentile),
		percent(d.Mean), percent(d.StdDev), percent(d.P5), percent(d.P50), percent(d.P95)})
	table.Render()
}

// Search writes the best top candidates under the search priority, best first.
// top <= 0 lists every candidate.
func Search(w io.Writer, res *montecarlo.SearchResult, top int) {
	fmt.Fprintf(w, "Period search by %s: %d candidates", res.Config.Priority, len(res.Candidates))
	if res.Cancelled {
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w)
	if len(res.Candidates) == 0 {
		return
	}

	ranked := make([]montecarlo.Candidate, len(res.Candidates))
	copy(ranked, res.Candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if res.Config.Priority == montecarlo.PriorityDrawdown {
			return ranked[i].MaxDrawdown < ranked[j].MaxDrawdown
		}
		return ranked[i].TotalReturn > ranked[j].TotalReturn
	})
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	table := newTable(w, "Periods", "Return", "Max drawdown", "Final equity", "Trades")
	for _, c := range ranked {
		table.Append([]string{
			c.Label(),
			percent(c.TotalReturn),
			percent(c.MaxDrawdown),
			money(c.FinalEquity),
			p.Sprintf("%d", c.Trades),
		})
	}
	table.Render()

	if b := res.Best; b.KPeriod > 0 {
		fmt.Fprintf(w, "Best: k %d, smooth %d, d %d\n", b.KPeriod, b.Smooth, b.DPeriod)
	} else {
		fmt.Fprintf(w, "Best: fast %d, slow %d\n", b.Fast, b.Slow)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
