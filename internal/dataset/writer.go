package dataset

import (
	"context"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/montecarlo"
	"github.com/newthinker/fxmc/internal/storage/archive"
)

type tradeRow struct {
	Direction  string  `csv:"direction"`
	EntryTime  string  `csv:"entry_time"`
	ExitTime   string  `csv:"exit_time"`
	EntryPrice float64 `csv:"entry_price"`
	ExitPrice  float64 `csv:"exit_price"`
	Units      float64 `csv:"units"`
	Cost       float64 `csv:"cost"`
	PnL        float64 `csv:"pnl"`
	Return     float64 `csv:"return"`
	Bars       int     `csv:"bars"`
	ExitReason string  `csv:"exit_reason"`
}

type equityRow struct {
	Date     string  `csv:"Date"`
	Equity   float64 `csv:"equity"`
	Position string  `csv:"position"`
}

type trialRow struct {
	Trial       int     `csv:"trial"`
	FinalEquity float64 `csv:"final_equity"`
	MaxDrawdown float64 `csv:"max_drawdown"`
	TotalReturn float64 `csv:"total_return"`
	Trades      int     `csv:"trades"`
	Skipped     bool    `csv:"skipped"`
	Reason      string  `csv:"reason"`
}

type candidateRow struct {
	Fast        int     `csv:"fast"`
	Slow        int     `csv:"slow"`
	KPeriod     int     `csv:"k_period"`
	Smooth      int     `csv:"smooth"`
	DPeriod     int     `csv:"d_period"`
	TotalReturn float64 `csv:"total_return"`
	MaxDrawdown float64 `csv:"max_drawdown"`
	FinalEquity float64 `csv:"final_equity"`
	Trades      int     `csv:"trades"`
}

// WriteSeries stores bars in the prepared layout, readable by LoadPrepared
func WriteSeries(ctx context.Context, store archive.Storage, path string, series core.Series) error {
	rows := make([]barRow, len(series.Bars))
	for i, bar := range series.Bars {
		rows[i] = barRow{
			Date:   bar.Time.UTC().Format(DateLayout),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}
	return write(ctx, store, path, &rows)
}

// WriteTrades stores the trade log
func WriteTrades(ctx context.Context, store archive.Storage, path string, trades []backtest.Trade) error {
	rows := make([]tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = tradeRow{
			Direction:  t.Direction.String(),
			EntryTime:  t.EntryTime.UTC().Format(DateLayout),
			ExitTime:   t.ExitTime.UTC().Format(DateLayout),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Units:      t.Units,
			Cost:       t.Cost,
			PnL:        t.PnL,
			Return:     t.Return,
			Bars:       t.Bars(),
			ExitReason: string(t.ExitReason),
		}
	}
	return write(ctx, store, path, &rows)
}

// WriteEquity stores the per-bar equity curve
func WriteEquity(ctx context.Context, store archive.Storage, path string, equity []backtest.EquityPoint) error {
	rows := make([]equityRow, len(equity))
	for i, p := range equity {
		rows[i] = equityRow{
			Date:     p.Time.UTC().Format(DateLayout),
			Equity:   p.Equity,
			Position: p.Position.String(),
		}
	}
	return write(ctx, store, path, &rows)
}

// WriteDistribution stores one row per attempted Monte Carlo trial
func WriteDistribution(ctx context.Context, store archive.Storage, path string, trials []montecarlo.Trial) error {
	rows := make([]trialRow, len(trials))
	for i, t := range trials {
		rows[i] = trialRow{
			Trial:       t.Index,
			FinalEquity: t.FinalEquity,
			MaxDrawdown: t.MaxDrawdown,
			TotalReturn: t.TotalReturn,
			Trades:      t.Trades,
			Skipped:     t.Skipped,
			Reason:      t.Reason,
		}
	}
	return write(ctx, store, path, &rows)
}

// WriteCandidates stores every evaluated parameter draw of a search
func WriteCandidates(ctx context.Context, store archive.Storage, path string, candidates []montecarlo.Candidate) error {
	rows := make([]candidateRow, len(candidates))
	for i, c := range candidates {
		rows[i] = candidateRow{
			Fast:        c.Fast,
			Slow:        c.Slow,
			KPeriod:     c.KPeriod,
			Smooth:      c.Smooth,
			DPeriod:     c.DPeriod,
			TotalReturn: c.TotalReturn,
			MaxDrawdown: c.MaxDrawdown,
			FinalEquity: c.FinalEquity,
			Trades:      c.Trades,
		}
	}
	return write(ctx, store, path, &rows)
}

func write(ctx context.Context, store archive.Storage, path string, rows any) error {
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return store.Write(ctx, path, data)
}
