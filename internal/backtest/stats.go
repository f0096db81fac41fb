package backtest

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// tradingDays is the annualization base used for Sharpe
const tradingDays = 252

// Evaluate computes performance statistics from a trade log and its equity curve.
// With no trades the win rate is 0 and the final equity equals the initial capital.
func Evaluate(trades []Trade, equity []EquityPoint, initialCapital float64) Stats {
	s := Stats{
		FinalEquity: initialCapital,
		TradeCount:  len(trades),
	}
	if len(equity) > 0 {
		s.FinalEquity = equity[len(equity)-1].Equity
	}
	if initialCapital > 0 {
		s.TotalReturn = s.FinalEquity/initialCapital - 1
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.IsWin() {
			s.WinningTrades++
			grossProfit += t.PnL
		} else {
			s.LosingTrades++
			grossLoss -= t.PnL
		}
	}
	if len(trades) > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(len(trades))
	}
	s.ProfitFactor = profitFactor(grossProfit, grossLoss)

	dd := calculateMaxDrawdown(equity)
	s.MaxDrawdown = dd.depth
	if dd.depth > 0 {
		s.DrawdownStart = equity[dd.peak].Time
		s.DrawdownEnd = equity[dd.trough].Time
		s.DrawdownBars = dd.trough - dd.peak
		s.RAR = s.TotalReturn / dd.depth
	}

	s.SharpeRatio = calculateSharpeRatio(equityReturns(equity))
	return s
}

type drawdown struct {
	depth  float64
	peak   int
	trough int
}

// calculateMaxDrawdown finds the largest peak-to-trough decline in one forward pass
func calculateMaxDrawdown(equity []EquityPoint) drawdown {
	var dd drawdown
	if len(equity) == 0 {
		return dd
	}

	peak := equity[0].Equity
	peakIdx := 0
	for i, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
			peakIdx = i
		}
		if peak > 0 {
			depth := (peak - p.Equity) / peak
			if depth > dd.depth {
				dd = drawdown{depth: depth, peak: peakIdx, trough: i}
			}
		}
	}
	return dd
}

func equityReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	return returns
}

// calculateSharpeRatio computes the per-bar mean over standard deviation.
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	stdDev, err := stats.StandardDeviationSample(returns)
	if err != nil || stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}
	return mean / stdDev
}

// annualization scales a per-bar Sharpe ratio to a yearly one
func annualization(interval time.Duration) float64 {
	if interval <= 0 {
		return 1
	}
	barsPerYear := float64(tradingDays) * float64(24*time.Hour) / float64(interval)
	return math.Sqrt(barsPerYear)
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return grossProfit / grossLoss
}
