package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
	"github.com/newthinker/fxmc/internal/strategy"
	"github.com/newthinker/fxmc/internal/strategy/ma_crossover"
)

// Session restricts new entries to signals raised on bars whose UTC hour lies in [StartHour, EndHour].
// A window with StartHour > EndHour wraps past midnight. The zero value allows every hour.
type Session struct {
	Enabled   bool
	StartHour int
	EndHour   int
}

// Allows reports whether a position may be opened at t
func (s Session) Allows(t time.Time) bool {
	if !s.Enabled {
		return true
	}
	h := t.UTC().Hour()
	if s.StartHour <= s.EndHour {
		return h >= s.StartHour && h <= s.EndHour
	}
	return h >= s.StartHour || h <= s.EndHour
}

// Params configures one strategy simulation
type Params struct {
	Strategy       string // registered strategy name; empty means ma_crossover
	FastWindow     int
	SlowWindow     int
	ExitWindow     int // ma3 only
	MAType         indicator.Kind
	KPeriod        int // stochastic only
	Smooth         int
	DPeriod        int
	Spread         float64 // price units, charged once per round trip
	InitialCapital float64
	Leverage       float64 // notional per unit of equity; 0 means 1
	Session        Session
}

// DefaultParams returns the parameters used when nothing is configured
func DefaultParams() Params {
	return Params{
		Strategy:       ma_crossover.Name,
		FastWindow:     10,
		SlowWindow:     30,
		ExitWindow:     5,
		MAType:         indicator.KindSMA,
		KPeriod:        14,
		Smooth:         3,
		DPeriod:        3,
		Spread:         0.0002,
		InitialCapital: 10000,
		Leverage:       1,
	}
}

// Validate checks the parameters once, before any simulation runs.
// Strategy-specific fields are checked by the strategy registered under p.Strategy.
func (p Params) Validate() error {
	if err := p.validateAccount(); err != nil {
		return err
	}
	_, err := DefaultEngine().Build(p.StrategyConfig())
	return err
}

func (p Params) validateAccount() error {
	switch {
	case p.Spread < 0 || math.IsNaN(p.Spread) || math.IsInf(p.Spread, 0):
		return invalid("spread must be a non-negative number, got %v", p.Spread)
	case p.InitialCapital <= 0 || math.IsNaN(p.InitialCapital) || math.IsInf(p.InitialCapital, 0):
		return invalid("initial_capital must be positive, got %v", p.InitialCapital)
	case p.Leverage < 0 || math.IsNaN(p.Leverage) || math.IsInf(p.Leverage, 0):
		return invalid("leverage cannot be negative, got %v", p.Leverage)
	}
	if p.Session.Enabled {
		if p.Session.StartHour < 0 || p.Session.StartHour > 23 || p.Session.EndHour < 0 || p.Session.EndHour > 23 {
			return invalid("session hours must be within 0..23, got %d..%d", p.Session.StartHour, p.Session.EndHour)
		}
	}
	return nil
}

// StrategyConfig maps the strategy fields onto a registry config
func (p Params) StrategyConfig() strategy.Config {
	name := p.Strategy
	if name == "" {
		name = ma_crossover.Name
	}
	return strategy.Config{
		Name:       name,
		FastWindow: p.FastWindow,
		SlowWindow: p.SlowWindow,
		ExitWindow: p.ExitWindow,
		MAType:     p.MAType,
		KPeriod:    p.KPeriod,
		Smooth:     p.Smooth,
		DPeriod:    p.DPeriod,
	}
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrInvalidParameter, fmt.Errorf(format, args...))
}

// ExitReason records why a trade was closed
type ExitReason string

const (
	ExitSignal    ExitReason = "signal"
	ExitEndOfData ExitReason = "end_of_data"
)

// Trade represents a closed position from entry to exit
type Trade struct {
	Direction  core.Direction
	EntryTime  time.Time
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	Units      float64
	Cost       float64 // spread charged on the round trip
	PnL        float64
	Return     float64 // PnL relative to entry notional
	ExitReason ExitReason
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Bars returns how many bars the position was held
func (t Trade) Bars() int {
	return t.ExitIndex - t.EntryIndex
}

// EquityPoint is the marked-to-market account value after a bar
type EquityPoint struct {
	Time     time.Time
	Equity   float64
	Position core.Direction
}

// Stats holds performance statistics
type Stats struct {
	FinalEquity   float64
	TotalReturn   float64 // fraction of initial capital
	MarketReturn  float64 // buy and hold over the same bars
	MaxDrawdown   float64 // largest peak-to-trough decline, fraction of the peak
	DrawdownStart time.Time
	DrawdownEnd   time.Time
	DrawdownBars  int
	TradeCount    int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // fraction of closed trades with positive pnl
	ProfitFactor  float64
	SharpeRatio   float64 // annualized from per-bar equity returns
	RAR           float64 // total return divided by max drawdown
}

// Result holds the complete output of one simulation
type Result struct {
	Strategy  string
	Symbol    string
	Params    Params
	StartDate time.Time
	EndDate   time.Time
	Bars      int
	Trades    []Trade
	Equity    []EquityPoint
	Stats     Stats
}
