package backtest

import (
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/strategy"
	"go.uber.org/zap"
)

// Backtester runs the strategy simulation for a fixed, validated set of parameters.
// Simulate keeps no state between calls and may be used from several goroutines.
type Backtester struct {
	params  Params
	engine  *strategy.Engine
	factory strategy.Factory
	logger  *zap.Logger
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger used for per-run debug output
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStrategy replaces the strategy built from the parameters
func WithStrategy(f strategy.Factory) Option {
	return func(b *Backtester) {
		b.factory = f
	}
}

// WithEngine resolves params.Strategy against e instead of DefaultEngine
func WithEngine(e *strategy.Engine) Option {
	return func(b *Backtester) {
		if e != nil {
			b.engine = e
		}
	}
}

// New validates params and creates a Backtester
func New(params Params, opts ...Option) (*Backtester, error) {
	if err := params.validateAccount(); err != nil {
		return nil, err
	}
	if params.Leverage == 0 {
		params.Leverage = 1
	}

	b := &Backtester{
		params: params,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.factory == nil {
		if b.engine == nil {
			b.engine = DefaultEngine()
		}
		f, err := b.engine.Build(params.StrategyConfig())
		if err != nil {
			return nil, err
		}
		b.factory = f
	}
	return b, nil
}

// Params returns the validated parameters
func (b *Backtester) Params() Params {
	return b.params
}

// Warmup is the number of bars the strategy needs before it can signal
func (b *Backtester) Warmup() int {
	return b.factory().Warmup()
}

// position is the open leg during a simulation
type position struct {
	dir        core.Direction
	entryPrice float64
	entryIndex int
	units      float64
}

func (p position) unrealized(price float64) float64 {
	return p.dir.Sign() * (price - p.entryPrice) * p.units
}

// Simulate walks the series once, bar by bar. A signal at bar i is acted on at
// bar i's close. A leg is only opened on the bar where the wanted direction
// changes, so an entry refused by the session window is not taken later.
// Any position still open on the last bar is closed there.
// Fewer bars than the strategy warmup yields no trades and a flat equity curve.
func (b *Backtester) Simulate(series core.Series) *Result {
	strat := b.factory()
	bars := series.Bars
	capital := b.params.InitialCapital

	result := &Result{
		Strategy:  strat.Description(),
		Symbol:    series.Symbol,
		Params:    b.params,
		StartDate: series.Start(),
		EndDate:   series.End(),
		Bars:      len(bars),
		Trades:    []Trade{},
		Equity:    make([]EquityPoint, 0, len(bars)),
	}

	var pos position
	var realized float64
	want := core.Flat
	last := len(bars) - 1

	for i, bar := range bars {
		sig := strat.Next(bar)
		fresh := !sig.Hold && sig.Direction != want
		if !sig.Hold {
			want = sig.Direction
		}

		if !sig.Hold && sig.Direction != pos.dir {
			if pos.dir != core.Flat {
				trade := b.closeTrade(pos, bars, i, ExitSignal)
				realized += trade.PnL
				result.Trades = append(result.Trades, trade)
				pos = position{}
			}

			// No entries on the final bar.
			equity := capital + realized
			if fresh && sig.Direction != core.Flat && i < last && equity > 0 && b.params.Session.Allows(bar.Time) {
				pos = position{
					dir:        sig.Direction,
					entryPrice: bar.Close,
					entryIndex: i,
					units:      equity * b.params.Leverage / bar.Close,
				}
			}
		}

		if i == last && pos.dir != core.Flat {
			trade := b.closeTrade(pos, bars, i, ExitEndOfData)
			realized += trade.PnL
			result.Trades = append(result.Trades, trade)
			pos = position{}
		}

		result.Equity = append(result.Equity, EquityPoint{
			Time:     bar.Time,
			Equity:   capital + realized + pos.unrealized(bar.Close),
			Position: pos.dir,
		})
	}

	result.Stats = Evaluate(result.Trades, result.Equity, capital)
	result.Stats.MarketReturn = marketReturn(bars)
	result.Stats.SharpeRatio *= annualization(series.Interval)

	if ce := b.logger.Check(zap.DebugLevel, "simulation complete"); ce != nil {
		ce.Write(
			zap.String("strategy", result.Strategy),
			zap.Int("bars", len(bars)),
			zap.Int("trades", len(result.Trades)),
			zap.Float64("final_equity", result.Stats.FinalEquity),
		)
	}

	return result
}

func (b *Backtester) closeTrade(pos position, bars []core.Bar, i int, reason ExitReason) Trade {
	exit := bars[i].Close
	cost := b.params.Spread * pos.units
	pnl := pos.unrealized(exit) - cost
	return Trade{
		Direction:  pos.dir,
		EntryTime:  bars[pos.entryIndex].Time,
		ExitTime:   bars[i].Time,
		EntryIndex: pos.entryIndex,
		ExitIndex:  i,
		EntryPrice: pos.entryPrice,
		ExitPrice:  exit,
		Units:      pos.units,
		Cost:       cost,
		PnL:        pnl,
		Return:     pnl / (pos.units * pos.entryPrice),
		ExitReason: reason,
	}
}

func marketReturn(bars []core.Bar) float64 {
	if len(bars) < 2 || bars[0].Close <= 0 {
		return 0
	}
	return bars[len(bars)-1].Close/bars[0].Close - 1
}
