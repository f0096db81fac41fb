package ma_crossover

import (
	"fmt"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
	"github.com/newthinker/fxmc/internal/strategy"
)

// Name is the registry key of this strategy
const Name = "ma_crossover"

// MACrossover implements a moving average crossover strategy.
// Fast above slow wants long, fast below slow wants short, equal holds.
type MACrossover struct {
	fastPeriod int
	slowPeriod int
	kind       indicator.Kind

	fast indicator.Rolling
	slow indicator.Rolling
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int, kind indicator.Kind) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		kind:       kind,
		fast:       indicator.New(kind, fastPeriod),
		slow:       indicator.New(kind, slowPeriod),
	}
}

// Factory returns a strategy.Factory producing independent instances
func Factory(fastPeriod, slowPeriod int, kind indicator.Kind) strategy.Factory {
	return func() strategy.Strategy {
		return New(fastPeriod, slowPeriod, kind)
	}
}

// Build validates the fast/slow windows and MA type
func Build(cfg strategy.Config) (strategy.Factory, error) {
	if cfg.FastWindow <= 0 {
		return nil, invalid("fast_window must be positive, got %d", cfg.FastWindow)
	}
	if cfg.SlowWindow <= cfg.FastWindow {
		return nil, invalid("slow_window (%d) must be greater than fast_window (%d)", cfg.SlowWindow, cfg.FastWindow)
	}
	kind, err := indicator.ParseKind(string(cfg.MAType))
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidParameter, err)
	}
	return Factory(cfg.FastWindow, cfg.SlowWindow, kind), nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrInvalidParameter, fmt.Errorf(format, args...))
}

func (m *MACrossover) Name() string {
	return Name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%s %d/%d)", m.kind, m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) Warmup() int {
	return m.slowPeriod
}

func (m *MACrossover) Next(bar core.Bar) core.Signal {
	fastMA, fastOK := m.fast.Update(bar.Close)
	slowMA, slowOK := m.slow.Update(bar.Close)
	if !fastOK || !slowOK {
		return core.HoldSignal(bar.Time)
	}

	switch strategy.Relation(fastMA, slowMA) {
	case 1:
		return core.Signal{
			Direction: core.Long,
			Reason:    fmt.Sprintf("MA%d (%.5f) above MA%d (%.5f)", m.fastPeriod, fastMA, m.slowPeriod, slowMA),
			Time:      bar.Time,
		}
	case -1:
		return core.Signal{
			Direction: core.Short,
			Reason:    fmt.Sprintf("MA%d (%.5f) below MA%d (%.5f)", m.fastPeriod, fastMA, m.slowPeriod, slowMA),
			Time:      bar.Time,
		}
	default:
		return core.HoldSignal(bar.Time)
	}
}
