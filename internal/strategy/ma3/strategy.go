package ma3

import (
	"fmt"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
	"github.com/newthinker/fxmc/internal/strategy"
)

// Name is the registry key of this strategy
const Name = "ma3"

// MA3 enters on a fast/slow crossover and leaves when a third, exit average
// crosses the fast one:
//
//	long:       fast crosses above slow
//	long exit:  exit crosses below fast
//	short:      fast crosses below slow
//	short exit: exit crosses above fast
//
// An entry and the exit of the same side on one bar cancel out.
type MA3 struct {
	fastPeriod int
	slowPeriod int
	exitPeriod int
	kind       indicator.Kind

	fast indicator.Rolling
	slow indicator.Rolling
	exit indicator.Rolling

	primed    bool
	prevEntry int
	prevExit  int
	state     core.Direction
}

// New creates a three moving average strategy
func New(fastPeriod, slowPeriod, exitPeriod int, kind indicator.Kind) *MA3 {
	return &MA3{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		exitPeriod: exitPeriod,
		kind:       kind,
		fast:       indicator.New(kind, fastPeriod),
		slow:       indicator.New(kind, slowPeriod),
		exit:       indicator.New(kind, exitPeriod),
	}
}

// Build validates the windows and returns a factory
func Build(cfg strategy.Config) (strategy.Factory, error) {
	switch {
	case cfg.FastWindow <= 0:
		return nil, invalid("fast_window must be positive, got %d", cfg.FastWindow)
	case cfg.SlowWindow <= cfg.FastWindow:
		return nil, invalid("slow_window (%d) must be greater than fast_window (%d)", cfg.SlowWindow, cfg.FastWindow)
	case cfg.ExitWindow <= 0:
		return nil, invalid("exit_window must be positive, got %d", cfg.ExitWindow)
	case cfg.ExitWindow == cfg.FastWindow:
		return nil, invalid("exit_window must differ from fast_window (%d)", cfg.FastWindow)
	}
	kind, err := indicator.ParseKind(string(cfg.MAType))
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidParameter, err)
	}
	return func() strategy.Strategy {
		return New(cfg.FastWindow, cfg.SlowWindow, cfg.ExitWindow, kind)
	}, nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrInvalidParameter, fmt.Errorf(format, args...))
}

func (m *MA3) Name() string {
	return Name
}

func (m *MA3) Description() string {
	return fmt.Sprintf("3 MA (%s %d/%d exit %d)", m.kind, m.fastPeriod, m.slowPeriod, m.exitPeriod)
}

// Warmup covers the longest average plus the previous bar a crossover needs
func (m *MA3) Warmup() int {
	return max(m.fastPeriod, m.slowPeriod, m.exitPeriod) + 1
}

func (m *MA3) Next(bar core.Bar) core.Signal {
	fastMA, fastOK := m.fast.Update(bar.Close)
	slowMA, slowOK := m.slow.Update(bar.Close)
	exitMA, exitOK := m.exit.Update(bar.Close)
	if !fastOK || !slowOK || !exitOK {
		return core.HoldSignal(bar.Time)
	}

	entry := strategy.Relation(fastMA, slowMA)
	exit := strategy.Relation(exitMA, fastMA)
	prevEntry, prevExit, primed := m.prevEntry, m.prevExit, m.primed
	m.prevEntry, m.prevExit, m.primed = entry, exit, true
	if !primed {
		return core.HoldSignal(bar.Time)
	}

	cross := strategy.Cross(prevEntry, entry)
	exitCross := strategy.Cross(prevExit, exit)

	switch {
	case cross > 0 && exitCross >= 0:
		m.state = core.Long
		return m.signal(bar, core.Long, fmt.Sprintf("MA%d crossed above MA%d", m.fastPeriod, m.slowPeriod))
	case cross < 0 && exitCross <= 0:
		m.state = core.Short
		return m.signal(bar, core.Short, fmt.Sprintf("MA%d crossed below MA%d", m.fastPeriod, m.slowPeriod))
	case m.state == core.Long && exitCross < 0:
		m.state = core.Flat
		return m.signal(bar, core.Flat, fmt.Sprintf("exit MA%d crossed below MA%d", m.exitPeriod, m.fastPeriod))
	case m.state == core.Short && exitCross > 0:
		m.state = core.Flat
		return m.signal(bar, core.Flat, fmt.Sprintf("exit MA%d crossed above MA%d", m.exitPeriod, m.fastPeriod))
	}
	return core.HoldSignal(bar.Time)
}

func (m *MA3) signal(bar core.Bar, dir core.Direction, reason string) core.Signal {
	return core.Signal{Direction: dir, Reason: reason, Time: bar.Time}
}
