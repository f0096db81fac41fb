package stochastic

import (
	"fmt"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
	"github.com/newthinker/fxmc/internal/strategy"
)

// Name is the registry key of this strategy
const Name = "stochastic"

const (
	Overbought = 80.0
	Oversold   = 20.0
)

// Stochastic trades %K/%D crossovers of the full stochastic oscillator:
//
//	long:       %K crosses above %D while %K < Oversold
//	long exit:  %K crosses below %D
//	short:      %K crosses below %D while %K > Overbought
//	short exit: %K crosses above %D
type Stochastic struct {
	kPeriod int
	smooth  int
	dPeriod int

	osc *indicator.Stochastic

	primed bool
	prev   int
	state  core.Direction
}

// New creates a stochastic oscillator strategy
func New(kPeriod, smooth, dPeriod int) *Stochastic {
	return &Stochastic{
		kPeriod: kPeriod,
		smooth:  smooth,
		dPeriod: dPeriod,
		osc:     indicator.NewStochastic(kPeriod, smooth, dPeriod),
	}
}

// Build validates the oscillator periods and returns a factory
func Build(cfg strategy.Config) (strategy.Factory, error) {
	if cfg.KPeriod <= 0 || cfg.Smooth <= 0 || cfg.DPeriod <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("k_period, smooth and d_period must be positive, got %d/%d/%d", cfg.KPeriod, cfg.Smooth, cfg.DPeriod))
	}
	return func() strategy.Strategy {
		return New(cfg.KPeriod, cfg.Smooth, cfg.DPeriod)
	}, nil
}

func (s *Stochastic) Name() string {
	return Name
}

func (s *Stochastic) Description() string {
	return fmt.Sprintf("Stochastic (%d/%d/%d)", s.kPeriod, s.smooth, s.dPeriod)
}

func (s *Stochastic) Warmup() int {
	return s.osc.Warmup() + 1
}

func (s *Stochastic) Next(bar core.Bar) core.Signal {
	k, d, ok := s.osc.Update(bar.High, bar.Low, bar.Close)
	if !ok {
		return core.HoldSignal(bar.Time)
	}

	rel := strategy.Relation(k, d)
	prev, primed := s.prev, s.primed
	s.prev, s.primed = rel, true
	if !primed {
		return core.HoldSignal(bar.Time)
	}

	switch strategy.Cross(prev, rel) {
	case 1:
		if k < Oversold {
			s.state = core.Long
			return s.signal(bar, core.Long, fmt.Sprintf("%%K %.1f crossed above %%D %.1f in oversold zone", k, d))
		}
		if s.state == core.Short {
			s.state = core.Flat
			return s.signal(bar, core.Flat, fmt.Sprintf("%%K %.1f crossed above %%D %.1f", k, d))
		}
	case -1:
		if k > Overbought {
			s.state = core.Short
			return s.signal(bar, core.Short, fmt.Sprintf("%%K %.1f crossed below %%D %.1f in overbought zone", k, d))
		}
		if s.state == core.Long {
			s.state = core.Flat
			return s.signal(bar, core.Flat, fmt.Sprintf("%%K %.1f crossed below %%D %.1f", k, d))
		}
	}
	return core.HoldSignal(bar.Time)
}

func (s *Stochastic) signal(bar core.Bar, dir core.Direction, reason string) core.Signal {
	return core.Signal{Direction: dir, Reason: reason, Time: bar.Time}
}
