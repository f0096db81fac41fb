package backtest

import (
	"github.com/newthinker/fxmc/internal/strategy"
	"github.com/newthinker/fxmc/internal/strategy/ma3"
	"github.com/newthinker/fxmc/internal/strategy/ma_crossover"
	"github.com/newthinker/fxmc/internal/strategy/stochastic"
)

// DefaultEngine returns a strategy engine with every built-in strategy registered
func DefaultEngine() *strategy.Engine {
	e := strategy.NewEngine()
	e.Register(ma_crossover.Name, ma_crossover.Build)
	e.Register(ma3.Name, ma3.Build)
	e.Register(stochastic.Name, stochastic.Build)
	return e
}
