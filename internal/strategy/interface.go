package strategy

import (
	"math"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
)

// Strategy turns a stream of bars into desired positions.
// Implementations only ever see bars up to and including the current one,
// and keep per-run state, so a fresh instance is needed for every simulation.
type Strategy interface {
	Name() string
	Description() string
	// Warmup is the number of bars needed before the first non-hold signal
	Warmup() int
	Next(bar core.Bar) core.Signal
}

// Factory builds a fresh strategy instance for one simulation run
type Factory func() Strategy

// Config carries the parameters of every registered strategy.
// Each strategy reads only the fields it uses.
type Config struct {
	Name       string
	FastWindow int
	SlowWindow int
	ExitWindow int
	MAType     indicator.Kind
	KPeriod    int
	Smooth     int
	DPeriod    int
}

// TieTolerance is the relative gap below which two indicator lines count as equal
const TieTolerance = 1e-9

// Relation compares two lines: 1 when a is above b, -1 when below,
// 0 when they are equal within TieTolerance.
func Relation(a, b float64) int {
	diff := a - b
	scale := math.Max(math.Abs(a), math.Abs(b))
	if math.Abs(diff) <= TieTolerance*scale {
		return 0
	}
	if diff > 0 {
		return 1
	}
	return -1
}

// Cross reports a crossover between two consecutive relations: 1 when the line
// moved from strictly below to strictly above, -1 for the reverse, 0 otherwise.
func Cross(prev, curr int) int {
	switch {
	case prev < 0 && curr > 0:
		return 1
	case prev > 0 && curr < 0:
		return -1
	default:
		return 0
	}
}
