package aggregate

import (
	"fmt"
	"time"

	"github.com/newthinker/fxmc/internal/core"
)

// ValidateSeries checks an already prepared series before it reaches the engine:
// every bar satisfies the OHLC invariant and timestamps strictly increase.
func ValidateSeries(s core.Series) error {
	if len(s.Bars) == 0 {
		return core.ErrNoData
	}
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return core.WrapError(core.ErrDataOrder, fmt.Errorf("bar %d at %s not after %s",
				i, b.Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339)))
		}
	}
	return nil
}

// InferInterval returns the most common spacing between consecutive bars.
// Gaps from market closures are longer than the nominal interval and lose the vote.
func InferInterval(bars []core.Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}
	counts := make(map[time.Duration]int)
	var best time.Duration
	for i := 1; i < len(bars); i++ {
		d := bars[i].Time.Sub(bars[i-1].Time)
		counts[d]++
		if counts[d] > counts[best] || (counts[d] == counts[best] && d < best) {
			best = d
		}
	}
	return best
}
