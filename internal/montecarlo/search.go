package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/strategy/stochastic"
)

// Priority selects the winning candidate of a period search
type Priority string

const (
	PriorityReturn   Priority = "return"
	PriorityDrawdown Priority = "drawdown"
)

// ParsePriority accepts "return" or "drawdown"
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityReturn, "":
		return PriorityReturn, nil
	case PriorityDrawdown:
		return PriorityDrawdown, nil
	default:
		return "", core.WrapError(core.ErrInvalidParameter, fmt.Errorf("unknown priority %q", s))
	}
}

// SearchConfig controls a random period search. Moving-average strategies
// draw fast/slow from [MinPeriod, MaxPeriod]; the stochastic strategy draws
// K, smoothing and D from [MinStochPeriod, MaxStochPeriod].
type SearchConfig struct {
	Candidates     int
	MinPeriod      int
	MaxPeriod      int
	MinStochPeriod int
	MaxStochPeriod int
	Priority       Priority
	Seed           uint64
	Workers        int
}

// DefaultSearchConfig draws 100 period pairs from 8..80, or stochastic
// periods from 3..20
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Candidates:     100,
		MinPeriod:      8,
		MaxPeriod:      80,
		MinStochPeriod: 3,
		MaxStochPeriod: 20,
		Priority:       PriorityReturn,
		Seed:           1,
		Workers:        runtime.NumCPU(),
	}
}

// Validate checks the search bounds
func (c SearchConfig) Validate() error {
	switch {
	case c.Candidates <= 0:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("candidates must be positive, got %d", c.Candidates))
	case c.MinPeriod <= 0:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("min_period must be positive, got %d", c.MinPeriod))
	case c.MaxPeriod < c.MinPeriod:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("max_period (%d) is below min_period (%d)", c.MaxPeriod, c.MinPeriod))
	case c.MinStochPeriod < 0:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("min_stoch_period cannot be negative, got %d", c.MinStochPeriod))
	case c.MaxStochPeriod < c.MinStochPeriod:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("max_stoch_period (%d) is below min_stoch_period (%d)", c.MaxStochPeriod, c.MinStochPeriod))
	case c.Workers < 0:
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("workers cannot be negative, got %d", c.Workers))
	}
	_, err := ParsePriority(string(c.Priority))
	return err
}

// Candidate is one evaluated parameter draw. Fast/Slow are set for
// moving-average strategies, KPeriod/Smooth/DPeriod for the stochastic one.
type Candidate struct {
	Index       int
	Fast        int
	Slow        int
	KPeriod     int
	Smooth      int
	DPeriod     int
	TotalReturn float64
	MaxDrawdown float64
	FinalEquity float64
	Trades      int
}

// SearchResult lists every evaluated candidate and the best under the priority
type SearchResult struct {
	Config     SearchConfig
	Candidates []Candidate
	Best       Candidate
	Cancelled  bool
}

// DrawPeriods picks a (fast, slow) pair uniformly from [lo, hi]. Equal draws
// push slow one period up; the smaller period is always the fast one.
func DrawPeriods(rng *rand.Rand, lo, hi int) (fast, slow int) {
	a := lo + rng.IntN(hi-lo+1)
	b := lo + rng.IntN(hi-lo+1)
	if a == b {
		b++
	}
	if a > b {
		a, b = b, a
	}
	return a, b
}

// DrawStochastic picks K, smoothing and D periods independently and uniformly
// from [lo, hi]
func DrawStochastic(rng *rand.Rand, lo, hi int) (k, smooth, d int) {
	k = lo + rng.IntN(hi-lo+1)
	smooth = lo + rng.IntN(hi-lo+1)
	d = lo + rng.IntN(hi-lo+1)
	return k, smooth, d
}

// Search backtests randomly drawn periods against the same series, keeping
// every other parameter from base. Candidate i draws from the PCG stream
// (Seed, i); a cancelled search ranks only the candidates that ran.
func Search(ctx context.Context, base backtest.Params, series core.Series, cfg SearchConfig, opts ...RunOption) (*SearchResult, error) {
	o := runOptions{logger: zap.NewNop(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Priority == "" {
		cfg.Priority = PriorityReturn
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	stoch := base.Strategy == stochastic.Name
	if stoch && cfg.MinStochPeriod == 0 {
		return nil, core.WrapError(core.ErrInvalidParameter, fmt.Errorf("min_stoch_period must be positive for %s", stochastic.Name))
	}
	if len(series.Bars) == 0 {
		return nil, core.ErrNoData
	}

	slots := make([]Candidate, cfg.Candidates)
	ran := make([]bool, cfg.Candidates)
	result := &SearchResult{Config: cfg}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Candidates; i++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			c := Candidate{Index: i}
			p := base
			if stoch {
				c.KPeriod, c.Smooth, c.DPeriod = DrawStochastic(rng, cfg.MinStochPeriod, cfg.MaxStochPeriod)
				p.KPeriod, p.Smooth, p.DPeriod = c.KPeriod, c.Smooth, c.DPeriod
			} else {
				c.Fast, c.Slow = DrawPeriods(rng, cfg.MinPeriod, cfg.MaxPeriod)
				p.FastWindow, p.SlowWindow = c.Fast, c.Slow
			}

			bt, err := backtest.New(p)
			if err != nil {
				return fmt.Errorf("candidate %d (%s): %w", i, c.Label(), err)
			}
			res := bt.Simulate(series)
			c.TotalReturn = res.Stats.TotalReturn
			c.MaxDrawdown = res.Stats.MaxDrawdown
			c.FinalEquity = res.Stats.FinalEquity
			c.Trades = res.Stats.TradeCount
			slots[i] = c
			ran[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		result.Cancelled = true
	}

	for i, c := range slots {
		if ran[i] {
			result.Candidates = append(result.Candidates, c)
		}
	}
	if len(result.Candidates) == 0 {
		return result, nil
	}

	result.Best = result.Candidates[0]
	for _, c := range result.Candidates[1:] {
		if better(c, result.Best, cfg.Priority) {
			result.Best = c
		}
	}

	o.logger.Info("period search finished",
		zap.String("strategy", base.Strategy),
		zap.String("priority", string(cfg.Priority)),
		zap.Int("candidates", len(result.Candidates)),
		zap.String("best_periods", result.Best.Label()),
		zap.Float64("best_return", result.Best.TotalReturn),
		zap.Float64("best_drawdown", result.Best.MaxDrawdown),
	)
	return result, nil
}

// Label renders the drawn periods, "12/40" or "14/3/3"
func (c Candidate) Label() string {
	if c.KPeriod > 0 {
		return fmt.Sprintf("%d/%d/%d", c.KPeriod, c.Smooth, c.DPeriod)
	}
	return fmt.Sprintf("%d/%d", c.Fast, c.Slow)
}

// better reports whether a beats b; ties keep the earlier candidate
func better(a, b Candidate, p Priority) bool {
	if p == PriorityDrawdown {
		return a.MaxDrawdown < b.MaxDrawdown
	}
	return a.TotalReturn > b.TotalReturn
}
