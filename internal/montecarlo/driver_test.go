package montecarlo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/strategy"
)

func newBacktester(t *testing.T, fast, slow int) *backtest.Backtester {
	t.Helper()
	p := backtest.DefaultParams()
	p.FastWindow = fast
	p.SlowWindow = slow
	p.Spread = 0.00005
	bt, err := backtest.New(p)
	require.NoError(t, err)
	return bt
}

type countingRecorder struct {
	mu     sync.Mutex
	trials map[string]int
	runs   []string
}

func (r *countingRecorder) ObserveTrial(method, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trials == nil {
		r.trials = map[string]int{}
	}
	r.trials[method+"/"+status]++
}

func (r *countingRecorder) ObserveRun(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, status)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero trials", func(c *Config) { c.Trials = 0 }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"zero block", func(c *Config) { c.BlockSize = 0 }, true},
		{"zero block shuffle", func(c *Config) { c.Method = ShuffleReturns; c.BlockSize = 0 }, false},
		{"unknown method", func(c *Config) { c.Method = "jackknife" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_InvalidConfigRunsNothing(t *testing.T) {
	rec := &countingRecorder{}
	_, err := Run(context.Background(), newBacktester(t, 5, 20), walk(100, 1), Config{Trials: 0, Method: BlockBootstrap, BlockSize: 5}, WithRecorder(rec))
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.Empty(t, rec.trials)
	assert.Empty(t, rec.runs)
}

func TestRun_TooFewBars(t *testing.T) {
	_, err := Run(context.Background(), newBacktester(t, 5, 20), walk(1, 1), DefaultConfig())
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestRun_ReproducibleAcrossWorkers(t *testing.T) {
	series := walk(300, 21)
	bt := newBacktester(t, 5, 20)

	for _, method := range []Method{ShuffleReturns, BlockBootstrap} {
		cfg := Config{Trials: 1000, Method: method, BlockSize: 20, Seed: 42, Workers: 1}
		serial, err := Run(context.Background(), bt, series, cfg)
		require.NoError(t, err)

		cfg.Workers = 8
		parallel, err := Run(context.Background(), bt, series, cfg)
		require.NoError(t, err)

		assert.Equal(t, serial.FinalEquity, parallel.FinalEquity, string(method))
		assert.Equal(t, serial.MaxDrawdown, parallel.MaxDrawdown, string(method))
		assert.Equal(t, serial.EquityPercentile, parallel.EquityPercentile)
		assert.Equal(t, serial.EquitySummary, parallel.EquitySummary)
		assert.Equal(t, 1000, serial.Completed)
		assert.Equal(t, 1000, serial.Attempted)
		assert.False(t, serial.Cancelled)
	}
}

func TestRun_SeedChangesDistribution(t *testing.T) {
	series := walk(200, 2)
	bt := newBacktester(t, 5, 20)

	a, err := Run(context.Background(), bt, series, Config{Trials: 50, Method: BlockBootstrap, BlockSize: 10, Seed: 1, Workers: 4})
	require.NoError(t, err)
	b, err := Run(context.Background(), bt, series, Config{Trials: 50, Method: BlockBootstrap, BlockSize: 10, Seed: 2, Workers: 4})
	require.NoError(t, err)
	assert.NotEqual(t, a.FinalEquity, b.FinalEquity)
}

func TestRun_ObservedAndPercentiles(t *testing.T) {
	series := walk(250, 9)
	bt := newBacktester(t, 5, 20)
	rec := &countingRecorder{}

	res, err := Run(context.Background(), bt, series, Config{Trials: 200, Method: ShuffleReturns, Seed: 3, Workers: 4}, WithRecorder(rec))
	require.NoError(t, err)

	assert.Equal(t, bt.Simulate(series).Stats, res.Observed.Stats, "observed run uses the unmodified bars")
	assert.Len(t, res.FinalEquity, 200)
	assert.Len(t, res.Trials, 200)
	for i, trial := range res.Trials {
		assert.Equal(t, i, trial.Index)
	}

	assert.GreaterOrEqual(t, res.EquityPercentile, 0.0)
	assert.LessOrEqual(t, res.EquityPercentile, 100.0)
	assert.GreaterOrEqual(t, res.DrawdownPercentile, 0.0)
	assert.LessOrEqual(t, res.DrawdownPercentile, 100.0)

	assert.LessOrEqual(t, res.EquitySummary.P5, res.EquitySummary.P50)
	assert.LessOrEqual(t, res.EquitySummary.P50, res.EquitySummary.P95)
	for _, dd := range res.MaxDrawdown {
		assert.GreaterOrEqual(t, dd, 0.0)
		assert.LessOrEqual(t, dd, 1.0)
	}

	assert.Equal(t, 200, rec.trials["shuffle_returns/completed"])
	assert.Equal(t, []string{"completed"}, rec.runs)
}

// brokenStrategy holds on the first simulation and panics on every later one
type brokenStrategy struct{ broken bool }

func (s *brokenStrategy) Name() string        { return "broken" }
func (s *brokenStrategy) Description() string { return "broken" }
func (s *brokenStrategy) Warmup() int         { return 0 }
func (s *brokenStrategy) Next(bar core.Bar) core.Signal {
	if s.broken {
		panic("indicator state corrupted")
	}
	return core.HoldSignal(bar.Time)
}

func TestRun_FailingTrialReturnsError(t *testing.T) {
	var built atomic.Int32
	factory := func() strategy.Strategy {
		return &brokenStrategy{broken: built.Add(1) > 1}
	}
	bt, err := backtest.New(backtest.DefaultParams(), backtest.WithStrategy(factory))
	require.NoError(t, err)

	rec := &countingRecorder{}
	_, err = Run(context.Background(), bt, walk(60, 3), Config{Trials: 20, Method: ShuffleReturns, Seed: 1, Workers: 2}, WithRecorder(rec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indicator state corrupted")
	assert.Empty(t, rec.runs)
}

func TestRun_UsesStrategyWarmup(t *testing.T) {
	p := backtest.DefaultParams()
	p.Strategy = "stochastic"
	p.KPeriod, p.Smooth, p.DPeriod = 14, 3, 3
	bt, err := backtest.New(p)
	require.NoError(t, err)
	require.Equal(t, 19, bt.Warmup())

	// slow window is irrelevant here; the oscillator warmup decides the skip
	res, err := Run(context.Background(), bt, walk(15, 4), Config{Trials: 5, Method: ShuffleReturns, Seed: 1, Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Skipped)

	res, err = Run(context.Background(), bt, walk(40, 4), Config{Trials: 5, Method: ShuffleReturns, Seed: 1, Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 5, res.Completed)
}

func TestRun_SkipsTrialsShorterThanSlowWindow(t *testing.T) {
	res, err := Run(context.Background(), newBacktester(t, 5, 20), walk(12, 5), Config{Trials: 30, Method: BlockBootstrap, BlockSize: 4, Seed: 1, Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 30, res.Attempted)
	assert.Equal(t, 30, res.Skipped)
	assert.Equal(t, 0, res.Completed)
	assert.Empty(t, res.FinalEquity)
	assert.Equal(t, 100.0, res.EquityPercentile)
	assert.Equal(t, Summary{}, res.EquitySummary)
	for _, trial := range res.Trials {
		assert.True(t, trial.Skipped)
		assert.NotEmpty(t, trial.Reason)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &countingRecorder{}
	res, err := Run(ctx, newBacktester(t, 5, 20), walk(100, 1), DefaultConfig(), WithRecorder(rec))
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 0, res.Attempted)
	assert.NotNil(t, res.Observed)
	assert.Equal(t, []string{"cancelled"}, rec.runs)
}

func TestRun_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &cancelAfter{n: 10, cancel: cancel}
	res, err := Run(ctx, newBacktester(t, 5, 20), walk(200, 1), Config{Trials: 5000, Method: ShuffleReturns, Seed: 1, Workers: 1}, WithRecorder(rec))
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.GreaterOrEqual(t, res.Attempted, 10)
	assert.Less(t, res.Attempted, 5000)
	assert.Equal(t, res.Attempted, res.Completed+res.Skipped)
	assert.Len(t, res.FinalEquity, res.Completed)
}

// cancelAfter cancels the run once n trials have been observed
type cancelAfter struct {
	mu     sync.Mutex
	n      int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelAfter) ObserveTrial(string, string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++
	if c.seen == c.n {
		c.cancel()
	}
}

func (c *cancelAfter) ObserveRun(string, time.Duration) {}

func TestPercentileRank(t *testing.T) {
	dist := []float64{1, 2, 3, 4}
	assert.InDelta(t, 60.0, PercentileRank(dist, 2.5), 1e-12)
	assert.InDelta(t, 20.0, PercentileRank(dist, 0), 1e-12)
	assert.InDelta(t, 100.0, PercentileRank(dist, 10), 1e-12)
	assert.InDelta(t, 100.0, PercentileRank(nil, 5), 1e-12)
}

func TestSummarize(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	s := Summarize(values)
	assert.InDelta(t, 50.5, s.Mean, 1e-12)
	assert.Equal(t, 5.0, s.P5)
	assert.Equal(t, 50.0, s.P50)
	assert.Equal(t, 95.0, s.P95)
	assert.Greater(t, s.StdDev, 0.0)

	one := Summarize([]float64{7})
	assert.Equal(t, Summary{Mean: 7, P5: 7, P50: 7, P95: 7}, one)
}
