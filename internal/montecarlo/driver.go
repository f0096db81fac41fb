package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/core"
)

// Config controls a Monte Carlo run
type Config struct {
	Trials    int
	Method    Method
	BlockSize int
	Seed      uint64
	Workers   int
}

// DefaultConfig returns a 1000-trial block bootstrap
func DefaultConfig() Config {
	return Config{
		Trials:    1000,
		Method:    BlockBootstrap,
		BlockSize: 20,
		Seed:      1,
		Workers:   runtime.NumCPU(),
	}
}

// Validate checks the configuration before any trial runs
func (c Config) Validate() error {
	if c.Trials <= 0 {
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("trials must be positive, got %d", c.Trials))
	}
	if c.Workers < 0 {
		return core.WrapError(core.ErrInvalidParameter, fmt.Errorf("workers cannot be negative, got %d", c.Workers))
	}
	_, err := NewResampler(c.Method, c.BlockSize)
	return err
}

// Trial is the outcome of one resampled simulation
type Trial struct {
	Index       int
	FinalEquity float64
	MaxDrawdown float64
	TotalReturn float64
	Trades      int
	Skipped     bool
	Reason      string
}

// Summary describes one outcome distribution
type Summary struct {
	Mean   float64
	StdDev float64
	P5     float64
	P50    float64
	P95    float64
}

// Result aggregates all trials of a run. FinalEquity and MaxDrawdown hold the
// completed trials in trial order.
type Result struct {
	Config   Config
	Observed *backtest.Result
	Trials   []Trial

	FinalEquity []float64
	MaxDrawdown []float64

	Attempted int
	Completed int
	Skipped   int
	Cancelled bool

	EquityPercentile   float64
	DrawdownPercentile float64
	EquitySummary      Summary
	DrawdownSummary    Summary

	Duration time.Duration
}

// Recorder receives per-trial and per-run observations
type Recorder interface {
	ObserveTrial(method, status string, d time.Duration)
	ObserveRun(status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTrial(string, string, time.Duration) {}
func (nopRecorder) ObserveRun(string, time.Duration)           {}

type runOptions struct {
	logger   *zap.Logger
	recorder Recorder
}

// RunOption configures Run
type RunOption func(*runOptions)

// WithLogger sets the logger for run progress
func WithLogger(l *zap.Logger) RunOption {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics sink
func WithRecorder(r Recorder) RunOption {
	return func(o *runOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Run simulates the observed series once, then Trials resampled series, and
// places the observed outcome within the resampled distributions.
//
// Trial i draws from its own PCG stream seeded with (Seed, i), so results do not
// depend on Workers. Cancellation is checked before each trial starts; trials
// already running finish and the partial result is returned with Cancelled set.
func Run(ctx context.Context, bt *backtest.Backtester, series core.Series, cfg Config, opts ...RunOption) (*Result, error) {
	o := runOptions{logger: zap.NewNop(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(series.Bars) < 2 {
		return nil, core.WrapError(core.ErrInsufficientData, fmt.Errorf("need at least 2 bars, got %d", len(series.Bars)))
	}
	resampler, err := NewResampler(cfg.Method, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}

	started := time.Now()
	result := &Result{
		Config:   cfg,
		Observed: bt.Simulate(series),
	}

	minBars := bt.Warmup()
	slots := make([]Trial, cfg.Trials)
	ran := make([]bool, cfg.Trials)

	o.logger.Info("monte carlo started",
		zap.String("method", string(cfg.Method)),
		zap.Int("trials", cfg.Trials),
		zap.Int("workers", cfg.Workers),
		zap.Uint64("seed", cfg.Seed),
	)

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Trials; i++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			t0 := time.Now()
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			trial, err := runTrial(i, bt, series, resampler, rng, minBars)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			slots[i] = trial
			ran[i] = true

			status := "completed"
			if slots[i].Skipped {
				status = "skipped"
			}
			o.recorder.ObserveTrial(string(cfg.Method), status, time.Since(t0))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		result.Cancelled = true
	}

	result.Trials = make([]Trial, 0, cfg.Trials)
	for i, trial := range slots {
		if !ran[i] {
			continue
		}
		result.Attempted++
		result.Trials = append(result.Trials, trial)
		if trial.Skipped {
			result.Skipped++
			continue
		}
		result.Completed++
		result.FinalEquity = append(result.FinalEquity, trial.FinalEquity)
		result.MaxDrawdown = append(result.MaxDrawdown, trial.MaxDrawdown)
	}

	observed := result.Observed.Stats
	result.EquityPercentile = PercentileRank(result.FinalEquity, observed.FinalEquity)
	result.DrawdownPercentile = PercentileRank(result.MaxDrawdown, observed.MaxDrawdown)
	result.EquitySummary = Summarize(result.FinalEquity)
	result.DrawdownSummary = Summarize(result.MaxDrawdown)
	result.Duration = time.Since(started)

	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	o.recorder.ObserveRun(status, result.Duration)

	o.logger.Info("monte carlo finished",
		zap.String("status", status),
		zap.Int("attempted", result.Attempted),
		zap.Int("completed", result.Completed),
		zap.Int("skipped", result.Skipped),
		zap.Float64("equity_percentile", result.EquityPercentile),
		zap.Float64("drawdown_percentile", result.DrawdownPercentile),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// runTrial resamples and simulates one trial. A resample that cannot be built,
// or is shorter than the strategy warmup, is a skipped trial rather than an error.
func runTrial(i int, bt *backtest.Backtester, series core.Series, r Resampler, rng *rand.Rand, minBars int) (trial Trial, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("simulation panicked: %v", p)
		}
	}()

	synthetic, rerr := r.Resample(series, rng)
	if rerr != nil {
		return Trial{Index: i, Skipped: true, Reason: rerr.Error()}, nil
	}
	if synthetic.Len() < minBars {
		return Trial{Index: i, Skipped: true, Reason: fmt.Sprintf("%d bars is shorter than strategy warmup %d", synthetic.Len(), minBars)}, nil
	}

	res := bt.Simulate(synthetic)
	return Trial{
		Index:       i,
		FinalEquity: res.Stats.FinalEquity,
		MaxDrawdown: res.Stats.MaxDrawdown,
		TotalReturn: res.Stats.TotalReturn,
		Trades:      res.Stats.TradeCount,
	}, nil
}

// PercentileRank returns the percentage of values, observed included, that are
// less than or equal to observed. The result lies in (0, 100].
func PercentileRank(dist []float64, observed float64) float64 {
	count := 1
	for _, v := range dist {
		if v <= observed {
			count++
		}
	}
	return 100 * float64(count) / float64(len(dist)+1)
}

// Summarize computes mean, sample standard deviation and nearest-rank
// percentiles. An empty distribution yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	var s Summary
	s.Mean, _ = stats.Mean(values)
	if len(values) > 1 {
		s.StdDev, _ = stats.StandardDeviationSample(values)
	}
	s.P5, _ = stats.PercentileNearestRank(values, 5)
	s.P50, _ = stats.PercentileNearestRank(values, 50)
	s.P95, _ = stats.PercentileNearestRank(values, 95)
	return s
}
