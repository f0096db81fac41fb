package app

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/fxmc/internal/aggregate"
	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/config"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/dataset"
	"github.com/newthinker/fxmc/internal/metrics"
	"github.com/newthinker/fxmc/internal/montecarlo"
	"github.com/newthinker/fxmc/internal/storage/archive"
)

// App wires configuration, storage, metrics and logging around one command run
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	storage archive.Storage
	metrics *metrics.Registry
	runID   string
}

// Option configures an App
type Option func(*App)

// WithStorage replaces the storage backend built from config
func WithStorage(s archive.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}

// New creates a new App instance from a validated config
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:     cfg,
		metrics: metrics.NewRegistry(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.With(zap.String("run_id", a.runID))

	if a.storage == nil {
		s, err := archive.New(archive.Config{
			Type: cfg.Storage.Type,
			Path: cfg.Storage.Path,
			S3: archive.S3Config{
				Bucket:    cfg.Storage.S3.Bucket,
				Endpoint:  cfg.Storage.S3.Endpoint,
				Region:    cfg.Storage.S3.Region,
				AccessKey: cfg.Storage.S3.AccessKey,
				SecretKey: cfg.Storage.S3.SecretKey,
				Prefix:    cfg.Storage.S3.Prefix,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating storage: %w", err)
		}
		a.storage = s
	}

	return a, nil
}

// RunID identifies this run's output directory
func (a *App) RunID() string {
	return a.runID
}

// Metrics returns the run's metrics registry
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// OutputPath returns the storage path of a run artifact
func (a *App) OutputPath(name string) string {
	return path.Join(a.cfg.Output.Dir, a.runID, name)
}

// LoadSeries reads the configured data file. With data.interval set, bars are
// re-aggregated to that interval; otherwise the file must already be a time-ordered
// series.
func (a *App) LoadSeries(ctx context.Context, dataPath string) (core.Series, error) {
	if dataPath == "" {
		dataPath = a.cfg.Data.Path
	}
	if dataPath == "" {
		return core.Series{}, core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.path required"))
	}

	series, err := dataset.Load(ctx, a.storage, dataPath, dataset.Format(a.cfg.Data.Format), a.cfg.Data.Symbol)
	if err != nil {
		return core.Series{}, fmt.Errorf("loading %s: %w", dataPath, err)
	}

	if a.cfg.Data.Interval != "" {
		interval, err := aggregate.ParseInterval(a.cfg.Data.Interval)
		if err != nil {
			return core.Series{}, err
		}
		records := len(series.Bars)
		aggregated, err := aggregate.Aggregate(series.Bars, interval)
		if err != nil {
			return core.Series{}, fmt.Errorf("aggregating %s: %w", dataPath, err)
		}
		aggregated.Symbol = series.Symbol
		series = aggregated
		a.metrics.RecordBarsAggregated(series.Len())

		a.logger.Info("aggregated bars",
			zap.Int("records", records),
			zap.Int("bars", series.Len()),
			zap.Duration("interval", interval),
		)
	}

	if err := aggregate.ValidateSeries(series); err != nil {
		return core.Series{}, fmt.Errorf("validating %s: %w", dataPath, err)
	}

	a.logger.Info("series loaded",
		zap.String("path", dataPath),
		zap.String("symbol", series.Symbol),
		zap.Int("bars", series.Len()),
		zap.Duration("interval", series.Interval),
		zap.Time("start", series.Start()),
		zap.Time("end", series.End()),
	)
	return series, nil
}

// Prepare converts a data file into the prepared layout at outPath
func (a *App) Prepare(ctx context.Context, inPath, outPath string) (core.Series, error) {
	series, err := a.LoadSeries(ctx, inPath)
	if err != nil {
		return core.Series{}, err
	}
	if err := dataset.WriteSeries(ctx, a.storage, outPath, series); err != nil {
		return core.Series{}, fmt.Errorf("writing %s: %w", outPath, err)
	}
	a.logger.Info("prepared data written", zap.String("path", outPath))
	return series, nil
}

func (a *App) backtester(params backtest.Params) (*backtest.Backtester, error) {
	return backtest.New(params, backtest.WithLogger(a.logger))
}

// Backtest runs one simulation with the configured strategy parameters
func (a *App) Backtest(ctx context.Context, series core.Series) (*backtest.Result, error) {
	bt, err := a.backtester(a.cfg.StrategyParams())
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res := bt.Simulate(series)
	a.metrics.RecordSimulation(time.Since(started))

	a.logger.Info("backtest complete",
		zap.String("strategy", res.Strategy),
		zap.Int("trades", res.Stats.TradeCount),
		zap.Float64("final_equity", res.Stats.FinalEquity),
		zap.Float64("max_drawdown", res.Stats.MaxDrawdown),
	)
	return res, nil
}

// MonteCarlo runs the configured resampling test
func (a *App) MonteCarlo(ctx context.Context, series core.Series) (*montecarlo.Result, error) {
	bt, err := a.backtester(a.cfg.StrategyParams())
	if err != nil {
		return nil, err
	}
	mc, err := a.cfg.MonteCarloParams()
	if err != nil {
		return nil, err
	}

	res, err := montecarlo.Run(ctx, bt, series, mc,
		montecarlo.WithLogger(a.logger),
		montecarlo.WithRecorder(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Search runs the configured period search
func (a *App) Search(ctx context.Context, series core.Series) (*montecarlo.SearchResult, error) {
	sc, err := a.cfg.SearchParams()
	if err != nil {
		return nil, err
	}
	return montecarlo.Search(ctx, a.cfg.StrategyParams(), series, sc, montecarlo.WithLogger(a.logger))
}

// SaveBacktest writes the trade log and equity curve when enabled
func (a *App) SaveBacktest(ctx context.Context, res *backtest.Result) error {
	if a.cfg.Output.Trades {
		if err := dataset.WriteTrades(ctx, a.storage, a.OutputPath("trades.csv"), res.Trades); err != nil {
			return err
		}
	}
	if a.cfg.Output.Equity {
		if err := dataset.WriteEquity(ctx, a.storage, a.OutputPath("equity.csv"), res.Equity); err != nil {
			return err
		}
	}
	return nil
}

// SaveMonteCarlo writes the per-trial distribution and the observed run
func (a *App) SaveMonteCarlo(ctx context.Context, res *montecarlo.Result) error {
	if err := dataset.WriteDistribution(ctx, a.storage, a.OutputPath("distribution.csv"), res.Trials); err != nil {
		return err
	}
	return a.SaveBacktest(ctx, res.Observed)
}

// SaveSearch writes every evaluated candidate
func (a *App) SaveSearch(ctx context.Context, res *montecarlo.SearchResult) error {
	return dataset.WriteCandidates(ctx, a.storage, a.OutputPath("candidates.csv"), res.Candidates)
}

// Close flushes metrics to the configured textfile
func (a *App) Close() error {
	if !a.cfg.Metrics.Enabled || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return err
	}
	a.logger.Debug("metrics written", zap.String("path", a.cfg.Metrics.Textfile))
	return nil
}
