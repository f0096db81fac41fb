package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/newthinker/fxmc/internal/aggregate"
	"github.com/newthinker/fxmc/internal/backtest"
	"github.com/newthinker/fxmc/internal/core"
	"github.com/newthinker/fxmc/internal/indicator"
	"github.com/newthinker/fxmc/internal/montecarlo"
)

// EnvPrefix is prepended to every environment override, e.g. FXMC_STRATEGY_SPREAD
const EnvPrefix = "FXMC"

type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	MonteCarlo MonteCarloConfig `mapstructure:"monte_carlo"`
	Search     SearchConfig     `mapstructure:"search"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Output     OutputConfig     `mapstructure:"output"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// DataConfig describes the input price file
type DataConfig struct {
	Path     string `mapstructure:"path"`
	Format   string `mapstructure:"format"` // "prepared" or "raw"
	Symbol   string `mapstructure:"symbol"`
	Interval string `mapstructure:"interval"` // empty keeps the file's own bar size
}

// StrategyConfig selects a strategy by name. Windows and MA type feed the
// moving-average strategies, the k/smooth/d periods the stochastic one.
type StrategyConfig struct {
	Name           string        `mapstructure:"name"`
	FastWindow     int           `mapstructure:"fast_window"`
	SlowWindow     int           `mapstructure:"slow_window"`
	ExitWindow     int           `mapstructure:"exit_window"`
	MAType         string        `mapstructure:"ma_type"`
	KPeriod        int           `mapstructure:"k_period"`
	Smooth         int           `mapstructure:"smooth"`
	DPeriod        int           `mapstructure:"d_period"`
	Spread         float64       `mapstructure:"spread"`
	InitialCapital float64       `mapstructure:"initial_capital"`
	Leverage       float64       `mapstructure:"leverage"`
	Session        SessionConfig `mapstructure:"session"`
}

// SessionConfig restricts entries to trading hours (UTC)
type SessionConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	StartHour int  `mapstructure:"start_hour"`
	EndHour   int  `mapstructure:"end_hour"`
}

type MonteCarloConfig struct {
	Trials    int    `mapstructure:"trials"`
	Method    string `mapstructure:"method"`
	BlockSize int    `mapstructure:"block_size"`
	Seed      uint64 `mapstructure:"seed"`
	Workers   int    `mapstructure:"workers"`
}

type SearchConfig struct {
	Candidates     int    `mapstructure:"candidates"`
	MinPeriod      int    `mapstructure:"min_period"`
	MaxPeriod      int    `mapstructure:"max_period"`
	MinStochPeriod int    `mapstructure:"min_stoch_period"`
	MaxStochPeriod int    `mapstructure:"max_stoch_period"`
	Priority       string `mapstructure:"priority"`
	Seed           uint64 `mapstructure:"seed"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// OutputConfig controls where run artifacts are written inside storage
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Trades bool   `mapstructure:"trades"`
	Equity bool   `mapstructure:"equity"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file. Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers Defaults() with viper so partial files and env-only
// overrides resolve against the same values.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("data.format", d.Data.Format)
	v.SetDefault("data.symbol", d.Data.Symbol)
	v.SetDefault("strategy.name", d.Strategy.Name)
	v.SetDefault("strategy.fast_window", d.Strategy.FastWindow)
	v.SetDefault("strategy.slow_window", d.Strategy.SlowWindow)
	v.SetDefault("strategy.exit_window", d.Strategy.ExitWindow)
	v.SetDefault("strategy.ma_type", d.Strategy.MAType)
	v.SetDefault("strategy.k_period", d.Strategy.KPeriod)
	v.SetDefault("strategy.smooth", d.Strategy.Smooth)
	v.SetDefault("strategy.d_period", d.Strategy.DPeriod)
	v.SetDefault("strategy.spread", d.Strategy.Spread)
	v.SetDefault("strategy.initial_capital", d.Strategy.InitialCapital)
	v.SetDefault("strategy.leverage", d.Strategy.Leverage)
	v.SetDefault("monte_carlo.trials", d.MonteCarlo.Trials)
	v.SetDefault("monte_carlo.method", d.MonteCarlo.Method)
	v.SetDefault("monte_carlo.block_size", d.MonteCarlo.BlockSize)
	v.SetDefault("monte_carlo.seed", d.MonteCarlo.Seed)
	v.SetDefault("monte_carlo.workers", d.MonteCarlo.Workers)
	v.SetDefault("search.candidates", d.Search.Candidates)
	v.SetDefault("search.min_period", d.Search.MinPeriod)
	v.SetDefault("search.max_period", d.Search.MaxPeriod)
	v.SetDefault("search.min_stoch_period", d.Search.MinStochPeriod)
	v.SetDefault("search.max_stoch_period", d.Search.MaxStochPeriod)
	v.SetDefault("search.priority", d.Search.Priority)
	v.SetDefault("search.seed", d.Search.Seed)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.trades", d.Output.Trades)
	v.SetDefault("output.equity", d.Output.Equity)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	params := backtest.DefaultParams()
	mc := montecarlo.DefaultConfig()
	search := montecarlo.DefaultSearchConfig()

	return &Config{
		Data: DataConfig{
			Format: "prepared",
			Symbol: "EURUSD",
		},
		Strategy: StrategyConfig{
			Name:           params.Strategy,
			FastWindow:     params.FastWindow,
			SlowWindow:     params.SlowWindow,
			ExitWindow:     params.ExitWindow,
			MAType:         string(params.MAType),
			KPeriod:        params.KPeriod,
			Smooth:         params.Smooth,
			DPeriod:        params.DPeriod,
			Spread:         params.Spread,
			InitialCapital: params.InitialCapital,
			Leverage:       params.Leverage,
		},
		MonteCarlo: MonteCarloConfig{
			Trials:    mc.Trials,
			Method:    string(mc.Method),
			BlockSize: mc.BlockSize,
			Seed:      mc.Seed,
			Workers:   runtime.NumCPU(),
		},
		Search: SearchConfig{
			Candidates:     search.Candidates,
			MinPeriod:      search.MinPeriod,
			MaxPeriod:      search.MaxPeriod,
			MinStochPeriod: search.MinStochPeriod,
			MaxStochPeriod: search.MaxStochPeriod,
			Priority:       string(search.Priority),
			Seed:           search.Seed,
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: ".",
		},
		Output: OutputConfig{
			Dir:    "results",
			Trades: true,
			Equity: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Data validation
	switch c.Data.Format {
	case "prepared", "raw":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.format must be prepared or raw, got %q", c.Data.Format))
	}
	if c.Data.Interval != "" {
		if _, err := aggregate.ParseInterval(c.Data.Interval); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.interval: %w", err))
		}
	}

	if err := c.StrategyParams().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy: %w", err))
	}

	mc, err := c.MonteCarloParams()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("monte_carlo: %w", err))
	}
	if err := mc.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("monte_carlo: %w", err))
	}

	search, err := c.SearchParams()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("search: %w", err))
	}
	if err := search.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("search: %w", err))
	}

	// Storage validation
	switch c.Storage.Type {
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.path required when type is localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("storage.type must be localfs or s3, got %q", c.Storage.Type))
	}

	return nil
}

// StrategyParams maps the strategy section onto simulation parameters
func (c *Config) StrategyParams() backtest.Params {
	return backtest.Params{
		Strategy:       strings.ToLower(strings.TrimSpace(c.Strategy.Name)),
		FastWindow:     c.Strategy.FastWindow,
		SlowWindow:     c.Strategy.SlowWindow,
		ExitWindow:     c.Strategy.ExitWindow,
		MAType:         indicator.Kind(strings.ToLower(c.Strategy.MAType)),
		KPeriod:        c.Strategy.KPeriod,
		Smooth:         c.Strategy.Smooth,
		DPeriod:        c.Strategy.DPeriod,
		Spread:         c.Strategy.Spread,
		InitialCapital: c.Strategy.InitialCapital,
		Leverage:       c.Strategy.Leverage,
		Session: backtest.Session{
			Enabled:   c.Strategy.Session.Enabled,
			StartHour: c.Strategy.Session.StartHour,
			EndHour:   c.Strategy.Session.EndHour,
		},
	}
}

// MonteCarloParams maps the monte_carlo section onto a driver config
func (c *Config) MonteCarloParams() (montecarlo.Config, error) {
	method, err := montecarlo.ParseMethod(c.MonteCarlo.Method)
	if err != nil {
		return montecarlo.Config{}, err
	}
	return montecarlo.Config{
		Trials:    c.MonteCarlo.Trials,
		Method:    method,
		BlockSize: c.MonteCarlo.BlockSize,
		Seed:      c.MonteCarlo.Seed,
		Workers:   c.MonteCarlo.Workers,
	}, nil
}

// SearchParams maps the search section onto a period search config.
// Workers are shared with the monte_carlo section.
func (c *Config) SearchParams() (montecarlo.SearchConfig, error) {
	priority, err := montecarlo.ParsePriority(c.Search.Priority)
	if err != nil {
		return montecarlo.SearchConfig{}, err
	}
	return montecarlo.SearchConfig{
		Candidates:     c.Search.Candidates,
		MinPeriod:      c.Search.MinPeriod,
		MaxPeriod:      c.Search.MaxPeriod,
		MinStochPeriod: c.Search.MinStochPeriod,
		MaxStochPeriod: c.Search.MaxStochPeriod,
		Priority:       priority,
		Seed:           c.Search.Seed,
		Workers:        c.MonteCarlo.Workers,
	}, nil
}
