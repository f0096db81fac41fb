package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/fxmc/internal/app"
	"github.com/newthinker/fxmc/internal/config"
	"github.com/newthinker/fxmc/internal/logger"
)

var (
	cfgFile  string
	debug    bool
	dataPath string
)

var rootCmd = &cobra.Command{
	Use:   "fxmc",
	Short: "FXMC - FX moving-average backtester with Monte Carlo robustness tests",
	Long: `FXMC backtests a moving-average crossover strategy on FX price bars and
measures how the observed result ranks against resampled price histories.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, or defaults when none is given
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setup builds the logger, config and app for a command. mutate applies flag
// overrides before validation.
func setup(mutate func(*config.Config)) (*app.App, *zap.Logger, error) {
	boot := logger.Must(debug, "")

	cfg, err := loadConfig(boot)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.New(debug || cfg.Log.Development, level)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func addDataFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataPath, "data", "", "price file path, overrides data.path")
}
