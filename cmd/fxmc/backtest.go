package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/fxmc/internal/app"
	"github.com/newthinker/fxmc/internal/config"
	"github.com/newthinker/fxmc/internal/report"
)

var (
	backtestStrategy string
	backtestFast     int
	backtestSlow     int
	backtestExit     int
	backtestMAType   string
	backtestKPeriod  int
	backtestSmooth   int
	backtestDPeriod  int
	backtestSpread   float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy on historical bars",
	Long:  "Simulate the strategy once on the configured data and show performance statistics",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	addDataFlag(backtestCmd)
	addStrategyFlags(backtestCmd)

	rootCmd.AddCommand(backtestCmd)
}

func addStrategyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy: ma_crossover, ma3 or stochastic")
	cmd.Flags().IntVar(&backtestFast, "fast", 0, "fast moving-average window")
	cmd.Flags().IntVar(&backtestSlow, "slow", 0, "slow moving-average window")
	cmd.Flags().IntVar(&backtestExit, "exit", 0, "exit moving-average window (ma3)")
	cmd.Flags().StringVar(&backtestMAType, "ma-type", "", "moving-average type: sma or ema")
	cmd.Flags().IntVar(&backtestKPeriod, "k-period", 0, "stochastic %K lookback")
	cmd.Flags().IntVar(&backtestSmooth, "smooth", 0, "stochastic %K smoothing")
	cmd.Flags().IntVar(&backtestDPeriod, "d-period", 0, "stochastic %D period")
	cmd.Flags().Float64Var(&backtestSpread, "spread", 0, "spread in price units per round trip")
}

// strategyOverrides copies changed strategy flags into the config
func strategyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy.Name = backtestStrategy
	}
	if cmd.Flags().Changed("exit") {
		cfg.Strategy.ExitWindow = backtestExit
	}
	if cmd.Flags().Changed("k-period") {
		cfg.Strategy.KPeriod = backtestKPeriod
	}
	if cmd.Flags().Changed("smooth") {
		cfg.Strategy.Smooth = backtestSmooth
	}
	if cmd.Flags().Changed("d-period") {
		cfg.Strategy.DPeriod = backtestDPeriod
	}
	if cmd.Flags().Changed("fast") {
		cfg.Strategy.FastWindow = backtestFast
	}
	if cmd.Flags().Changed("slow") {
		cfg.Strategy.SlowWindow = backtestSlow
	}
	if cmd.Flags().Changed("ma-type") {
		cfg.Strategy.MAType = backtestMAType
	}
	if cmd.Flags().Changed("spread") {
		cfg.Strategy.Spread = backtestSpread
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, log, err := setup(func(cfg *config.Config) { strategyOverrides(cmd, cfg) })
	if err != nil {
		return err
	}
	defer log.Sync()
	defer closeApp(a, log)

	ctx := cmd.Context()
	series, err := a.LoadSeries(ctx, "")
	if err != nil {
		return err
	}

	res, err := a.Backtest(ctx, series)
	if err != nil {
		return err
	}
	if err := a.SaveBacktest(ctx, res); err != nil {
		return err
	}

	report.Backtest(cmd.OutOrStdout(), res)
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", a.RunID())
	return nil
}

func closeApp(a *app.App, log *zap.Logger) {
	if err := a.Close(); err != nil {
		log.Warn("closing app", zap.Error(err))
	}
}
