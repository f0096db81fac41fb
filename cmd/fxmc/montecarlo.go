package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/fxmc/internal/config"
	"github.com/newthinker/fxmc/internal/report"
)

var (
	mcTrials    int
	mcMethod    string
	mcBlockSize int
	mcSeed      uint64
	mcWorkers   int
)

var monteCarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Rank the observed backtest against resampled price histories",
	Args:    cobra.NoArgs,
	RunE:    runMonteCarlo,
}

func init() {
	addDataFlag(monteCarloCmd)
	addStrategyFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&mcTrials, "trials", 0, "number of resampled trials")
	monteCarloCmd.Flags().StringVar(&mcMethod, "method", "", "resampling method: block_bootstrap or shuffle_returns")
	monteCarloCmd.Flags().IntVar(&mcBlockSize, "block-size", 0, "bars per bootstrap block")
	monteCarloCmd.Flags().Uint64Var(&mcSeed, "seed", 0, "random seed")
	monteCarloCmd.Flags().IntVar(&mcWorkers, "workers", 0, "parallel trials, 0 uses every CPU")

	rootCmd.AddCommand(monteCarloCmd)
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	a, log, err := setup(func(cfg *config.Config) {
		strategyOverrides(cmd, cfg)
		f := cmd.Flags()
		if f.Changed("trials") {
			cfg.MonteCarlo.Trials = mcTrials
		}
		if f.Changed("method") {
			cfg.MonteCarlo.Method = mcMethod
		}
		if f.Changed("block-size") {
			cfg.MonteCarlo.BlockSize = mcBlockSize
		}
		if f.Changed("seed") {
			cfg.MonteCarlo.Seed = mcSeed
		}
		if f.Changed("workers") {
			cfg.MonteCarlo.Workers = mcWorkers
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer closeApp(a, log)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	series, err := a.LoadSeries(ctx, "")
	if err != nil {
		return err
	}

	res, err := a.MonteCarlo(ctx, series)
	if err != nil {
		return err
	}
	if err := a.SaveMonteCarlo(ctx, res); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report.Backtest(out, res.Observed)
	report.MonteCarlo(out, res)
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", a.RunID())
	return nil
}
