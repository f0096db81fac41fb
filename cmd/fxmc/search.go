package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/fxmc/internal/config"
	"github.com/newthinker/fxmc/internal/report"
)

var (
	searchCandidates int
	searchPriority   string
	searchMin        int
	searchMax        int
	searchStochMin   int
	searchStochMax   int
	searchTop        int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search random strategy periods for the best return or lowest drawdown",
	Args:  cobra.NoArgs,
	RunE:  runSearch,
}

func init() {
	addDataFlag(searchCmd)
	searchCmd.Flags().IntVar(&searchCandidates, "candidates", 0, "number of period pairs to try")
	searchCmd.Flags().StringVar(&searchPriority, "priority", "", "return or drawdown")
	searchCmd.Flags().IntVar(&searchMin, "min-period", 0, "smallest period drawn")
	searchCmd.Flags().IntVar(&searchMax, "max-period", 0, "largest period drawn")
	searchCmd.Flags().IntVar(&searchStochMin, "min-stoch-period", 0, "smallest stochastic period drawn")
	searchCmd.Flags().IntVar(&searchStochMax, "max-stoch-period", 0, "largest stochastic period drawn")
	searchCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy: ma_crossover, ma3 or stochastic")
	searchCmd.Flags().IntVar(&searchTop, "top", 10, "candidates to print, 0 prints all")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, log, err := setup(func(cfg *config.Config) {
		f := cmd.Flags()
		if f.Changed("candidates") {
			cfg.Search.Candidates = searchCandidates
		}
		if f.Changed("priority") {
			cfg.Search.Priority = searchPriority
		}
		if f.Changed("min-period") {
			cfg.Search.MinPeriod = searchMin
		}
		if f.Changed("max-period") {
			cfg.Search.MaxPeriod = searchMax
		}
		if f.Changed("min-stoch-period") {
			cfg.Search.MinStochPeriod = searchStochMin
		}
		if f.Changed("max-stoch-period") {
			cfg.Search.MaxStochPeriod = searchStochMax
		}
		if f.Changed("strategy") {
			cfg.Strategy.Name = backtestStrategy
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

	res, err := a.Search(ctx, series)
	if err != nil {
		return err
	}
	if err := a.SaveSearch(ctx, res); err != nil {
		return err
	}

	report.Search(cmd.OutOrStdout(), res, searchTop)
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", a.RunID())
	return nil
}
