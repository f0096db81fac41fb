package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/fxmc/internal/config"
)

var (
	prepareFormat   string
	prepareInterval string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <input> <output>",
	Short: "Convert a Dukascopy export into a prepared bar file",
	Long: `Read a raw Dukascopy CSV (Gmt time,Open,High,Low,Close,Volume), optionally
resample it to a coarser interval, and write Date,Open,High,Low,Close,Volume.`,
	Args: cobra.ExactArgs(2),
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&prepareFormat, "format", "raw", "input format: raw or prepared")
	prepareCmd.Flags().StringVar(&prepareInterval, "interval", "", "target bar interval, e.g. 15min, 1H, D")

	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	a, log, err := setup(func(cfg *config.Config) {
		cfg.Data.Path = args[0]
		cfg.Data.Format = prepareFormat
		if cmd.Flags().Changed("interval") {
			cfg.Data.Interval = prepareInterval
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()
	defer closeApp(a, log)

	series, err := a.Prepare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bars (%s to %s) to %s\n", series.Len(),
		series.Start().Format("2006-01-02 15:04"), series.End().Format("2006-01-02 15:04"), args[1])
	log.Debug("prepare finished", zap.Int("bars", series.Len()))
	return nil
}
