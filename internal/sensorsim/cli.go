package sensorsim

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/klynaa/pkg/logger"
	"github.com/spf13/cobra"
)

// NewCommand returns the sensor-sim root command.
func NewCommand() *cobra.Command {
	cfg := DefaultConfig()
	var (
		scenario string
		bins     int
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "sensor-sim",
		Short: "Submit simulated bin fill readings to the dispatch gateway",
		Example: `  sensor-sim --readings 20000 --dup-ratio 0.1
  sensor-sim --scenario scenarios/morning.yaml --url http://localhost:9080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run := cfg
			if cmd.Flags().Changed("bins") {
				run.Bins = GenerateBins(bins)
			}
			if scenario != "" {
				loaded, err := LoadScenario(scenario, run)
				if err != nil {
					return err
				}
				run = loaded
			}

			log := logger.Nop()
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err == nil {
				if run.Verbose {
					_ = logger.SetLevelString("debug")
				}
				log = logger.Named("sensor-sim")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := Run(ctx, &run, log)
			if stats != nil {
				if jsonOut {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					_ = enc.Encode(stats)
				} else {
					WriteReport(cmd.OutOrStdout(), stats)
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the gateway")
	f.IntVar(&cfg.Readings, "readings", cfg.Readings, "Number of readings to submit")
	f.IntVar(&bins, "bins", DefaultBins, "Number of simulated bins")
	f.Float64Var(&cfg.DuplicateRatio, "dup-ratio", cfg.DuplicateRatio, "Share of submissions that resend an earlier reading")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for reproducible runs")
	f.StringVar(&cfg.OutputFile, "output", "", "Write the generated readings to this JSON file")
	f.StringVar(&scenario, "scenario", "", "YAML scenario file; its fields override flags")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}
