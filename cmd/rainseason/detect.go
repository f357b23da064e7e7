package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chrissnell/rainseason/internal/app"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/mask"
	"github.com/chrissnell/rainseason/internal/types"
)

type detectOptions struct {
	workers    int
	progress   bool
	noCache    bool
	strictMask bool
	input      string
}

func newDetectCmd(root *rootOptions) *cobra.Command {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run season detection over the configured precipitation record",
		Example: `  # Detect seasons with the settings in config.yaml
  rainseason detect --config config.yaml --progress

  # Use the strict rangeland mask and bypass the stage cache
  rainseason detect --strict-mask --no-cache`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("workers") {
				cfg.Processing.Workers = opts.workers
			}
			if opts.progress {
				cfg.Processing.Progress = true
			}
			if opts.noCache {
				cfg.Cache.Disabled = true
			}
			if opts.strictMask {
				cfg.Mask.MinRangelandFraction = mask.StrictThresholds().MinRangelandFraction
			}
			if opts.input != "" {
				cfg.Input.PrecipCSV = opts.input
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := app.WithSignals(context.Background(), log.GetSugaredLogger())
			defer cancel()

			stats, err := app.New(cfg, log.GetSugaredLogger()).Detect(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			statuses := make([]string, 0, len(stats.ByStatus))
			for s := range stats.ByStatus {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%d\n", s, stats.ByStatus[types.Status(s)])
			}
			fmt.Fprintf(w, "total\t%d\n", stats.Pixels)
			fmt.Fprintf(w, "cache hits\t%d\n", stats.CacheHits)
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Number of pixels processed at once")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Recompute every stage and do not write the cache")
	cmd.Flags().BoolVar(&opts.strictMask, "strict-mask", false, "Require a rangeland fraction of at least 0.9")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Precipitation CSV, overriding input.precip_csv")

	return cmd
}
