package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/cheggaaa/pb"
	"github.com/spf13/cobra"

	"github.com/chrissnell/rainseason/internal/app"
	"github.com/chrissnell/rainseason/internal/cache"
	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/log"
)

// currentVersions maps each stage to the version this build writes
var currentVersions = map[string]int{
	constants.StageSeason:     constants.SeasonStageVersion,
	constants.StageCovariates: constants.CovariateStageVersion,
	constants.StagePixel:      constants.PixelStageVersion,
}

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clean the stage cache",
	}
	cmd.AddCommand(newCacheStatsCmd(root), newCachePurgeCmd(root))
	return cmd
}

func openCache(ctx context.Context, root *rootOptions) (*cache.Store, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	store, err := app.New(cfg, log.GetSugaredLogger()).OpenCache(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("the stage cache is disabled in this configuration")
	}
	return store, nil
}

func newCacheStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and sizes per stage version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openCache(ctx, root)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tVERSION\tENTRIES\tSIZE\t")
			for _, s := range stats {
				stale := ""
				if v, ok := currentVersions[s.Stage]; ok && s.Version < v {
					stale = "stale"
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", s.Stage, s.Version, s.Entries, pb.Format(s.Bytes).To(pb.U_BYTES), stale)
			}
			return w.Flush()
		},
	}
}

func newCachePurgeCmd(root *rootOptions) *cobra.Command {
	var (
		stage        string
		belowVersion int
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries written by older versions",
		Long: `Delete cache entries. Without flags, entries of every stage older than the
version this build writes are removed. --all empties the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openCache(ctx, root)
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int64
			switch {
			case all:
				removed, err = store.Purge(ctx, "", 1<<30)
			case stage != "":
				v := belowVersion
				if v == 0 {
					cur, ok := currentVersions[stage]
					if !ok {
						return fmt.Errorf("unknown stage %q", stage)
					}
					v = cur
				}
				removed, err = store.Purge(ctx, stage, v)
			default:
				for s, v := range currentVersions {
					n, perr := store.Purge(ctx, s, v)
					if perr != nil {
						err = perr
						break
					}
					removed += n
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Only purge this stage (season, covariates or pixel)")
	cmd.Flags().IntVar(&belowVersion, "below-version", 0, "Purge versions below this one (default: the current version of --stage)")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every entry")

	return cmd
}
