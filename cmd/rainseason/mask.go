package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chrissnell/rainseason/internal/app"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/internal/mask"
)

func newMaskCmd(root *rootOptions) *cobra.Command {
	var (
		strict   bool
		out      string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Build the study-area mask and write each layer as a raster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			t := app.MaskThresholds(cfg.Mask)
			if strict {
				t.MinRangelandFraction = mask.StrictThresholds().MinRangelandFraction
			}

			layers, err := app.New(cfg, log.GetSugaredLogger()).WriteMasks(out, t, compress)
			if err != nil {
				return err
			}

			named := layers.Named()
			names := make([]string, 0, len(named))
			for n := range named {
				names = append(names, n)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LAYER\tCELLS\tOF")
			for _, n := range names {
				kept := 0
				for _, v := range named[n] {
					if v {
						kept++
					}
				}
				fmt.Fprintf(w, "%s\t%d\t%d\n", n, kept, layers.Geometry.Len())
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Require a rangeland fraction of at least 0.9")
	cmd.Flags().StringVarP(&out, "output", "o", ".", "Directory to write study_area_masks/ into")
	cmd.Flags().BoolVar(&compress, "compress", false, "Gzip the rasters")

	return cmd
}
