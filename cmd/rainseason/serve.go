package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/chrissnell/rainseason/internal/app"
	"github.com/chrissnell/rainseason/internal/log"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port   int
		listen string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored pixel results over HTTP",
		Long: `Serve the latest result of every pixel written by detect, read from the stage
cache. Responses are JSON, or MessagePack with ?format=msgpack.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.ListenAddr = listen
			}

			ctx, cancel := app.WithSignals(context.Background(), log.GetSugaredLogger())
			defer cancel()
			return app.New(cfg, log.GetSugaredLogger()).Serve(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port, overriding server.port")
	cmd.Flags().StringVar(&listen, "listen", "0.0.0.0", "Listen address, overriding server.listen_addr")

	return cmd
}
