package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/SolverEngine/internal/api"
	"github.com/AaronLay10/SolverEngine/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MQTT request listener",
		Long: `Serve the problem API until interrupted.

Problems are created and solved over HTTP; audit events are streamed on
/ws/events and, when configured, published to MQTT and stored in Postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logger, err := opts.logger(os.Stdout)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("shutdown failed", slog.String("error", err.Error()))
				}
			}()

			srv := api.NewServer(ctx, a, logger)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, cfg.HTTPPort(), api.TLSFiles{
					CertFile: cfg.Server.TLSCert,
					KeyFile:  cfg.Server.TLSKey,
				})
			})
			g.Go(func() error {
				if err := a.ServeRequests(gctx); err != nil {
					// The API stays useful without a broker.
					logger.Warn("mqtt requests unavailable", slog.String("error", err.Error()))
				}
				return nil
			})
			srv.SetReady(true)

			err = g.Wait()
			logger.Info("toolbox stopped")
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides the config file)")
	return cmd
}
