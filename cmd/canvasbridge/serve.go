package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/studiomesh/canvasbridge-go/bridge"
	"github.com/studiomesh/canvasbridge-go/config"
	"github.com/studiomesh/canvasbridge-go/control"
	"github.com/studiomesh/canvasbridge-go/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		listenAddr  string
		withControl bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the data-plane listener, optionally with the stdio control plane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			logger, err := config.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := bridge.New(bridge.Options{
				CallTimeout: cfg.CallTimeout(),
				Logger:      logger,
			})
			defer func() { _ = b.Close() }()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.NewServer(b, cfg.ListenAddr, logger).Run(ctx)
			})
			if withControl {
				g.Go(func() error {
					// Control-plane EOF means the agent is gone; take the
					// whole process down with it.
					defer stop()
					return control.NewServer(b, logger).Run(ctx, os.Stdin, os.Stdout)
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "override the data-plane listen address")
	cmd.Flags().BoolVar(&withControl, "control", false, "serve the JSON-RPC control plane on stdio")
	return cmd
}
