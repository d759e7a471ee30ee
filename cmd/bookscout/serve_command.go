package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bookscout/internal/api"
	"bookscout/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another bookscout server is already running")
			}
			defer func() { _ = lock.Unlock() }()

			a, err := ctx.ensureApp(signalCtx)
			if err != nil {
				return err
			}
			address := cfg.Paths.APIBind
			if strings.TrimSpace(bind) != "" {
				address = bind
			}
			server := api.New(address, a.search, a.discovery,
				api.WithLogger(a.logger),
				api.WithMetrics(a.metrics),
				api.WithGatherer(a.registry),
				api.WithToken(cfg.Paths.APIToken),
			)
			if err := server.Start(signalCtx); err != nil {
				return err
			}
			defer server.Stop()

			a.logger.Info("bookscout server started",
				logging.String("address", server.Addr()),
				logging.String("strategy", a.search.Strategy().String()),
				logging.String("lock", cfg.LockPath()),
			)
			<-signalCtx.Done()
			a.logger.Info("bookscout server shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides paths.api_bind)")
	return cmd
}
