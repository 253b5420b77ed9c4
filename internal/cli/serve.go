package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/httpserver"
)

// pendingGaugeInterval is how often serve refreshes the pending review gauge.
const pendingGaugeInterval = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		address string
		port    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog HTTP API",
		Long: `Start the catalog HTTP API.

The server can be configured via:
  - Command-line flags (--port, --address)
  - Configuration file (server section)
  - Environment variables (CATALOG_SERVER_*)

API keys map callers to users:

    server:
      api_keys:
        - key: ${CATALOG_ADMIN_KEY}
          actor_id: 1
          role: admin

Changes to log.level in the config file apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg := cfg.Server
			switch {
			case address != "":
				serverCfg.Address = address
			case port != "":
				serverCfg.Address = ":" + port
			}
			return runServe(cmd, serverCfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (default: 8080)")
	cmd.Flags().StringVar(&address, "address", "", "address to listen on (e.g., localhost:8080)")
	return cmd
}

func runServe(cmd *cobra.Command, serverCfg config.ServerConfig) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer closeApp(cmd, app)

	server := httpserver.NewServer(httpserver.ServerDeps{
		Config:   serverCfg,
		UseCases: app.UseCases(),
		Metrics:  app.Metrics(),
		Ping:     app.Ping,
		Version:  versionInfo.Version,
	})

	if cfgLoader != nil {
		cfgLoader.Watch(func(updated *config.Config, err error) {
			if err != nil {
				slog.Warn("ignoring invalid config change", "error", err)
				return
			}
			setLogLevel(updated.Log.Level)
			slog.Info("log level updated", "level", updated.Log.Level)
		})
	}

	printInfo(cmd.OutOrStdout(), fmt.Sprintf("Serving the catalog API on %s (storage: %s)", serverCfg.Address, cfg.Storage.Driver))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		refreshPendingGauge(gctx, app)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("catalog api stopped")
	return nil
}

// refreshPendingGauge keeps the pending review gauge current until ctx ends.
func refreshPendingGauge(ctx context.Context, app cliApp) {
	m := app.Metrics()
	if m == nil {
		return
	}
	system := systemActor()

	ticker := time.NewTicker(pendingGaugeInterval)
	defer ticker.Stop()
	for {
		if n, err := app.UseCases().PendingCount.Execute(ctx, system); err == nil {
			m.SetPendingRequests(n)
		} else if ctx.Err() == nil {
			slog.Debug("pending gauge refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
