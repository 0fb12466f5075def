package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/api"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		Long: `Start the HTTP API. Scans submitted to /api/scan/start run in the
background and are polled with /api/scan/status/<task_id>. Job snapshots are
kept in the SQLite store so they survive a restart.`,
		Example: `  platform-scanner serve
  platform-scanner serve --addr :9000 --data ./csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			dataDir, _ := cmd.Flags().GetString("data")

			series, universe, err := app.Providers(ctx, dataDir)
			if err != nil {
				return err
			}
			jobs, err := app.Store()
			if err != nil {
				return err
			}

			orch := scanner.NewOrchestrator(series, universe, app.Logger)
			manager := scanner.NewManager(orch, jobs, app.Logger)
			if n, err := manager.Recover(ctx); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to recover interrupted jobs")
			} else if n > 0 {
				output.Warning("%d interrupted scan jobs marked failed", n)
			}
			manager.StartJanitor(ctx, app.Config.Jobs.JanitorInterval, app.Config.Jobs.TTL)

			debug, _ := cmd.Flags().GetBool("debug")
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(api.NewHandler(manager, orch, app.Logger), app.Logger)

			output.Info("Listening on %s", addr)
			serveErr := api.Serve(ctx, addr, router, app.Config.Server.ShutdownTimeout, app.Logger)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
			defer cancel()
			if err := manager.Shutdown(shutdownCtx); err != nil {
				app.Logger.Warn().Err(err).Msg("Scan jobs still running at shutdown")
			}
			return serveErr
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config, :8000)")
	cmd.Flags().String("data", "", "directory of <code>.csv files to serve instead of the store")

	return cmd
}
