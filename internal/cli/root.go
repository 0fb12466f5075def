// Package cli provides the command-line interface for the platform scanner.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/cache"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/logging"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/resilience"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-03-01"
)

// App holds the application dependencies. The store and cache are opened on
// first use so that commands like version work without them.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	store *store.SQLiteStore
	cache *cache.CachingSeriesProvider
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{
		Config: config.Default(),
		Logger: zerolog.Nop(),
	}

	rootCmd := &cobra.Command{
		Use:   "platform-scanner",
		Short: "A-share platform period scanner",
		Long: `platform-scanner finds A-share stocks trading in a consolidation
platform: a narrow, quiet range after a decline, often ahead of a breakout.

Candles come from the local SQLite store (see 'import') or a directory of
CSV files. Scans run from the command line or as jobs over HTTP ('serve').`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.ConfigDir = dir
			if app.ConfigDir == "" {
				app.ConfigDir = config.DefaultConfigDir()
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				cfg.Logging.Level = "debug"
			}
			app.Logger = logging.NewLoggerWithConfig(cfg.Logging)
			if debug {
				logging.SetDebugLevel()
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/platform-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newJobsCmd(app))
	rootCmd.AddCommand(newExamplesCmd())

	return rootCmd
}

// Store opens the SQLite store on first use.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", a.Config.Storage.DBPath, err)
	}
	a.Logger.Debug().Str("path", a.Config.Storage.DBPath).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Providers returns the series and universe sources for a scan. A data
// directory takes precedence over the store. The Redis cache wraps the store
// when enabled and the circuit breaker wraps whatever source results.
func (a *App) Providers(ctx context.Context, dataDir string) (scanner.SeriesProvider, scanner.UniverseProvider, error) {
	if dataDir != "" {
		d := store.CSVDirectory{Dir: filepath.Clean(dataDir)}
		return a.guard(d, "csv"), d, nil
	}

	s, err := a.Store()
	if err != nil {
		return nil, nil, err
	}
	c, err := a.Cache(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	if c != nil {
		return a.guard(c, "cache"), s, nil
	}
	return a.guard(s, "store"), s, nil
}

func (a *App) guard(inner scanner.SeriesProvider, name string) scanner.SeriesProvider {
	if !a.Config.Breaker.Enabled {
		return inner
	}
	return resilience.NewGuardedProvider(inner, name, a.Config.Breaker, a.Logger)
}

// Cache returns the Redis series cache around inner, or nil when disabled.
// An unreachable Redis is logged and skipped.
func (a *App) Cache(ctx context.Context, inner scanner.SeriesProvider) (*cache.CachingSeriesProvider, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	if !a.Config.Redis.Enabled {
		return nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rdb, err := cache.NewClient(pingCtx, a.Config.Redis)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Redis unavailable, series cache disabled")
		return nil, nil
	}
	a.cache = cache.NewCachingSeriesProvider(rdb, a.Config.Redis.TTL, inner, a.Config.Redis.Namespace, a.Logger)
	return a.cache, nil
}

// Close releases the store and cache.
func (a *App) Close() error {
	var err error
	if a.cache != nil {
		err = a.cache.Close()
		a.cache = nil
	}
	if a.store != nil {
		if cerr := a.store.Close(); err == nil {
			err = cerr
		}
		a.store = nil
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("platform-scanner v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
