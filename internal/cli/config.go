package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the scanner configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	s := cfg.Scan
	output.Bold("Scan")
	output.Printf("  Windows:           %s\n", FormatWindows(s.Windows))
	output.Printf("  Short circuit:     %v\n", s.ShortCircuit)
	output.Printf("  Expected count:    %d\n", s.ExpectedCount)
	output.Printf("  Industry mix:      %v\n", s.IndustryDiversity)
	output.Printf("  Workers:           %d (retries %d, delay %ds)\n", s.MaxWorkers, s.RetryAttempts, s.RetryDelay)
	if s.UseWindowWeights {
		output.Printf("  Window weights:    %s\n", scoring.FormatWeights(s.WindowWeights))
	}
	output.Println()

	output.Bold("Filters")
	filters := []struct {
		name    string
		enabled bool
		detail  string
	}{
		{"price", s.UsePriceAnalysis, "box " + FormatRatio(s.BoxThreshold) + ", ma diff " + FormatRatio(s.MADiffThreshold) + ", volatility " + FormatRatio(s.VolatilityThreshold)},
		{"volume", s.UseVolumeAnalysis, "change " + FormatRatio(s.VolumeChangeThreshold) + ", stability " + FormatRatio(s.VolumeStabilityThreshold)},
		{"position", s.UseLowPosition, "decline " + FormatRatio(s.DeclineThreshold)},
		{"rapid_decline", s.UseRapidDeclineDetection, "drop " + FormatRatio(s.RapidDeclineThreshold)},
		{"box", s.UseBoxDetection, "quality " + FormatRatio(s.BoxQualityThreshold)},
		{"breakthrough_prediction", s.UseBreakthroughPrediction, ""},
		{"breakthrough_confirmation", s.UseBreakthroughConfirmation, ""},
		{"fundamental", s.UseFundamentalFilter, ""},
	}
	for _, f := range filters {
		output.Printf("  %s %-26s %s\n", output.Verdict(f.enabled), f.name, output.DimText(f.detail))
	}
	output.Println()

	output.Bold("Service")
	output.Printf("  HTTP address:      %s\n", cfg.Server.Addr)
	output.Printf("  Database:          %s\n", cfg.Storage.DBPath)
	output.Printf("  Redis cache:       %v (%s, ttl %s)\n", cfg.Redis.Enabled, cfg.Redis.Addr, cfg.Redis.TTL)
	output.Printf("  Circuit breaker:   %v (%d failures, cooldown %s)\n", cfg.Breaker.Enabled, cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown)
	output.Printf("  Job TTL:           %s\n", cfg.Jobs.TTL)
	output.Printf("  Log level:         %s\n", cfg.Logging.Level)
}
