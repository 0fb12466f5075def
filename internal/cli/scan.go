package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

const pollInterval = 200 * time.Millisecond

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan stocks for platform periods",
		Long: `Run a platform scan over the stored universe, a list of codes, or a
directory of CSV files. Scan parameters come from the [scan] section of the
config file; flags override them.`,
		Example: `  platform-scanner scan
  platform-scanner scan --codes 600000,000001 --windows 80,100,120
  platform-scanner scan --data ./csv --expected-count 20 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg, u, err := scanFromFlags(cmd, app.Config.Scan)
			if err != nil {
				return err
			}
			dataDir, _ := cmd.Flags().GetString("data")
			series, universe, err := app.Providers(ctx, dataDir)
			if err != nil {
				return err
			}

			orch := scanner.NewOrchestrator(series, universe, app.Logger)
			manager := scanner.NewManager(orch, nil, app.Logger)
			defer func() { _ = manager.Shutdown(context.Background()) }()

			started := time.Now()
			id, err := manager.Submit(ctx, cfg, u)
			if err != nil {
				output.Error("Invalid scan configuration: %v", err)
				return err
			}

			snap, err := waitForJob(ctx, manager, id, output)
			if err != nil {
				return err
			}
			if snap.Status == scanner.StatusFailed {
				output.Error("%s", snap.Message)
				return fmt.Errorf("scan failed: %s", snap.Error)
			}

			if output.IsJSON() {
				if snap.Result == nil {
					snap.Result = []scoring.Candidate{}
				}
				return output.JSON(snap.Result)
			}
			displayCandidates(output, snap.Result)
			output.Dim("%s in %s", snap.Message, FormatDuration(time.Since(started)))
			return nil
		},
	}

	cmd.Flags().String("codes", "", "comma separated stock codes (default: whole universe)")
	cmd.Flags().String("data", "", "directory of <code>.csv files to scan instead of the store")
	cmd.Flags().String("windows", "", "window sizes in trading days, e.g. 80,100,120")
	cmd.Flags().Int("expected-count", -1, "number of candidates to return (0 for all)")
	cmd.Flags().Bool("industry-diversity", false, "spread candidates across industries")
	cmd.Flags().Int("workers", 0, "parallel fetch and classify workers")
	cmd.Flags().String("start", "", "first candle date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last candle date (YYYY-MM-DD, default today)")

	return cmd
}

// scanFromFlags overlays the command flags on the configured scan defaults.
func scanFromFlags(cmd *cobra.Command, base config.ScanConfig) (config.ScanConfig, scanner.Universe, error) {
	cfg := base.Clone()
	var u scanner.Universe

	flags := cmd.Flags()
	if s, _ := flags.GetString("windows"); s != "" {
		ws, err := ParseWindows(s)
		if err != nil {
			return cfg, u, err
		}
		cfg.Windows = ws
	}
	if n, _ := flags.GetInt("expected-count"); n >= 0 {
		cfg.ExpectedCount = n
	}
	if flags.Changed("industry-diversity") {
		cfg.IndustryDiversity, _ = flags.GetBool("industry-diversity")
	}
	if n, _ := flags.GetInt("workers"); n > 0 {
		cfg.MaxWorkers = n
	}

	codes, _ := flags.GetString("codes")
	u.Codes = ParseCodes(codes)
	for _, f := range []struct {
		name   string
		target *time.Time
	}{{"start", &u.Start}, {"end", &u.End}} {
		s, _ := flags.GetString(f.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return cfg, u, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", f.name, s)
		}
		*f.target = t
	}
	return cfg, u, nil
}

// waitForJob polls until the job is terminal, drawing progress when not in
// JSON mode. Interrupting cancels the job and keeps waiting for it to stop.
func waitForJob(ctx context.Context, manager *scanner.Manager, id string, output *Output) (scanner.JobSnapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	cancelled := false
	for {
		snap, err := manager.Get(context.Background(), id)
		if err != nil {
			return snap, err
		}
		if !output.IsJSON() {
			output.Progress(snap.Progress, snap.Message)
		}
		if snap.Terminal() {
			if !output.IsJSON() && snap.Progress < 100 {
				output.Println()
			}
			return snap, nil
		}

		select {
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				_ = manager.Cancel(id)
			}
			<-ticker.C
		case <-ticker.C:
		}
	}
}

func displayCandidates(output *Output, candidates []scoring.Candidate) {
	if len(candidates) == 0 {
		output.Warning("No platform stocks found")
		return
	}

	output.Bold("Platform candidates (%d)", len(candidates))
	table := NewTable(output, "#", "Code", "Name", "Industry", "Windows", "Score", "Reason")
	for i, c := range candidates {
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			output.Cyan(c.Code),
			Truncate(c.Name, 8),
			Truncate(c.Industry, 8),
			FormatWindows(c.PlatformWindows),
			FormatScore(c.WeightedScore),
			Truncate(firstReason(c), 48),
		)
	}
	table.Render()
	output.Println()
}

func firstReason(c scoring.Candidate) string {
	ws := make([]int, 0, len(c.SelectionReasons))
	for w := range c.SelectionReasons {
		ws = append(ws, w)
	}
	sort.Ints(ws)
	if len(ws) == 0 {
		return ""
	}
	return c.SelectionReasons[ws[0]]
}
