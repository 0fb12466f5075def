package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/store"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data <code>",
		Short: "Show stored daily candles",
		Long:  "Show the daily OHLCV candles, fundamentals and valuation stored for a stock.",
		Example: `  platform-scanner data 600000
  platform-scanner data 600000 --days 365 --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			code := store.NormalizeCode(args[0])
			days, _ := cmd.Flags().GetInt("days")
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := app.Store()
			if err != nil {
				return err
			}
			var from time.Time
			if days > 0 {
				from = time.Now().AddDate(0, 0, -days)
			}
			series, err := db.FetchSeries(ctx, code, from, time.Time{})
			if err != nil {
				output.Error("No data for %s: %v", code, err)
				return err
			}
			if stock, err := db.GetStock(ctx, code); err == nil {
				series.Stock = stock
			}
			if limit > 0 && len(series.Candles) > limit {
				series.Candles = series.Candles[len(series.Candles)-limit:]
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			displaySeries(output, series, db.GetLastSync(store.SyncKey(store.SyncTypeCandles, code)))
			return nil
		},
	}

	cmd.Flags().IntP("days", "d", 120, "calendar days of history (0 for all)")
	cmd.Flags().IntP("limit", "l", 0, "limit number of candles to display (0 for all)")

	return cmd
}

func displaySeries(output *Output, s *models.Series, synced time.Time) {
	output.Bold("%s %s", s.Code, s.Name)
	output.Printf("  Industry: %s\n", s.IndustryOrUnknown())
	output.Printf("  Candles:  %d\n", len(s.Candles))
	output.Printf("  Synced:   %s\n", FormatDateTime(synced))
	if s.Valuation != nil {
		output.Printf("  PE (TTM): %s   PB (MRQ): %s\n", FormatPrice(s.Valuation.PE), FormatPrice(s.Valuation.PB))
	}
	output.Println()

	table := NewTable(output, "Date", "Open", "High", "Low", "Close", "Volume", "Change")
	for i, c := range s.Candles {
		change := "-"
		if i > 0 && s.Candles[i-1].Close != 0 {
			pct := (c.Close - s.Candles[i-1].Close) / s.Candles[i-1].Close
			change = FormatRatio(pct)
			switch {
			case pct > 0:
				change = output.Red("+" + change)
			case pct < 0:
				change = output.Green(change)
			}
		}
		table.AddRow(
			FormatDate(c.Date),
			FormatPrice(c.Open),
			FormatPrice(c.High),
			FormatPrice(c.Low),
			FormatPrice(c.Close),
			FormatVolume(c.Volume),
			change,
		)
	}
	table.Render()

	if len(s.Fundamentals) > 0 {
		output.Println()
		ft := NewTable(output, "Year", "Revenue", "Profit", "ROE", "Debt")
		for _, f := range s.Fundamentals {
			ft.AddRow(fmt.Sprintf("%d", f.Year), FormatRatio(f.RevenueGrowth), FormatRatio(f.ProfitGrowth), FormatRatio(f.ROE), FormatRatio(f.DebtRatio))
		}
		ft.Render()
	}
}
