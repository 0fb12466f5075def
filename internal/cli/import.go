package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/store"
)

type importSummary struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	Candles int    `json:"candles"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import daily candles from CSV into the store",
		Long: `Import baostock-style daily candle CSV files (date, code, open, high,
low, close, volume and optionally peTTM, pbMRQ) into the SQLite store.

--csv takes a single file or a directory of <code>.csv files. A directory may
also hold stocks.csv (code, name, industry) and fundamentals.csv (code, year,
revenue_growth, profit_growth, roe, debt_ratio).`,
		Example: `  platform-scanner import --csv ./csv
  platform-scanner import --csv 600000.csv --name 浦发银行 --industry 银行`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			path, _ := cmd.Flags().GetString("csv")
			if path == "" {
				return fmt.Errorf("--csv is required")
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			var series []*models.Series
			var summaries []importSummary
			if info.IsDir() {
				series, summaries, err = loadDirectory(cmd, path)
			} else {
				var s *models.Series
				s, err = loadSingleFile(cmd, path)
				series = []*models.Series{s}
			}
			if err != nil {
				return err
			}

			db, err := app.Store()
			if err != nil {
				return err
			}
			codes := make([]string, 0, len(series))
			for _, s := range series {
				if err := db.SaveSeries(ctx, s); err != nil {
					return fmt.Errorf("saving %s: %w", s.Code, err)
				}
				codes = append(codes, s.Code)
				summaries = append(summaries, summarize(s))
			}
			if err := db.SetLastSync(store.SyncTypeStocks, time.Now()); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to record sync time")
			}

			if c, err := app.Cache(ctx, db); err == nil && c != nil {
				if err := c.Invalidate(ctx, codes...); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to invalidate cached series")
				}
			}

			if output.IsJSON() {
				return output.JSON(summaries)
			}
			table := NewTable(output, "Code", "Name", "Candles", "From", "To", "")
			for _, s := range summaries {
				status := output.Green("✓")
				if s.Error != "" {
					status = output.Red("✗ " + s.Error)
				}
				table.AddRow(s.Code, s.Name, fmt.Sprintf("%d", s.Candles), s.From, s.To, status)
			}
			table.Render()
			output.Success("Imported %d stocks into %s", len(series), app.Config.Storage.DBPath)
			return nil
		},
	}

	cmd.Flags().String("csv", "", "CSV file or directory of CSV files")
	cmd.Flags().String("code", "", "stock code for a single file (default: file name)")
	cmd.Flags().String("name", "", "stock name for a single file")
	cmd.Flags().String("industry", "", "industry for a single file")

	return cmd
}

func loadSingleFile(cmd *cobra.Command, path string) (*models.Series, error) {
	var stock models.Stock
	stock.Code, _ = cmd.Flags().GetString("code")
	stock.Name, _ = cmd.Flags().GetString("name")
	stock.Industry, _ = cmd.Flags().GetString("industry")
	stock.Code = store.NormalizeCode(stock.Code)

	s, err := store.LoadSeriesFile(path, stock)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// loadDirectory reads every file of a CSV directory. Files that fail to
// parse or validate are reported and skipped.
func loadDirectory(cmd *cobra.Command, dir string) ([]*models.Series, []importSummary, error) {
	d := store.CSVDirectory{Dir: dir}
	stocks, err := d.Universe(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	var out []*models.Series
	var failed []importSummary
	for _, st := range stocks {
		s, err := d.FetchSeries(cmd.Context(), st.Code, time.Time{}, time.Time{})
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			failed = append(failed, importSummary{Code: st.Code, Name: st.Name, Error: err.Error()})
			continue
		}
		out = append(out, s)
	}
	return out, failed, nil
}

func summarize(s *models.Series) importSummary {
	sum := importSummary{Code: s.Code, Name: s.Name, Candles: len(s.Candles)}
	if n := len(s.Candles); n > 0 {
		sum.From = FormatDate(s.Candles[0].Date)
		sum.To = FormatDate(s.Candles[n-1].Date)
	}
	return sum
}
