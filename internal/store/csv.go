package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Optional metadata files of a CSV directory.
const (
	StocksFile       = "stocks.csv"
	FundamentalsFile = "fundamentals.csv"
)

// candleRow is one daily bar as exported by baostock-style downloads. Only
// date and the OHLCV columns are required.
type candleRow struct {
	Date   string  `csv:"date"`
	Code   string  `csv:"code"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
	PE     string  `csv:"peTTM"`
	PB     string  `csv:"pbMRQ"`
}

type stockRow struct {
	Code     string `csv:"code"`
	Name     string `csv:"name"`
	Industry string `csv:"industry"`
}

type fundamentalRow struct {
	Code          string  `csv:"code"`
	Year          int     `csv:"year"`
	RevenueGrowth float64 `csv:"revenue_growth"`
	ProfitGrowth  float64 `csv:"profit_growth"`
	ROE           float64 `csv:"roe"`
	DebtRatio     float64 `csv:"debt_ratio"`
}

var csvDateLayouts = []string{models.DateLayout, "2006/01/02", "20060102"}

// NormalizeCode strips exchange prefixes such as "sh." or "sz".
func NormalizeCode(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	for _, prefix := range []string{"sh.", "sz.", "bj.", "sh", "sz", "bj"} {
		if strings.HasPrefix(code, prefix) && len(code) > len(prefix) {
			return code[len(prefix):]
		}
	}
	return code
}

// LoadSeriesCSV reads daily candles from CSV. Rows without a positive close
// (suspended days) are dropped and the rest sorted by date. peTTM and pbMRQ
// of the latest day carrying both become the valuation. stock fills the metadata;
// an empty code is taken from the code column.
func LoadSeriesCSV(r io.Reader, stock models.Stock) (*models.Series, error) {
	var rows []*candleRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, apperrors.NewDataError(stock.Code, "csv", "decode failed", fmt.Errorf("%w: %v", apperrors.ErrInvalidSeries, err))
	}

	series := &models.Series{Stock: stock}
	var pe, pb string
	var valuedAt time.Time
	for i, row := range rows {
		if series.Code == "" && row.Code != "" {
			series.Code = NormalizeCode(row.Code)
		}
		if row.Close <= 0 {
			continue
		}
		date, err := parseCSVDate(row.Date)
		if err != nil {
			return nil, apperrors.NewDataError(series.Code, "csv", fmt.Sprintf("row %d", i+2), fmt.Errorf("%w: %v", apperrors.ErrInvalidSeries, err))
		}
		series.Candles = append(series.Candles, models.Candle{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
		if strings.TrimSpace(row.PE) != "" && strings.TrimSpace(row.PB) != "" && !date.Before(valuedAt) {
			pe, pb, valuedAt = row.PE, row.PB, date
		}
	}

	sort.SliceStable(series.Candles, func(i, j int) bool {
		return series.Candles[i].Date.Before(series.Candles[j].Date)
	})

	if pe != "" && pb != "" {
		peV, err1 := strconv.ParseFloat(strings.TrimSpace(pe), 64)
		pbV, err2 := strconv.ParseFloat(strings.TrimSpace(pb), 64)
		if err1 == nil && err2 == nil {
			series.Valuation = &models.Valuation{PE: peV, PB: pbV}
		}
	}
	return series, nil
}

// LoadFundamentalsCSV reads yearly metrics keyed by code, newest year first.
func LoadFundamentalsCSV(r io.Reader) (map[string][]models.FundamentalYear, error) {
	var rows []*fundamentalRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decoding fundamentals: %w", err)
	}
	out := make(map[string][]models.FundamentalYear)
	for _, row := range rows {
		code := NormalizeCode(row.Code)
		if code == "" || row.Year == 0 {
			continue
		}
		out[code] = append(out[code], models.FundamentalYear{
			Year:          row.Year,
			RevenueGrowth: row.RevenueGrowth,
			ProfitGrowth:  row.ProfitGrowth,
			ROE:           row.ROE,
			DebtRatio:     row.DebtRatio,
		})
	}
	for _, years := range out {
		sort.Slice(years, func(i, j int) bool { return years[i].Year > years[j].Year })
	}
	return out, nil
}

// LoadSeriesFile reads a CSV file. The code defaults to the file name.
func LoadSeriesFile(path string, stock models.Stock) (*models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewDataError(stock.Code, "csv", "file not found", apperrors.ErrSeriesUnavailable)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if stock.Code == "" {
		stock.Code = NormalizeCode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	return LoadSeriesCSV(f, stock)
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// CSVDirectory serves series from a directory of <code>.csv files. An
// optional stocks.csv supplies names and industries and an optional
// fundamentals.csv supplies yearly metrics.
type CSVDirectory struct {
	Dir string
}

// Universe lists one stock per CSV file, ordered by code.
func (d CSVDirectory) Universe(ctx context.Context) ([]models.Stock, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.Dir, err)
	}
	meta, err := d.metadata()
	if err != nil {
		return nil, err
	}

	var stocks []models.Stock
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") || e.Name() == StocksFile || e.Name() == FundamentalsFile {
			continue
		}
		code := NormalizeCode(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		st, ok := meta[code]
		if !ok {
			st = models.Stock{Code: code}
		}
		stocks = append(stocks, st)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Code < stocks[j].Code })
	return stocks, nil
}

// FetchSeries loads <code>.csv and keeps candles within [start, end]. Zero
// bounds are open.
func (d CSVDirectory) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	meta, err := d.metadata()
	if err != nil {
		return nil, err
	}
	st, ok := meta[code]
	if !ok {
		st = models.Stock{Code: code}
	}

	series, err := LoadSeriesFile(filepath.Join(d.Dir, code+".csv"), st)
	if err != nil {
		return nil, err
	}
	kept := series.Candles[:0]
	for _, c := range series.Candles {
		if (!start.IsZero() && c.Date.Before(start)) || (!end.IsZero() && c.Date.After(end)) {
			continue
		}
		kept = append(kept, c)
	}
	series.Candles = kept

	fundamentals, err := d.fundamentals()
	if err != nil {
		return nil, err
	}
	series.Fundamentals = fundamentals[series.Code]
	return series, nil
}

func (d CSVDirectory) fundamentals() (map[string][]models.FundamentalYear, error) {
	f, err := os.Open(filepath.Join(d.Dir, FundamentalsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", FundamentalsFile, err)
	}
	defer f.Close()
	return LoadFundamentalsCSV(f)
}

func (d CSVDirectory) metadata() (map[string]models.Stock, error) {
	out := make(map[string]models.Stock)
	f, err := os.Open(filepath.Join(d.Dir, StocksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", StocksFile, err)
	}
	defer f.Close()

	var rows []*stockRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", StocksFile, err)
	}
	for _, row := range rows {
		code := NormalizeCode(row.Code)
		out[code] = models.Stock{Code: code, Name: row.Name, Industry: row.Industry}
	}
	return out, nil
}
