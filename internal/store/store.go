// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Stocks
	SaveStocks(ctx context.Context, stocks []models.Stock) error
	GetStock(ctx context.Context, code string) (models.Stock, error)
	Universe(ctx context.Context) ([]models.Stock, error)

	// Candles
	SaveCandles(ctx context.Context, code string, candles []models.Candle) error
	GetCandles(ctx context.Context, code string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, code string) (time.Time, error)

	// Fundamentals
	SaveFundamentals(ctx context.Context, code string, years []models.FundamentalYear) error
	GetFundamentals(ctx context.Context, code string) ([]models.FundamentalYear, error)
	SaveValuation(ctx context.Context, code string, v models.Valuation) error
	GetValuation(ctx context.Context, code string) (*models.Valuation, error)

	// Series
	SaveSeries(ctx context.Context, s *models.Series) error
	FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error)

	// Scan jobs
	SaveJob(ctx context.Context, snap scanner.JobSnapshot) error
	LoadJob(ctx context.Context, id string) (scanner.JobSnapshot, error)
	ListJobs(ctx context.Context) ([]scanner.JobSnapshot, error)
	DeleteJobsBefore(ctx context.Context, before time.Time) (int, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// Sync data types recorded by importers.
const (
	SyncTypeCandles      = "candles"
	SyncTypeFundamentals = "fundamentals"
	SyncTypeStocks       = "stocks"
)

// SyncKey scopes a sync data type to one stock code.
func SyncKey(dataType, code string) string {
	if code == "" {
		return dataType
	}
	return dataType + ":" + code
}

var (
	_ DataStore                = (*SQLiteStore)(nil)
	_ scanner.SeriesProvider   = (*SQLiteStore)(nil)
	_ scanner.UniverseProvider = (*SQLiteStore)(nil)
	_ scanner.JobStore         = (*SQLiteStore)(nil)
	_ scanner.SeriesProvider   = CSVDirectory{}
	_ scanner.UniverseProvider = CSVDirectory{}
)
