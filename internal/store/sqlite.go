package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is its own database
	if dbPath == MemoryDSN {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Stock universe with industry classification
	CREATE TABLE IF NOT EXISTS stocks (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily candles; date is YYYY-MM-DD
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(code, date)
	);

	-- Annual report metrics
	CREATE TABLE IF NOT EXISTS fundamentals (
		code TEXT NOT NULL,
		year INTEGER NOT NULL,
		revenue_growth REAL NOT NULL,
		profit_growth REAL NOT NULL,
		roe REAL NOT NULL,
		debt_ratio REAL NOT NULL,
		PRIMARY KEY (code, year)
	);

	-- Latest valuation ratios
	CREATE TABLE IF NOT EXISTS valuations (
		code TEXT PRIMARY KEY,
		pe_ttm REAL NOT NULL,
		pb_mrq REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Scan job snapshots; times are unix microseconds
	CREATE TABLE IF NOT EXISTS scan_jobs (
		task_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL,
		message TEXT,
		snapshot TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		completed_at INTEGER
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_candles_code_date ON candles(code, date);
	CREATE INDEX IF NOT EXISTS idx_stocks_industry ON stocks(industry);
	CREATE INDEX IF NOT EXISTS idx_scan_jobs_status ON scan_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_scan_jobs_completed ON scan_jobs(completed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Stock Methods
// ============================================================================

// SaveStocks upserts stock metadata.
func (s *SQLiteStore) SaveStocks(ctx context.Context, stocks []models.Stock) error {
	if len(stocks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks (code, name, industry, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE stocks.name END,
			industry = CASE WHEN excluded.industry != '' THEN excluded.industry ELSE stocks.industry END,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, st := range stocks {
		if st.Code == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, st.Code, st.Name, st.Industry, now); err != nil {
			return fmt.Errorf("failed to save stock %s: %w", st.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStock returns one stock's metadata.
func (s *SQLiteStore) GetStock(ctx context.Context, code string) (models.Stock, error) {
	st := models.Stock{Code: code}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, industry FROM stocks WHERE code = ?
	`, code).Scan(&st.Name, &st.Industry)
	if errors.Is(err, sql.ErrNoRows) {
		return st, apperrors.NewDataError(code, "stock", "not found", apperrors.ErrSeriesUnavailable)
	}
	if err != nil {
		return st, fmt.Errorf("failed to get stock: %w", err)
	}
	return st, nil
}

// Universe lists every stored stock ordered by code.
func (s *SQLiteStore) Universe(ctx context.Context) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, industry FROM stocks ORDER BY code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var st models.Stock
		if err := rows.Scan(&st.Code, &st.Name, &st.Industry); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}
	return stocks, nil
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database. Existing dates are replaced.
func (s *SQLiteStore) SaveCandles(ctx context.Context, code string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (code, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, code, c.Date.Format(models.DateLayout), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles between from and to inclusive, oldest first.
// Zero bounds are open.
func (s *SQLiteStore) GetCandles(ctx context.Context, code string, from, to time.Time) ([]models.Candle, error) {
	lo, hi := "0000-00-00", "9999-99-99"
	if !from.IsZero() {
		lo = from.Format(models.DateLayout)
	}
	if !to.IsZero() {
		hi = to.Format(models.DateLayout)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM candles
		WHERE code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, code, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var date string
		if err := rows.Scan(&date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		if c.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("bad candle date %q: %w", date, err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the date of the latest stored candle, or the
// zero time when none exist.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, code string) (time.Time, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(date) FROM candles WHERE code = ?
	`, code).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get freshness: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return time.Parse(models.DateLayout, latest.String)
}

// ============================================================================
// Fundamentals Methods
// ============================================================================

// SaveFundamentals upserts annual metrics.
func (s *SQLiteStore) SaveFundamentals(ctx context.Context, code string, years []models.FundamentalYear) error {
	if len(years) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, y := range years {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO fundamentals (code, year, revenue_growth, profit_growth, roe, debt_ratio)
			VALUES (?, ?, ?, ?, ?, ?)
		`, code, y.Year, y.RevenueGrowth, y.ProfitGrowth, y.ROE, y.DebtRatio)
		if err != nil {
			return fmt.Errorf("failed to save fundamentals %s/%d: %w", code, y.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetFundamentals returns every stored year, newest first.
func (s *SQLiteStore) GetFundamentals(ctx context.Context, code string) ([]models.FundamentalYear, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, revenue_growth, profit_growth, roe, debt_ratio
		FROM fundamentals WHERE code = ?
		ORDER BY year DESC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	var years []models.FundamentalYear
	for rows.Next() {
		var y models.FundamentalYear
		if err := rows.Scan(&y.Year, &y.RevenueGrowth, &y.ProfitGrowth, &y.ROE, &y.DebtRatio); err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fundamentals: %w", err)
	}
	return years, nil
}

// SaveValuation replaces the stock's valuation ratios.
func (s *SQLiteStore) SaveValuation(ctx context.Context, code string, v models.Valuation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO valuations (code, pe_ttm, pb_mrq, updated_at)
		VALUES (?, ?, ?, ?)
	`, code, v.PE, v.PB, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save valuation: %w", err)
	}
	return nil
}

// GetValuation returns the valuation ratios, or nil when none are stored.
func (s *SQLiteStore) GetValuation(ctx context.Context, code string) (*models.Valuation, error) {
	var v models.Valuation
	err := s.db.QueryRowContext(ctx, `
		SELECT pe_ttm, pb_mrq FROM valuations WHERE code = ?
	`, code).Scan(&v.PE, &v.PB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation: %w", err)
	}
	return &v, nil
}

// ============================================================================
// Series Methods
// ============================================================================

// SaveSeries stores a series' metadata, candles and fundamentals and records
// the import time.
func (s *SQLiteStore) SaveSeries(ctx context.Context, series *models.Series) error {
	if series == nil || series.Code == "" {
		return apperrors.NewDataError("", "series", "missing stock code", apperrors.ErrInvalidSeries)
	}
	if err := s.SaveStocks(ctx, []models.Stock{series.Stock}); err != nil {
		return err
	}
	if err := s.SaveCandles(ctx, series.Code, series.Candles); err != nil {
		return err
	}
	if err := s.SaveFundamentals(ctx, series.Code, series.Fundamentals); err != nil {
		return err
	}
	if series.Valuation != nil {
		if err := s.SaveValuation(ctx, series.Code, *series.Valuation); err != nil {
			return err
		}
	}
	return s.SetLastSync(SyncKey(SyncTypeCandles, series.Code), time.Now())
}

// FetchSeries assembles a series from the stored tables. A code with no
// candles in range is reported as unavailable.
func (s *SQLiteStore) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	candles, err := s.GetCandles(ctx, code, start, end)
	if err != nil {
		return nil, apperrors.NewDataError(code, "candles", "query failed", fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	if len(candles) == 0 {
		return nil, apperrors.NewDataError(code, "candles", "no candles in range", apperrors.ErrSeriesUnavailable)
	}

	series := &models.Series{Stock: models.Stock{Code: code}, Candles: candles}
	if st, err := s.GetStock(ctx, code); err == nil {
		series.Stock = st
	}
	if series.Fundamentals, err = s.GetFundamentals(ctx, code); err != nil {
		return nil, err
	}
	if series.Valuation, err = s.GetValuation(ctx, code); err != nil {
		return nil, err
	}
	return series, nil
}

// ============================================================================
// Scan Job Methods
// ============================================================================

// SaveJob upserts a job snapshot.
func (s *SQLiteStore) SaveJob(ctx context.Context, snap scanner.JobSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode job snapshot: %w", err)
	}

	var completed sql.NullInt64
	if !snap.CompletedAt.IsZero() {
		completed = sql.NullInt64{Int64: snap.CompletedAt.UnixMicro(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_jobs (task_id, status, progress, message, snapshot, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.TaskID, string(snap.Status), snap.Progress, snap.Message, string(data), snap.CreatedAt.UnixMicro(), completed)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// LoadJob returns one persisted snapshot.
func (s *SQLiteStore) LoadJob(ctx context.Context, id string) (scanner.JobSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM scan_jobs WHERE task_id = ?
	`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return scanner.JobSnapshot{}, apperrors.NewJobError(id, "load", apperrors.ErrJobNotFound)
	}
	if err != nil {
		return scanner.JobSnapshot{}, fmt.Errorf("failed to load job: %w", err)
	}
	return decodeSnapshot(data)
}

// ListJobs returns every persisted snapshot, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]scanner.JobSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot FROM scan_jobs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var out []scanner.JobSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

// DeleteJobsBefore removes finished jobs completed before the cutoff.
func (s *SQLiteStore) DeleteJobsBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scan_jobs
		WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?
	`, string(scanner.StatusCompleted), string(scanner.StatusFailed), before.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	return int(n), nil
}

func decodeSnapshot(data string) (scanner.JobSnapshot, error) {
	var snap scanner.JobSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return snap, fmt.Errorf("failed to decode job snapshot: %w", err)
	}
	return snap, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
