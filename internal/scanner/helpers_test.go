package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

func flatSeries(code, industry string, n int) *models.Series {
	cycle := []float64{9.9, 9.95, 10.0, 10.05, 10.1, 10.05, 10.0, 9.95}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &models.Series{Stock: models.Stock{Code: code, Industry: industry}}
	for i := 0; i < n; i++ {
		c := cycle[i%len(cycle)]
		s.Candles = append(s.Candles, models.Candle{
			Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1e6,
		})
	}
	return s
}

func priceOnlyConfig() config.ScanConfig {
	cfg := config.DefaultScanConfig()
	cfg.Windows = []int{30, 60}
	cfg.UseVolumeAnalysis = false
	cfg.UseLowPosition = false
	cfg.UseRapidDeclineDetection = false
	cfg.UseBoxDetection = false
	cfg.RetryDelay = 0
	return cfg
}

// memSeries serves series from a map. failures[code] counts how many calls
// fail before the series is returned.
type memSeries struct {
	mu       sync.Mutex
	series   map[string]*models.Series
	failures map[string]int
	calls    map[string]int
}

func newMemSeries(series ...*models.Series) *memSeries {
	m := &memSeries{
		series:   make(map[string]*models.Series),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	for _, s := range series {
		m.series[s.Code] = s
	}
	return m
}

func (m *memSeries) FetchSeries(_ context.Context, code string, _, _ time.Time) (*models.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[code]++
	if m.failures[code] > 0 {
		m.failures[code]--
		return nil, errors.New("connection reset")
	}
	s, ok := m.series[code]
	if !ok {
		return nil, apperrors.NewDataError(code, "series", "not found", apperrors.ErrSeriesUnavailable)
	}
	return s, nil
}

func (m *memSeries) callCount(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[code]
}

type staticUniverse struct {
	stocks []models.Stock
	err    error
}

func (u staticUniverse) Universe(context.Context) ([]models.Stock, error) {
	return u.stocks, u.err
}

// gatedSeries blocks every fetch until gate is closed.
type gatedSeries struct {
	inner   SeriesProvider
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (g *gatedSeries) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.FetchSeries(ctx, code, start, end)
}

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]JobSnapshot
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]JobSnapshot)}
}

func (s *memJobStore) SaveJob(_ context.Context, snap JobSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[snap.TaskID] = snap
	return nil
}

func (s *memJobStore) LoadJob(_ context.Context, id string) (JobSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.jobs[id]
	if !ok {
		return JobSnapshot{}, apperrors.ErrJobNotFound
	}
	return snap, nil
}

func (s *memJobStore) ListJobs(context.Context) ([]JobSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobSnapshot, 0, len(s.jobs))
	for _, snap := range s.jobs {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

func (s *memJobStore) DeleteJobsBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, snap := range s.jobs {
		if snap.Terminal() && snap.CompletedAt.Before(before) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func testOrchestrator(series SeriesProvider, universe UniverseProvider) *Orchestrator {
	return NewOrchestrator(series, universe, zerolog.Nop())
}
