package scanner

import (
	"context"
	"time"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// SeriesProvider supplies one stock's daily history, with fundamentals
// when available, for the given date range.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error)
}

// UniverseProvider lists the stocks a scan may cover.
type UniverseProvider interface {
	Universe(ctx context.Context) ([]models.Stock, error)
}

// JobStore persists job snapshots so status survives a restart.
type JobStore interface {
	SaveJob(ctx context.Context, snap JobSnapshot) error
	LoadJob(ctx context.Context, id string) (JobSnapshot, error)
	ListJobs(ctx context.Context) ([]JobSnapshot, error)
	DeleteJobsBefore(ctx context.Context, before time.Time) (int, error)
}

// Universe selects the stocks and date range of one scan. Empty Codes means
// every stock the UniverseProvider lists. Zero dates are derived from the
// scan config by Range.
type Universe struct {
	Codes []string
	Start time.Time
	End   time.Time
}

// tradingToCalendar converts trading days to calendar days with room for
// weekends and holidays.
const tradingToCalendar = 1.5

// Range returns the fetch range. The default start reaches back far enough
// for the high-point lookback and twice the largest window.
func (u Universe) Range(cfg *config.ScanConfig, now time.Time) (time.Time, time.Time) {
	end := u.End
	if end.IsZero() {
		end = now
	}
	start := u.Start
	if start.IsZero() {
		need := cfg.HighPointLookbackDays
		for _, w := range cfg.Windows {
			need = max(need, 2*w+10)
		}
		days := int(float64(need)*tradingToCalendar) + 30
		start = end.AddDate(0, 0, -days)
	}
	return start, end
}
