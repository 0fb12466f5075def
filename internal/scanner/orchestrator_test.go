package scanner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

func threeStockUniverse() (*memSeries, staticUniverse) {
	bad := flatSeries("600002", "", 80)
	bad.Candles[40].Date = bad.Candles[39].Date

	series := newMemSeries(
		flatSeries("600000", "", 80),
		flatSeries("600001", "", 80),
		bad,
	)
	universe := staticUniverse{stocks: []models.Stock{
		{Code: "600000", Name: "浦发银行", Industry: "银行"},
		{Code: "600001", Name: "邯郸钢铁", Industry: "钢铁"},
		{Code: "600002", Name: "齐鲁石化", Industry: "石化"},
	}}
	return series, universe
}

func TestRunSkipsBadSeries(t *testing.T) {
	series, universe := threeStockUniverse()
	orch := testOrchestrator(series, universe)

	job := newJob(epoch)
	orch.Run(context.Background(), job, priceOnlyConfig(), Universe{})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", snap.Status, snap.Error)
	}
	if snap.Progress != 100 {
		t.Errorf("progress = %d", snap.Progress)
	}
	if len(snap.Result) != 2 {
		t.Fatalf("result has %d candidates, want 2", len(snap.Result))
	}
	if snap.Message != "Scan completed. Found 2 platform stocks." {
		t.Errorf("message = %q", snap.Message)
	}
	for _, c := range snap.Result {
		if c.Code == "600002" {
			t.Error("invalid series was classified")
		}
		if c.Name == "" || c.Industry == models.UnknownIndustry {
			t.Errorf("candidate %s lost universe metadata: %+v", c.Code, c)
		}
	}
}

func TestRunLeavesProviderSeriesUntouched(t *testing.T) {
	series, universe := threeStockUniverse()
	shared := series.series["600000"]
	orch := testOrchestrator(series, universe)

	job := newJob(epoch)
	orch.Run(context.Background(), job, priceOnlyConfig(), Universe{})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s (%s)", snap.Status, snap.Error)
	}
	if shared.Name != "" || shared.Industry != "" {
		t.Errorf("provider series modified: name=%q industry=%q", shared.Name, shared.Industry)
	}
	for _, c := range snap.Result {
		if c.Code == "600000" && (c.Name != "浦发银行" || c.Industry != "银行") {
			t.Errorf("candidate metadata = %q/%q", c.Name, c.Industry)
		}
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	series, universe := threeStockUniverse()
	series.failures["600001"] = 1
	cfg := priceOnlyConfig()
	cfg.RetryAttempts = 2

	got, err := testOrchestrator(series, universe).ClassifySync(context.Background(), cfg, Universe{Codes: []string{"600000", "600001"}})
	if err != nil {
		t.Fatalf("ClassifySync: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2", len(got))
	}
	if n := series.callCount("600001"); n != 2 {
		t.Errorf("600001 fetched %d times, want 2", n)
	}
}

func TestRunDoesNotRetryMissingSeries(t *testing.T) {
	series, _ := threeStockUniverse()
	cfg := priceOnlyConfig()
	cfg.RetryAttempts = 3

	got, err := testOrchestrator(series, nil).ClassifySync(context.Background(), cfg, Universe{Codes: []string{"600000", "688999", "600000"}})
	if err != nil {
		t.Fatalf("ClassifySync: %v", err)
	}
	if len(got) != 1 || got[0].Code != "600000" {
		t.Errorf("candidates = %v", got)
	}
	if n := series.callCount("688999"); n != 1 {
		t.Errorf("missing series fetched %d times", n)
	}
	if n := series.callCount("600000"); n != 1 {
		t.Errorf("duplicate code fetched %d times", n)
	}
}

func TestRunUniverseFailureIsFatal(t *testing.T) {
	series, _ := threeStockUniverse()
	orch := testOrchestrator(series, staticUniverse{err: errors.New("baostock login failed")})

	job := newJob(epoch)
	orch.Run(context.Background(), job, priceOnlyConfig(), Universe{})

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("status = %s", snap.Status)
	}
	if !strings.Contains(snap.Error, "baostock login failed") || snap.Result != nil {
		t.Errorf("snapshot = %+v", snap)
	}

	_, err := orch.ClassifySync(context.Background(), priceOnlyConfig(), Universe{})
	if !errors.Is(err, apperrors.ErrUniverseUnavailable) {
		t.Errorf("ClassifySync error = %v", err)
	}
}

func TestRunWithoutUniverseNeedsCodes(t *testing.T) {
	series, _ := threeStockUniverse()
	_, err := testOrchestrator(series, nil).ClassifySync(context.Background(), priceOnlyConfig(), Universe{})
	if !errors.Is(err, apperrors.ErrUniverseUnavailable) {
		t.Errorf("error = %v", err)
	}
}

func TestRunEmptyUniverseCompletes(t *testing.T) {
	series, _ := threeStockUniverse()
	got, err := testOrchestrator(series, staticUniverse{}).ClassifySync(context.Background(), priceOnlyConfig(), Universe{})
	if err != nil || len(got) != 0 {
		t.Errorf("empty universe: %v, %v", got, err)
	}
}

func TestClassifySyncRejectsInvalidConfig(t *testing.T) {
	cfg := priceOnlyConfig()
	cfg.Windows = []int{0}
	_, err := testOrchestrator(newMemSeries(), nil).ClassifySync(context.Background(), cfg, Universe{Codes: []string{"600000"}})
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("error = %v", err)
	}
}

func TestRunContextCancelled(t *testing.T) {
	series, universe := threeStockUniverse()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := newJob(epoch)
	testOrchestrator(series, universe).Run(ctx, job, priceOnlyConfig(), Universe{Codes: []string{"600000"}})

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Message != MessageCancelled || snap.Error != "cancelled" {
		t.Errorf("snapshot = %+v", snap)
	}
}

// panickingSeries panics for one code and defers to inner otherwise.
type panickingSeries struct {
	inner SeriesProvider
	code  string
}

func (p panickingSeries) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	if code == p.code {
		panic("decoder blew up")
	}
	return p.inner.FetchSeries(ctx, code, start, end)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	series, universe := threeStockUniverse()
	orch := testOrchestrator(panickingSeries{inner: series, code: "600001"}, universe)

	got, err := orch.ClassifySync(context.Background(), priceOnlyConfig(), Universe{Codes: []string{"600000", "600001"}})
	if err != nil {
		t.Fatalf("ClassifySync: %v", err)
	}
	if len(got) != 1 || got[0].Code != "600000" {
		t.Errorf("candidates = %v", got)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 10, 30},
		{5, 10, 60},
		{10, 10, 90},
		{0, 0, 90},
	}
	for _, tt := range tests {
		if got := scale(tt.done, tt.total, 30, 90); got != tt.want {
			t.Errorf("scale(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
