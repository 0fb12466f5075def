package filters

import (
	"fmt"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// PositionFilter checks that the current close sits well below the highest
// high of the lookback and that the high is recent enough.
type PositionFilter struct {
	minHistory int
}

// NewPositionFilter creates a historical position filter.
func NewPositionFilter() *PositionFilter {
	return &PositionFilter{minHistory: 30}
}

func (f *PositionFilter) Name() string  { return NamePosition }
func (f *PositionFilter) Label() string { return "历史低位" }

func (f *PositionFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseLowPosition
}

// Evaluate measures the decline from the lookback high. days_since_high counts
// candles from the high through the latest candle, inclusive.
func (f *PositionFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	if len(w.History) < f.minHistory {
		return insufficient(len(w.History), f.minHistory)
	}

	lookback := w.Lookback(cfg.HighPointLookbackDays)
	idx := indicators.HighestIndex(models.Highs(lookback))
	high := lookback[idx]
	current := lookback[len(lookback)-1]

	decline := 0.0
	if high.High > 0 {
		decline = (high.High - current.Close) / high.High
	}
	daysSinceHigh := len(lookback) - idx

	details := map[string]any{
		"current_price":     round4(current.Close),
		DetailHighPrice:     round4(high.High),
		DetailHighDate:      formatDate(high),
		"decline":           round4(decline),
		"decline_threshold": cfg.DeclineThreshold,
		"days_since_high":   daysSinceHigh,
		"decline_period":    cfg.DeclinePeriodDays,
	}

	if decline < cfg.DeclineThreshold {
		return failed(fmt.Sprintf("非低位: 从高点下跌%s, 未达%s", pct(decline), pct(cfg.DeclineThreshold)), details)
	}
	if daysSinceHigh > cfg.DeclinePeriodDays {
		return failed(fmt.Sprintf("非低位: 高点距今%d天, 超过%d天", daysSinceHigh, cfg.DeclinePeriodDays), details)
	}
	return passed(fmt.Sprintf("低位: 从高点下跌%s, 高点日期%s", pct(decline), formatDate(high)), details)
}
