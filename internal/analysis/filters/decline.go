package filters

import (
	"fmt"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// RapidDeclineFilter looks for the sharpest short-term drop after the lookback
// high.
type RapidDeclineFilter struct {
	minHistory   int
	minAfterHigh int
}

// NewRapidDeclineFilter creates a rapid decline filter.
func NewRapidDeclineFilter() *RapidDeclineFilter {
	return &RapidDeclineFilter{minHistory: 60, minAfterHigh: 20}
}

func (f *RapidDeclineFilter) Name() string  { return NameRapidDecline }
func (f *RapidDeclineFilter) Label() string { return "快速下跌" }

func (f *RapidDeclineFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseRapidDeclineDetection
}

// Evaluate scans every run of rapid_decline_days candles after the high. The
// decline of a run is measured from its highest high at or before its lowest
// low, so a rebound never counts as a drop.
func (f *RapidDeclineFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	if len(w.History) < f.minHistory {
		return insufficient(len(w.History), f.minHistory)
	}

	lookback := w.Lookback(cfg.HighPointLookbackDays)
	highIdx := indicators.HighestIndex(models.Highs(lookback))
	after := lookback[highIdx:]
	if len(after) < f.minAfterHigh {
		res := insufficient(len(after), f.minAfterHigh)
		res.Details[DetailHighDate] = formatDate(lookback[highIdx])
		return res
	}

	span := cfg.RapidDeclineDays
	if span > len(after) {
		span = len(after)
	}

	best, bestStart, bestEnd := 0.0, -1, -1
	for i := 0; i+span <= len(after); i++ {
		run := after[i : i+span]
		lowIdx := indicators.LowestIndex(models.Lows(run))
		peak := indicators.Highest(models.Highs(run[:lowIdx+1]))
		if peak <= 0 {
			continue
		}
		if d := (peak - run[lowIdx].Low) / peak; d > best {
			best, bestStart, bestEnd = d, i, i+span-1
		}
	}

	details := map[string]any{
		DetailHighDate:            formatDate(lookback[highIdx]),
		"max_rapid_decline":       round4(best),
		"rapid_decline_days":      span,
		"rapid_decline_threshold": cfg.RapidDeclineThreshold,
	}
	if bestStart >= 0 {
		details[DetailRapidDeclineStart] = formatDate(after[bestStart])
		details[DetailRapidDeclineEnd] = formatDate(after[bestEnd])
	}

	if best < cfg.RapidDeclineThreshold {
		return failed(fmt.Sprintf("无快速下跌: 最大%d日跌幅%s", span, pct(best)), details)
	}
	return passed(fmt.Sprintf("快速下跌: %s (%s 至 %s)", pct(best),
		details[DetailRapidDeclineStart], details[DetailRapidDeclineEnd]), details)
}
