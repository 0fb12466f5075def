package filters

import (
	"fmt"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// ConfirmationFilter requires a volume-backed breakout that held for the
// configured number of following days.
type ConfirmationFilter struct {
	baseline     int     // candles before the breakout used for the volume average
	minBaseline  int
	volumeRatio  float64 // breakout volume over baseline average
	minBody      float64 // (close-open)/open on the breakout day
	holdFraction float64 // each later close must stay above this share of the breakout close
}

// NewConfirmationFilter creates a breakthrough confirmation filter.
func NewConfirmationFilter() *ConfirmationFilter {
	return &ConfirmationFilter{
		baseline:     20,
		minBaseline:  4,
		volumeRatio:  1.5,
		minBody:      0.02,
		holdFraction: 0.98,
	}
}

func (f *ConfirmationFilter) Name() string  { return NameConfirmation }
func (f *ConfirmationFilter) Label() string { return "突破确认" }

func (f *ConfirmationFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseBreakthroughConfirmation
}

// Evaluate treats the candle breakthrough_confirmation_days before the last as
// the breakout day. Without enough candles the breakout is not yet confirmed,
// which is not a failure.
func (f *ConfirmationFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	days := cfg.BreakthroughConfirmationDays
	candles := w.History
	n := len(candles)
	if n < days+1+f.minBaseline {
		return passed("尚未确认: 数据不足以确认突破", map[string]any{
			"confirmed":         false,
			"confirmation_days": days,
			"data_points":       n,
		})
	}

	idx := n - days - 1
	day := candles[idx]
	from := idx - f.baseline
	if from < 0 {
		from = 0
	}
	avgVolume := indicators.Mean(models.Volumes(candles[from:idx]))

	ratio := 0.0
	if avgVolume > 0 {
		ratio = day.Volume / avgVolume
	}
	body := 0.0
	if day.Open > 0 {
		body = (day.Close - day.Open) / day.Open
	}
	breakout := ratio > f.volumeRatio && body > f.minBody

	held := true
	for _, c := range candles[idx+1:] {
		if c.Close < day.Close*f.holdFraction {
			held = false
			break
		}
	}

	details := map[string]any{
		"breakthrough":       breakout,
		"confirmed":          breakout && held,
		"confirmation_days":  days,
		"volume_ratio":       round4(ratio),
		"price_change":       round4(body),
		"breakthrough_close": round4(day.Close),
	}

	switch {
	case !breakout:
		return failed("无突破信号", details)
	case !held:
		details[DetailBreakthroughDate] = formatDate(day)
		return failed(fmt.Sprintf("突破未确认: %s后跌回", formatDate(day)), details)
	}
	details[DetailBreakthroughDate] = formatDate(day)
	return passed(fmt.Sprintf("突破已确认: 突破日期%s, 确认天数%d", formatDate(day), days), details)
}
