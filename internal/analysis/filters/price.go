package filters

import (
	"fmt"
	"math"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// PriceFilter checks that the window trades in a narrow, quiet band with
// converged moving averages.
type PriceFilter struct {
	maPeriods []int
}

// NewPriceFilter creates a price consolidation filter over MA 5/10/20/30.
func NewPriceFilter() *PriceFilter {
	return &PriceFilter{maPeriods: []int{5, 10, 20, 30}}
}

func (f *PriceFilter) Name() string  { return NamePrice }
func (f *PriceFilter) Label() string { return "价格盘整" }

func (f *PriceFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UsePriceAnalysis
}

// Evaluate passes when box range, MA spread and return volatility are all
// below their thresholds.
func (f *PriceFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	if !w.Complete() || len(w.Candles) < 3 {
		return insufficient(len(w.Candles), max(w.Size, 3))
	}

	high := indicators.Highest(models.Highs(w.Candles))
	low := indicators.Lowest(models.Lows(w.Candles))
	boxRange := math.Inf(1)
	if low > 0 {
		boxRange = (high - low) / low
	}

	closes := models.Closes(w.Candles)
	var mas []float64
	var periods []int
	for _, p := range f.maPeriods {
		if p > len(closes) {
			continue
		}
		v, err := indicators.LastSMA(closes, p)
		if err != nil {
			continue
		}
		mas = append(mas, v)
		periods = append(periods, p)
	}
	maDiff := math.Inf(1)
	if len(mas) >= 2 {
		maDiff = indicators.MeanPairwiseSpread(mas)
	}

	volatility := indicators.SampleStdDev(indicators.Returns(closes))

	details := map[string]any{
		"box_range":            round4(boxRange),
		"box_threshold":        cfg.BoxThreshold,
		"ma_diff":              round4(maDiff),
		"ma_diff_threshold":    cfg.MADiffThreshold,
		"volatility":           round4(volatility),
		"volatility_threshold": cfg.VolatilityThreshold,
		"ma_periods":           periods,
	}

	switch {
	case !(boxRange < cfg.BoxThreshold):
		return failed(fmt.Sprintf("价格区间过大: %s", pct(boxRange)), details)
	case !(maDiff < cfg.MADiffThreshold):
		return failed(fmt.Sprintf("均线发散: %s", pct(maDiff)), details)
	case !(volatility < cfg.VolatilityThreshold):
		return failed(fmt.Sprintf("波动性过高: %s", pct(volatility)), details)
	}
	return passed(fmt.Sprintf("价格盘整: 振幅%s, 均线差%s, 波动率%s", pct(boxRange), pct(maDiff), pct(volatility)), details)
}
