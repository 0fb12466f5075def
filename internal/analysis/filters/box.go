package filters

import (
	"fmt"
	"math"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/patterns"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// BoxFilter scores how well price respects a support/resistance box.
type BoxFilter struct {
	levels       *patterns.LevelAnalyzer
	maxReported  int
	containSlack float64
}

// NewBoxFilter creates a box detection filter.
func NewBoxFilter() *BoxFilter {
	return &BoxFilter{
		levels:       patterns.NewLevelAnalyzer(),
		maxReported:  3,
		containSlack: 0.02,
	}
}

func (f *BoxFilter) Name() string  { return NameBox }
func (f *BoxFilter) Label() string { return "箱体形态" }

func (f *BoxFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseBoxDetection
}

// BoxQuality is the weighted box score in [0, 1].
type BoxQuality struct {
	Quality     float64
	Height      float64
	Containment float64
	Flatness    float64
	HeightScore float64
}

// ScoreBox computes box quality from the main levels and their touch counts.
// Weights: support 0.25, resistance 0.25, containment 0.2, flatness 0.15,
// height 0.15. Heights between 3% and 20% score fully.
func ScoreBox(closes []float64, support, resistance float64, supStrength, resStrength int, slack float64) BoxQuality {
	var q BoxQuality
	if support <= 0 || len(closes) == 0 {
		return q
	}
	q.Height = (resistance - support) / support

	inside := 0
	for _, c := range closes {
		if c >= support*(1-slack) && c <= resistance*(1+slack) {
			inside++
		}
	}
	q.Containment = float64(inside) / float64(len(closes))

	if avg := indicators.Mean(closes); avg > 0 {
		q.Flatness = math.Max(0, 1-math.Abs(indicators.Slope(closes))/avg*100)
	}

	switch {
	case q.Height >= 0.03 && q.Height <= 0.2:
		q.HeightScore = 1
	case q.Height < 0.03:
		q.HeightScore = math.Max(0, q.Height/0.03)
	default:
		q.HeightScore = math.Max(0, 1-(q.Height-0.2)/0.3)
	}

	q.Quality = 0.25*math.Min(float64(supStrength)/2, 1) +
		0.25*math.Min(float64(resStrength)/2, 1) +
		0.2*q.Containment +
		0.15*q.Flatness +
		0.15*q.HeightScore
	return q
}

// Evaluate passes when both a support and a resistance level exist, the box
// quality reaches box_quality_threshold and return volatility stays within
// volatility_threshold.
func (f *BoxFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	need := 2*5 + 1
	if !w.Complete() || len(w.Candles) < need {
		return insufficient(len(w.Candles), max(w.Size, need))
	}

	lv := f.levels.Analyze(w.Candles)
	support := f.top(lv.Support)
	resistance := f.top(lv.Resistance)
	closes := models.Closes(w.Candles)
	volatility := indicators.SampleStdDev(indicators.Returns(closes))

	details := map[string]any{
		DetailSupportLevels:     support,
		DetailResistanceLevels:  resistance,
		"support_strength":      lv.SupportStrength,
		"resistance_strength":   lv.ResistanceStrength,
		"box_quality":           0.0,
		"box_quality_threshold": cfg.BoxQualityThreshold,
		"volatility":            round4(volatility),
	}

	mainSup, okSup := lv.MainSupport()
	mainRes, okRes := lv.MainResistance()
	if !okSup || !okRes {
		return failed("不是箱体形态: 缺少支撑位或阻力位", details)
	}

	q := ScoreBox(closes, mainSup, mainRes, lv.SupportStrength, lv.ResistanceStrength, f.containSlack)
	details["main_support"] = round4(mainSup)
	details["main_resistance"] = round4(mainRes)
	details["box_height"] = round4(q.Height)
	details["containment"] = round4(q.Containment)
	details["box_quality"] = round4(q.Quality)

	if q.Quality < cfg.BoxQualityThreshold {
		return failed(fmt.Sprintf("箱体质量不足: %.2f", q.Quality), details)
	}
	if volatility > cfg.VolatilityThreshold {
		return failed(fmt.Sprintf("波动性过高: %s", pct(volatility)), details)
	}
	return passed(fmt.Sprintf("箱体形态: 支撑%.2f, 阻力%.2f, 质量%.2f", mainSup, mainRes, q.Quality), details)
}

func (f *BoxFilter) top(levels []analysis.Level) []float64 {
	if len(levels) > f.maxReported {
		levels = levels[:f.maxReported]
	}
	out := analysis.Prices(levels)
	for i := range out {
		out[i] = round4(out[i])
	}
	return out
}
