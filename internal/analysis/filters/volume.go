package filters

import (
	"fmt"
	"math"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// VolumeFilter checks that volume has contracted against the preceding
// period and stayed steady through the window.
type VolumeFilter struct {
	extraHistory   int // candles needed beyond the window
	recentSpan     int // breakthrough sub-period
	baselineSpan   int // candles before the sub-period used as baseline
	minTrendPoints int
}

// NewVolumeFilter creates a volume behaviour filter.
func NewVolumeFilter() *VolumeFilter {
	return &VolumeFilter{
		extraHistory:   10,
		recentSpan:     5,
		baselineSpan:   10,
		minTrendPoints: 5,
	}
}

func (f *VolumeFilter) Name() string  { return NameVolume }
func (f *VolumeFilter) Label() string { return "成交量" }

func (f *VolumeFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseVolumeAnalysis
}

// Evaluate compares the window's mean volume with the preceding window and
// checks the coefficient of variation. A volume surge in the final days is
// reported in details without affecting the outcome.
func (f *VolumeFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	need := w.Size + f.extraHistory
	if !w.Complete() || len(w.History) < need {
		return insufficient(len(w.History), need)
	}

	volumes := models.Volumes(w.History)
	n := len(volumes)
	recent := volumes[n-w.Size:]
	start := n - 2*w.Size
	if start < 0 {
		start = 0
	}
	previous := volumes[start : n-w.Size]

	change := math.Inf(1)
	if prevMean := indicators.Mean(previous); prevMean > 0 {
		change = indicators.Mean(recent) / prevMean
	}

	stability := indicators.CoefficientOfVariation(recent)
	if math.IsNaN(stability) {
		stability = math.Inf(1)
	}

	trend := 0.0
	if len(recent) >= f.minTrendPoints {
		if m := indicators.Mean(recent); m > 0 {
			trend = indicators.Slope(recent) / m
		}
	}

	surge, ratio := f.breakthrough(volumes, cfg.VolumeIncreaseThreshold)

	details := map[string]any{
		"volume_change":              round4(change),
		"volume_change_threshold":    cfg.VolumeChangeThreshold,
		"volume_stability":           round4(stability),
		"volume_stability_threshold": cfg.VolumeStabilityThreshold,
		"volume_trend":               round4(trend),
		"has_breakthrough":           surge,
		"breakthrough_ratio":         round4(ratio),
	}

	if change > cfg.VolumeChangeThreshold {
		return failed(fmt.Sprintf("成交量变化过大: 比值%.2f", change), details)
	}
	if stability > cfg.VolumeStabilityThreshold {
		return failed(fmt.Sprintf("成交量波动过大: 变异系数%.2f", stability), details)
	}
	reason := fmt.Sprintf("成交量萎缩: 比值%.2f, 变异系数%.2f", change, stability)
	if surge {
		reason += fmt.Sprintf(", 近期放量%.2f倍", ratio)
	}
	return passed(reason, details)
}

func (f *VolumeFilter) breakthrough(volumes []float64, threshold float64) (bool, float64) {
	n := len(volumes)
	if n < f.recentSpan+f.baselineSpan {
		return false, 0
	}
	recent := indicators.Mean(volumes[n-f.recentSpan:])
	base := indicators.Mean(volumes[n-f.recentSpan-f.baselineSpan : n-f.recentSpan])
	if base <= 0 {
		return false, 0
	}
	ratio := recent / base
	return ratio >= threshold, ratio
}
