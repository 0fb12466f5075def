// Package scoring aggregates window verdicts into candidates and ranks them.
package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/filters"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

// ComponentWeights defines how a passing window's score is assembled. They
// sum to 1.
type ComponentWeights struct {
	Base   float64
	Price  float64
	Volume float64
	Box    float64
}

// DefaultWeights returns the default component weights.
func DefaultWeights() ComponentWeights {
	return ComponentWeights{
		Base:   0.50,
		Price:  0.25,
		Volume: 0.15,
		Box:    0.10,
	}
}

// disabledShare is the margin credited to a filter that did not run.
const disabledShare = 0.5

// WindowScorer maps a window verdict to a score in [0, 1].
type WindowScorer struct {
	weights ComponentWeights
}

// NewWindowScorer creates a scorer with the default weights.
func NewWindowScorer() *WindowScorer {
	return &WindowScorer{weights: DefaultWeights()}
}

// NewWindowScorerWithWeights creates a scorer with custom weights.
func NewWindowScorerWithWeights(weights ComponentWeights) *WindowScorer {
	return &WindowScorer{weights: weights}
}

// Score returns 0 for a failing window. A passing window scores the base
// plus, per filter, the mean margin by which its metrics cleared their
// thresholds: clamp(1 - value/threshold) for price and volume metrics and
// clamp((quality-threshold)/(1-threshold)) for the box. A filter that did
// not run contributes half its share.
func (s *WindowScorer) Score(v filters.WindowVerdict, cfg *config.ScanConfig) float64 {
	if !v.Passed {
		return 0
	}

	price := disabledShare
	if r, ok := v.Result(filters.NamePrice); ok {
		price = meanMargin(r, map[string]float64{
			"box_range":  cfg.BoxThreshold,
			"ma_diff":    cfg.MADiffThreshold,
			"volatility": cfg.VolatilityThreshold,
		})
	}

	volume := disabledShare
	if r, ok := v.Result(filters.NameVolume); ok {
		volume = meanMargin(r, map[string]float64{
			"volume_change":    cfg.VolumeChangeThreshold,
			"volume_stability": cfg.VolumeStabilityThreshold,
		})
	}

	box := disabledShare
	if r, ok := v.Result(filters.NameBox); ok {
		box = 0
		if q, ok := r.Float("box_quality"); ok && cfg.BoxQualityThreshold < 1 {
			box = clamp((q-cfg.BoxQualityThreshold)/(1-cfg.BoxQualityThreshold), 0, 1)
		}
	}

	return clamp(s.weights.Base+
		s.weights.Price*price+
		s.weights.Volume*volume+
		s.weights.Box*box, 0, 1)
}

// Margin is how far below threshold a lower-is-better metric sits, as a
// fraction of the threshold, clamped to [0, 1].
func Margin(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return clamp(1-value/threshold, 0, 1)
}

func meanMargin(r filters.Result, thresholds map[string]float64) float64 {
	var total float64
	for key, th := range thresholds {
		v, ok := r.Float(key)
		if !ok {
			continue
		}
		total += Margin(v, th)
	}
	return total / float64(len(thresholds))
}

// NormalizeWeights returns weights for the given windows summing to 1.
// Missing or negative entries count as zero; when nothing positive remains
// every window gets an equal share.
func NormalizeWeights(windows []int, weights map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(windows))
	if len(windows) == 0 {
		return out
	}
	var total float64
	for _, w := range windows {
		if v := weights[w]; v > 0 {
			total += v
		}
	}
	for _, w := range windows {
		if total == 0 {
			out[w] = 1 / float64(len(windows))
			continue
		}
		if v := weights[w]; v > 0 {
			out[w] = v / total
		} else {
			out[w] = 0
		}
	}
	return out
}

// WeightedScore sums normalized weight times window score over every
// configured window, passing or not.
func (s *WindowScorer) WeightedScore(verdicts map[int]filters.WindowVerdict, cfg *config.ScanConfig) float64 {
	weights := NormalizeWeights(cfg.Windows, cfg.WindowWeights)
	var total float64
	for _, w := range cfg.Windows {
		total += weights[w] * s.Score(verdicts[w], cfg)
	}
	return total
}

// ParseWeights reads the "window:weight" list form, e.g. "30:0.5,60:0.3".
func ParseWeights(s string) (map[int]float64, error) {
	out := make(map[int]float64)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, apperrors.NewConfigError("window_weights", pair, "expected window:weight")
		}
		w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || w <= 0 {
			return nil, apperrors.NewConfigError("window_weights", pair, "window must be a positive integer")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || v < 0 {
			return nil, apperrors.NewConfigError("window_weights", pair, "weight must be a non-negative number")
		}
		out[w] = v
	}
	return out, nil
}

// FormatWeights renders weights in ParseWeights form, ordered by window.
func FormatWeights(weights map[int]float64) string {
	windows := make([]int, 0, len(weights))
	for w := range weights {
		windows = append(windows, w)
	}
	sort.Ints(windows)
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = fmt.Sprintf("%d:%g", w, weights[w])
	}
	return strings.Join(parts, ",")
}

func clamp(value, minVal, maxVal float64) float64 {
	if value != value {
		return minVal
	}
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
