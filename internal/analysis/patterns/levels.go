// Package patterns detects price structures used by the box filter.
package patterns

import (
	"math"
	"sort"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// LevelAnalyzer identifies horizontal support and resistance levels from
// local extrema of highs and lows.
type LevelAnalyzer struct {
	pivotOrder       int     // bars on each side that must be strictly beyond the pivot
	clusterTolerance float64 // relative distance from a cluster's first point
	touchTolerance   float64 // relative distance counted as touching a level
}

// NewLevelAnalyzer creates an analyzer with order-5 pivots, 2% clustering and
// 1% touch tolerance.
func NewLevelAnalyzer() *LevelAnalyzer {
	return &LevelAnalyzer{
		pivotOrder:       5,
		clusterTolerance: 0.02,
		touchTolerance:   0.01,
	}
}

func (l *LevelAnalyzer) Name() string {
	return "LevelAnalyzer"
}

// LevelAnalysisResult holds levels ordered strongest first.
type LevelAnalysisResult struct {
	Support            []analysis.Level
	Resistance         []analysis.Level
	SupportStrength    int
	ResistanceStrength int
}

// MainSupport returns the strongest support level.
func (r *LevelAnalysisResult) MainSupport() (float64, bool) {
	if len(r.Support) == 0 {
		return 0, false
	}
	return r.Support[0].Price, true
}

// MainResistance returns the strongest resistance level.
func (r *LevelAnalysisResult) MainResistance() (float64, bool) {
	if len(r.Resistance) == 0 {
		return 0, false
	}
	return r.Resistance[0].Price, true
}

// Analyze clusters pivot highs into resistance and pivot lows into support.
// Strength is the number of candles whose high (resistance) or low (support)
// falls within the touch tolerance of the strongest level.
func (l *LevelAnalyzer) Analyze(candles []models.Candle) *LevelAnalysisResult {
	highs := models.Highs(candles)
	lows := models.Lows(candles)

	res := &LevelAnalysisResult{
		Resistance: l.clusterPivots(highs, PivotHighs(highs, l.pivotOrder), analysis.LevelResistance),
		Support:    l.clusterPivots(lows, PivotLows(lows, l.pivotOrder), analysis.LevelSupport),
	}
	if p, ok := res.MainSupport(); ok {
		res.SupportStrength = TouchCount(lows, p, l.touchTolerance)
	}
	if p, ok := res.MainResistance(); ok {
		res.ResistanceStrength = TouchCount(highs, p, l.touchTolerance)
	}
	return res
}

// PivotHighs returns indices where the value is strictly greater than every
// neighbour within order bars. Neighbours beyond the ends clip to the edge.
func PivotHighs(values []float64, order int) []int {
	return pivots(values, order, func(a, b float64) bool { return a > b })
}

// PivotLows returns indices where the value is strictly less than every
// neighbour within order bars.
func PivotLows(values []float64, order int) []int {
	return pivots(values, order, func(a, b float64) bool { return a < b })
}

func pivots(values []float64, order int, beyond func(a, b float64) bool) []int {
	n := len(values)
	var out []int
	for i := 0; i < n; i++ {
		ok := true
		for j := 1; j <= order && ok; j++ {
			left := i - j
			if left < 0 {
				left = 0
			}
			right := i + j
			if right > n-1 {
				right = n - 1
			}
			if !beyond(values[i], values[left]) || !beyond(values[i], values[right]) {
				ok = false
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// clusterPivots groups pivot prices lying within tolerance of a cluster's
// first (lowest) point and orders the clusters by size, largest first.
func (l *LevelAnalyzer) clusterPivots(values []float64, indices []int, levelType analysis.LevelType) []analysis.Level {
	if len(indices) == 0 {
		return nil
	}

	sorted := make([]float64, len(indices))
	for i, idx := range indices {
		sorted[i] = values[idx]
	}
	sort.Float64s(sorted)

	type cluster struct {
		anchor float64
		sum    float64
		count  int
	}
	var clusters []cluster
	current := cluster{anchor: sorted[0], sum: sorted[0], count: 1}
	for _, price := range sorted[1:] {
		if current.anchor > 0 && math.Abs(price-current.anchor)/current.anchor <= l.clusterTolerance {
			current.sum += price
			current.count++
			continue
		}
		clusters = append(clusters, current)
		current = cluster{anchor: price, sum: price, count: 1}
	}
	clusters = append(clusters, current)

	// Stable so equally sized clusters stay in ascending price order
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].count > clusters[j].count
	})

	levels := make([]analysis.Level, len(clusters))
	for i, c := range clusters {
		levels[i] = analysis.Level{
			Price:      c.sum / float64(c.count),
			Type:       levelType,
			TouchCount: c.count,
			Source:     "pivot",
		}
	}
	return levels
}

// TouchCount counts values within tolerance of level.
func TouchCount(values []float64, level, tolerance float64) int {
	if level == 0 {
		return 0
	}
	touches := 0
	for _, v := range values {
		if math.Abs(v-level)/level <= tolerance {
			touches++
		}
	}
	return touches
}
