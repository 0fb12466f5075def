package scoring

import (
	"sort"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/filters"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/marklines"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// ReasonSeparator joins the filter reasons of one window.
const ReasonSeparator = "；"

// Candidate is the classification of one stock across every configured
// window. It is built once and not modified afterwards.
type Candidate struct {
	Code             string                        `json:"code"`
	Name             string                        `json:"name"`
	Industry         string                        `json:"industry"`
	Passed           bool                          `json:"passed"`
	Windows          map[int]filters.WindowVerdict `json:"windows"`
	PlatformWindows  []int                         `json:"platform_windows"`
	SelectionReasons map[int]string                `json:"selection_reasons"`
	WeightedScore    *float64                      `json:"weighted_score,omitempty"`
	MarkLines        []marklines.MarkLine          `json:"mark_lines"`
	SupportLevels    []float64                     `json:"support_levels"`
	ResistanceLevels []float64                     `json:"resistance_levels"`
}

// Aggregator classifies a series over every configured window.
type Aggregator struct {
	manager *filters.Manager
	scorer  *WindowScorer
}

// NewAggregator creates an aggregator around a filter pipeline.
func NewAggregator(manager *filters.Manager) *Aggregator {
	return &Aggregator{
		manager: manager,
		scorer:  NewWindowScorer(),
	}
}

// Classify evaluates every window concurrently. The stock qualifies when at
// least one window passes. Mark lines and levels come from the first passing
// window in configured order.
func (a *Aggregator) Classify(series *models.Series, cfg *config.ScanConfig) Candidate {
	windows := cfg.Windows
	verdicts := iter.Map(windows, func(size *int) filters.WindowVerdict {
		w, _ := series.Window(*size)
		return a.manager.Run(w, cfg)
	})

	c := Candidate{
		Code:             series.Code,
		Name:             series.Name,
		Industry:         series.IndustryOrUnknown(),
		Windows:          make(map[int]filters.WindowVerdict, len(windows)),
		SelectionReasons: make(map[int]string),
	}

	var first *filters.WindowVerdict
	for i, size := range windows {
		v := verdicts[i]
		c.Windows[size] = v
		if !v.Passed {
			continue
		}
		c.Passed = true
		c.PlatformWindows = append(c.PlatformWindows, size)
		c.SelectionReasons[size] = strings.Join(v.Reasons(), ReasonSeparator)
		if first == nil {
			first = &verdicts[i]
		}
	}

	if first != nil {
		c.MarkLines, c.SupportLevels, c.ResistanceLevels = marklines.Generate(*first)
	}
	if cfg.UseWindowWeights {
		score := a.scorer.WeightedScore(c.Windows, cfg)
		c.WeightedScore = &score
	}
	return c
}

// Rank orders passing candidates and truncates to expected_count (0 keeps
// all). With a weighted score the highest score comes first, otherwise the
// candidate with the most passing windows; ties go to the lower code. When
// industry_diversity is set, industries are interleaved round-robin before
// truncation.
func Rank(candidates []Candidate, cfg *config.ScanConfig) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Passed {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.WeightedScore != nil && b.WeightedScore != nil && *a.WeightedScore != *b.WeightedScore {
			return *a.WeightedScore > *b.WeightedScore
		}
		if a.WeightedScore == nil || b.WeightedScore == nil {
			if len(a.SelectionReasons) != len(b.SelectionReasons) {
				return len(a.SelectionReasons) > len(b.SelectionReasons)
			}
		}
		return a.Code < b.Code
	})

	if cfg.IndustryDiversity {
		out = interleaveIndustries(out)
	}
	if cfg.ExpectedCount > 0 && len(out) > cfg.ExpectedCount {
		out = out[:cfg.ExpectedCount]
	}
	return out
}

// interleaveIndustries takes the best remaining candidate of each industry
// in turn, visiting industries in order of their best candidate.
func interleaveIndustries(sorted []Candidate) []Candidate {
	var order []string
	groups := make(map[string][]Candidate)
	for _, c := range sorted {
		if _, ok := groups[c.Industry]; !ok {
			order = append(order, c.Industry)
		}
		groups[c.Industry] = append(groups[c.Industry], c)
	}

	out := make([]Candidate, 0, len(sorted))
	for len(out) < len(sorted) {
		for _, industry := range order {
			if g := groups[industry]; len(g) > 0 {
				out = append(out, g[0])
				groups[industry] = g[1:]
			}
		}
	}
	return out
}
