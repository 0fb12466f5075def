// Package filters implements the per-window platform filters and the pipeline
// that composes them into a window verdict.
package filters

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Filter names. They key WindowVerdict.Results and the JSON output.
const (
	NamePrice        = "price"
	NameVolume       = "volume"
	NamePosition     = "position"
	NameRapidDecline = "rapid_decline"
	NameBox          = "box"
	NamePrediction   = "breakthrough_prediction"
	NameConfirmation = "breakthrough_confirmation"
	NameFundamental  = "fundamental"
)

// Detail keys read by the mark-line generator.
const (
	DetailHighDate          = "high_date"
	DetailHighPrice         = "high_price"
	DetailRapidDeclineStart = "rapid_decline_start_date"
	DetailRapidDeclineEnd   = "rapid_decline_end_date"
	DetailBreakthroughDate  = "breakthrough_date"
	DetailSupportLevels     = "support_levels"
	DetailResistanceLevels  = "resistance_levels"
)

// InsufficientData is the reason prefix for windows without enough candles.
const InsufficientData = "数据不足"

// Filter evaluates one window of a series. Implementations hold no mutable
// state so a single instance can serve concurrent windows and stocks.
type Filter interface {
	Name() string
	Label() string
	Enabled(cfg *config.ScanConfig) bool
	Evaluate(w models.Window, cfg *config.ScanConfig) Result
}

// Result is the outcome of one filter on one window.
type Result struct {
	Passed  bool           `json:"passed"`
	Details map[string]any `json:"details"`
	Reason  string         `json:"reason"`
}

func passed(reason string, details map[string]any) Result {
	return Result{Passed: true, Details: details, Reason: reason}
}

func failed(reason string, details map[string]any) Result {
	return Result{Passed: false, Details: details, Reason: reason}
}

func insufficient(have, need int) Result {
	return Result{
		Passed: false,
		Details: map[string]any{
			"data_points":     have,
			"required_points": need,
		},
		Reason: fmt.Sprintf("%s: 需要%d根K线, 实际%d根", InsufficientData, need, have),
	}
}

// MarshalJSON writes non-finite detail values as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := plain(r)
	if len(r.Details) > 0 {
		out.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = nil
			}
			out.Details[k] = v
		}
	}
	return json.Marshal(out)
}

// IsInsufficient reports whether r failed for lack of data.
func (r Result) IsInsufficient() bool {
	return !r.Passed && strings.HasPrefix(r.Reason, InsufficientData)
}

// Float reads a numeric detail.
func (r Result) Float(key string) (float64, bool) {
	switch v := r.Details[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Str reads a string detail such as a date.
func (r Result) Str(key string) (string, bool) {
	s, ok := r.Details[key].(string)
	return s, ok && s != ""
}

// Levels reads a level-list detail.
func (r Result) Levels(key string) []float64 {
	switch v := r.Details[key].(type) {
	case []float64:
		return v
	case float64:
		return []float64{v}
	default:
		return nil
	}
}

func round4(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x*10000) / 10000
}

func pct(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func formatDate(c models.Candle) string {
	return c.Date.Format(models.DateLayout)
}
