// Package marklines turns filter details into chart annotations: dated
// vertical events and horizontal support/resistance levels.
package marklines

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/filters"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Mark types.
const (
	TypeVertical   = "vertical"
	TypeHorizontal = "horizontal"
)

// Colors used by the chart front end.
const (
	ColorRed   = "#ec0000"
	ColorBlue  = "#3b82f6"
	ColorAmber = "#f59e0b"
	ColorGreen = "#10b981"
)

// MaxLevelsPerSide bounds the horizontal levels drawn for each side of a box.
const MaxLevelsPerSide = 2

// MarkLine is one chart annotation. Vertical marks carry Date; horizontal
// marks carry Value.
type MarkLine struct {
	Date  string   `json:"date,omitempty"`
	Text  string   `json:"text"`
	Color string   `json:"color"`
	Type  string   `json:"type"`
	Value *float64 `json:"value,omitempty"`
	Index *int     `json:"index,omitempty"`
}

type event struct {
	filter string
	key    string
	text   string
	color  string
}

// events lists the dated details in emission order.
var events = []event{
	{filters.NamePosition, filters.DetailHighDate, "高点", ColorRed},
	{filters.NameRapidDecline, filters.DetailHighDate, "高点", ColorRed},
	{filters.NameRapidDecline, filters.DetailRapidDeclineStart, "开始下跌", ColorRed},
	{filters.NameRapidDecline, filters.DetailRapidDeclineEnd, "平台期开始", ColorBlue},
	{filters.NameConfirmation, filters.DetailBreakthroughDate, "突破", ColorAmber},
}

// Generate derives mark lines and box levels from a window verdict. A date
// already marked by an earlier event is not marked again. Support and
// resistance come straight from the box filter.
func Generate(v filters.WindowVerdict) (marks []MarkLine, support, resistance []float64) {
	seen := make(map[string]bool)
	for _, e := range events {
		res, ok := v.Result(e.filter)
		if !ok {
			continue
		}
		raw, ok := res.Str(e.key)
		if !ok {
			continue
		}
		date := NormalizeDate(raw)
		if seen[date] {
			continue
		}
		seen[date] = true
		marks = append(marks, MarkLine{Date: date, Text: e.text, Color: e.color, Type: TypeVertical})
	}

	if box, ok := v.Result(filters.NameBox); ok {
		support = box.Levels(filters.DetailSupportLevels)
		resistance = box.Levels(filters.DetailResistanceLevels)
	}
	marks = append(marks, horizontal(support, "支撑位", ColorGreen)...)
	marks = append(marks, horizontal(resistance, "阻力位", ColorRed)...)
	return marks, support, resistance
}

func horizontal(levels []float64, label, color string) []MarkLine {
	var out []MarkLine
	for i, level := range levels {
		if i >= MaxLevelsPerSide {
			break
		}
		text := label
		if i > 0 {
			text = fmt.Sprintf("%s%d", label, i+1)
		}
		value := RoundPrice(level)
		out = append(out, MarkLine{Text: text, Color: color, Type: TypeHorizontal, Value: &value})
	}
	return out
}

// RoundPrice rounds to the 0.01 price tick.
func RoundPrice(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"20060102",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-1-2",
	"2006/1/2",
}

// ParseDate accepts the date spellings seen in upstream data: dash, slash
// or no separators, with or without a time of day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeDate rewrites a parseable date as YYYY-MM-DD and returns other
// strings unchanged.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(models.DateLayout)
	}
	return strings.TrimSpace(s)
}

// ResolveDateIndex maps date onto axis. It tries an exact match, then the
// same calendar day in any spelling, then the first entry of the same month,
// then of the same year, then the entry nearest in time. It only fails for
// an empty axis; a date that cannot be placed resolves to index 0.
func ResolveDateIndex(axis []string, date string) (int, bool) {
	if len(axis) == 0 {
		return -1, false
	}
	for i, a := range axis {
		if a == date {
			return i, true
		}
	}

	target, ok := ParseDate(date)
	if !ok {
		return 0, true
	}

	parsed := make([]time.Time, len(axis))
	valid := make([]bool, len(axis))
	for i, a := range axis {
		parsed[i], valid[i] = ParseDate(a)
	}

	for i := range axis {
		if valid[i] && parsed[i].Equal(target) {
			return i, true
		}
	}
	for i := range axis {
		if valid[i] && parsed[i].Year() == target.Year() && parsed[i].Month() == target.Month() {
			return i, true
		}
	}
	for i := range axis {
		if valid[i] && parsed[i].Year() == target.Year() {
			return i, true
		}
	}

	best, bestDiff := 0, time.Duration(math.MaxInt64)
	for i := range axis {
		if !valid[i] {
			continue
		}
		diff := parsed[i].Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best, true
}

// Anchor sets Index on every vertical mark. Vertical marks whose date cannot
// be parsed are dropped, as are all vertical marks when the axis is empty.
// Horizontal marks pass through.
func Anchor(marks []MarkLine, axis []string) []MarkLine {
	out := make([]MarkLine, 0, len(marks))
	for _, m := range marks {
		if m.Type == TypeHorizontal {
			out = append(out, m)
			continue
		}
		if _, ok := ParseDate(m.Date); !ok {
			continue
		}
		idx, ok := ResolveDateIndex(axis, m.Date)
		if !ok {
			continue
		}
		m.Index = &idx
		out = append(out, m)
	}
	return out
}
