package cli

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// FormatPrice formats a price with two decimals.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}
	return decimal.NewFromFloat(price).StringFixed(2)
}

// FormatRatio formats a fraction as a percentage, e.g. 0.1234 -> "12.34%".
func FormatRatio(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "-"
	}
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(2) + "%"
}

// FormatScore formats an optional weighted score.
func FormatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}

// FormatVolume formats volume with 万/亿 units.
func FormatVolume(volume float64) string {
	switch {
	case volume >= 1e8:
		return fmt.Sprintf("%.2f亿", volume/1e8)
	case volume >= 1e4:
		return fmt.Sprintf("%.2f万", volume/1e4)
	default:
		return fmt.Sprintf("%.0f", volume)
	}
}

// FormatWindows joins window sizes, e.g. "30,60".
func FormatWindows(windows []int) string {
	if len(windows) == 0 {
		return "-"
	}
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ",")
}

// FormatDate formats a calendar date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(models.DateLayout)
}

// FormatDateTime formats a timestamp in local time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// FormatDuration formats a duration compactly.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// Truncate shortens s to at most n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// ParseCodes splits a comma or space separated code list, dropping blanks
// and duplicates while keeping the first-seen order.
func ParseCodes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// ParseWindows parses "80,100,120" into ascending unique window sizes.
func ParseWindows(s string) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	for _, f := range ParseCodes(s) {
		w, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q", f)
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out, nil
}
