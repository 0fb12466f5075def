package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FormatRatio renders a fraction as a two-decimal percentage that
// parses back to the same value.
func TestProperty_RatioFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatRatio has a % suffix and two decimals", prop.ForAll(
		func(ratio float64) bool {
			formatted := FormatRatio(ratio)
			if !strings.HasSuffix(formatted, "%") {
				t.Logf("Expected %% suffix for %f, got %s", ratio, formatted)
				return false
			}
			parts := strings.Split(strings.TrimSuffix(formatted, "%"), ".")
			return len(parts) == 2 && len(parts[1]) == 2
		},
		gen.Float64Range(-10, 10),
	))

	properties.Property("FormatRatio preserves value", prop.ForAll(
		func(ratio float64) bool {
			formatted := FormatRatio(ratio)
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(formatted, "%"), 64)
			if err != nil {
				t.Logf("Unparseable %s: %v", formatted, err)
				return false
			}
			if math.Abs(parsed-ratio*100) > 0.005+1e-9 {
				t.Logf("Value not preserved: original=%f, formatted=%s", ratio, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-10, 10),
	))

	properties.Property("FormatVolume uses the right unit", prop.ForAll(
		func(volume float64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 1e8:
				return strings.HasSuffix(formatted, "亿")
			case volume >= 1e4:
				return strings.HasSuffix(formatted, "万")
			default:
				return !strings.ContainsAny(formatted, "万亿")
			}
		},
		gen.Float64Range(0, 1e11),
	))

	properties.TestingRun(t)
}

// Property: ParseWindows returns ascending unique windows for any list.
func TestProperty_ParseWindows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("windows come back sorted and unique", prop.ForAll(
		func(ws []int) bool {
			parts := make([]string, len(ws))
			for i, w := range ws {
				parts[i] = strconv.Itoa(w)
			}
			got, err := ParseWindows(strings.Join(parts, ", "))
			if err != nil {
				return false
			}
			for i := 1; i < len(got); i++ {
				if got[i] <= got[i-1] {
					return false
				}
			}
			want := make(map[int]bool)
			for _, w := range ws {
				want[w] = true
			}
			return len(got) == len(want)
		},
		gen.SliceOf(gen.IntRange(1, 250)),
	))

	properties.TestingRun(t)
}

func TestParseCodes(t *testing.T) {
	got := ParseCodes(" 600000,000001  600000,\n300750 ")
	want := []string{"600000", "000001", "300750"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ParseCodes = %v, want %v", got, want)
	}
	if ParseCodes(" , ") != nil {
		t.Error("blank input should yield no codes")
	}
	if _, err := ParseWindows("30,abc"); err == nil {
		t.Error("expected error for non-numeric window")
	}
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"600000", 6},
		{"浦发银行", 8},
		{"\x1b[32m✓\x1b[0m", 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := displayWidth(tt.in); got != tt.want {
			t.Errorf("displayWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	score := 0.87654
	tests := []struct {
		got  string
		want string
	}{
		{FormatPrice(10.005), "10.01"},
		{FormatPrice(math.NaN()), "-"},
		{FormatScore(&score), "0.877"},
		{FormatScore(nil), "-"},
		{FormatWindows([]int{30, 60}), "30,60"},
		{FormatVolume(123456), "12.35万"},
		{Truncate("abcdefgh", 5), "ab..."},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
