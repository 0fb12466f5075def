package marklines

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/filters"
)

func testParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0
	return parameters
}

func axisGen() gopter.Gen {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	return gen.IntRange(1, 300).Map(func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		return out
	})
}

// Property: any date string, parseable or not, resolves to an index inside
// a non-empty axis.
func TestResolveDateIndexAlwaysInRange(t *testing.T) {
	properties := gopter.NewProperties(testParameters())

	properties.Property("garbage resolves in range", prop.ForAll(
		func(axis []string, date string) bool {
			idx, ok := ResolveDateIndex(axis, date)
			return ok && idx >= 0 && idx < len(axis)
		},
		axisGen(),
		gen.AnyString(),
	))

	properties.Property("real dates resolve in range", prop.ForAll(
		func(axis []string, offset int) bool {
			d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
			for _, layout := range []string{"2006-01-02", "2006/01/02", "20060102", "2006-01-02 15:04:05"} {
				idx, ok := ResolveDateIndex(axis, d.Format(layout))
				if !ok || idx < 0 || idx >= len(axis) {
					return false
				}
			}
			return true
		},
		axisGen(),
		gen.IntRange(-2000, 2000),
	))

	properties.TestingRun(t)
}

func TestResolveDateIndexFallbackChain(t *testing.T) {
	axis := []string{"2023-01-03", "2023-01-04", "2023-02-01", "2023-02-15", "2024-06-03"}
	tests := []struct {
		name string
		date string
		want int
	}{
		{"exact", "2023-02-01", 2},
		{"slash separators", "2023/02/15", 3},
		{"time of day", "2023-01-04 00:00:00", 1},
		{"same month", "2023-02-20", 2},
		{"same year", "2024-01-10", 4},
		{"nearest", "2022-12-01", 0},
		{"nearest later", "2025-03-01", 4},
		{"garbage", "not a date", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveDateIndex(axis, tt.date)
			if !ok || got != tt.want {
				t.Errorf("ResolveDateIndex(%q) = %d, %v, want %d", tt.date, got, ok, tt.want)
			}
		})
	}

	if _, ok := ResolveDateIndex(nil, "2023-01-03"); ok {
		t.Error("empty axis resolved")
	}
}

func verdict(results map[string]filters.Result) filters.WindowVerdict {
	v := filters.WindowVerdict{Window: 60, Results: results, Passed: true}
	for name := range results {
		v.Order = append(v.Order, name)
	}
	return v
}

func TestGenerateDeduplicatesHighDate(t *testing.T) {
	v := verdict(map[string]filters.Result{
		filters.NamePosition: {Passed: true, Details: map[string]any{
			filters.DetailHighDate: "2023-05-10",
		}},
		filters.NameRapidDecline: {Passed: true, Details: map[string]any{
			filters.DetailHighDate:          "2023-05-10",
			filters.DetailRapidDeclineStart: "2023-05-12",
			filters.DetailRapidDeclineEnd:   "2023-06-20",
		}},
		filters.NameConfirmation: {Passed: true, Details: map[string]any{
			filters.DetailBreakthroughDate: "2023/09/01",
		}},
	})

	marks, _, _ := Generate(v)
	want := []struct{ date, text, color string }{
		{"2023-05-10", "高点", ColorRed},
		{"2023-05-12", "开始下跌", ColorRed},
		{"2023-06-20", "平台期开始", ColorBlue},
		{"2023-09-01", "突破", ColorAmber},
	}
	if len(marks) != len(want) {
		t.Fatalf("got %d marks: %+v", len(marks), marks)
	}
	for i, w := range want {
		m := marks[i]
		if m.Date != w.date || m.Text != w.text || m.Color != w.color || m.Type != TypeVertical {
			t.Errorf("mark %d = %+v, want %+v", i, m, w)
		}
	}

	highs := 0
	for _, m := range marks {
		if m.Text == "高点" {
			highs++
		}
	}
	if highs != 1 {
		t.Errorf("high point marked %d times", highs)
	}
}

func TestGenerateBoxLevels(t *testing.T) {
	v := verdict(map[string]filters.Result{
		filters.NameBox: {Passed: true, Details: map[string]any{
			filters.DetailSupportLevels:    []float64{9.984, 9.5, 9.1},
			filters.DetailResistanceLevels: []float64{11.0251},
		}},
	})

	marks, support, resistance := Generate(v)
	if len(support) != 3 || len(resistance) != 1 {
		t.Fatalf("levels = %v / %v", support, resistance)
	}
	if len(marks) != 3 {
		t.Fatalf("marks = %+v, want 2 support and 1 resistance", marks)
	}
	if marks[0].Text != "支撑位" || marks[1].Text != "支撑位2" || marks[2].Text != "阻力位" {
		t.Errorf("texts = %s %s %s", marks[0].Text, marks[1].Text, marks[2].Text)
	}
	if *marks[0].Value != 9.98 || *marks[2].Value != 11.03 {
		t.Errorf("values = %v %v", *marks[0].Value, *marks[2].Value)
	}
	for _, m := range marks {
		if m.Type != TypeHorizontal || m.Date != "" {
			t.Errorf("level mark %+v", m)
		}
	}
}

func TestAnchor(t *testing.T) {
	value := 10.0
	marks := []MarkLine{
		{Date: "2023-01-04", Text: "高点", Type: TypeVertical},
		{Date: "???", Text: "突破", Type: TypeVertical},
		{Text: "支撑位", Type: TypeHorizontal, Value: &value},
	}
	axis := []string{"2023-01-03", "2023-01-04"}

	got := Anchor(marks, axis)
	if len(got) != 2 {
		t.Fatalf("Anchor kept %d marks", len(got))
	}
	if got[0].Index == nil || *got[0].Index != 1 {
		t.Errorf("index = %v", got[0].Index)
	}
	if got[1].Type != TypeHorizontal {
		t.Errorf("horizontal mark lost")
	}

	if got := Anchor(marks, nil); len(got) != 1 {
		t.Errorf("empty axis kept %d marks, want only the level", len(got))
	}
}
