package patterns

import (
	"math"
	"testing"
	"time"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

func TestPivotHighsStrict(t *testing.T) {
	values := []float64{1, 2, 3, 2, 1, 2, 5, 2, 1}
	got := PivotHighs(values, 2)
	want := []int{2, 6}
	if len(got) != len(want) {
		t.Fatalf("PivotHighs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PivotHighs[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	// Plateaus are not strict extrema
	if got := PivotHighs([]float64{1, 3, 3, 1}, 1); len(got) != 0 {
		t.Errorf("plateau produced pivots %v", got)
	}
}

func TestPivotLowsAtEdgeAreIgnored(t *testing.T) {
	values := []float64{1, 2, 3, 2, 3}
	got := PivotLows(values, 1)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("PivotLows = %v, want [3]", got)
	}
}

func TestAnalyzeOscillatingBox(t *testing.T) {
	// Price oscillates between ~10 and ~11 with a 12-bar cycle
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 60; i++ {
		mid := 10.5 + 0.5*math.Sin(2*math.Pi*float64(i)/12)
		candles = append(candles, models.Candle{
			Date:  start.AddDate(0, 0, i),
			Open:  mid,
			High:  mid + 0.02,
			Low:   mid - 0.02,
			Close: mid,
		})
	}

	res := NewLevelAnalyzer().Analyze(candles)

	sup, ok := res.MainSupport()
	if !ok {
		t.Fatal("expected a support level")
	}
	res2, ok := res.MainResistance()
	if !ok {
		t.Fatal("expected a resistance level")
	}
	if math.Abs(sup-9.98) > 0.1 {
		t.Errorf("main support = %.3f, want about 9.98", sup)
	}
	if math.Abs(res2-11.02) > 0.1 {
		t.Errorf("main resistance = %.3f, want about 11.02", res2)
	}
	if res.SupportStrength < 2 || res.ResistanceStrength < 2 {
		t.Errorf("strengths = %d/%d, want at least 2 each", res.SupportStrength, res.ResistanceStrength)
	}
}

func TestTouchCount(t *testing.T) {
	values := []float64{10, 10.05, 10.2, 9.95, 11}
	if got := TouchCount(values, 10, 0.01); got != 3 {
		t.Errorf("TouchCount = %d, want 3", got)
	}
	if got := TouchCount(values, 0, 0.01); got != 0 {
		t.Errorf("TouchCount at zero level = %d, want 0", got)
	}
}
