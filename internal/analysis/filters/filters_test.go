package filters

import (
	"math"
	"strings"
	"testing"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

func TestPriceFilterConsolidation(t *testing.T) {
	s := seriesFromCloses("600000", triangleCloses(60), 1e6)
	cfg := onlyEnabled(NamePrice)
	cfg.BoxThreshold = 0.05
	cfg.MADiffThreshold = 0.01
	cfg.VolatilityThreshold = 0.01

	res := NewPriceFilter().Evaluate(mustWindow(s, 60), cfg)
	if !res.Passed {
		t.Fatalf("expected consolidation to pass: %s (%v)", res.Reason, res.Details)
	}
	if br, _ := res.Float("box_range"); br < 0.015 || br > 0.025 {
		t.Errorf("box_range = %v, want about 0.02", br)
	}
	if vol, _ := res.Float("volatility"); vol <= 0 || vol >= 0.01 {
		t.Errorf("volatility = %v, want in (0, 0.01)", vol)
	}
}

func TestPriceFilterRejectsWideRange(t *testing.T) {
	s := seriesFromCloses("600000", peakThenDecline(60, 30, 12), 1e6)
	cfg := onlyEnabled(NamePrice)

	res := NewPriceFilter().Evaluate(mustWindow(s, 60), cfg)
	if res.Passed {
		t.Fatalf("expected failure, got %s", res.Reason)
	}
	if !strings.HasPrefix(res.Reason, "价格区间过大") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestFiltersReportInsufficientData(t *testing.T) {
	short := seriesFromCloses("600000", triangleCloses(15), 1e6)
	cfg := onlyEnabled()

	for _, f := range []Filter{
		NewPriceFilter(),
		NewVolumeFilter(),
		NewPositionFilter(),
		NewRapidDeclineFilter(),
		NewBoxFilter(),
	} {
		res := f.Evaluate(mustWindow(short, 30), cfg)
		if res.Passed {
			t.Errorf("%s passed on 15 candles", f.Name())
		}
		if !res.IsInsufficient() {
			t.Errorf("%s reason = %q, want insufficient data", f.Name(), res.Reason)
		}
	}
}

func TestVolumeFilterContraction(t *testing.T) {
	closes := triangleCloses(60)
	s := seriesFromCloses("600000", closes, 0)
	for i := range s.Candles {
		if i < 40 {
			s.Candles[i].Volume = 2e6
		} else {
			s.Candles[i].Volume = 1e6
		}
	}
	cfg := onlyEnabled(NameVolume)

	res := NewVolumeFilter().Evaluate(mustWindow(s, 20), cfg)
	if !res.Passed {
		t.Fatalf("expected contraction to pass: %s", res.Reason)
	}
	if change, _ := res.Float("volume_change"); math.Abs(change-0.5) > 1e-9 {
		t.Errorf("volume_change = %v, want 0.5", change)
	}
	if res.Details["has_breakthrough"] != false {
		t.Errorf("has_breakthrough = %v, want false", res.Details["has_breakthrough"])
	}

	// Expanding volume fails
	for i := range s.Candles {
		s.Candles[i].Volume = 1e6
		if i >= 40 {
			s.Candles[i].Volume = 3e6
		}
	}
	res = NewVolumeFilter().Evaluate(mustWindow(s, 20), cfg)
	if res.Passed || !strings.HasPrefix(res.Reason, "成交量变化过大") {
		t.Errorf("expanding volume: passed=%v reason=%q", res.Passed, res.Reason)
	}
}

func TestVolumeFilterNeedsExtraHistory(t *testing.T) {
	s := seriesFromCloses("600000", triangleCloses(39), 1e6)
	res := NewVolumeFilter().Evaluate(mustWindow(s, 30), onlyEnabled(NameVolume))
	if !res.IsInsufficient() {
		t.Errorf("reason = %q, want insufficient data", res.Reason)
	}
}

func TestVolumeFilterBreakthroughIsInformational(t *testing.T) {
	s := seriesFromCloses("600000", triangleCloses(60), 1e6)
	for i := 55; i < 60; i++ {
		s.Candles[i].Volume = 1.2e6
	}
	for i := 0; i < 40; i++ {
		s.Candles[i].Volume = 2e6
	}
	cfg := onlyEnabled(NameVolume)
	cfg.VolumeIncreaseThreshold = 1.1

	res := NewVolumeFilter().Evaluate(mustWindow(s, 20), cfg)
	if !res.Passed {
		t.Fatalf("expected pass: %s", res.Reason)
	}
	if res.Details["has_breakthrough"] != true {
		t.Errorf("has_breakthrough = %v, want true", res.Details["has_breakthrough"])
	}
}

func TestPositionFilterFortyPercentDecline(t *testing.T) {
	s := seriesFromCloses("600000", peakThenDecline(250, 150, 12), 1e6)
	cfg := onlyEnabled(NamePosition)
	cfg.DeclineThreshold = 0.3
	cfg.DeclinePeriodDays = 120
	cfg.HighPointLookbackDays = 365

	res := NewPositionFilter().Evaluate(mustWindow(s, 60), cfg)
	if !res.Passed {
		t.Fatalf("expected low position: %s", res.Reason)
	}
	want := s.Candles[150].Date.Format(models.DateLayout)
	if got, _ := res.Str(DetailHighDate); got != want {
		t.Errorf("high_date = %q, want %q", got, want)
	}
	if hp, _ := res.Float(DetailHighPrice); hp != 20 {
		t.Errorf("high_price = %v, want 20", hp)
	}
	if d, _ := res.Float("decline"); math.Abs(d-0.4) > 1e-4 {
		t.Errorf("decline = %v, want 0.4", d)
	}
	if days, _ := res.Float("days_since_high"); days != 100 {
		t.Errorf("days_since_high = %v, want 100", days)
	}
}

func TestPositionFilterHighTooOld(t *testing.T) {
	s := seriesFromCloses("600000", peakThenDecline(250, 50, 12), 1e6)
	cfg := onlyEnabled(NamePosition)
	cfg.DeclinePeriodDays = 120

	res := NewPositionFilter().Evaluate(mustWindow(s, 60), cfg)
	if res.Passed {
		t.Fatalf("high 200 candles ago should fail: %s", res.Reason)
	}
}

func sharpDrop() *models.Series {
	closes := make([]float64, 250)
	for i := range closes {
		switch {
		case i <= 150:
			closes[i] = 10 + 10*float64(i)/150
		case i <= 170:
			closes[i] = 20 - 6*float64(i-150)/20
		default:
			closes[i] = 14
		}
	}
	return seriesFromCloses("600000", closes, 1e6)
}

func TestRapidDeclineFindsSharpestRun(t *testing.T) {
	s := sharpDrop()
	cfg := onlyEnabled(NameRapidDecline)

	res := NewRapidDeclineFilter().Evaluate(mustWindow(s, 60), cfg)
	if !res.Passed {
		t.Fatalf("expected rapid decline: %s", res.Reason)
	}
	if d, _ := res.Float("max_rapid_decline"); math.Abs(d-0.3) > 1e-4 {
		t.Errorf("max_rapid_decline = %v, want 0.3", d)
	}
	start, _ := res.Str(DetailRapidDeclineStart)
	end, _ := res.Str(DetailRapidDeclineEnd)
	if start != s.Candles[150].Date.Format(models.DateLayout) {
		t.Errorf("start = %s", start)
	}
	if end != s.Candles[179].Date.Format(models.DateLayout) {
		t.Errorf("end = %s", end)
	}
	high, _ := res.Str(DetailHighDate)
	if high != start {
		t.Errorf("high_date %s differs from run start %s", high, start)
	}
}

func TestRapidDeclineIgnoresRebounds(t *testing.T) {
	// Steady climb after an early high: every run's low precedes its high
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 10 + float64(i)*0.01
	}
	closes[0] = 30
	s := seriesFromCloses("600000", closes, 1e6)
	cfg := onlyEnabled(NameRapidDecline)

	res := NewRapidDeclineFilter().Evaluate(mustWindow(s, 60), cfg)
	if d, _ := res.Float("max_rapid_decline"); d < 0.6 {
		t.Errorf("max_rapid_decline = %v, want the drop from 30", d)
	}

	flat := seriesFromCloses("600000", triangleCloses(120), 1e6)
	res = NewRapidDeclineFilter().Evaluate(mustWindow(flat, 60), cfg)
	if res.Passed {
		t.Errorf("flat series passed rapid decline: %s", res.Reason)
	}
}

func TestBoxFilterOscillation(t *testing.T) {
	s := &models.Series{Stock: models.Stock{Code: "600000"}, Candles: sineCandles(60)}
	cfg := onlyEnabled(NameBox)

	res := NewBoxFilter().Evaluate(mustWindow(s, 60), cfg)
	if !res.Passed {
		t.Fatalf("expected a box: %s (%v)", res.Reason, res.Details)
	}
	sup := res.Levels(DetailSupportLevels)
	resist := res.Levels(DetailResistanceLevels)
	if len(sup) == 0 || len(resist) == 0 || len(sup) > 3 || len(resist) > 3 {
		t.Fatalf("levels = %v / %v", sup, resist)
	}
	if math.Abs(sup[0]-9.98) > 0.1 || math.Abs(resist[0]-11.02) > 0.1 {
		t.Errorf("main levels = %.2f / %.2f", sup[0], resist[0])
	}
}

func TestBoxFilterTrendHasNoBox(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 10 + float64(i)*0.2
	}
	s := seriesFromCloses("600000", closes, 1e6)

	res := NewBoxFilter().Evaluate(mustWindow(s, 60), onlyEnabled(NameBox))
	if res.Passed {
		t.Errorf("monotonic trend passed box detection: %s", res.Reason)
	}
}

func TestScoreBoxHeightFactor(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.5, 10}
	tests := []struct {
		name       string
		support    float64
		resistance float64
		want       float64
	}{
		{"ideal", 10, 11, 1},
		{"narrow", 10, 10.15, 0.5},
		{"wide", 10, 13.5, 0.5},
		{"inverted", 10, 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ScoreBox(closes, tt.support, tt.resistance, 2, 2, 0.02)
			if math.Abs(q.HeightScore-tt.want) > 1e-9 {
				t.Errorf("height score = %v, want %v", q.HeightScore, tt.want)
			}
			if q.Quality < 0 || q.Quality > 1 {
				t.Errorf("quality %v out of [0,1]", q.Quality)
			}
		})
	}
}

func TestPredictionNeverFails(t *testing.T) {
	s := &models.Series{Stock: models.Stock{Code: "600000"}, Candles: sineCandles(120)}
	cfg := onlyEnabled(NamePrediction)

	for _, size := range []int{5, 30, 60} {
		res := NewPredictionFilter().Evaluate(mustWindow(s, size), cfg)
		if !res.Passed {
			t.Errorf("window %d: prediction failed: %s", size, res.Reason)
		}
		count, _ := res.Float("signal_count")
		if count < 0 || count > 4 {
			t.Errorf("signal_count = %v", count)
		}
		if (count >= 2) != res.Details["has_signal"].(bool) {
			t.Errorf("has_signal inconsistent with count %v", count)
		}
	}
}

func breakoutSeries(after []float64) *models.Series {
	s := seriesFromCloses("600000", triangleCloses(40), 1e6)
	last := s.Candles[len(s.Candles)-1]
	day := models.Candle{
		Date:   last.Date.AddDate(0, 0, 1),
		Open:   10,
		High:   10.6,
		Low:    10,
		Close:  10.5,
		Volume: 3e6,
	}
	s.Candles = append(s.Candles, day)
	for i, c := range after {
		s.Candles = append(s.Candles, models.Candle{
			Date:   day.Date.AddDate(0, 0, i+1),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1e6,
		})
	}
	return s
}

func TestConfirmationFilter(t *testing.T) {
	cfg := onlyEnabled(NameConfirmation)
	cfg.BreakthroughConfirmationDays = 2

	held := NewConfirmationFilter().Evaluate(mustWindow(breakoutSeries([]float64{10.4, 10.6}), 20), cfg)
	if !held.Passed || held.Details["confirmed"] != true {
		t.Fatalf("held breakout: passed=%v details=%v", held.Passed, held.Details)
	}
	if _, ok := held.Str(DetailBreakthroughDate); !ok {
		t.Error("missing breakthrough_date")
	}

	lost := NewConfirmationFilter().Evaluate(mustWindow(breakoutSeries([]float64{10.4, 9.9}), 20), cfg)
	if lost.Passed || lost.Details["confirmed"] != false {
		t.Errorf("failed breakout: passed=%v details=%v", lost.Passed, lost.Details)
	}

	none := NewConfirmationFilter().Evaluate(mustWindow(seriesFromCloses("600000", triangleCloses(40), 1e6), 20), cfg)
	if none.Passed {
		t.Errorf("no breakout passed: %s", none.Reason)
	}
}

func TestConfirmationNotYetConfirmedPasses(t *testing.T) {
	cfg := onlyEnabled(NameConfirmation)
	cfg.BreakthroughConfirmationDays = 5
	s := seriesFromCloses("600000", triangleCloses(6), 1e6)

	res := NewConfirmationFilter().Evaluate(mustWindow(s, 5), cfg)
	if !res.Passed {
		t.Fatalf("short history must not fail: %s", res.Reason)
	}
	if res.Details["confirmed"] != false || !strings.HasPrefix(res.Reason, "尚未确认") {
		t.Errorf("details=%v reason=%q", res.Details, res.Reason)
	}
}
