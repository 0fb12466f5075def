package filters

import (
	"math"
	"reflect"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

var testStart = time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)

// seriesFromCloses builds a series whose candles open, close, high and low at
// the same price.
func seriesFromCloses(code string, closes []float64, volume float64) *models.Series {
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Date:   testStart.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: volume,
		}
	}
	return &models.Series{
		Stock:   models.Stock{Code: code, Name: code, Industry: "银行"},
		Candles: candles,
	}
}

// triangleCloses oscillates between 9.9 and 10.1 in 0.05 steps.
func triangleCloses(n int) []float64 {
	cycle := []float64{9.9, 9.95, 10.0, 10.05, 10.1, 10.05, 10.0, 9.95}
	out := make([]float64, n)
	for i := range out {
		out[i] = cycle[i%len(cycle)]
	}
	return out
}

// sineCandles oscillates between about 9.98 and 11.02 on a 12-bar cycle.
func sineCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		mid := 10.5 + 0.5*math.Sin(2*math.Pi*float64(i)/12)
		out[i] = models.Candle{
			Date:   testStart.AddDate(0, 0, i),
			Open:   mid,
			High:   mid + 0.02,
			Low:    mid - 0.02,
			Close:  mid,
			Volume: 1e6,
		}
	}
	return out
}

// peakThenDecline rises linearly to 20 at index peak and then falls to last.
func peakThenDecline(n, peak int, last float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i <= peak {
			out[i] = 10 + 10*float64(i)/float64(peak)
			continue
		}
		out[i] = 20 - (20-last)*float64(i-peak)/float64(n-1-peak)
	}
	return out
}

// onlyEnabled returns a default config with every filter off except names.
func onlyEnabled(names ...string) *config.ScanConfig {
	cfg := config.DefaultScanConfig()
	cfg.UsePriceAnalysis = false
	cfg.UseVolumeAnalysis = false
	cfg.UseLowPosition = false
	cfg.UseRapidDeclineDetection = false
	cfg.UseBoxDetection = false
	cfg.UseBreakthroughPrediction = false
	cfg.UseBreakthroughConfirmation = false
	cfg.UseFundamentalFilter = false
	for _, n := range names {
		switch n {
		case NamePrice:
			cfg.UsePriceAnalysis = true
		case NameVolume:
			cfg.UseVolumeAnalysis = true
		case NamePosition:
			cfg.UseLowPosition = true
		case NameRapidDecline:
			cfg.UseRapidDeclineDetection = true
		case NameBox:
			cfg.UseBoxDetection = true
		case NamePrediction:
			cfg.UseBreakthroughPrediction = true
		case NameConfirmation:
			cfg.UseBreakthroughConfirmation = true
		case NameFundamental:
			cfg.UseFundamentalFilter = true
		}
	}
	return &cfg
}

func mustWindow(s *models.Series, size int) models.Window {
	w, _ := s.Window(size)
	return w
}

// candleGen generates valid daily candles around a random walk step.
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Date":   gen.Const(time.Time{}),
		"Open":   gen.Float64Range(5.0, 50.0),
		"High":   gen.Float64Range(5.0, 50.0),
		"Low":    gen.Float64Range(5.0, 50.0),
		"Close":  gen.Float64Range(5.0, 50.0),
		"Volume": gen.Float64Range(1e5, 1e7),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		return c
	})
}

// seriesGen generates a dated series of n candles.
func seriesGen(n int) gopter.Gen {
	return gen.SliceOfN(n, candleGen()).Map(func(candles []models.Candle) *models.Series {
		for i := range candles {
			candles[i].Date = testStart.AddDate(0, 0, i)
		}
		return &models.Series{
			Stock:   models.Stock{Code: "600000", Name: "浦发银行", Industry: "银行"},
			Candles: candles,
		}
	})
}

// scanConfigGen generates configs with random filter switches and loose
// thresholds so that both outcomes occur.
func scanConfigGen() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(8, gen.Bool()),
		gen.Float64Range(0.05, 0.95),
		gen.Float64Range(0.01, 0.5),
		gen.Float64Range(0.01, 0.5),
		gen.Float64Range(0.1, 0.95),
	).Map(func(vals []interface{}) *config.ScanConfig {
		flags := vals[0].([]bool)
		cfg := config.DefaultScanConfig()
		cfg.UsePriceAnalysis = flags[0]
		cfg.UseVolumeAnalysis = flags[1]
		cfg.UseLowPosition = flags[2]
		cfg.UseRapidDeclineDetection = flags[3]
		cfg.UseBoxDetection = flags[4]
		cfg.UseBreakthroughPrediction = flags[5]
		cfg.UseBreakthroughConfirmation = flags[6]
		cfg.UseFundamentalFilter = flags[7]
		cfg.BoxThreshold = vals[1].(float64)
		cfg.MADiffThreshold = vals[2].(float64)
		cfg.VolatilityThreshold = vals[3].(float64)
		cfg.DeclineThreshold = vals[4].(float64)
		return &cfg
	})
}

func testParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0
	return parameters
}
