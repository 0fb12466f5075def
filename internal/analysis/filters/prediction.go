package filters

import (
	"fmt"
	"strings"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Indicator names reported by the prediction filter.
const (
	SignalMACD      = "macd"
	SignalRSI       = "rsi"
	SignalKDJ       = "kdj"
	SignalBollinger = "bollinger"
)

// PredictionFilter reports early breakout hints from MACD, RSI, KDJ and
// Bollinger Bands. It never fails a window.
type PredictionFilter struct {
	macdLookback int
	rsiPeriod    int
	oversold     float64
	kdj          *indicators.KDJ
	bbPeriod     int
	bbDev        float64
	minSignals   int
}

// NewPredictionFilter creates a breakthrough prediction filter with
// MACD(12,26,9), RSI(14), KDJ(9,3,3) and Bollinger(20,2).
func NewPredictionFilter() *PredictionFilter {
	return &PredictionFilter{
		macdLookback: 5,
		rsiPeriod:    14,
		oversold:     30,
		kdj:          indicators.NewKDJ(9, 3, 3),
		bbPeriod:     20,
		bbDev:        2,
		minSignals:   2,
	}
}

func (f *PredictionFilter) Name() string  { return NamePrediction }
func (f *PredictionFilter) Label() string { return "突破前兆" }

func (f *PredictionFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseBreakthroughPrediction
}

// Evaluate runs the indicators over the full history up to the window end so
// their warm-up does not eat the window.
func (f *PredictionFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	candles := w.History
	if len(candles) == 0 {
		candles = w.Candles
	}
	ohlc := indicators.NewOHLC(candles)

	signals := map[string]bool{
		SignalMACD:      f.macdSignal(ohlc),
		SignalRSI:       f.rsiSignal(ohlc),
		SignalKDJ:       f.kdjSignal(candles),
		SignalBollinger: f.bollingerSignal(ohlc),
	}

	var names []string
	for _, name := range []string{SignalMACD, SignalRSI, SignalKDJ, SignalBollinger} {
		if signals[name] {
			names = append(names, strings.ToUpper(name))
		}
	}
	count := len(names)

	details := map[string]any{
		"signal_count": count,
		"has_signal":   count >= f.minSignals,
	}
	for k, v := range signals {
		details[k] = v
	}

	if count >= f.minSignals {
		return passed(fmt.Sprintf("突破前兆: %d个指标 (%s)", count, strings.Join(names, ", ")), details)
	}
	return passed(fmt.Sprintf("无突破信号: %d个指标", count), details)
}

// macdSignal: a MACD/signal golden cross in the recent bars, or MACD and
// histogram both rising on the last bar.
func (f *PredictionFilter) macdSignal(o *indicators.OHLC) bool {
	res, err := o.MACD(12, 26, 9)
	if err != nil {
		return false
	}
	n := len(res.MACD)
	span := f.macdLookback + 2
	if n < span || len(res.Signal) != n || len(res.Histogram) != n {
		return false
	}
	for i := n - span + 1; i < n; i++ {
		if res.MACD[i-1] < res.Signal[i-1] && res.MACD[i] > res.Signal[i] {
			return true
		}
	}
	return res.MACD[n-1] > res.MACD[n-2] && res.Histogram[n-1] > res.Histogram[n-2]
}

// rsiSignal: RSI leaving the oversold zone, or rising above 50.
func (f *PredictionFilter) rsiSignal(o *indicators.OHLC) bool {
	rsi, err := o.RSI(f.rsiPeriod)
	if err != nil {
		return false
	}
	cur, prev := rsi[len(rsi)-1], rsi[len(rsi)-2]
	if prev < f.oversold && cur >= f.oversold {
		return true
	}
	return cur > prev && cur > 50
}

// kdjSignal: a K/D golden cross in the last five bars, or K and J both rising.
func (f *PredictionFilter) kdjSignal(candles []models.Candle) bool {
	if len(candles) < f.kdj.Period()+5 {
		return false
	}
	kdj, err := f.kdj.Calculate(candles)
	if err != nil {
		return false
	}
	k, d, j := kdj["k"], kdj["d"], kdj["j"]
	n := len(k)
	for i := n - 4; i < n; i++ {
		if k[i-1] < d[i-1] && k[i] > d[i] {
			return true
		}
	}
	return k[n-1] > k[n-2] && j[n-1] > j[n-2]
}

// bollingerSignal: close in the upper half of the upper band with widening
// bands, or a rising close above the middle band.
func (f *PredictionFilter) bollingerSignal(o *indicators.OHLC) bool {
	bb, err := o.Bollinger(f.bbPeriod, f.bbDev)
	if err != nil {
		return false
	}
	n := len(o.Close)
	if len(bb.Middle) != n || n < 2 {
		return false
	}
	last := n - 1
	closeToUpper := o.Close[last] > bb.Middle[last]+0.5*(bb.Upper[last]-bb.Middle[last])
	widening := bb.Bandwidth(last) > bb.Bandwidth(last-1)
	aboveMiddle := o.Close[last] > bb.Middle[last]
	rising := o.Close[last] > o.Close[last-1]
	return (closeToUpper && widening) || (aboveMiddle && rising)
}
