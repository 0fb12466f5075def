package indicators

import (
	"fmt"

	ta "github.com/thrasher-corp/gct-ta/indicators"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// OHLC adapts a candle slice to the column layout expected by gct-ta. The
// library panics on short or mismatched input, so every call is guarded.
type OHLC struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewOHLC splits candles into columns.
func NewOHLC(candles []models.Candle) *OHLC {
	return &OHLC{
		Open:   models.Opens(candles),
		High:   models.Highs(candles),
		Low:    models.Lows(candles),
		Close:  models.Closes(candles),
		Volume: models.Volumes(candles),
	}
}

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns MACD(fast, slow, signal) on close prices.
func (o *OHLC) MACD(fast, slow, signal int) (*MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, fmt.Errorf("macd %w", ErrInvalidPeriod)
	}
	if len(o.Close) < slow+signal {
		return nil, fmt.Errorf("macd %w: have %d closes, need %d", ErrInsufficientData, len(o.Close), slow+signal)
	}
	var res MACDResult
	res.MACD, res.Signal, res.Histogram = ta.MACD(o.Close, fast, slow, signal)
	if len(res.MACD) < 2 || len(res.Histogram) < 2 {
		return nil, fmt.Errorf("macd %w", ErrInsufficientData)
	}
	return &res, nil
}

// RSI returns the relative strength index on close prices.
func (o *OHLC) RSI(period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi %w", ErrInvalidPeriod)
	}
	if len(o.Close) <= period+1 {
		return nil, fmt.Errorf("rsi %w: have %d closes, need more than %d", ErrInsufficientData, len(o.Close), period+1)
	}
	out := ta.RSI(o.Close, period)
	if len(out) < 2 {
		return nil, fmt.Errorf("rsi %w", ErrInsufficientData)
	}
	return out, nil
}

// BollingerResult holds the three bands.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bandwidth returns (upper-lower)/middle at index i.
func (b *BollingerResult) Bandwidth(i int) float64 {
	if b.Middle[i] == 0 {
		return 0
	}
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i]
}

// Bollinger returns Bollinger Bands with an SMA basis.
func (o *OHLC) Bollinger(period int, nbDev float64) (*BollingerResult, error) {
	if period <= 0 {
		return nil, fmt.Errorf("bollinger %w", ErrInvalidPeriod)
	}
	if nbDev <= 0 {
		return nil, fmt.Errorf("bollinger invalid deviation multiplier %v", nbDev)
	}
	if len(o.Close) < period+1 {
		return nil, fmt.Errorf("bollinger %w: have %d closes, need %d", ErrInsufficientData, len(o.Close), period+1)
	}
	var res BollingerResult
	res.Upper, res.Middle, res.Lower = ta.BBANDS(o.Close, period, nbDev, nbDev, ta.Sma)
	if len(res.Middle) < 2 || len(res.Upper) != len(res.Middle) || len(res.Lower) != len(res.Middle) {
		return nil, fmt.Errorf("bollinger %w", ErrInsufficientData)
	}
	return &res, nil
}
