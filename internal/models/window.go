package models

import "time"

// Window is a trailing view of a Series used as the unit of filter evaluation.
// Candles is the evaluation slice; History runs from the start of the series to
// the window's last candle so lookback filters can see further back.
type Window struct {
	Size    int
	Stock   Stock
	Candles []Candle
	History []Candle
	series  *Series
}

// Window returns the trailing window of the given size. ok is false when the
// series holds fewer candles than size; the returned Window then carries
// whatever history exists so filters can report insufficient data.
func (s *Series) Window(size int) (Window, bool) {
	w := Window{Size: size, Stock: s.Stock, History: s.Candles, series: s}
	if size <= 0 || len(s.Candles) < size {
		w.Candles = s.Candles
		return w, false
	}
	w.Candles = s.Candles[len(s.Candles)-size:]
	return w, true
}

// Complete reports whether the window holds exactly Size candles.
func (w Window) Complete() bool {
	return w.Size > 0 && len(w.Candles) == w.Size
}

// Series returns the underlying series, or nil for hand-built windows.
func (w Window) Series() *Series {
	return w.series
}

// Last returns the final candle of the window.
func (w Window) Last() (Candle, bool) {
	if len(w.Candles) == 0 {
		return Candle{}, false
	}
	return w.Candles[len(w.Candles)-1], true
}

// Lookback returns the trailing days candles of history, or all of it.
func (w Window) Lookback(days int) []Candle {
	if days <= 0 || days >= len(w.History) {
		return w.History
	}
	return w.History[len(w.History)-days:]
}

// Closes returns the close prices of the given candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Opens returns the open prices of the given candles.
func Opens(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

// Highs returns the high prices of the given candles.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low prices of the given candles.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volumes of the given candles.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// Dates returns the candle dates formatted with DateLayout.
func Dates(candles []Candle) []string {
	out := make([]string, len(candles))
	for i, c := range candles {
		out[i] = c.Date.Format(DateLayout)
	}
	return out
}

// TradingDaysBetween counts candles strictly after from up to and including to.
func TradingDaysBetween(candles []Candle, from, to time.Time) int {
	n := 0
	for _, c := range candles {
		if c.Date.After(from) && !c.Date.After(to) {
			n++
		}
	}
	return n
}
