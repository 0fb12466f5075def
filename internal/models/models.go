// Package models provides the domain models shared by the scanner packages.
package models

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

// DateLayout is the calendar-date format used on the wire and in stores.
const DateLayout = "2006-01-02"

// Candle represents one trading day of OHLCV data.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks the OHLC ordering invariant and that values are finite.
func (c Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value on %s", c.Date.Format(DateLayout))
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume on %s", c.Date.Format(DateLayout))
	}
	if c.Low > math.Min(c.Open, c.Close) || math.Max(c.Open, c.Close) > c.High {
		return fmt.Errorf("ohlc out of order on %s", c.Date.Format(DateLayout))
	}
	return nil
}

// Stock identifies one member of a scan universe.
type Stock struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

// UnknownIndustry labels stocks with no industry classification.
const UnknownIndustry = "未知行业"

// FundamentalYear holds annual report metrics for one fiscal year.
// Growth rates and ratios are fractions (0.12 means 12%).
type FundamentalYear struct {
	Year          int     `json:"year"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ProfitGrowth  float64 `json:"profit_growth"`
	ROE           float64 `json:"roe"`
	DebtRatio     float64 `json:"debt_ratio"`
}

// Valuation holds the latest trailing valuation ratios.
type Valuation struct {
	PE float64 `json:"pe_ttm"`
	PB float64 `json:"pb_mrq"`
}

// Series is one instrument's ordered candle history plus optional metadata.
// The engine only reads a Series.
type Series struct {
	Stock
	Candles      []Candle          `json:"candles"`
	Fundamentals []FundamentalYear `json:"fundamentals,omitempty"`
	Valuation    *Valuation        `json:"valuation,omitempty"`
}

// Validate checks candle ordering, date uniqueness and per-candle invariants.
func (s *Series) Validate() error {
	if s == nil {
		return apperrors.NewDataError("", "series", "nil series", apperrors.ErrInvalidSeries)
	}
	if len(s.Candles) == 0 {
		return apperrors.NewDataError(s.Code, "series", "no candles", apperrors.ErrInsufficientData)
	}
	for i, c := range s.Candles {
		if c.Date.IsZero() {
			return apperrors.NewDataError(s.Code, "candle", fmt.Sprintf("missing date at index %d", i), apperrors.ErrInvalidSeries)
		}
		if err := c.Validate(); err != nil {
			return apperrors.NewDataError(s.Code, "candle", err.Error(), apperrors.ErrInvalidSeries)
		}
		if i > 0 && !c.Date.After(s.Candles[i-1].Date) {
			return apperrors.NewDataError(s.Code, "candle",
				fmt.Sprintf("dates not strictly ascending at %s", c.Date.Format(DateLayout)),
				apperrors.ErrInvalidSeries)
		}
	}
	return nil
}

// IndustryOrUnknown returns the industry label, substituting UnknownIndustry.
func (s Stock) IndustryOrUnknown() string {
	if s.Industry == "" {
		return UnknownIndustry
	}
	return s.Industry
}

// LatestFundamentals returns up to n most recent fiscal years, newest first.
func (s *Series) LatestFundamentals(n int) []FundamentalYear {
	if n <= 0 || len(s.Fundamentals) == 0 {
		return nil
	}
	sorted := make([]FundamentalYear, len(s.Fundamentals))
	copy(sorted, s.Fundamentals)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Year > sorted[j-1].Year; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
