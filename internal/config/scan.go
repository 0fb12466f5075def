package config

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
)

// ScanConfig holds every parameter of one platform scan. Field names follow the
// scan request body so the same struct serves the HTTP API, the TOML file and
// the CLI.
type ScanConfig struct {
	// Windows
	Windows []int `mapstructure:"windows" json:"windows"`

	// Price consolidation
	UsePriceAnalysis    bool    `mapstructure:"use_price_analysis" json:"use_price_analysis"`
	BoxThreshold        float64 `mapstructure:"box_threshold" json:"box_threshold"`
	MADiffThreshold     float64 `mapstructure:"ma_diff_threshold" json:"ma_diff_threshold"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold" json:"volatility_threshold"`

	// Volume behaviour
	UseVolumeAnalysis        bool    `mapstructure:"use_volume_analysis" json:"use_volume_analysis"`
	VolumeChangeThreshold    float64 `mapstructure:"volume_change_threshold" json:"volume_change_threshold"`
	VolumeStabilityThreshold float64 `mapstructure:"volume_stability_threshold" json:"volume_stability_threshold"`
	VolumeIncreaseThreshold  float64 `mapstructure:"volume_increase_threshold" json:"volume_increase_threshold"`

	// Historical position
	UseLowPosition        bool    `mapstructure:"use_low_position" json:"use_low_position"`
	HighPointLookbackDays int     `mapstructure:"high_point_lookback_days" json:"high_point_lookback_days"`
	DeclinePeriodDays     int     `mapstructure:"decline_period_days" json:"decline_period_days"`
	DeclineThreshold      float64 `mapstructure:"decline_threshold" json:"decline_threshold"`

	// Rapid decline
	UseRapidDeclineDetection bool    `mapstructure:"use_rapid_decline_detection" json:"use_rapid_decline_detection"`
	RapidDeclineDays         int     `mapstructure:"rapid_decline_days" json:"rapid_decline_days"`
	RapidDeclineThreshold    float64 `mapstructure:"rapid_decline_threshold" json:"rapid_decline_threshold"`

	// Box detection
	UseBoxDetection     bool    `mapstructure:"use_box_detection" json:"use_box_detection"`
	BoxQualityThreshold float64 `mapstructure:"box_quality_threshold" json:"box_quality_threshold"`

	// Breakthrough
	UseBreakthroughPrediction    bool `mapstructure:"use_breakthrough_prediction" json:"use_breakthrough_prediction"`
	UseBreakthroughConfirmation  bool `mapstructure:"use_breakthrough_confirmation" json:"use_breakthrough_confirmation"`
	BreakthroughConfirmationDays int  `mapstructure:"breakthrough_confirmation_days" json:"breakthrough_confirmation_days"`

	// Fundamentals
	UseFundamentalFilter    bool    `mapstructure:"use_fundamental_filter" json:"use_fundamental_filter"`
	RevenueGrowthPercentile float64 `mapstructure:"revenue_growth_percentile" json:"revenue_growth_percentile"`
	ProfitGrowthPercentile  float64 `mapstructure:"profit_growth_percentile" json:"profit_growth_percentile"`
	ROEPercentile           float64 `mapstructure:"roe_percentile" json:"roe_percentile"`
	LiabilityPercentile     float64 `mapstructure:"liability_percentile" json:"liability_percentile"`
	PEPercentile            float64 `mapstructure:"pe_percentile" json:"pe_percentile"`
	PBPercentile            float64 `mapstructure:"pb_percentile" json:"pb_percentile"`
	FundamentalYearsToCheck int     `mapstructure:"fundamental_years_to_check" json:"fundamental_years_to_check"`

	// Window weights
	UseWindowWeights bool            `mapstructure:"use_window_weights" json:"use_window_weights"`
	WindowWeights    map[int]float64 `mapstructure:"window_weights" json:"window_weights"`

	// Pipeline and selection
	ShortCircuit      bool `mapstructure:"short_circuit" json:"short_circuit"`
	ExpectedCount     int  `mapstructure:"expected_count" json:"expected_count"`
	IndustryDiversity bool `mapstructure:"industry_diversity" json:"industry_diversity"`

	// Execution
	MaxWorkers    int `mapstructure:"max_workers" json:"max_workers"`
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`
	RetryDelay    int `mapstructure:"retry_delay" json:"retry_delay"` // seconds
}

// DefaultScanConfig returns the scan defaults used when a request or file
// leaves a field out.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Windows: []int{20, 30, 60},

		UsePriceAnalysis:    true,
		BoxThreshold:        0.5,
		MADiffThreshold:     0.03,
		VolatilityThreshold: 0.09,

		UseVolumeAnalysis:        true,
		VolumeChangeThreshold:    0.9,
		VolumeStabilityThreshold: 0.75,
		VolumeIncreaseThreshold:  1.5,

		UseLowPosition:        true,
		HighPointLookbackDays: 365,
		DeclinePeriodDays:     180,
		DeclineThreshold:      0.3,

		UseRapidDeclineDetection: true,
		RapidDeclineDays:         30,
		RapidDeclineThreshold:    0.15,

		UseBoxDetection:     true,
		BoxQualityThreshold: 0.6,

		BreakthroughConfirmationDays: 1,

		RevenueGrowthPercentile: 0.3,
		ProfitGrowthPercentile:  0.3,
		ROEPercentile:           0.3,
		LiabilityPercentile:     0.3,
		PEPercentile:            0.7,
		PBPercentile:            0.7,
		FundamentalYearsToCheck: 3,

		WindowWeights: map[int]float64{},

		ShortCircuit:  true,
		ExpectedCount: 10,

		MaxWorkers:    5,
		RetryAttempts: 2,
		RetryDelay:    1,
	}
}

// Validate rejects out-of-range parameters. Every violation is reported, not
// only the first; the combined error matches apperrors.ErrInvalidConfig.
func (c *ScanConfig) Validate() error {
	var errs error
	add := func(field string, value interface{}, msg string) {
		errs = multierr.Append(errs, apperrors.NewConfigError(field, value, msg))
	}

	if len(c.Windows) == 0 {
		add("windows", c.Windows, "at least one window size is required")
	}
	seen := make(map[int]bool, len(c.Windows))
	for _, w := range c.Windows {
		if w <= 0 {
			add("windows", w, "window size must be positive")
		}
		if seen[w] {
			add("windows", w, "duplicate window size")
		}
		seen[w] = true
	}

	fractions := []struct {
		field string
		value float64
	}{
		{"box_threshold", c.BoxThreshold},
		{"ma_diff_threshold", c.MADiffThreshold},
		{"volatility_threshold", c.VolatilityThreshold},
		{"volume_change_threshold", c.VolumeChangeThreshold},
		{"volume_stability_threshold", c.VolumeStabilityThreshold},
		{"decline_threshold", c.DeclineThreshold},
		{"rapid_decline_threshold", c.RapidDeclineThreshold},
		{"box_quality_threshold", c.BoxQualityThreshold},
	}
	for _, f := range fractions {
		if f.value <= 0 || f.value >= 1 {
			add(f.field, f.value, "must be between 0 and 1 (exclusive)")
		}
	}

	percentiles := []struct {
		field string
		value float64
	}{
		{"revenue_growth_percentile", c.RevenueGrowthPercentile},
		{"profit_growth_percentile", c.ProfitGrowthPercentile},
		{"roe_percentile", c.ROEPercentile},
		{"liability_percentile", c.LiabilityPercentile},
		{"pe_percentile", c.PEPercentile},
		{"pb_percentile", c.PBPercentile},
	}
	for _, p := range percentiles {
		if p.value < 0 || p.value > 1 {
			add(p.field, p.value, "must be between 0 and 1")
		}
	}

	if c.VolumeIncreaseThreshold <= 0 {
		add("volume_increase_threshold", c.VolumeIncreaseThreshold, "must be positive")
	}
	if c.HighPointLookbackDays <= 0 {
		add("high_point_lookback_days", c.HighPointLookbackDays, "must be positive")
	}
	if c.DeclinePeriodDays <= 0 {
		add("decline_period_days", c.DeclinePeriodDays, "must be positive")
	}
	if c.RapidDeclineDays <= 0 || c.RapidDeclineDays > c.HighPointLookbackDays {
		add("rapid_decline_days", c.RapidDeclineDays, "must be positive and not exceed the lookback")
	}
	if c.BreakthroughConfirmationDays < 0 {
		add("breakthrough_confirmation_days", c.BreakthroughConfirmationDays, "must not be negative")
	}
	if c.FundamentalYearsToCheck <= 0 {
		add("fundamental_years_to_check", c.FundamentalYearsToCheck, "must be positive")
	}
	for w, weight := range c.WindowWeights {
		if weight < 0 {
			add("window_weights", fmt.Sprintf("%d:%g", w, weight), "weights must not be negative")
		}
	}
	if c.ExpectedCount < 0 {
		add("expected_count", c.ExpectedCount, "must not be negative")
	}
	if c.MaxWorkers < 1 {
		add("max_workers", c.MaxWorkers, "must be at least 1")
	}
	if c.RetryAttempts < 0 {
		add("retry_attempts", c.RetryAttempts, "must not be negative")
	}
	if c.RetryDelay < 0 {
		add("retry_delay", c.RetryDelay, "must not be negative")
	}

	return errs
}

// SortedWindows returns the configured windows in ascending order without
// modifying the config.
func (c *ScanConfig) SortedWindows() []int {
	out := make([]int, len(c.Windows))
	copy(out, c.Windows)
	sort.Ints(out)
	return out
}

// Clone returns a deep copy so callers can hand a config to a background job
// without sharing the slice and map.
func (c ScanConfig) Clone() ScanConfig {
	out := c
	out.Windows = append([]int(nil), c.Windows...)
	out.WindowWeights = make(map[int]float64, len(c.WindowWeights))
	for k, v := range c.WindowWeights {
		out.WindowWeights[k] = v
	}
	return out
}
