// Package analysis holds the types shared by the platform-period analysis
// packages: indicators, patterns, filters, scoring and mark lines.
package analysis

// Level represents a support or resistance level.
type Level struct {
	Price      float64   `json:"price"`
	Type       LevelType `json:"type"`
	TouchCount int       `json:"touch_count"`
	Source     string    `json:"source"`
}

// LevelType represents the type of price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// Prices returns the level prices in order.
func Prices(levels []Level) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
