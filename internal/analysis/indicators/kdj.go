package indicators

import (
	"fmt"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// KDJ calculates the KDJ oscillator: a stochastic %K smoothed into K, a
// further smoothed D, and J = 3K - 2D.
type KDJ struct {
	kPeriod int
	dPeriod int
	jPeriod int
}

// NewKDJ creates a new KDJ indicator. The conventional setting is 9, 3, 3.
func NewKDJ(kPeriod, dPeriod, jPeriod int) *KDJ {
	return &KDJ{
		kPeriod: kPeriod,
		dPeriod: dPeriod,
		jPeriod: jPeriod,
	}
}

func (k *KDJ) Name() string {
	return fmt.Sprintf("KDJ_%d_%d_%d", k.kPeriod, k.dPeriod, k.jPeriod)
}

// Period is the number of candles needed before the first full J value.
func (k *KDJ) Period() int {
	return k.kPeriod + k.dPeriod + k.jPeriod - 2
}

// Calculate returns the "k", "d" and "j" series. Entries before the warm-up
// are zero.
func (k *KDJ) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if k.kPeriod <= 0 || k.dPeriod <= 0 || k.jPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < k.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	highs := models.Highs(candles)
	lows := models.Lows(candles)
	closes := models.Closes(candles)

	rsv := make([]float64, n)
	kLine := make([]float64, n)
	dLine := make([]float64, n)
	jLine := make([]float64, n)

	for i := k.kPeriod - 1; i < n; i++ {
		hh := Highest(highs[i-k.kPeriod+1 : i+1])
		ll := Lowest(lows[i-k.kPeriod+1 : i+1])
		if hh == ll {
			rsv[i] = 50
		} else {
			rsv[i] = 100 * (closes[i] - ll) / (hh - ll)
		}
	}

	kStart := k.kPeriod + k.dPeriod - 2
	for i := kStart; i < n; i++ {
		kLine[i] = Mean(rsv[i-k.dPeriod+1 : i+1])
	}

	dStart := kStart + k.jPeriod - 1
	for i := dStart; i < n; i++ {
		dLine[i] = Mean(kLine[i-k.jPeriod+1 : i+1])
		jLine[i] = 3*kLine[i] - 2*dLine[i]
	}

	return map[string][]float64{
		"k": kLine,
		"d": dLine,
		"j": jLine,
	}, nil
}
