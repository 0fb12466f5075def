package indicators

// SMA returns the simple moving average series of values. Entries before the
// first full period are zero.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(values))
	var window float64
	for i, v := range values {
		window += v
		if i >= period {
			window -= values[i-period]
		}
		if i >= period-1 {
			result[i] = window / float64(period)
		}
	}
	return result, nil
}

// LastSMA returns the simple moving average over the final period values.
func LastSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(values) < period {
		return 0, ErrInsufficientData
	}
	return Mean(values[len(values)-period:]), nil
}

// EMA returns the exponential moving average series seeded with the SMA of
// the first period values.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)
	result[period-1] = Mean(values[:period])
	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}
	return result, nil
}

// MeanPairwiseSpread returns the mean absolute pairwise difference of values
// relative to their mean. It measures how tightly a set of moving averages
// converge; 0 means identical.
func MeanPairwiseSpread(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	if m == 0 {
		return 0
	}
	var total float64
	pairs := 0
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			d := values[i] - values[j]
			if d < 0 {
				d = -d
			}
			total += d
			pairs++
		}
	}
	return total / float64(pairs) / m
}
