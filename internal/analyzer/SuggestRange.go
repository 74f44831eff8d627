package analyzer

import (
	"fmt"
	"math"
)

const (
	MinSuggestedRangePercent = 0.5
	MaxSuggestedRangePercent = 99.0
)

// SuggestRangePercent sizes a range so that a zScore-sigma move over horizonDays stays inside it,
// given an annualized log-return volatility. The result is clamped to
// [MinSuggestedRangePercent, MaxSuggestedRangePercent].
func SuggestRangePercent(annualVolatility, horizonDays, zScore float64) (float64, error) {
	for _, v := range []float64{annualVolatility, horizonDays, zScore} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, fmt.Errorf("%w: range suggestion inputs must be finite and non-negative", ErrInvalidInput)
		}
	}
	sigma := annualVolatility * math.Sqrt(horizonDays/365)
	pct := (math.Exp(zScore*sigma) - 1) * 100

	pct = math.Max(MinSuggestedRangePercent, math.Min(MaxSuggestedRangePercent, pct))

	analyzerLogger.Debug().
		Float64("annualVolatility", annualVolatility).
		Float64("horizonDays", horizonDays).
		Float64("zScore", zScore).
		Float64("rangePercent", pct).
		Msg("Suggested range percent")

	return pct, nil
}
