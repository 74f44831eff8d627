package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/elys-network/clpm/internal/types"
)

// ErrInsufficientData means fewer than two usable prices were given.
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// CalculateVolatility returns the annualized population standard deviation of log returns.
// periodsPerYear matches the sampling interval: 8760 for hourly prices, 365 for daily.
// Input order does not matter and the slice is not modified.
func CalculateVolatility(prices []types.PriceData, periodsPerYear float64) (float64, error) {
	if periodsPerYear <= 0 || math.IsNaN(periodsPerYear) {
		return 0, ErrInvalidInput
	}
	if len(prices) < 2 {
		return 0, ErrInsufficientData
	}

	returns := logReturns(prices)
	if len(returns) == 0 {
		return 0, ErrInsufficientData
	}

	mean, variance := meanVariance(returns)
	analyzerLogger.Debug().
		Int("returns", len(returns)).
		Float64("meanReturn", mean).
		Msg("Computed log-return variance")

	return math.Sqrt(variance * periodsPerYear), nil
}

// logReturns sorts a copy by time and returns ln(p[i]/p[i-1]), skipping pairs with a non-positive price.
func logReturns(prices []types.PriceData) []float64 {
	sorted := append([]types.PriceData(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]float64, 0, len(sorted)-1)
	skipped := 0
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Price, sorted[i].Price
		if prev <= 0 || cur <= 0 {
			skipped++
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	if skipped > 0 {
		analyzerLogger.Warn().Int("skipped", skipped).Msg("Skipped returns with non-positive prices")
	}
	return out
}

func meanVariance(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, sq / float64(len(xs))
}
