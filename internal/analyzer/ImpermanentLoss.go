package analyzer

import (
	"fmt"
	"math"
)

// ImpermanentLoss returns 2*sqrt(p)/(1+p) - 1 for a price ratio p = newPrice/entryPrice.
// The result is 0 at p = 1 and negative otherwise.
func ImpermanentLoss(priceRatio float64) (float64, error) {
	if priceRatio <= 0 || math.IsNaN(priceRatio) || math.IsInf(priceRatio, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPriceRatio, priceRatio)
	}
	return 2*math.Sqrt(priceRatio)/(1+priceRatio) - 1, nil
}
