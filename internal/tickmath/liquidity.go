package tickmath

import (
	"errors"
	"math"
)

var ErrInvalidSqrtPrice = errors.New("sqrt price bounds are invalid")

// LiquidityForAmounts returns the largest liquidity that amount0/amount1 can back for a
// range [sqrtA, sqrtB] at the current sqrt price sqrtP. Amounts are in raw minor units.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 float64) (float64, error) {
	if err := validateSqrtBounds(sqrtP, sqrtA, sqrtB); err != nil {
		return 0, err
	}
	switch {
	case sqrtP <= sqrtA:
		return liquidity0(sqrtA, sqrtB, amount0), nil
	case sqrtP >= sqrtB:
		return liquidity1(sqrtA, sqrtB, amount1), nil
	default:
		return math.Min(liquidity0(sqrtP, sqrtB, amount0), liquidity1(sqrtA, sqrtP, amount1)), nil
	}
}

// AmountsForLiquidity returns the token amounts represented by liquidity at sqrtP.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity float64) (float64, float64, error) {
	if err := validateSqrtBounds(sqrtP, sqrtA, sqrtB); err != nil {
		return 0, 0, err
	}
	if liquidity < 0 || math.IsNaN(liquidity) {
		return 0, 0, ErrInvalidSqrtPrice
	}
	switch {
	case sqrtP <= sqrtA:
		return amount0(sqrtA, sqrtB, liquidity), 0, nil
	case sqrtP >= sqrtB:
		return 0, amount1(sqrtA, sqrtB, liquidity), nil
	default:
		return amount0(sqrtP, sqrtB, liquidity), amount1(sqrtA, sqrtP, liquidity), nil
	}
}

func liquidity0(sqrtA, sqrtB, amount float64) float64 {
	return amount * sqrtA * sqrtB / (sqrtB - sqrtA)
}

func liquidity1(sqrtA, sqrtB, amount float64) float64 {
	return amount / (sqrtB - sqrtA)
}

func amount0(sqrtA, sqrtB, liquidity float64) float64 {
	return liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB)
}

func amount1(sqrtA, sqrtB, liquidity float64) float64 {
	return liquidity * (sqrtB - sqrtA)
}

func validateSqrtBounds(sqrtP, sqrtA, sqrtB float64) error {
	for _, v := range []float64{sqrtP, sqrtA, sqrtB} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidSqrtPrice
		}
	}
	if sqrtA >= sqrtB {
		return ErrInvalidSqrtPrice
	}
	return nil
}
