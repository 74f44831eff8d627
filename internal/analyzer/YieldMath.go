/*

This file contains the fee APR and capital sizing math.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDivisionByZero    = errors.New("division by zero")
	ErrInvalidInput      = errors.New("invalid analyzer input")
	ErrInvalidPriceRatio = errors.New("price ratio must be positive and finite")
)

// ActiveLiquidityUSD is the USD value of liquidity that is in range at the current price.
//
// It is NOT the pool's aggregate TVL. A pool's TVL includes liquidity parked far from the
// current price and is typically one to two orders of magnitude larger than the active
// liquidity; feeding it into BaseFeeAPR understates the APR by the same amount. Use the
// venue's in-range liquidity (or a market data source that reports it) to build this value.
type ActiveLiquidityUSD float64

// TVLUSD is a pool's aggregate total value locked. It is deliberately a separate type:
// passing it where ActiveLiquidityUSD is expected requires a visible conversion.
type TVLUSD float64

// FeeTierDivisor converts a fee tier in pips (3000 = 0.30%) to a fraction.
const FeeTierDivisor = 1_000_000

// BaseFeeAPR returns (dailyVolumeUSD * 365 * feeTier/1e6) / activeLiquidity.
// feeTier is in pips, as the venue expresses it: 500, 3000, 10000.
func BaseFeeAPR(dailyVolumeUSD float64, feeTier uint32, activeLiquidity ActiveLiquidityUSD) (float64, error) {
	if math.IsNaN(dailyVolumeUSD) || math.IsInf(dailyVolumeUSD, 0) || dailyVolumeUSD < 0 {
		return 0, fmt.Errorf("%w: daily volume %v", ErrInvalidInput, dailyVolumeUSD)
	}
	liq := float64(activeLiquidity)
	if math.IsNaN(liq) || math.IsInf(liq, 0) {
		return 0, fmt.Errorf("%w: active liquidity %v", ErrInvalidInput, liq)
	}
	if liq <= 0 {
		return 0, fmt.Errorf("%w: active liquidity must be positive", ErrDivisionByZero)
	}
	return dailyVolumeUSD * 365 * float64(feeTier) / FeeTierDivisor / liq, nil
}

// EffectiveAPR scales a base APR by a concentration factor.
func EffectiveAPR(baseAPR, concentrationFactor float64) float64 {
	return baseAPR * concentrationFactor
}

// RequiredCapital returns the USD capital needed to earn targetAnnualFeesUSD at effectiveAPR.
func RequiredCapital(targetAnnualFeesUSD, effectiveAPR float64) (float64, error) {
	if math.IsNaN(effectiveAPR) || effectiveAPR <= 0 {
		return 0, fmt.Errorf("%w: effective APR %v must be positive", ErrDivisionByZero, effectiveAPR)
	}
	if math.IsNaN(targetAnnualFeesUSD) || math.IsInf(targetAnnualFeesUSD, 0) || targetAnnualFeesUSD < 0 {
		return 0, fmt.Errorf("%w: target fees %v", ErrInvalidInput, targetAnnualFeesUSD)
	}
	return targetAnnualFeesUSD / effectiveAPR, nil
}

// ActiveShare estimates in-range liquidity as a fraction of aggregate TVL. share must be in (0, 1];
// it has to come from observation of the pool's liquidity distribution, never be left at 1 by default.
func (t TVLUSD) ActiveShare(share float64) (ActiveLiquidityUSD, error) {
	if math.IsNaN(share) || share <= 0 || share > 1 {
		return 0, fmt.Errorf("%w: active share %v must be in (0, 1]", ErrInvalidInput, share)
	}
	tvl := float64(t)
	if math.IsNaN(tvl) || math.IsInf(tvl, 0) || tvl < 0 {
		return 0, fmt.Errorf("%w: tvl %v", ErrInvalidInput, tvl)
	}
	return ActiveLiquidityUSD(tvl * share), nil
}
