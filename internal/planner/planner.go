/*

This file plans how collected fees are redeployed into the active position.

The asset with the greater USD value (at the validated oracle price) is used in full and the
other asset is used only as far as the position's range requires at the current tick. When
the current tick is outside the range the position accepts a single asset, and only that
asset is used.

*/

package planner

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/tickmath"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmounts    = errors.New("amounts must be non-negative")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidTicks      = errors.New("ticks are invalid")
	ErrNothingToDeploy   = errors.New("no amounts to deploy")
	ErrMathematicalError = errors.New("mathematical calculation error")
)

var plannerLogger = logger.GetForComponent("deposit_planner")

// SplitInput carries the held amounts, the validated price and the target range.
type SplitInput struct {
	HeldA       sdkmath.Int
	HeldB       sdkmath.Int
	DecimalsA   int
	DecimalsB   int
	Price       types.PriceQuote // USD per whole token A
	CurrentTick int32
	TickLower   int32
	TickUpper   int32
}

// Split is the planned deposit.
type Split struct {
	Prioritized types.Asset `json:"prioritized"`
	UseA        sdkmath.Int `json:"use_a"`
	UseB        sdkmath.Int `json:"use_b"`
	ValueAUSD   float64     `json:"value_a_usd"`
	ValueBUSD   float64     `json:"value_b_usd"`
}

// PrioritizedSplit returns how much of each held asset to add to the position.
func PrioritizedSplit(in SplitInput) (Split, error) {
	if err := validateSplitInput(in); err != nil {
		plannerLogger.Error().Err(err).Msg("Split input validation failed")
		return Split{}, err
	}

	valueA, err := utils.USDValue(in.HeldA, in.DecimalsA, sdkmath.ZeroInt(), in.DecimalsB, in.Price.Dec())
	if err != nil {
		return Split{}, errors.Join(ErrMathematicalError, err)
	}
	valueB, err := utils.USDValue(sdkmath.ZeroInt(), in.DecimalsA, in.HeldB, in.DecimalsB, in.Price.Dec())
	if err != nil {
		return Split{}, errors.Join(ErrMathematicalError, err)
	}

	split := Split{
		Prioritized: types.AssetB,
		UseA:        sdkmath.ZeroInt(),
		UseB:        sdkmath.ZeroInt(),
		ValueAUSD:   valueA,
		ValueBUSD:   valueB,
	}
	if valueA >= valueB {
		split.Prioritized = types.AssetA
	}

	sqrtP := tickmath.TickToSqrtPrice(in.CurrentTick)
	sqrtL := tickmath.TickToSqrtPrice(in.TickLower)
	sqrtU := tickmath.TickToSqrtPrice(in.TickUpper)

	switch {
	case in.CurrentTick < in.TickLower:
		split.UseA = in.HeldA
		plannerLogger.Info().Int32("currentTick", in.CurrentTick).Msg("Price below range, position accepts token A only")
	case in.CurrentTick >= in.TickUpper:
		split.UseB = in.HeldB
		plannerLogger.Info().Int32("currentTick", in.CurrentTick).Msg("Price above range, position accepts token B only")
	case split.Prioritized == types.AssetA:
		liq := toFloat(in.HeldA) * sqrtP * sqrtU / (sqrtU - sqrtP)
		_, needB, err := tickmath.AmountsForLiquidity(sqrtP, sqrtL, sqrtU, liq)
		if err != nil {
			return Split{}, errors.Join(ErrMathematicalError, err)
		}
		split.UseA = in.HeldA
		split.UseB = utils.MinInt(floorInt(needB), in.HeldB)
	default:
		liq := toFloat(in.HeldB) / (sqrtP - sqrtL)
		needA, _, err := tickmath.AmountsForLiquidity(sqrtP, sqrtL, sqrtU, liq)
		if err != nil {
			return Split{}, errors.Join(ErrMathematicalError, err)
		}
		split.UseA = utils.MinInt(floorInt(needA), in.HeldA)
		split.UseB = in.HeldB
	}

	if split.UseA.IsZero() && split.UseB.IsZero() {
		return Split{}, ErrNothingToDeploy
	}

	plannerLogger.Debug().
		Str("prioritized", string(split.Prioritized)).
		Float64("valueAUSD", valueA).
		Float64("valueBUSD", valueB).
		Str("useA", split.UseA.String()).
		Str("useB", split.UseB.String()).
		Msg("Prioritized split planned")

	return split, nil
}

func validateSplitInput(in SplitInput) error {
	if in.HeldA.IsNil() || in.HeldB.IsNil() || in.HeldA.IsNegative() || in.HeldB.IsNegative() {
		return ErrInvalidAmounts
	}
	if in.Price.Value.IsNil() || !in.Price.Value.IsPositive() {
		return ErrInvalidPrice
	}
	if in.TickLower >= in.TickUpper {
		return fmt.Errorf("%w: lower %d must be below upper %d", ErrInvalidTicks, in.TickLower, in.TickUpper)
	}
	if in.DecimalsA < 0 || in.DecimalsA > 18 || in.DecimalsB < 0 || in.DecimalsB > 18 {
		return fmt.Errorf("%w: decimals must be within [0, 18]", ErrInvalidAmounts)
	}
	return nil
}

func toFloat(i sdkmath.Int) float64 {
	f, _ := new(big.Float).SetInt(i.BigInt()).Float64()
	return f
}

func floorInt(f float64) sdkmath.Int {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return sdkmath.ZeroInt()
	}
	out, _ := new(big.Float).SetFloat64(math.Floor(f)).Int(nil)
	return sdkmath.NewIntFromBigInt(out)
}
