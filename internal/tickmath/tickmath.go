/*

This file converts between prices, square-root prices and ticks of a Uniswap-V3-style pool.
Prices here are raw pool prices (token1 minor units per token0 minor unit).

*/

package tickmath

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinTick and MaxTick bound the tick range of the venue.
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// TickBase is the price ratio between two adjacent ticks.
	TickBase = 1.0001
)

var (
	ErrInvalidRange   = errors.New("invalid range")
	ErrInvalidSpacing = errors.New("tick spacing must be positive")
	ErrInvalidPrice   = errors.New("price must be positive and finite")
)

var logTickBase = math.Log(TickBase)

// Direction selects how a tick is snapped to the spacing grid.
type Direction int

const (
	RoundDown Direction = iota // Lower bounds
	RoundUp                    // Upper bounds
)

// PriceToTick returns floor(log(price)/log(1.0001)) clamped to [MinTick, MaxTick].
func PriceToTick(price float64) (int32, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	return clampTick(math.Floor(math.Log(price) / logTickBase)), nil
}

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(TickBase, float64(tick))
}

// TickToSqrtPrice returns sqrt(1.0001^tick).
func TickToSqrtPrice(tick int32) float64 {
	return math.Pow(TickBase, float64(tick)/2)
}

// RoundToSpacing snaps tick to a multiple of spacing, flooring for RoundDown and
// ceiling for RoundUp. Negative ticks follow the same floor/ceil semantics.
func RoundToSpacing(tick, spacing int32, dir Direction) (int32, error) {
	if spacing <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSpacing, spacing)
	}
	q := tick / spacing
	r := tick % spacing
	if r != 0 {
		if dir == RoundDown && tick < 0 {
			q--
		}
		if dir == RoundUp && tick > 0 {
			q++
		}
	}
	return q * spacing, nil
}

// UsableTickBounds returns the lowest and highest ticks on the spacing grid inside [MinTick, MaxTick].
func UsableTickBounds(spacing int32) (int32, int32, error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidSpacing, spacing)
	}
	minUsable, _ := RoundToSpacing(MinTick, spacing, RoundUp)
	maxUsable, _ := RoundToSpacing(MaxTick, spacing, RoundDown)
	return minUsable, maxUsable, nil
}

// ValidateRangePercent accepts 0 < rangePercent < 100.
func ValidateRangePercent(rangePercent float64) error {
	if math.IsNaN(rangePercent) || math.IsInf(rangePercent, 0) {
		return fmt.Errorf("%w: range percent is not finite", ErrInvalidRange)
	}
	if rangePercent <= 0 || rangePercent >= 100 {
		return fmt.Errorf("%w: range percent %v outside (0, 100)", ErrInvalidRange, rangePercent)
	}
	return nil
}

// RangeToTicks converts ±rangePercent around currentTick into spacing-aligned bounds.
// The deltas are taken in log-price space, so the range is asymmetric in ticks.
// The result always satisfies lower < currentTick < upper.
func RangeToTicks(currentTick int32, rangePercent float64, spacing int32) (int32, int32, error) {
	if err := ValidateRangePercent(rangePercent); err != nil {
		return 0, 0, err
	}
	minUsable, maxUsable, err := UsableTickBounds(spacing)
	if err != nil {
		return 0, 0, err
	}

	lowerDelta := math.Floor(math.Log(1-rangePercent/100) / logTickBase)
	upperDelta := math.Ceil(math.Log(1+rangePercent/100) / logTickBase)

	lower, _ := RoundToSpacing(clampTick(float64(currentTick)+lowerDelta), spacing, RoundDown)
	upper, _ := RoundToSpacing(clampTick(float64(currentTick)+upperDelta), spacing, RoundUp)

	if lower < minUsable {
		lower = minUsable
	}
	if upper > maxUsable {
		upper = maxUsable
	}
	if lower >= currentTick || upper <= currentTick {
		return 0, 0, fmt.Errorf("%w: current tick %d too close to the tick bounds for spacing %d", ErrInvalidRange, currentTick, spacing)
	}
	return lower, upper, nil
}

// RangeToSqrtPriceRatios returns sqrt(1-r/100) and sqrt(1+r/100), the square-root
// price ratios of the range bounds relative to the current price.
func RangeToSqrtPriceRatios(rangePercent float64) (float64, float64, error) {
	if err := ValidateRangePercent(rangePercent); err != nil {
		return 0, 0, err
	}
	return math.Sqrt(1 - rangePercent/100), math.Sqrt(1 + rangePercent/100), nil
}

// ValidateTicks checks ordering, spacing alignment and bounds of a position range.
func ValidateTicks(tickLower, tickUpper, spacing int32) error {
	minUsable, maxUsable, err := UsableTickBounds(spacing)
	if err != nil {
		return err
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: tickLower %d must be below tickUpper %d", ErrInvalidRange, tickLower, tickUpper)
	}
	if tickLower%spacing != 0 || tickUpper%spacing != 0 {
		return fmt.Errorf("%w: ticks %d/%d are not multiples of spacing %d", ErrInvalidRange, tickLower, tickUpper, spacing)
	}
	if tickLower < minUsable || tickUpper > maxUsable {
		return fmt.Errorf("%w: ticks %d/%d outside [%d, %d]", ErrInvalidRange, tickLower, tickUpper, minUsable, maxUsable)
	}
	return nil
}

// InRange reports whether currentTick lies inside [tickLower, tickUpper).
func InRange(currentTick, tickLower, tickUpper int32) bool {
	return currentTick >= tickLower && currentTick < tickUpper
}

func clampTick(t float64) int32 {
	if t < float64(MinTick) {
		return MinTick
	}
	if t > float64(MaxTick) {
		return MaxTick
	}
	return int32(t)
}
