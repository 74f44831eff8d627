package tickmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTick(t *testing.T) {
	tick, err := PriceToTick(1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), tick)

	tick, err = PriceToTick(2)
	require.NoError(t, err)
	assert.Equal(t, int32(6931), tick)

	tick, err = PriceToTick(0.5)
	require.NoError(t, err)
	assert.Equal(t, int32(-6932), tick)

	tick, err = PriceToTick(1e300)
	require.NoError(t, err)
	assert.Equal(t, MaxTick, tick)

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := PriceToTick(bad)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
}

func TestPriceToTickMonotonic(t *testing.T) {
	prev := MinTick
	for p := 0.01; p < 10_000; p *= 1.37 {
		tick, err := PriceToTick(p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tick, prev)
		prev = tick
	}
}

func TestTickToPrice(t *testing.T) {
	assert.InDelta(t, 1.0, TickToPrice(0), 1e-12)
	assert.InDelta(t, 1.0001, TickToPrice(1), 1e-12)
	assert.InDelta(t, math.Sqrt(TickToPrice(6000)), TickToSqrtPrice(6000), 1e-9)
}

func TestRoundToSpacing(t *testing.T) {
	cases := []struct {
		tick    int32
		spacing int32
		dir     Direction
		want    int32
	}{
		{125, 60, RoundDown, 120},
		{125, 60, RoundUp, 180},
		{-125, 60, RoundDown, -180},
		{-125, 60, RoundUp, -120},
		{120, 60, RoundDown, 120},
		{120, 60, RoundUp, 120},
		{-5, 10, RoundDown, -10},
		{-5, 10, RoundUp, 0},
		{7, 1, RoundUp, 7},
	}
	for _, c := range cases {
		got, err := RoundToSpacing(c.tick, c.spacing, c.dir)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "tick=%d spacing=%d dir=%d", c.tick, c.spacing, c.dir)
	}

	_, err := RoundToSpacing(10, 0, RoundDown)
	assert.ErrorIs(t, err, ErrInvalidSpacing)
}

func TestRangeToTicksBracketsCurrentTick(t *testing.T) {
	spacings := []int32{1, 10, 60, 200}
	ranges := []float64{0.01, 0.5, 1, 5, 15, 50, 99.9}
	currents := []int32{-200_000, -6932, -1, 0, 1, 59, 60, 61, 6931, 195_000}

	for _, spacing := range spacings {
		for _, r := range ranges {
			for _, current := range currents {
				lower, upper, err := RangeToTicks(current, r, spacing)
				require.NoError(t, err)
				assert.Less(t, lower, current)
				assert.Greater(t, upper, current)
				assert.Zero(t, lower%spacing)
				assert.Zero(t, upper%spacing)
			}
		}
	}
}

func TestRangeToTicksUsesLogPriceSpace(t *testing.T) {
	lower, upper, err := RangeToTicks(0, 15, 1)
	require.NoError(t, err)
	// log(0.85)/log(1.0001) ≈ -1625.3 and log(1.15)/log(1.0001) ≈ 1397.7
	assert.Equal(t, int32(-1626), lower)
	assert.Equal(t, int32(1398), upper)
	assert.InDelta(t, 0.85, TickToPrice(lower), 1e-3)
	assert.InDelta(t, 1.15, TickToPrice(upper), 1e-3)
}

func TestRangeToTicksRejectsInvalidInput(t *testing.T) {
	for _, r := range []float64{0, -1, 100, 150, math.NaN()} {
		_, _, err := RangeToTicks(0, r, 60)
		assert.ErrorIs(t, err, ErrInvalidRange, "range %v", r)
	}
	_, _, err := RangeToTicks(0, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidSpacing)

	_, _, err = RangeToTicks(MinTick, 10, 60)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRangeToSqrtPriceRatios(t *testing.T) {
	lo, hi, err := RangeToSqrtPriceRatios(15)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.85), lo, 1e-12)
	assert.InDelta(t, math.Sqrt(1.15), hi, 1e-12)

	_, _, err = RangeToSqrtPriceRatios(100)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestValidateTicks(t *testing.T) {
	assert.NoError(t, ValidateTicks(-120, 120, 60))
	assert.ErrorIs(t, ValidateTicks(120, 120, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateTicks(180, 120, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateTicks(-100, 120, 60), ErrInvalidRange)
	assert.NoError(t, ValidateTicks(MinTick, 120, 1))
	assert.ErrorIs(t, ValidateTicks(-887280, 120, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateTicks(-120, 120, -60), ErrInvalidSpacing)
}
