package tickmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiquidityRoundTrip(t *testing.T) {
	sqrtA, sqrtB := TickToSqrtPrice(-1200), TickToSqrtPrice(1200)
	sqrtP := TickToSqrtPrice(0)

	liq, err := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, 1_000_000, 1_000_000)
	require.NoError(t, err)
	require.Greater(t, liq, 0.0)

	a0, a1, err := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	// Symmetric range at price 1 consumes roughly equal amounts, one side fully.
	assert.LessOrEqual(t, a0, 1_000_000.0+1e-6)
	assert.LessOrEqual(t, a1, 1_000_000.0+1e-6)
	assert.InDelta(t, 1_000_000, max(a0, a1), 1)
}

func TestAmountsOutOfRange(t *testing.T) {
	sqrtA, sqrtB := TickToSqrtPrice(600), TickToSqrtPrice(1200)

	a0, a1, err := AmountsForLiquidity(TickToSqrtPrice(0), sqrtA, sqrtB, 1e6)
	require.NoError(t, err)
	assert.Greater(t, a0, 0.0)
	assert.Zero(t, a1)

	a0, a1, err = AmountsForLiquidity(TickToSqrtPrice(2000), sqrtA, sqrtB, 1e6)
	require.NoError(t, err)
	assert.Zero(t, a0)
	assert.Greater(t, a1, 0.0)
}

func TestLiquidityInvalidBounds(t *testing.T) {
	_, err := LiquidityForAmounts(1, 1.1, 1.0, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
	_, _, err = AmountsForLiquidity(0, 0.9, 1.1, 1)
	assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
}
