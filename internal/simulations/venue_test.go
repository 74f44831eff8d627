package simulations

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/venue"
)

var (
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func TestMintDecreaseCollectBurnCycle(t *testing.T) {
	ctx := context.Background()
	v := NewVenue(60, 0, custody)
	v.Fund(custody, types.AssetA, sdkmath.NewInt(1_000_000))
	v.Fund(custody, types.AssetB, sdkmath.NewInt(1_000_000))

	res, err := v.OpenPosition(ctx, venue.MintParams{
		TickLower: -600, TickUpper: 600,
		AmountADesired: sdkmath.NewInt(1_000_000), AmountBDesired: sdkmath.NewInt(1_000_000),
	})
	require.NoError(t, err)
	assert.NotEqual(t, types.NoPosition, res.ID)
	assert.True(t, res.Liquidity.IsPositive())
	assert.True(t, res.UsedA.LTE(sdkmath.NewInt(1_000_000)))
	assert.True(t, res.UsedB.LTE(sdkmath.NewInt(1_000_000)))

	remainingA := v.BalanceOf(custody, types.AssetA)
	assert.Equal(t, sdkmath.NewInt(1_000_000).Sub(res.UsedA).String(), remainingA.String())

	require.NoError(t, v.AccrueFees(res.ID, sdkmath.NewInt(10), sdkmath.NewInt(20)))

	a, b, err := v.DecreaseLiquidityToZero(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, a.LTE(res.UsedA))
	assert.True(t, b.LTE(res.UsedB))

	// burn is refused while tokens are owed
	assert.ErrorIs(t, v.Burn(ctx, res.ID), venue.ErrVenue)

	ca, cb, err := v.Collect(ctx, res.ID, custody)
	require.NoError(t, err)
	assert.Equal(t, a.AddRaw(10).String(), ca.String())
	assert.Equal(t, b.AddRaw(20).String(), cb.String())

	require.NoError(t, v.Burn(ctx, res.ID))
	_, ok := v.Position(res.ID)
	assert.False(t, ok)
}

func TestMintRejectsMisalignedTicks(t *testing.T) {
	v := NewVenue(60, 0, custody)
	v.Fund(custody, types.AssetA, sdkmath.NewInt(100))
	_, err := v.OpenPosition(context.Background(), venue.MintParams{
		TickLower: -50, TickUpper: 60,
		AmountADesired: sdkmath.NewInt(100), AmountBDesired: sdkmath.NewInt(100),
	})
	assert.ErrorIs(t, err, venue.ErrVenue)
}

func TestFailureInjectionAndHooks(t *testing.T) {
	v := NewVenue(10, 5, custody)
	hits := 0
	v.OnCall(OpCurrentTick, func() { hits++ })
	v.FailOn(OpCurrentTick, errors.New("rpc timeout"))

	_, err := v.CurrentTick(context.Background())
	assert.ErrorIs(t, err, venue.ErrVenue)
	assert.Equal(t, 1, hits)

	v.FailOn(OpCurrentTick, nil)
	tick, err := v.CurrentTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(5), tick)
	assert.Equal(t, []Op{OpCurrentTick, OpCurrentTick}, v.Calls())
}

func TestPullAndPush(t *testing.T) {
	ctx := context.Background()
	v := NewVenue(60, 0, custody)
	v.Fund(owner, types.AssetB, sdkmath.NewInt(50))

	assert.ErrorIs(t, v.Pull(ctx, types.AssetB, owner, sdkmath.NewInt(51)), venue.ErrVenue)
	require.NoError(t, v.Pull(ctx, types.AssetB, owner, sdkmath.NewInt(50)))
	assert.Equal(t, int64(50), v.BalanceOf(custody, types.AssetB).Int64())

	sent, err := v.Push(ctx, types.AssetB, owner, sdkmath.NewInt(20))
	require.NoError(t, err)
	assert.Equal(t, int64(20), sent.Int64())
	assert.Equal(t, int64(20), v.BalanceOf(owner, types.AssetB).Int64())

	sent, err = v.Push(ctx, types.AssetA, owner, sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, sent.IsZero())
}
