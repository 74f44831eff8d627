package state

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	lite := &Store{dialect: DialectSQLite}

	q := "INSERT INTO t (a, b, c) VALUES (?, ?, ?)"
	assert.Equal(t, "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.CheckHealth(context.Background()))
}

func TestManagerState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, found, err := s.LoadManagerState(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	updated := time.Date(2025, 3, 4, 5, 6, 7, 123000, time.UTC)
	want := types.ManagerState{PositionID: 4242, TickLower: -540, TickUpper: 540, RangePercent: 5, TickSpacing: 60, UpdatedAt: updated}
	require.NoError(t, s.SaveManagerState(ctx, want))

	got, found, err := s.LoadManagerState(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	// Second save overwrites the single row.
	want.PositionID = types.NoPosition
	want.RangePercent = 7.5
	require.NoError(t, s.SaveManagerState(ctx, want))
	got, _, err = s.LoadManagerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NoPosition, got.PositionID)
	assert.Equal(t, 7.5, got.RangePercent)
}

func TestManagerState_PendingClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st := types.ManagerState{
		PositionID: 9, TickLower: -60, TickUpper: 60, RangePercent: 5, TickSpacing: 60,
		Closing: &types.PendingClose{
			Liquidity:  sdkmath.NewInt(33_837_499),
			PrincipalA: sdkmath.NewInt(999_999),
			PrincipalB: sdkmath.NewInt(999_998),
			Collected:  true,
			FreedA:     sdkmath.NewInt(1_000_299),
			FreedB:     sdkmath.NewInt(1_000_198),
		},
		UpdatedAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveManagerState(ctx, st))

	got, found, err := s.LoadManagerState(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.Closing)
	assert.Equal(t, "33837499", got.Closing.Liquidity.String())
	assert.Equal(t, "999999", got.Closing.PrincipalA.String())
	assert.Equal(t, "999998", got.Closing.PrincipalB.String())
	assert.True(t, got.Closing.Collected)
	assert.Equal(t, "1000299", got.Closing.FreedA.String())
	assert.Equal(t, "1000198", got.Closing.FreedB.String())

	// Finishing the close clears it.
	st.PositionID, st.Closing = types.NoPosition, nil
	require.NoError(t, s.SaveManagerState(ctx, st))
	got, _, err = s.LoadManagerState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.Closing)
}

func TestFeeRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	records := []types.FeeRecord{
		{ID: "a", Timestamp: base.Add(time.Hour), PositionID: 1, Source: types.FeeSourceCompound, AmountA: sdkmath.NewInt(100), AmountB: sdkmath.NewInt(5), USDValue: 10},
		{ID: "b", Timestamp: base.Add(2 * time.Hour), PositionID: 1, Source: types.FeeSourceCollect, AmountA: sdkmath.ZeroInt(), AmountB: sdkmath.ZeroInt(), USDValue: 0},
		{ID: "c", Timestamp: base.Add(3 * time.Hour), PositionID: 1, Source: types.FeeSourceCompound, AmountA: sdkmath.NewInt(1), AmountB: sdkmath.NewInt(1), USDValue: 2.5},
		{ID: "d", Timestamp: base.Add(8 * 24 * time.Hour), PositionID: 2, Source: types.FeeSourceClose, AmountA: sdkmath.NewInt(1), AmountB: sdkmath.NewInt(1), USDValue: 99},
	}
	for _, r := range records {
		require.NoError(t, s.RecordFee(ctx, r))
	}

	week, err := s.ListFeeRecords(ctx, base, base.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, week, 3)
	assert.Equal(t, "a", week[0].ID)
	assert.Equal(t, "100", week[0].AmountA.String())
	assert.Equal(t, types.FeeSourceCollect, week[1].Source)
	assert.True(t, week[1].AmountA.IsZero())
	assert.Equal(t, base.Add(3*time.Hour), week[2].Timestamp)

	totals, err := s.FeeTotalsBySource(ctx, base, base.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, types.FeeSourceCollect, totals[0].Source)
	assert.Equal(t, types.FeeSourceCompound, totals[1].Source)
	assert.Equal(t, 2, totals[1].Count)
	assert.InDelta(t, 12.5, totals[1].TotalUSD, 1e-9)

	// Duplicate ids are rejected.
	assert.Error(t, s.RecordFee(ctx, records[0]))
}

func TestOperationRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	ops := []types.OperationRecord{
		{ID: "1", Type: types.OpCreatePosition, Timestamp: base, PositionID: 7, TickLower: -60, TickUpper: 60, AmountA: sdkmath.NewInt(10), AmountB: sdkmath.NewInt(20), Liquidity: sdkmath.NewInt(30), Success: true},
		{ID: "2", Type: types.OpRebalance, Timestamp: base.Add(time.Minute), PositionID: 7, AmountA: sdkmath.ZeroInt(), AmountB: sdkmath.ZeroInt(), Liquidity: sdkmath.ZeroInt(), Success: false, Message: "mint reverted"},
		{ID: "3", Type: types.OpRebalance, Timestamp: base.Add(2 * time.Minute), PositionID: 8, AmountA: sdkmath.ZeroInt(), AmountB: sdkmath.ZeroInt(), Liquidity: sdkmath.NewInt(5), Success: true},
	}
	for _, op := range ops {
		require.NoError(t, s.RecordOperation(ctx, op))
	}

	recent, err := s.ListOperations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, "2", recent[1].ID)
	assert.False(t, recent[1].Success)
	assert.Equal(t, "mint reverted", recent[1].Message)

	stats, err := s.GetOperationStats(ctx, base)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, types.OpCreatePosition, stats[0].Type)
	assert.Equal(t, types.OpRebalance, stats[1].Type)
	assert.Equal(t, 2, stats[1].Total)
	assert.Equal(t, 1, stats[1].Successful)
	assert.Equal(t, base.Add(2*time.Minute), stats[1].LastAt)
}

func TestCycleCounter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.CurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.IncrementCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.ResetCycleNumber(ctx, 10))
	n, err = s.IncrementCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	assert.Error(t, s.ResetCycleNumber(ctx, -1))
}

func TestDropSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.DropSchema(ctx))

	_, _, err := s.LoadManagerState(ctx)
	assert.Error(t, err)

	require.NoError(t, s.EnsureSchema(ctx))
	_, found, err := s.LoadManagerState(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, _, err := s.LoadManagerState(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}
