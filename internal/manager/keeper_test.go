package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/types"
)

type scriptedCompounder struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	caller common.Address
}

func (s *scriptedCompounder) Compound(ctx context.Context, caller common.Address) (types.CompoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caller = caller
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return types.CompoundResult{}, err
	}
	return types.CompoundResult{
		PositionID:     1,
		FeesA:          sdkmath.NewInt(1),
		FeesB:          sdkmath.NewInt(1),
		AddedLiquidity: sdkmath.NewInt(10),
		InRange:        true,
	}, nil
}

func (s *scriptedCompounder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memCounter struct{ start int }

func (m *memCounter) IncrementCycleNumber(ctx context.Context) (int, error) {
	m.start++
	return m.start, nil
}

func TestKeeper_RunCycle(t *testing.T) {
	boom := errors.New("rpc down")
	c := &scriptedCompounder{errs: []error{nil, ErrNoFeesToCompound, boom}}
	k := NewKeeper(c, strangerAddr, nil)
	ctx := context.Background()

	res, err := k.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PositionID(1), res.PositionID)

	_, err = k.RunCycle(ctx)
	assert.ErrorIs(t, err, ErrNoFeesToCompound)

	_, err = k.RunCycle(ctx)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 3, k.Cycles())
	assert.Equal(t, strangerAddr, c.caller)
}

func TestKeeper_RunLoopRunsImmediatelyAndStops(t *testing.T) {
	c := &scriptedCompounder{}
	k := NewKeeper(c, strangerAddr, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		k.RunLoop(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keeper loop did not stop after cancellation")
	}
	assert.Equal(t, 1, c.count())
}

func TestKeeper_CompoundsAgainstManager(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)
	require.NoError(t, f.venue.AccrueFees(created.PositionID, sdkmath.NewInt(5_000), sdkmath.NewInt(5_000)))

	k := NewKeeper(f.mgr, strangerAddr, &memCounter{start: 41})
	res, err := k.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AddedLiquidity.IsPositive())

	_, err = k.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrNoFeesToCompound)
	assert.Equal(t, 2, k.Cycles())
}
