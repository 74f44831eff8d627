package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/types"
)

// Compounder is the slice of the manager the keeper drives.
type Compounder interface {
	Compound(ctx context.Context, caller common.Address) (types.CompoundResult, error)
}

// CycleCounter persists the keeper's cycle numbering across restarts. *state.Store satisfies it.
type CycleCounter interface {
	IncrementCycleNumber(ctx context.Context) (int, error)
}

// Keeper calls Compound on an interval from outside the manager. It holds no privilege:
// caller is whatever address the keeper runs as.
type Keeper struct {
	compounder Compounder
	caller     common.Address
	counter    CycleCounter // Optional
	logger     zerolog.Logger
	cycleCount atomic.Int64 // RunCycle is also reached from the web API
}

func NewKeeper(compounder Compounder, caller common.Address, counter CycleCounter) *Keeper {
	return &Keeper{
		compounder: compounder,
		caller:     caller,
		counter:    counter,
		logger:     logger.GetForComponent("keeper"),
	}
}

// RunLoop runs a cycle immediately and then on every tick until ctx is cancelled.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().
		Dur("interval", interval).
		Str("caller", k.caller.Hex()).
		Msg("Starting keeper loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.RunCycle(ctx)
		}
	}
}

// RunCycle attempts one compound. Expected no-op outcomes are logged at info level.
func (k *Keeper) RunCycle(ctx context.Context) (types.CompoundResult, error) {
	cycleLogger := k.logger.With().Str("cycle_id", uuid.New().String()).Int("cycle", k.nextCycle(ctx)).Logger()
	start := time.Now()

	res, err := k.compounder.Compound(ctx, k.caller)
	switch {
	case err == nil:
		cycleLogger.Info().
			Uint64("positionID", uint64(res.PositionID)).
			Str("feesA", res.FeesA.String()).
			Str("feesB", res.FeesB.String()).
			Str("addedLiquidity", res.AddedLiquidity.String()).
			Bool("inRange", res.InRange).
			Dur("duration", time.Since(start)).
			Msg("Keeper cycle compounded fees")
		if !res.InRange {
			cycleLogger.Warn().
				Int32("suggestedLower", res.SuggestedLower).
				Int32("suggestedUpper", res.SuggestedUpper).
				Msg("Position is out of range, owner rebalance recommended")
		}
	case errors.Is(err, ErrNoFeesToCompound), errors.Is(err, ErrNoActivePosition), errors.Is(err, ErrReentrantCall):
		cycleLogger.Info().Err(err).Msg("Keeper cycle skipped")
	default:
		cycleLogger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Keeper cycle failed")
	}
	return res, err
}

func (k *Keeper) nextCycle(ctx context.Context) int {
	local := int(k.cycleCount.Add(1))
	if k.counter == nil {
		return local
	}
	n, err := k.counter.IncrementCycleNumber(ctx)
	if err != nil {
		k.logger.Warn().Err(err).Msg("Failed to increment persistent cycle counter")
		return local
	}
	return n
}

// Cycles returns how many cycles this keeper has run.
func (k *Keeper) Cycles() int {
	return int(k.cycleCount.Load())
}
