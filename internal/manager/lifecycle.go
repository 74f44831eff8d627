package manager

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/elys-network/clpm/internal/planner"
	"github.com/elys-network/clpm/internal/tickmath"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
	"github.com/elys-network/clpm/internal/venue"
)

// CreatePosition pulls amountA/amountB from the owner into custody, opens a position over
// [tickLower, tickUpper] and refunds whatever the venue did not use. If the open fails the
// pulled amounts are refunded and the venue error is returned.
func (m *Manager) CreatePosition(ctx context.Context, caller common.Address, amountA, amountB sdkmath.Int, tickLower, tickUpper int32) (res types.CreateResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.CreateResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.CreateResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpCreatePosition, start, err) }()
	log := m.opLogger(types.OpCreatePosition)

	amountA, amountB = utils.OrZero(amountA), utils.OrZero(amountB)
	if amountA.IsNegative() || amountB.IsNegative() || (amountA.IsZero() && amountB.IsZero()) {
		return types.CreateResult{}, ErrInvalidAmount
	}
	_, rng := m.current()
	if err := tickmath.ValidateTicks(tickLower, tickUpper, rng.TickSpacing); err != nil {
		return types.CreateResult{}, err
	}
	if pos, _ := m.current(); pos.IsActive() {
		return types.CreateResult{}, fmt.Errorf("%w: %d", ErrPositionAlreadyActive, pos.ID)
	}

	if err := m.checkCallerFunds(ctx, caller, amountA, amountB); err != nil {
		return types.CreateResult{}, err
	}

	if err := m.custody.Pull(ctx, types.AssetA, caller, amountA); err != nil {
		log.Error().Err(err).Msg("Failed to pull token A")
		return types.CreateResult{}, err
	}
	if err := m.custody.Pull(ctx, types.AssetB, caller, amountB); err != nil {
		log.Error().Err(err).Msg("Failed to pull token B, returning token A")
		_, _, refundErr := m.refund(ctx, log, caller, amountA, sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt())
		return types.CreateResult{}, errors.Join(err, refundErr)
	}

	mint, openErr := m.open(ctx, log, types.OpCreatePosition, tickLower, tickUpper, amountA, amountB)

	// The refund step always runs: unused amounts on success, everything on failure.
	usedA, usedB := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if openErr == nil {
		usedA, usedB = mint.UsedA, mint.UsedB
	}
	refundedA, refundedB, refundErr := m.refund(ctx, log, caller, amountA, amountB, usedA, usedB)

	if openErr != nil {
		return types.CreateResult{}, errors.Join(openErr, refundErr)
	}
	if refundErr != nil {
		// The position is open; leftovers stay in holdings for EmergencyWithdraw.
		log.Error().Err(refundErr).Msg("Refund of unused amounts failed, leftovers remain in holdings")
	}

	return types.CreateResult{
		PositionID: mint.ID,
		TickLower:  tickLower,
		TickUpper:  tickUpper,
		Liquidity:  mint.Liquidity,
		UsedA:      mint.UsedA,
		UsedB:      mint.UsedB,
		RefundedA:  refundedA,
		RefundedB:  refundedB,
	}, nil
}

func (m *Manager) checkCallerFunds(ctx context.Context, caller common.Address, amountA, amountB sdkmath.Int) error {
	for _, req := range []struct {
		asset  types.Asset
		amount sdkmath.Int
	}{{types.AssetA, amountA}, {types.AssetB, amountB}} {
		if req.amount.IsZero() {
			continue
		}
		bal, err := m.custody.Balance(ctx, req.asset, caller)
		if err != nil {
			return err
		}
		if bal.LT(req.amount) {
			return fmt.Errorf("%w: token %s balance %s below %s", ErrInsufficientFunds, req.asset, bal, req.amount)
		}
	}
	return nil
}

// refund pushes (pulled - used) of each token back to the caller and returns what was sent.
func (m *Manager) refund(ctx context.Context, log zerolog.Logger, caller common.Address, pulledA, pulledB, usedA, usedB sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	var errs []error
	sentA, sentB := sdkmath.ZeroInt(), sdkmath.ZeroInt()

	if leftA := utils.SaturatingSub(pulledA, usedA); leftA.IsPositive() {
		sent, err := m.custody.Push(ctx, types.AssetA, caller, leftA)
		if err != nil {
			errs = append(errs, fmt.Errorf("refund token A: %w", err))
		} else {
			sentA = sent
		}
	}
	if leftB := utils.SaturatingSub(pulledB, usedB); leftB.IsPositive() {
		sent, err := m.custody.Push(ctx, types.AssetB, caller, leftB)
		if err != nil {
			errs = append(errs, fmt.Errorf("refund token B: %w", err))
		} else {
			sentB = sent
		}
	}

	log.Debug().Str("refundedA", sentA.String()).Str("refundedB", sentB.String()).Msg("Refund step complete")
	return sentA, sentB, errors.Join(errs...)
}

// open mints from custody and records the position as Active. Callers hold the busy flag.
func (m *Manager) open(ctx context.Context, log zerolog.Logger, op types.OperationType, tickLower, tickUpper int32, amountA, amountB sdkmath.Int) (venue.MintResult, error) {
	mint, err := m.gateway.OpenPosition(ctx, venue.MintParams{
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		AmountADesired: amountA,
		AmountBDesired: amountB,
	})
	if err != nil {
		log.Error().Err(err).Int32("tickLower", tickLower).Int32("tickUpper", tickUpper).Msg("Venue failed to open position")
		m.recordOperation(ctx, log, types.OperationRecord{
			Type: op, TickLower: tickLower, TickUpper: tickUpper,
			AmountA: amountA, AmountB: amountB, Success: false, Message: err.Error(),
		})
		return venue.MintResult{}, err
	}

	m.setPosition(ctx, log, types.Position{
		ID:        mint.ID,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: mint.Liquidity,
		OwedA:     sdkmath.ZeroInt(),
		OwedB:     sdkmath.ZeroInt(),
	})
	m.recordOperation(ctx, log, types.OperationRecord{
		Type: op, PositionID: mint.ID, TickLower: tickLower, TickUpper: tickUpper,
		AmountA: mint.UsedA, AmountB: mint.UsedB, Liquidity: mint.Liquidity, Success: true,
	})

	log.Info().
		Uint64("positionID", uint64(mint.ID)).
		Int32("tickLower", tickLower).
		Int32("tickUpper", tickUpper).
		Str("liquidity", mint.Liquidity.String()).
		Str("usedA", mint.UsedA.String()).
		Str("usedB", mint.UsedB.String()).
		Msg("Position opened")

	return mint, nil
}

// AddLiquidityFromHoldings opens a position around the current tick using all held A and B.
// Whatever the venue does not use stays in holdings.
func (m *Manager) AddLiquidityFromHoldings(ctx context.Context, caller common.Address) (res types.CreateResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.CreateResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.CreateResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpAddFromHoldings, start, err) }()
	log := m.opLogger(types.OpAddFromHoldings)

	if pos, _ := m.current(); pos.IsActive() {
		return types.CreateResult{}, fmt.Errorf("%w: %d", ErrPositionAlreadyActive, pos.ID)
	}

	holdings, err := m.Holdings(ctx)
	if err != nil {
		return types.CreateResult{}, err
	}
	if holdings.IsZero() {
		return types.CreateResult{}, ErrNoFunds
	}

	lower, upper, err := m.rangeAtCurrentTick(ctx)
	if err != nil {
		return types.CreateResult{}, err
	}

	mint, err := m.open(ctx, log, types.OpAddFromHoldings, lower, upper, holdings.AmountA, holdings.AmountB)
	if err != nil {
		return types.CreateResult{}, err
	}
	return types.CreateResult{
		PositionID: mint.ID,
		TickLower:  lower,
		TickUpper:  upper,
		Liquidity:  mint.Liquidity,
		UsedA:      mint.UsedA,
		UsedB:      mint.UsedB,
		RefundedA:  sdkmath.ZeroInt(),
		RefundedB:  sdkmath.ZeroInt(),
	}, nil
}

func (m *Manager) rangeAtCurrentTick(ctx context.Context) (int32, int32, error) {
	tick, err := m.gateway.CurrentTick(ctx)
	if err != nil {
		return 0, 0, err
	}
	_, rng := m.current()
	return tickmath.RangeToTicks(tick, rng.RangePercent, rng.TickSpacing)
}

// CollectFees sends the fees owed to the active position to the owner. Zero fees succeed and
// still produce a zero FeeRecord.
func (m *Manager) CollectFees(ctx context.Context, caller common.Address, id types.PositionID) (res types.CollectResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.CollectResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.CollectResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpCollectFees, start, err) }()
	log := m.opLogger(types.OpCollectFees)

	pos, _ := m.current()
	if !pos.IsActive() {
		return types.CollectResult{}, ErrNoActivePosition
	}
	if id != pos.ID {
		return types.CollectResult{}, fmt.Errorf("%w: got %d, active %d", ErrPositionMismatch, id, pos.ID)
	}
	if pos.Closing != nil {
		// Owed amounts include the removed principal until the close collects them.
		return types.CollectResult{}, fmt.Errorf("%w: position %d", ErrCloseIncomplete, pos.ID)
	}

	a, b, err := m.gateway.Collect(ctx, pos.ID, m.owner)
	if err != nil {
		log.Error().Err(err).Uint64("positionID", uint64(pos.ID)).Msg("Fee collection failed")
		return types.CollectResult{}, err
	}

	usd := m.valueUSD(ctx, log, a, b)
	m.recordFee(ctx, log, pos.ID, types.FeeSourceCollect, a, b, usd)
	m.recordOperation(ctx, log, types.OperationRecord{
		Type: types.OpCollectFees, PositionID: pos.ID, TickLower: pos.TickLower, TickUpper: pos.TickUpper,
		AmountA: a, AmountB: b, Liquidity: pos.Liquidity, Success: true,
	})

	log.Info().
		Uint64("positionID", uint64(pos.ID)).
		Str("amountA", a.String()).
		Str("amountB", b.String()).
		Float64("usdValue", usd).
		Msg("Fees collected to owner")

	return types.CollectResult{PositionID: pos.ID, AmountA: a, AmountB: b, USDValue: usd}, nil
}

// ClosePosition removes all liquidity, collects everything into custody and burns the position.
func (m *Manager) ClosePosition(ctx context.Context, caller common.Address) (res types.CloseResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.CloseResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.CloseResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpClosePosition, start, err) }()

	return m.close(ctx, m.opLogger(types.OpClosePosition), types.OpClosePosition, types.FeeSourceClose)
}

// close is the internal close used by ClosePosition and Rebalance. Each venue step that
// succeeds is recorded on the held position before the next one runs, so a failed close can be
// retried from where it stopped. A failure before the decrease leaves the position untouched
// and returns the venue error; a later failure returns a *CloseIncompleteError.
func (m *Manager) close(ctx context.Context, log zerolog.Logger, op types.OperationType, source types.FeeSource) (types.CloseResult, error) {
	pos, _ := m.current()
	if !pos.IsActive() {
		return types.CloseResult{}, ErrNoActivePosition
	}

	pending := pos.Closing
	fail := func(step string, err error) (types.CloseResult, error) {
		log.Error().Err(err).Uint64("positionID", uint64(pos.ID)).Str("step", step).Msg("Close failed")
		m.recordOperation(ctx, log, types.OperationRecord{
			Type: op, PositionID: pos.ID, TickLower: pos.TickLower, TickUpper: pos.TickUpper,
			Success: false, Message: step + ": " + err.Error(),
		})
		if pending == nil {
			return types.CloseResult{}, err
		}
		return types.CloseResult{}, &CloseIncompleteError{
			PositionID: pos.ID,
			Step:       step,
			PrincipalA: pending.PrincipalA,
			PrincipalB: pending.PrincipalB,
			FreedA:     utils.OrZero(pending.FreedA),
			FreedB:     utils.OrZero(pending.FreedB),
			Cause:      err,
		}
	}
	// advance stores the progress of the close on the held position.
	advance := func(next types.PendingClose) {
		pending = &next
		held := pos
		held.Liquidity = sdkmath.ZeroInt()
		held.Closing = pending
		m.setPosition(ctx, log, held)
	}

	if pending == nil {
		principalA, principalB, err := m.gateway.DecreaseLiquidityToZero(ctx, pos.ID)
		if err != nil {
			return fail("decrease", err)
		}
		advance(types.PendingClose{Liquidity: pos.Liquidity, PrincipalA: principalA, PrincipalB: principalB})
	} else {
		log.Warn().
			Uint64("positionID", uint64(pos.ID)).
			Bool("collected", pending.Collected).
			Msg("Resuming interrupted close")
	}

	if !pending.Collected {
		freedA, freedB, err := m.gateway.Collect(ctx, pos.ID, m.custody.Address())
		if err != nil {
			return fail("collect", err)
		}
		next := *pending
		next.Collected, next.FreedA, next.FreedB = true, freedA, freedB
		advance(next)
	}

	if err := m.gateway.Burn(ctx, pos.ID); err != nil {
		return fail("burn", err)
	}

	m.setPosition(ctx, log, emptyPosition())

	freedA, freedB := pending.FreedA, pending.FreedB
	feesA := utils.SaturatingSub(freedA, pending.PrincipalA)
	feesB := utils.SaturatingSub(freedB, pending.PrincipalB)
	if feesA.IsPositive() || feesB.IsPositive() {
		m.recordFee(ctx, log, pos.ID, source, feesA, feesB, m.valueUSD(ctx, log, feesA, feesB))
	}
	m.recordOperation(ctx, log, types.OperationRecord{
		Type: op, PositionID: pos.ID, TickLower: pos.TickLower, TickUpper: pos.TickUpper,
		AmountA: freedA, AmountB: freedB, Liquidity: pending.Liquidity, Success: true,
	})

	log.Info().
		Uint64("positionID", uint64(pos.ID)).
		Str("freedA", freedA.String()).
		Str("freedB", freedB.String()).
		Str("feesA", feesA.String()).
		Str("feesB", feesB.String()).
		Msg("Position closed")

	return types.CloseResult{
		PositionID: pos.ID,
		FreedA:     freedA,
		FreedB:     freedB,
		FeesA:      feesA,
		FeesB:      feesB,
	}, nil
}

// Rebalance closes the active position and opens a new one around the current tick with
// exactly the freed amounts. If the close succeeds and the create fails the manager is left
// Empty with the freed funds in holdings and a *RebalanceDegradedError is returned. A close
// that stops after removing the liquidity returns a *CloseIncompleteError; a retried
// Rebalance resumes it.
func (m *Manager) Rebalance(ctx context.Context, caller common.Address) (res types.RebalanceResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.RebalanceResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.RebalanceResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpRebalance, start, err) }()
	log := m.opLogger(types.OpRebalance)

	closed, err := m.close(ctx, log, types.OpRebalance, types.FeeSourceRebalance)
	if err != nil {
		return types.RebalanceResult{}, err
	}

	degraded := func(cause error) (types.RebalanceResult, error) {
		derr := &RebalanceDegradedError{
			ClosedPositionID: closed.PositionID,
			FreedA:           closed.FreedA,
			FreedB:           closed.FreedB,
			Cause:            cause,
		}
		log.Error().Err(derr).Msg("Rebalance degraded, funds idle in holdings")
		m.recordOperation(ctx, log, types.OperationRecord{
			Type: types.OpRebalance, PositionID: closed.PositionID,
			AmountA: closed.FreedA, AmountB: closed.FreedB, Success: false, Message: derr.Error(),
		})
		return types.RebalanceResult{Closed: closed}, derr
	}

	lower, upper, err := m.rangeAtCurrentTick(ctx)
	if err != nil {
		return degraded(err)
	}
	mint, err := m.open(ctx, log, types.OpRebalance, lower, upper, closed.FreedA, closed.FreedB)
	if err != nil {
		return degraded(err)
	}

	return types.RebalanceResult{
		Closed: closed,
		Created: types.CreateResult{
			PositionID: mint.ID,
			TickLower:  lower,
			TickUpper:  upper,
			Liquidity:  mint.Liquidity,
			UsedA:      mint.UsedA,
			UsedB:      mint.UsedB,
			RefundedA:  sdkmath.ZeroInt(),
			RefundedB:  sdkmath.ZeroInt(),
		},
	}, nil
}

// Compound collects the active position's fees into custody and reinvests holdings into the
// same position: all of the higher-USD asset and as much of the other as the range needs.
// Anyone may call it. The range that a fresh position would get at the current tick is
// computed and reported; it does not move the active position.
func (m *Manager) Compound(ctx context.Context, caller common.Address) (res types.CompoundResult, err error) {
	if err := m.enter(); err != nil {
		return types.CompoundResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpCompound, start, err) }()
	log := m.opLogger(types.OpCompound).With().Str("caller", caller.Hex()).Logger()

	pos, rng := m.current()
	if !pos.IsActive() {
		return types.CompoundResult{}, ErrNoActivePosition
	}
	if pos.Closing != nil {
		return types.CompoundResult{}, fmt.Errorf("%w: position %d", ErrCloseIncomplete, pos.ID)
	}

	feesA, feesB, err := m.gateway.Collect(ctx, pos.ID, m.custody.Address())
	if err != nil {
		log.Error().Err(err).Msg("Fee collection failed")
		return types.CompoundResult{}, err
	}
	if feesA.IsZero() && feesB.IsZero() {
		return types.CompoundResult{}, ErrNoFeesToCompound
	}

	price, priceErr := m.oracle.GetValidatedPrice(ctx)
	usd := 0.0
	if priceErr == nil {
		if v, err := utils.USDValue(feesA, m.decimalsA, feesB, m.decimalsB, price.Dec()); err == nil {
			usd = v
		}
	}
	fail := func(err error) (types.CompoundResult, error) {
		m.recordOperation(ctx, log, types.OperationRecord{
			Type: types.OpCompound, PositionID: pos.ID, TickLower: pos.TickLower, TickUpper: pos.TickUpper,
			AmountA: feesA, AmountB: feesB, Success: false, Message: err.Error(),
		})
		return types.CompoundResult{}, err
	}

	// Collected fees are realised whether or not they can be reinvested.
	m.recordFee(ctx, log, pos.ID, types.FeeSourceCompound, feesA, feesB, usd)
	if priceErr != nil {
		log.Error().Err(priceErr).Msg("Oracle rejected, fees left in holdings")
		return fail(priceErr)
	}

	tick, err := m.gateway.CurrentTick(ctx)
	if err != nil {
		return fail(err)
	}
	suggestedLower, suggestedUpper, err := tickmath.RangeToTicks(tick, rng.RangePercent, rng.TickSpacing)
	if err != nil {
		return fail(err)
	}

	holdings, err := m.Holdings(ctx)
	if err != nil {
		return fail(err)
	}
	split, err := planner.PrioritizedSplit(planner.SplitInput{
		HeldA:       holdings.AmountA,
		HeldB:       holdings.AmountB,
		DecimalsA:   m.decimalsA,
		DecimalsB:   m.decimalsB,
		Price:       price,
		CurrentTick: tick,
		TickLower:   pos.TickLower,
		TickUpper:   pos.TickUpper,
	})
	if err != nil {
		return fail(err)
	}

	inc, err := m.gateway.IncreaseLiquidity(ctx, pos.ID, split.UseA, split.UseB)
	if err != nil {
		return fail(err)
	}

	updated := pos
	updated.Liquidity = pos.Liquidity.Add(inc.Liquidity)
	m.setPosition(ctx, log, updated)
	m.recordOperation(ctx, log, types.OperationRecord{
		Type: types.OpCompound, PositionID: pos.ID, TickLower: pos.TickLower, TickUpper: pos.TickUpper,
		AmountA: inc.UsedA, AmountB: inc.UsedB, Liquidity: inc.Liquidity, Success: true,
	})

	inRange := tickmath.InRange(tick, pos.TickLower, pos.TickUpper)
	log.Info().
		Uint64("positionID", uint64(pos.ID)).
		Str("feesA", feesA.String()).
		Str("feesB", feesB.String()).
		Float64("feesUSD", usd).
		Str("prioritized", string(split.Prioritized)).
		Str("addedLiquidity", inc.Liquidity.String()).
		Bool("inRange", inRange).
		Int32("suggestedLower", suggestedLower).
		Int32("suggestedUpper", suggestedUpper).
		Msg("Fees compounded")

	return types.CompoundResult{
		PositionID:       pos.ID,
		FeesA:            feesA,
		FeesB:            feesB,
		Price:            price,
		PrioritizedAsset: split.Prioritized,
		UsedA:            inc.UsedA,
		UsedB:            inc.UsedB,
		AddedLiquidity:   inc.Liquidity,
		SuggestedLower:   suggestedLower,
		SuggestedUpper:   suggestedUpper,
		InRange:          inRange,
	}, nil
}

// EmergencyWithdraw sends every non-zero custody balance (native, A, B) to the owner, one
// transfer each, in any state. Nothing to withdraw is a success with zero amounts. On a
// failed transfer the amounts already sent are returned together with the error.
func (m *Manager) EmergencyWithdraw(ctx context.Context, caller common.Address) (res types.WithdrawResult, err error) {
	if err := m.requireOwner(caller); err != nil {
		return types.WithdrawResult{}, err
	}
	if err := m.enter(); err != nil {
		return types.WithdrawResult{}, err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpEmergencyWithdraw, start, err) }()
	log := m.opLogger(types.OpEmergencyWithdraw)

	res = types.WithdrawResult{Native: sdkmath.ZeroInt(), AmountA: sdkmath.ZeroInt(), AmountB: sdkmath.ZeroInt()}
	addr := m.custody.Address()
	pos, _ := m.current()

	for _, asset := range []types.Asset{types.AssetNative, types.AssetA, types.AssetB} {
		bal, err := m.custody.Balance(ctx, asset, addr)
		if err != nil {
			return res, err
		}
		if !bal.IsPositive() {
			continue
		}
		sent, err := m.custody.Push(ctx, asset, m.owner, bal)
		if err != nil {
			log.Error().Err(err).Str("asset", string(asset)).Msg("Emergency transfer failed")
			m.recordOperation(ctx, log, types.OperationRecord{
				Type: types.OpEmergencyWithdraw, PositionID: pos.ID,
				AmountA: res.AmountA, AmountB: res.AmountB, Success: false, Message: err.Error(),
			})
			return res, err
		}
		switch asset {
		case types.AssetNative:
			res.Native = sent
		case types.AssetA:
			res.AmountA = sent
		case types.AssetB:
			res.AmountB = sent
		}
	}

	m.recordOperation(ctx, log, types.OperationRecord{
		Type: types.OpEmergencyWithdraw, PositionID: pos.ID,
		AmountA: res.AmountA, AmountB: res.AmountB, Success: true,
		Message: "native " + res.Native.String(),
	})
	log.Warn().
		Str("native", res.Native.String()).
		Str("amountA", res.AmountA.String()).
		Str("amountB", res.AmountB.String()).
		Msg("Emergency withdraw executed")

	return res, nil
}

// UpdateRange changes the range used for future positions. The open position is untouched.
func (m *Manager) UpdateRange(ctx context.Context, caller common.Address, rangePercent float64) (err error) {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	start := m.now()
	defer func() { m.observe(types.OpUpdateRange, start, err) }()
	log := m.opLogger(types.OpUpdateRange)

	if err := tickmath.ValidateRangePercent(rangePercent); err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.rangeCfg.RangePercent
	m.rangeCfg.RangePercent = rangePercent
	m.mu.Unlock()
	m.persist(ctx, log)

	pos, _ := m.current()
	m.recordOperation(ctx, log, types.OperationRecord{
		Type: types.OpUpdateRange, PositionID: pos.ID, Success: true,
		Message: fmt.Sprintf("range %.4g%% -> %.4g%%", previous, rangePercent),
	})
	log.Info().Float64("previous", previous).Float64("rangePercent", rangePercent).Msg("Range updated")
	return nil
}
