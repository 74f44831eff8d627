package manager

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clpm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized          = errors.New("caller is not the owner")
	ErrInsufficientFunds     = errors.New("caller balance is insufficient")
	ErrNoFunds               = errors.New("no funds held")
	ErrInvalidAmount         = errors.New("amounts must be non-negative and not both zero")
	ErrNoActivePosition      = errors.New("no active position")
	ErrPositionAlreadyActive = errors.New("a position is already active")
	ErrPositionMismatch      = errors.New("position id does not match the active position")
	ErrReentrantCall         = errors.New("another lifecycle operation is in flight")
	ErrNoFeesToCompound      = errors.New("no fees to compound")
	ErrRebalanceDegraded     = errors.New("rebalance closed the position but could not open a new one")
	ErrCloseIncomplete       = errors.New("position liquidity was removed but the close did not finish")
)

// RebalanceDegradedError reports a rebalance whose close succeeded and whose create failed.
// The manager is Empty and the freed amounts sit in holdings; AddLiquidityFromHoldings redeploys them.
type RebalanceDegradedError struct {
	ClosedPositionID types.PositionID
	FreedA           sdkmath.Int
	FreedB           sdkmath.Int
	Cause            error
}

func (e *RebalanceDegradedError) Error() string {
	return fmt.Sprintf("%s: position %d closed, freed %s/%s idle in holdings: %v",
		ErrRebalanceDegraded, e.ClosedPositionID, e.FreedA, e.FreedB, e.Cause)
}

func (e *RebalanceDegradedError) Is(target error) bool {
	return target == ErrRebalanceDegraded
}

func (e *RebalanceDegradedError) Unwrap() error {
	return e.Cause
}

// CloseIncompleteError reports a close that removed the position's liquidity and then failed.
// The position id is still held with zero liquidity; retrying ClosePosition or Rebalance
// resumes from Step. Freed amounts are zero until the collect has succeeded.
type CloseIncompleteError struct {
	PositionID types.PositionID
	Step       string
	PrincipalA sdkmath.Int
	PrincipalB sdkmath.Int
	FreedA     sdkmath.Int
	FreedB     sdkmath.Int
	Cause      error
}

func (e *CloseIncompleteError) Error() string {
	return fmt.Sprintf("%s: position %d drained of principal %s/%s, %s failed: %v",
		ErrCloseIncomplete, e.PositionID, e.PrincipalA, e.PrincipalB, e.Step, e.Cause)
}

func (e *CloseIncompleteError) Is(target error) bool {
	return target == ErrCloseIncomplete
}

func (e *CloseIncompleteError) Unwrap() error {
	return e.Cause
}
