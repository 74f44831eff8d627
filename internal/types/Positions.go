/*

This file contains the types for the single concentrated-liquidity position the manager controls.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PositionID is the opaque handle issued by the venue for an open position.
type PositionID uint64

// NoPosition is the sentinel held by the manager while no position is open.
const NoPosition PositionID = 0

// PositionState is the externally visible lifecycle state.
type PositionState string

const (
	StateEmpty  PositionState = "EMPTY"
	StateActive PositionState = "ACTIVE"
)

// Position is the single managed liquidity position.
type Position struct {
	ID        PositionID  `json:"id"`
	TickLower int32       `json:"tick_lower"`
	TickUpper int32       `json:"tick_upper"`
	Liquidity sdkmath.Int `json:"liquidity"` // Never negative; zero only right before burn
	OwedA     sdkmath.Int `json:"owed_a"`    // Fees accrued on token A not yet collected
	OwedB     sdkmath.Int `json:"owed_b"`    // Fees accrued on token B not yet collected

	// Closing is set once a close has removed the liquidity but has not burned the position.
	Closing *PendingClose `json:"closing,omitempty"`
}

// PendingClose tracks a close that stopped after the liquidity was removed. The principal
// removed by the decrease is kept so a retried close can split freed amounts into principal
// and fees.
type PendingClose struct {
	Liquidity  sdkmath.Int `json:"liquidity"` // Liquidity removed by the decrease
	PrincipalA sdkmath.Int `json:"principal_a"`
	PrincipalB sdkmath.Int `json:"principal_b"`
	Collected  bool        `json:"collected"`
	FreedA     sdkmath.Int `json:"freed_a"` // Sent to custody by the collect, set once Collected
	FreedB     sdkmath.Int `json:"freed_b"`
}

// IsActive reports whether the position refers to an open venue position.
func (p Position) IsActive() bool {
	return p.ID != NoPosition
}

// State maps the position onto the lifecycle state machine.
func (p Position) State() PositionState {
	if p.IsActive() {
		return StateActive
	}
	return StateEmpty
}

// RangeConfiguration governs how new ranges are computed around the current tick.
type RangeConfiguration struct {
	RangePercent float64 `json:"range_percent"` // ±percent around the current price
	TickSpacing  int32   `json:"tick_spacing"`  // Fixed by the pool fee tier
}

// HoldingsBalance is a live view of the balances held by the manager's custody address.
type HoldingsBalance struct {
	AmountA sdkmath.Int `json:"amount_a"`
	AmountB sdkmath.Int `json:"amount_b"`
	Native  sdkmath.Int `json:"native"`
}

// IsZero reports whether neither position token is held. Native balance is ignored.
func (h HoldingsBalance) IsZero() bool {
	return isZeroOrNil(h.AmountA) && isZeroOrNil(h.AmountB)
}

// ManagerState is the only state that must survive a restart.
type ManagerState struct {
	PositionID   PositionID    `json:"position_id"`
	TickLower    int32         `json:"tick_lower"`
	TickUpper    int32         `json:"tick_upper"`
	RangePercent float64       `json:"range_percent"`
	TickSpacing  int32         `json:"tick_spacing"`
	Closing      *PendingClose `json:"closing,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func isZeroOrNil(v sdkmath.Int) bool {
	return v.IsNil() || v.IsZero()
}
