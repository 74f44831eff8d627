package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// FeeSource tells which lifecycle operation realised a fee amount.
type FeeSource string

const (
	FeeSourceCollect   FeeSource = "COLLECT"
	FeeSourceClose     FeeSource = "CLOSE"
	FeeSourceRebalance FeeSource = "REBALANCE"
	FeeSourceCompound  FeeSource = "COMPOUND"
)

// FeeRecord is append-only and never mutated after creation.
type FeeRecord struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	PositionID PositionID  `json:"position_id"`
	Source     FeeSource   `json:"source"`
	AmountA    sdkmath.Int `json:"amount_a"`
	AmountB    sdkmath.Int `json:"amount_b"`
	USDValue   float64     `json:"usd_value"`
}

// OperationType names a lifecycle operation in the audit log.
type OperationType string

const (
	OpCreatePosition    OperationType = "POSITION_CREATED"
	OpAddFromHoldings   OperationType = "ADD_FROM_HOLDINGS"
	OpCollectFees       OperationType = "FEES_COLLECTED"
	OpClosePosition     OperationType = "POSITION_CLOSED"
	OpRebalance         OperationType = "REBALANCED"
	OpCompound          OperationType = "FEES_COMPOUNDED"
	OpEmergencyWithdraw OperationType = "EMERGENCY_WITHDRAW"
	OpUpdateRange       OperationType = "RANGE_UPDATED"
)

// OperationRecord is the append-only audit entry emitted by every lifecycle operation.
type OperationRecord struct {
	ID         string        `json:"id"`
	Type       OperationType `json:"type"`
	Timestamp  time.Time     `json:"timestamp"`
	PositionID PositionID    `json:"position_id"`
	TickLower  int32         `json:"tick_lower"`
	TickUpper  int32         `json:"tick_upper"`
	AmountA    sdkmath.Int   `json:"amount_a"`
	AmountB    sdkmath.Int   `json:"amount_b"`
	Liquidity  sdkmath.Int   `json:"liquidity"`
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
}
