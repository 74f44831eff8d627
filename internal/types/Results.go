/*

Structured success values returned by the lifecycle operations. Each carries the quantities the operation moved.

*/

package types

import sdkmath "cosmossdk.io/math"

type CreateResult struct {
	PositionID PositionID  `json:"position_id"`
	TickLower  int32       `json:"tick_lower"`
	TickUpper  int32       `json:"tick_upper"`
	Liquidity  sdkmath.Int `json:"liquidity"`
	UsedA      sdkmath.Int `json:"used_a"`
	UsedB      sdkmath.Int `json:"used_b"`
	RefundedA  sdkmath.Int `json:"refunded_a"`
	RefundedB  sdkmath.Int `json:"refunded_b"`
}

type CollectResult struct {
	PositionID PositionID  `json:"position_id"`
	AmountA    sdkmath.Int `json:"amount_a"`
	AmountB    sdkmath.Int `json:"amount_b"`
	USDValue   float64     `json:"usd_value"`
}

// CloseResult reports what a close freed into custody. Fees are the part of the freed
// amounts that exceeded the principal returned by the liquidity decrease.
type CloseResult struct {
	PositionID PositionID  `json:"position_id"`
	FreedA     sdkmath.Int `json:"freed_a"`
	FreedB     sdkmath.Int `json:"freed_b"`
	FeesA      sdkmath.Int `json:"fees_a"`
	FeesB      sdkmath.Int `json:"fees_b"`
}

type RebalanceResult struct {
	Closed  CloseResult  `json:"closed"`
	Created CreateResult `json:"created"`
}

type CompoundResult struct {
	PositionID       PositionID  `json:"position_id"`
	FeesA            sdkmath.Int `json:"fees_a"`
	FeesB            sdkmath.Int `json:"fees_b"`
	Price            PriceQuote  `json:"price"`
	PrioritizedAsset Asset       `json:"prioritized_asset"`
	UsedA            sdkmath.Int `json:"used_a"`
	UsedB            sdkmath.Int `json:"used_b"`
	AddedLiquidity   sdkmath.Int `json:"added_liquidity"`
	SuggestedLower   int32       `json:"suggested_tick_lower"`
	SuggestedUpper   int32       `json:"suggested_tick_upper"`
	InRange          bool        `json:"in_range"` // Active range still contains the current tick
}

type WithdrawResult struct {
	Native  sdkmath.Int `json:"native"`
	AmountA sdkmath.Int `json:"amount_a"`
	AmountB sdkmath.Int `json:"amount_b"`
}
