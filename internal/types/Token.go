/*

This file contains the token and price types shared by the oracle, the venue and the advisory feeds.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Asset identifies one of the balances the manager custodies.
type Asset string

const (
	AssetA      Asset = "A"      // Pool token0
	AssetB      Asset = "B"      // Pool token1, the USD-pegged quote
	AssetNative Asset = "NATIVE" // Chain settlement currency
)

// PriceQuote is a single oracle observation. It is never persisted.
type PriceQuote struct {
	Value      sdkmath.Int `json:"value"`    // Quote minor units per whole token A
	Decimals   uint8       `json:"decimals"` // Decimals of Value
	ObservedAt time.Time   `json:"observed_at"`
}

// Dec returns the quote as a decimal in whole quote units.
func (q PriceQuote) Dec() sdkmath.LegacyDec {
	if q.Value.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromIntWithPrec(q.Value, int64(q.Decimals))
}

// PriceData holds historical price info
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
