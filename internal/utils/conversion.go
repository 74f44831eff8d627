/*
This file contains common utility functions for converting between token minor units,
on-chain big integers and float64 values used by the analytics math.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// MaxPrecision is the largest token decimals value the conversions accept.
const MaxPrecision = 18

func checkPrecision(precision int) error {
	if precision < 0 || precision > MaxPrecision {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	return nil
}

// SDKIntToFloat64 scales a non-negative minor-unit amount down by 10^precision.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if err := checkPrecision(precision); err != nil {
		return 0, err
	}
	switch {
	case amount.IsNil():
		return 0, ErrAmountNil
	case amount.IsNegative():
		return 0, ErrAmountNegative
	}

	f, err := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision)).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, f)
	}
	return f, nil
}

// Float64ToSDKInt scales whole units up by 10^precision, truncating anything below the last
// decimal. The value goes through its decimal string form so 0.1 stays exact.
func Float64ToSDKInt(amount float64, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrNotFinite, amount)
	case amount < 0:
		return sdkmath.ZeroInt(), ErrAmountNegative
	case amount == 0:
		return sdkmath.ZeroInt(), nil
	}

	dec, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(amount, 'f', precision, 64))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return dec.MulInt(sdkmath.NewIntWithDecimal(1, precision)).TruncateInt(), nil
}

// BigIntToSDKInt converts an ABI-decoded uint256 into an SDK Int. Nil becomes zero.
func BigIntToSDKInt(v *big.Int) (sdkmath.Int, error) {
	if v == nil {
		return sdkmath.ZeroInt(), nil
	}
	if v.Sign() < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if v.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d bits exceeds SDK Int range", ErrConversionFailed, v.BitLen())
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

// SDKIntToBigInt converts an SDK Int into a big.Int for ABI packing. Nil becomes zero.
func SDKIntToBigInt(v sdkmath.Int) *big.Int {
	if v.IsNil() {
		return new(big.Int)
	}
	return v.BigInt()
}

// OrZero replaces a nil SDK Int with zero.
func OrZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}

// MinInt returns the smaller of two amounts.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	return sdkmath.MinInt(OrZero(a), OrZero(b))
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func SaturatingSub(a, b sdkmath.Int) sdkmath.Int {
	a, b = OrZero(a), OrZero(b)
	if b.GT(a) {
		return sdkmath.ZeroInt()
	}
	return a.Sub(b)
}

// USDValue prices a pair of token amounts, where asset B is the USD-pegged quote and
// priceA is the USD value of one whole token A.
func USDValue(amountA sdkmath.Int, decimalsA int, amountB sdkmath.Int, decimalsB int, priceA sdkmath.LegacyDec) (float64, error) {
	if priceA.IsNil() || priceA.IsNegative() {
		return 0, fmt.Errorf("%w: price must be non-negative", ErrConversionFailed)
	}
	a, err := SDKIntToFloat64(OrZero(amountA), decimalsA)
	if err != nil {
		return 0, fmt.Errorf("token A: %w", err)
	}
	b, err := SDKIntToFloat64(OrZero(amountB), decimalsB)
	if err != nil {
		return 0, fmt.Errorf("token B: %w", err)
	}
	p, err := priceA.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return a*p + b, nil
}
