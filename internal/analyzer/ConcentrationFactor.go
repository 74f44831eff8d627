/*

This file contains the fee-concentration multiplier of a ±rangePercent position.

The multiplier is 1/(sqrt(1+r/100) - sqrt(1-r/100)). The linear shortcut 100/(2r)
understates it by roughly 2x at ±15% and is only exposed for comparison in reports.

*/

package analyzer

import (
	"fmt"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/tickmath"
)

var analyzerLogger = logger.GetForComponent("analyzer")

// ConcentrationFactor returns how many times more fee yield per unit of capital a
// position confined to ±rangePercent earns compared with full-range liquidity.
func ConcentrationFactor(rangePercent float64) (float64, error) {
	sqrtLower, sqrtUpper, err := tickmath.RangeToSqrtPriceRatios(rangePercent)
	if err != nil {
		return 0, err
	}
	diff := sqrtUpper - sqrtLower
	if diff <= 0 {
		return 0, fmt.Errorf("%w: degenerate sqrt price range", ErrDivisionByZero)
	}
	factor := 1 / diff

	analyzerLogger.Debug().
		Float64("rangePercent", rangePercent).
		Float64("factor", factor).
		Msg("Calculated concentration factor")

	return factor, nil
}

// NaiveConcentrationFactor is the linear approximation 100/(2r). It must not be used for
// sizing or any other decision; it exists so reports can show the size of the error.
func NaiveConcentrationFactor(rangePercent float64) (float64, error) {
	if err := tickmath.ValidateRangePercent(rangePercent); err != nil {
		return 0, err
	}
	return 100 / (2 * rangePercent), nil
}
