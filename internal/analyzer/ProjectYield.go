/*

This file composes the analyzer math into a single advisory projection for a candidate range.

*/

package analyzer

import (
	"errors"
	"math"
)

// YieldInputs describes the market and target figures for a projection.
type YieldInputs struct {
	DailyVolumeUSD      float64
	FeeTier             uint32 // pips
	ActiveLiquidity     ActiveLiquidityUSD
	RangePercent        float64
	TargetAnnualFeesUSD float64
	CapitalUSD          float64 // Capital currently deployed, 0 if unknown
}

// YieldProjection is the advisory output. NaiveFactor and NaiveRequiredCapital are
// reported for comparison only.
type YieldProjection struct {
	BaseAPR              float64 `json:"base_apr"`
	ConcentrationFactor  float64 `json:"concentration_factor"`
	NaiveFactor          float64 `json:"naive_factor"`
	EffectiveAPR         float64 `json:"effective_apr"`
	RequiredCapitalUSD   float64 `json:"required_capital_usd"`
	NaiveRequiredCapital float64 `json:"naive_required_capital_usd"`
	ExpectedAnnualFees   float64 `json:"expected_annual_fees_usd"`
	ExpectedWeeklyFees   float64 `json:"expected_weekly_fees_usd"`
	// EdgeImpermanentLoss is the full-range loss at the upper range edge. A concentrated
	// position loses more than this at the same price.
	EdgeImpermanentLoss float64 `json:"edge_impermanent_loss"`
}

// ProjectYield returns the APR and capital sizing for the inputs.
func ProjectYield(in YieldInputs) (YieldProjection, error) {
	base, err := BaseFeeAPR(in.DailyVolumeUSD, in.FeeTier, in.ActiveLiquidity)
	if err != nil {
		return YieldProjection{}, err
	}
	factor, err := ConcentrationFactor(in.RangePercent)
	if err != nil {
		return YieldProjection{}, err
	}
	naive, err := NaiveConcentrationFactor(in.RangePercent)
	if err != nil {
		return YieldProjection{}, err
	}

	edgeLoss, err := ImpermanentLoss(1 + in.RangePercent/100)
	if err != nil {
		return YieldProjection{}, err
	}

	proj := YieldProjection{
		BaseAPR:             base,
		ConcentrationFactor: factor,
		NaiveFactor:         naive,
		EffectiveAPR:        EffectiveAPR(base, factor),
		EdgeImpermanentLoss: edgeLoss,
	}

	if in.TargetAnnualFeesUSD > 0 {
		proj.RequiredCapitalUSD, err = RequiredCapital(in.TargetAnnualFeesUSD, proj.EffectiveAPR)
		if err != nil {
			return YieldProjection{}, err
		}
		proj.NaiveRequiredCapital, err = RequiredCapital(in.TargetAnnualFeesUSD, EffectiveAPR(base, naive))
		if err != nil {
			return YieldProjection{}, err
		}
	}

	if in.CapitalUSD < 0 || math.IsNaN(in.CapitalUSD) {
		return YieldProjection{}, errors.Join(ErrInvalidInput, errors.New("capital must be non-negative"))
	}
	proj.ExpectedAnnualFees = in.CapitalUSD * proj.EffectiveAPR
	proj.ExpectedWeeklyFees = proj.ExpectedAnnualFees / 52

	return proj, nil
}
