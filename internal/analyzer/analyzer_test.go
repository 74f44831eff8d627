package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/elys-network/clpm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcentrationFactorMatchesSqrtFormula(t *testing.T) {
	for r := 0.25; r < 100; r += 0.25 {
		got, err := ConcentrationFactor(r)
		require.NoError(t, err)
		want := 1 / (math.Sqrt(1+r/100) - math.Sqrt(1-r/100))
		assert.InDelta(t, want, got, 1e-9, "range %v", r)
	}
}

func TestConcentrationFactorExceedsNaive(t *testing.T) {
	for _, r := range []float64{0.1, 1, 5, 10, 15, 25, 50, 75, 99} {
		corrected, err := ConcentrationFactor(r)
		require.NoError(t, err)
		naive, err := NaiveConcentrationFactor(r)
		require.NoError(t, err)
		assert.Greater(t, corrected, naive, "range %v", r)
	}
}

func TestConcentrationFactorAt15Percent(t *testing.T) {
	corrected, err := ConcentrationFactor(15)
	require.NoError(t, err)
	naive, err := NaiveConcentrationFactor(15)
	require.NoError(t, err)

	assert.InDelta(t, 6.65, corrected, 0.01)
	assert.InDelta(t, 3.33, naive, 0.01)
	assert.InDelta(t, 2.0, corrected/naive, 0.01)
}

func TestConcentrationFactorRejectsInvalidRange(t *testing.T) {
	for _, r := range []float64{0, -5, 100, 120, math.Inf(1)} {
		_, err := ConcentrationFactor(r)
		assert.Error(t, err)
		_, err = NaiveConcentrationFactor(r)
		assert.Error(t, err)
	}
}

func TestBaseFeeAPR(t *testing.T) {
	apr, err := BaseFeeAPR(1_002_071, 3000, ActiveLiquidityUSD(3_546_823))
	require.NoError(t, err)
	assert.InDelta(t, 0.3094, apr, 0.0001)

	_, err = BaseFeeAPR(1000, 3000, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = BaseFeeAPR(-1, 3000, 1000)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRequiredCapitalRoundTrip(t *testing.T) {
	for _, base := range []float64{0.01, 0.3, 1.7} {
		for _, r := range []float64{1, 15, 60} {
			c, err := ConcentrationFactor(r)
			require.NoError(t, err)
			eff := EffectiveAPR(base, c)
			capital, err := RequiredCapital(15_600, eff)
			require.NoError(t, err)
			assert.InDelta(t, 15_600, capital*eff, 1e-6)
		}
	}

	_, err := RequiredCapital(100, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	_, err = RequiredCapital(100, -0.5)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

// The documented scenario: the same $15,600/yr target sized on an active-liquidity basis
// versus an aggregate-TVL basis differs by roughly two orders of magnitude.
func TestRequiredCapitalActiveLiquidityVersusTVL(t *testing.T) {
	const (
		dailyVolume = 1_002_071.0
		feeTier     = 3000
		target      = 15_600.0
	)
	naive, err := NaiveConcentrationFactor(15)
	require.NoError(t, err)
	corrected, err := ConcentrationFactor(15)
	require.NoError(t, err)

	activeBase, err := BaseFeeAPR(dailyVolume, feeTier, ActiveLiquidityUSD(3_546_823))
	require.NoError(t, err)
	activeCapital, err := RequiredCapital(target, EffectiveAPR(activeBase, naive))
	require.NoError(t, err)
	assert.InDelta(t, 15_128, activeCapital, 5)

	// An aggregate TVL figure only gets in through an explicit conversion.
	tvl := TVLUSD(299_000_000)
	tvlBase, err := BaseFeeAPR(dailyVolume, feeTier, ActiveLiquidityUSD(tvl))
	require.NoError(t, err)
	tvlCapital, err := RequiredCapital(target, EffectiveAPR(tvlBase, naive))
	require.NoError(t, err)
	assert.InEpsilon(t, 1_275_566, tvlCapital, 0.01)

	assert.Greater(t, tvlCapital/activeCapital, 80.0)

	// Effective APR above 100% only appears with the corrected factor on active liquidity.
	assert.Greater(t, EffectiveAPR(activeBase, corrected), 2.0)
	assert.Less(t, EffectiveAPR(tvlBase, corrected), 0.05)
}

func TestImpermanentLoss(t *testing.T) {
	il, err := ImpermanentLoss(1)
	require.NoError(t, err)
	assert.Zero(t, il)

	for _, p := range []float64{0.01, 0.5, 0.9, 1.1, 2, 4, 100} {
		il, err := ImpermanentLoss(p)
		require.NoError(t, err)
		inv, err := ImpermanentLoss(1 / p)
		require.NoError(t, err)
		assert.Less(t, il, 0.0)
		assert.InDelta(t, il, inv, 1e-12)
	}

	il, err = ImpermanentLoss(4)
	require.NoError(t, err)
	assert.InDelta(t, -0.2, il, 1e-12)

	_, err = ImpermanentLoss(0)
	assert.ErrorIs(t, err, ErrInvalidPriceRatio)
}

func TestCalculateVolatility(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []types.PriceData{
		{Timestamp: start.Add(2 * time.Hour), Price: 100},
		{Timestamp: start, Price: 100},
		{Timestamp: start.Add(time.Hour), Price: 110},
	}
	vol, err := CalculateVolatility(prices, 8760)
	require.NoError(t, err)
	// returns are +ln(1.1) and -ln(1.1), so the deviation is ln(1.1) per hour
	assert.InDelta(t, math.Log(1.1)*math.Sqrt(8760), vol, 1e-9)
	// input order preserved
	assert.Equal(t, start.Add(2*time.Hour), prices[0].Timestamp)

	_, err = CalculateVolatility(prices[:1], 8760)
	assert.ErrorIs(t, err, ErrInsufficientData)

	flat := []types.PriceData{{Timestamp: start, Price: 5}, {Timestamp: start.Add(time.Hour), Price: 5}}
	vol, err = CalculateVolatility(flat, 8760)
	require.NoError(t, err)
	assert.Zero(t, vol)

	bad := []types.PriceData{{Timestamp: start, Price: 0}, {Timestamp: start.Add(time.Hour), Price: 5}}
	_, err = CalculateVolatility(bad, 8760)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CalculateVolatility(flat, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSuggestRangePercent(t *testing.T) {
	pct, err := SuggestRangePercent(0.8, 7, 2)
	require.NoError(t, err)
	sigma := 0.8 * math.Sqrt(7.0/365)
	assert.InDelta(t, (math.Exp(2*sigma)-1)*100, pct, 1e-9)

	pct, err = SuggestRangePercent(0, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, MinSuggestedRangePercent, pct)

	pct, err = SuggestRangePercent(50, 365, 3)
	require.NoError(t, err)
	assert.Equal(t, MaxSuggestedRangePercent, pct)

	_, err = SuggestRangePercent(math.NaN(), 7, 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProjectYield(t *testing.T) {
	proj, err := ProjectYield(YieldInputs{
		DailyVolumeUSD:      1_002_071,
		FeeTier:             3000,
		ActiveLiquidity:     3_546_823,
		RangePercent:        15,
		TargetAnnualFeesUSD: 15_600,
		CapitalUSD:          10_000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.65, proj.ConcentrationFactor, 0.01)
	assert.Greater(t, proj.NaiveRequiredCapital, proj.RequiredCapitalUSD)
	assert.InDelta(t, 15_600, proj.RequiredCapitalUSD*proj.EffectiveAPR, 1e-6)
	assert.InDelta(t, proj.ExpectedAnnualFees/52, proj.ExpectedWeeklyFees, 1e-9)
	assert.InDelta(t, -0.00244, proj.EdgeImpermanentLoss, 1e-4)
}

func TestTVLActiveShare(t *testing.T) {
	active, err := TVLUSD(299_000_000).ActiveShare(0.01)
	require.NoError(t, err)
	assert.InDelta(t, 2_990_000, float64(active), 1e-6)

	for _, share := range []float64{0, -0.5, 1.5, math.NaN()} {
		_, err := TVLUSD(1000).ActiveShare(share)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	_, err = TVLUSD(-1).ActiveShare(0.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
