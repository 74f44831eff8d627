package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/datafetcher"
	"github.com/elys-network/clpm/internal/types"
)

type memLedger struct {
	records []types.FeeRecord
	err     error
	calls   int
}

func (l *memLedger) ListFeeRecords(_ context.Context, from, to time.Time) ([]types.FeeRecord, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	var out []types.FeeRecord
	for _, r := range l.records {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

var reportNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fee(at time.Time, source types.FeeSource, a, b int64, usd float64) types.FeeRecord {
	return types.FeeRecord{
		ID:        fmt.Sprintf("%d", at.UnixNano()),
		Timestamp: at,
		Source:    source,
		AmountA:   sdkmath.NewInt(a),
		AmountB:   sdkmath.NewInt(b),
		USDValue:  usd,
	}
}

func newReporter(t *testing.T, ledger FeeLedger, target float64) *Reporter {
	t.Helper()
	r, err := NewReporter(ledger, target, func() time.Time { return reportNow })
	require.NoError(t, err)
	return r
}

func TestNewReporterValidation(t *testing.T) {
	_, err := NewReporter(nil, 100, nil)
	assert.ErrorIs(t, err, ErrNoLedger)

	_, err = NewReporter(&memLedger{}, -1, nil)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	from := reportNow.Add(-Week)
	ledger := &memLedger{records: []types.FeeRecord{
		fee(from, types.FeeSourceCollect, 100, 200, 3),
		fee(from.Add(time.Hour), types.FeeSourceCompound, 50, 0, 1.5),
		fee(reportNow, types.FeeSourceCollect, 999, 999, 100), // excluded: end is exclusive
	}}
	r := newReporter(t, ledger, 0)

	s, err := r.Summarize(context.Background(), from, reportNow)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, "150", s.AmountA.String())
	assert.Equal(t, "200", s.AmountB.String())
	assert.InDelta(t, 4.5, s.TotalUSD, 1e-9)
	assert.InDelta(t, 3.0, s.BySource[types.FeeSourceCollect], 1e-9)
	assert.InDelta(t, 4.5*365/7, s.AnnualizedUSD, 1e-9)

	_, err = r.Summarize(context.Background(), reportNow, from)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestWeeklySummaries(t *testing.T) {
	ledger := &memLedger{records: []types.FeeRecord{
		fee(reportNow.Add(-20*24*time.Hour), types.FeeSourceCollect, 1, 1, 10),
		fee(reportNow.Add(-10*24*time.Hour), types.FeeSourceRebalance, 1, 1, 20),
		fee(reportNow.Add(-2*24*time.Hour), types.FeeSourceCompound, 1, 1, 30),
		fee(reportNow.Add(-time.Hour), types.FeeSourceCompound, 1, 1, 5),
		fee(reportNow.Add(-40*24*time.Hour), types.FeeSourceCollect, 1, 1, 1000),
	}}
	r := newReporter(t, ledger, 0)

	weeks, err := r.WeeklySummaries(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, weeks, 3)
	assert.Equal(t, 1, ledger.calls)

	assert.Equal(t, reportNow.Add(-3*Week), weeks[0].From)
	assert.Equal(t, reportNow, weeks[2].To)
	assert.InDelta(t, 10, weeks[0].TotalUSD, 1e-9)
	assert.InDelta(t, 20, weeks[1].TotalUSD, 1e-9)
	assert.InDelta(t, 35, weeks[2].TotalUSD, 1e-9)
	assert.Equal(t, 2, weeks[2].Records)

	for _, n := range []int{0, -1, MaxReportWeeks + 1} {
		_, err := r.WeeklySummaries(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}

	ledger.err = errors.New("db down")
	_, err = r.WeeklySummaries(context.Background(), 1)
	assert.ErrorContains(t, err, "db down")
}

func TestTrackTarget(t *testing.T) {
	// $15,600/yr target is $300/week.
	tests := []struct {
		name       string
		weeklyUSD  float64
		onTrack    bool
		multiplier float64
		contains   string
	}{
		{"ahead", 400, true, 0.75, "On track"},
		{"slightly behind", 240, false, 1.25, "Slightly behind"},
		{"far behind", 100, false, 3, "3.0x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []types.FeeRecord
			for w := 0; w < 4; w++ {
				records = append(records, fee(reportNow.Add(-time.Duration(w)*Week-time.Hour), types.FeeSourceCompound, 1, 1, tt.weeklyUSD))
			}
			r := newReporter(t, &memLedger{records: records}, 15_600)

			st, err := r.TrackTarget(context.Background(), 4)
			require.NoError(t, err)
			assert.InDelta(t, 300, st.WeeklyTargetUSD, 1e-9)
			assert.InDelta(t, tt.weeklyUSD, st.AverageWeeklyUSD, 1e-9)
			assert.InDelta(t, tt.weeklyUSD*52, st.ProjectedAnnualUSD, 1e-9)
			assert.Equal(t, tt.onTrack, st.OnTrack)
			assert.InDelta(t, tt.multiplier, st.CapitalMultiplier, 1e-9)
			assert.Contains(t, st.Recommendation, tt.contains)
		})
	}
}

func TestTrackTargetWithoutFees(t *testing.T) {
	r := newReporter(t, &memLedger{}, 15_600)
	st, err := r.TrackTarget(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, st.OnTrack)
	assert.Zero(t, st.CapitalMultiplier)
	assert.Contains(t, st.Recommendation, "No fees recorded")

	noTarget := newReporter(t, &memLedger{}, 0)
	_, err = noTarget.TrackTarget(context.Background(), 4)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

type fakeMarket struct {
	pair      datafetcher.PairStats
	pairErr   error
	prices    []types.PriceData
	pricesErr error
	days      int
}

func (m *fakeMarket) FetchPairStats(context.Context, string, string) (datafetcher.PairStats, error) {
	return m.pair, m.pairErr
}

func (m *fakeMarket) FetchHourlyPrices(_ context.Context, _ string, days int) ([]types.PriceData, error) {
	m.days = days
	return m.prices, m.pricesErr
}

func advisoryRequest() AdvisoryRequest {
	return AdvisoryRequest{
		ChainID:              "ethereum",
		PairAddress:          "0xpool",
		CoinID:               "ethereum",
		FeeTier:              3000,
		RangePercent:         15,
		ActiveLiquidityShare: 0.5,
		TargetAnnualFeesUSD:  15_600,
		CapitalUSD:           20_000,
	}
}

func oscillatingPrices(n int) []types.PriceData {
	prices := make([]types.PriceData, n)
	start := reportNow.Add(-time.Duration(n) * time.Hour)
	for i := range prices {
		p := 2000.0
		if i%2 == 1 {
			p = 2010.0
		}
		prices[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return prices
}

func TestBuildAdvisory(t *testing.T) {
	md := &fakeMarket{
		pair: datafetcher.PairStats{
			PairAddress:  "0xpool",
			PriceUSD:     2000,
			Volume24hUSD: 1_002_071,
			LiquidityUSD: 7_093_646,
		},
		prices: oscillatingPrices(720),
	}

	adv, err := BuildAdvisory(context.Background(), md, advisoryRequest(), reportNow)
	require.NoError(t, err)
	assert.Equal(t, defaultVolatilityDays, md.days)
	assert.InDelta(t, 3_546_823, adv.ActiveLiquidityUSD, 1)
	assert.InDelta(t, 0.3094, adv.Configured.BaseAPR, 0.0005)
	assert.InDelta(t, 6.65, adv.Configured.ConcentrationFactor, 0.01)
	assert.Greater(t, adv.Configured.NaiveRequiredCapital, adv.Configured.RequiredCapitalUSD)
	assert.InDelta(t, 20_000*adv.Configured.EffectiveAPR, adv.Configured.ExpectedAnnualFees, 1e-6)

	require.NotNil(t, adv.Suggested)
	assert.Greater(t, adv.AnnualVolatility, 0.0)
	assert.GreaterOrEqual(t, adv.SuggestedRangePercent, 0.5)
	assert.Less(t, adv.SuggestedRangePercent, 100.0)
	assert.Empty(t, adv.Warnings)
}

func TestBuildAdvisoryDegradesWithoutHistory(t *testing.T) {
	md := &fakeMarket{
		pair:      datafetcher.PairStats{PriceUSD: 1, Volume24hUSD: 1000, LiquidityUSD: 100_000},
		pricesErr: errors.New("rate limited"),
	}
	adv, err := BuildAdvisory(context.Background(), md, advisoryRequest(), reportNow)
	require.NoError(t, err)
	assert.Nil(t, adv.Suggested)
	require.Len(t, adv.Warnings, 1)
	assert.Contains(t, adv.Warnings[0], "rate limited")

	req := advisoryRequest()
	req.CoinID = ""
	adv, err = BuildAdvisory(context.Background(), md, req, reportNow)
	require.NoError(t, err)
	assert.Nil(t, adv.Suggested)
	assert.Len(t, adv.Warnings, 1)
}

func TestBuildAdvisoryErrors(t *testing.T) {
	_, err := BuildAdvisory(context.Background(), nil, advisoryRequest(), reportNow)
	assert.ErrorIs(t, err, ErrInvalidAdvisoryRequest)

	md := &fakeMarket{pairErr: errors.New("not found")}
	_, err = BuildAdvisory(context.Background(), md, advisoryRequest(), reportNow)
	assert.ErrorContains(t, err, "not found")

	for _, mutate := range []func(*AdvisoryRequest){
		func(r *AdvisoryRequest) { r.ActiveLiquidityShare = 0 },
		func(r *AdvisoryRequest) { r.ActiveLiquidityShare = 1.5 },
		func(r *AdvisoryRequest) { r.RangePercent = 100 },
		func(r *AdvisoryRequest) { r.FeeTier = 0 },
		func(r *AdvisoryRequest) { r.PairAddress = "" },
	} {
		req := advisoryRequest()
		mutate(&req)
		_, err := BuildAdvisory(context.Background(), &fakeMarket{}, req, reportNow)
		assert.ErrorIs(t, err, ErrInvalidAdvisoryRequest)
	}
}

func TestRenderers(t *testing.T) {
	var buf bytes.Buffer
	weeks := []PeriodSummary{
		summarize(reportNow.Add(-Week), reportNow, []types.FeeRecord{
			fee(reportNow.Add(-time.Hour), types.FeeSourceCompound, 10, 20, 12.5),
			fee(reportNow.Add(-2*time.Hour), types.FeeSourceCollect, 1, 2, 1),
		}),
	}
	require.NoError(t, RenderWeekly(&buf, weeks))
	out := buf.String()
	assert.Contains(t, out, "$13.50")
	assert.Contains(t, out, "COMPOUND $12.50")
	assert.Contains(t, out, "Total: $13.50 over 1 weeks")

	buf.Reset()
	require.NoError(t, RenderWeekly(&buf, nil))
	assert.Contains(t, buf.String(), "no fee periods")

	buf.Reset()
	require.NoError(t, RenderTarget(&buf, TargetStatus{TargetAnnualUSD: 15_600, WeeklyTargetUSD: 300, TrailingWeeks: 4, Recommendation: "On track for the annual target"}))
	assert.Contains(t, buf.String(), "$15600.00")
	assert.Contains(t, buf.String(), "On track for the annual target")

	buf.Reset()
	require.NoError(t, RenderAdvisory(&buf, Advisory{
		GeneratedAt: reportNow,
		Pair:        datafetcher.PairStats{BaseSymbol: "WETH", QuoteSymbol: "USDC", DexID: "uniswap"},
		Warnings:    []string{"price history unavailable"},
	}))
	out = buf.String()
	assert.Contains(t, out, "WETH/USDC")
	assert.True(t, strings.Contains(strings.ToLower(out), "configured"))
	assert.Contains(t, out, "price history unavailable")
}
