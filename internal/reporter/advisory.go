package reporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elys-network/clpm/internal/analyzer"
	"github.com/elys-network/clpm/internal/datafetcher"
	"github.com/elys-network/clpm/internal/types"
)

const (
	hourlyAnnualization   = 24 * 365
	defaultVolatilityDays = 30
	defaultHorizonDays    = 7
	defaultZScore         = 1.0
)

var ErrInvalidAdvisoryRequest = errors.New("invalid advisory request")

// MarketData is the advisory feed; datafetcher.Client implements it.
type MarketData interface {
	FetchPairStats(ctx context.Context, chainID, pairAddress string) (datafetcher.PairStats, error)
	FetchHourlyPrices(ctx context.Context, coinID string, days int) ([]types.PriceData, error)
}

// AdvisoryRequest describes the pool and the figures to project against.
type AdvisoryRequest struct {
	ChainID     string
	PairAddress string
	CoinID      string // CoinGecko id of token A, used for volatility
	FeeTier     uint32
	// RangePercent is the range currently configured on the manager.
	RangePercent float64
	// ActiveLiquidityShare converts the feed's aggregate TVL into in-range liquidity.
	ActiveLiquidityShare float64
	TargetAnnualFeesUSD  float64
	CapitalUSD           float64
	VolatilityDays       int
	HorizonDays          float64
	ZScore               float64
}

// Advisory is a display-only projection. Nothing in it feeds a lifecycle decision.
type Advisory struct {
	GeneratedAt           time.Time                 `json:"generated_at"`
	Pair                  datafetcher.PairStats     `json:"pair"`
	ActiveLiquidityUSD    float64                   `json:"active_liquidity_usd"`
	AnnualVolatility      float64                   `json:"annual_volatility,omitempty"`
	SuggestedRangePercent float64                   `json:"suggested_range_percent,omitempty"`
	Configured            analyzer.YieldProjection  `json:"configured"`
	Suggested             *analyzer.YieldProjection `json:"suggested,omitempty"`
	Warnings              []string                  `json:"warnings,omitempty"`
}

func (req *AdvisoryRequest) applyDefaults() {
	if req.VolatilityDays == 0 {
		req.VolatilityDays = defaultVolatilityDays
	}
	if req.HorizonDays == 0 {
		req.HorizonDays = defaultHorizonDays
	}
	if req.ZScore == 0 {
		req.ZScore = defaultZScore
	}
}

func validateAdvisoryRequest(req AdvisoryRequest) error {
	var errs []error
	if strings.TrimSpace(req.ChainID) == "" || strings.TrimSpace(req.PairAddress) == "" {
		errs = append(errs, errors.New("chain id and pair address are required"))
	}
	if req.FeeTier == 0 {
		errs = append(errs, errors.New("fee tier is required"))
	}
	if req.RangePercent <= 0 || req.RangePercent >= 100 {
		errs = append(errs, fmt.Errorf("range percent must be within (0, 100), got %v", req.RangePercent))
	}
	if req.ActiveLiquidityShare <= 0 || req.ActiveLiquidityShare > 1 {
		errs = append(errs, fmt.Errorf("active liquidity share must be within (0, 1], got %v", req.ActiveLiquidityShare))
	}
	if req.CapitalUSD < 0 || req.TargetAnnualFeesUSD < 0 {
		errs = append(errs, errors.New("capital and target must be non-negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidAdvisoryRequest, errors.Join(errs...))
	}
	return nil
}

// BuildAdvisory projects fee yield for the configured range and, when price history is
// available, for a range sized from realized volatility. A history failure only adds a warning.
func BuildAdvisory(ctx context.Context, md MarketData, req AdvisoryRequest, now time.Time) (Advisory, error) {
	if md == nil {
		return Advisory{}, fmt.Errorf("%w: market data source is required", ErrInvalidAdvisoryRequest)
	}
	req.applyDefaults()
	if err := validateAdvisoryRequest(req); err != nil {
		return Advisory{}, err
	}

	pair, err := md.FetchPairStats(ctx, req.ChainID, req.PairAddress)
	if err != nil {
		return Advisory{}, fmt.Errorf("failed to fetch pair stats: %w", err)
	}

	active, err := analyzer.TVLUSD(pair.LiquidityUSD).ActiveShare(req.ActiveLiquidityShare)
	if err != nil {
		return Advisory{}, err
	}

	adv := Advisory{
		GeneratedAt:        now.UTC(),
		Pair:               pair,
		ActiveLiquidityUSD: float64(active),
	}

	project := func(rangePercent float64) (analyzer.YieldProjection, error) {
		return analyzer.ProjectYield(analyzer.YieldInputs{
			DailyVolumeUSD:      pair.Volume24hUSD,
			FeeTier:             req.FeeTier,
			ActiveLiquidity:     active,
			RangePercent:        rangePercent,
			TargetAnnualFeesUSD: req.TargetAnnualFeesUSD,
			CapitalUSD:          req.CapitalUSD,
		})
	}

	adv.Configured, err = project(req.RangePercent)
	if err != nil {
		return Advisory{}, fmt.Errorf("failed to project configured range: %w", err)
	}

	if req.CoinID == "" {
		adv.Warnings = append(adv.Warnings, "no coin id configured; range suggestion skipped")
		return adv, nil
	}

	prices, err := md.FetchHourlyPrices(ctx, req.CoinID, req.VolatilityDays)
	if err != nil {
		reportLogger.Warn().Err(err).Str("coin", req.CoinID).Msg("Price history unavailable, skipping range suggestion")
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("price history unavailable: %v", err))
		return adv, nil
	}
	vol, err := analyzer.CalculateVolatility(prices, hourlyAnnualization)
	if err != nil {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("volatility unavailable: %v", err))
		return adv, nil
	}
	suggested, err := analyzer.SuggestRangePercent(vol, req.HorizonDays, req.ZScore)
	if err != nil {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("range suggestion unavailable: %v", err))
		return adv, nil
	}
	proj, err := project(suggested)
	if err != nil {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("suggested range projection failed: %v", err))
		return adv, nil
	}

	adv.AnnualVolatility = vol
	adv.SuggestedRangePercent = suggested
	adv.Suggested = &proj

	reportLogger.Info().
		Float64("annualVolatility", vol).
		Float64("configuredRange", req.RangePercent).
		Float64("suggestedRange", suggested).
		Float64("configuredEffectiveAPR", adv.Configured.EffectiveAPR).
		Msg("Advisory built")

	return adv, nil
}
