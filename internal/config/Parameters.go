/*

This file contains the default strategy parameters and the YAML strategy loader.

The strategy file is optional; every field it sets overrides the matching default. Unknown keys
are rejected so that a typo cannot silently fall back to a default.

*/

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Strategy holds the tunable parameters of the manager, the keeper and the reporter.
type Strategy struct {
	// RangePercent is the initial ±range around the current price. The owner can update it at runtime.
	RangePercent float64 `yaml:"range_percent" validate:"gt=0,lt=100"`
	// TargetAnnualFeesUSD drives target tracking. Zero disables it.
	TargetAnnualFeesUSD float64 `yaml:"target_annual_fees_usd" validate:"gte=0"`
	// KeeperInterval is how often the keeper attempts to compound.
	KeeperInterval time.Duration `yaml:"keeper_interval" validate:"gte=1m"`
	// OracleStaleness bounds the age of an accepted oracle quote.
	OracleStaleness time.Duration `yaml:"oracle_staleness" validate:"gte=2m,lte=1h"`
	// ReportWeeks is the trailing window of the weekly report and target tracking.
	ReportWeeks int `yaml:"report_weeks" validate:"gte=1,lte=104"`

	Advisory AdvisoryStrategy `yaml:"advisory"`
}

// AdvisoryStrategy configures the display-only market projection.
type AdvisoryStrategy struct {
	Enabled     bool   `yaml:"enabled"`
	ChainID     string `yaml:"chain_id" validate:"required_if=Enabled true"` // DexScreener chain slug, e.g. "ethereum"
	PairAddress string `yaml:"pair_address"`                                 // Defaults to POOL_ADDRESS
	TokenSymbol string `yaml:"token_symbol"`                                 // Token A symbol, resolved via CoinGeckoID
	CoinGeckoID string `yaml:"coingecko_id"`                                 // Overrides TokenSymbol
	// ActiveLiquidityShare is the in-range fraction of the pool's TVL. It must be measured,
	// there is no default: aggregate TVL overstates active liquidity by orders of magnitude.
	ActiveLiquidityShare float64 `yaml:"active_liquidity_share" validate:"required_if=Enabled true,gte=0,lte=1"`
	CapitalUSD           float64 `yaml:"capital_usd" validate:"gte=0"`
	VolatilityDays       int     `yaml:"volatility_days" validate:"gte=2,lte=90"`
	HorizonDays          float64 `yaml:"horizon_days" validate:"gt=0,lte=365"`
	ZScore               float64 `yaml:"z_score" validate:"gt=0,lte=5"`
}

// DefaultStrategy is used when no strategy file is given, and as the base a file overrides.
var DefaultStrategy = Strategy{
	RangePercent: 15.0, // ±15% keeps a 3000-pip pool in range through most weekly moves.

	TargetAnnualFeesUSD: 0,

	KeeperInterval: time.Hour,

	OracleStaleness: time.Hour,

	ReportWeeks: 4,

	Advisory: AdvisoryStrategy{
		Enabled:        false,
		VolatilityDays: 30,
		HorizonDays:    7,
		ZScore:         1.0,
	},
}

var validate = validator.New()

// LoadStrategy reads a YAML strategy file over DefaultStrategy. An empty path returns the defaults.
func LoadStrategy(path string) (Strategy, error) {
	if path == "" {
		s := DefaultStrategy
		return s, s.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Strategy{}, fmt.Errorf("failed to read strategy file %q: %w", path, err)
	}
	return ParseStrategy(data)
}

// ParseStrategy decodes YAML over DefaultStrategy and validates the result.
func ParseStrategy(data []byte) (Strategy, error) {
	s := DefaultStrategy

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Strategy{}, fmt.Errorf("%w: failed to parse strategy: %w", ErrInvalidConfig, err)
	}

	if s.Advisory.CoinGeckoID == "" && s.Advisory.TokenSymbol != "" {
		s.Advisory.CoinGeckoID = CoinGeckoID(s.Advisory.TokenSymbol)
	}

	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// Validate checks the strategy's struct tags.
func (s Strategy) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// feeTierSpacing is the Uniswap V3 factory's enabled fee amounts.
var feeTierSpacing = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// TickSpacingForFeeTier returns the immutable tick spacing of a fee tier.
func TickSpacingForFeeTier(feeTier uint32) (int32, error) {
	spacing, ok := feeTierSpacing[feeTier]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported fee tier %d", ErrInvalidConfig, feeTier)
	}
	return spacing, nil
}
