package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Mode selects between a live venue and the in-memory paper venue.
type Mode string

const (
	ModeLive  Mode = "live"
	ModePaper Mode = "paper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RunMode is live or paper.
	RunMode Mode

	// OwnerAddress is the only account allowed to run privileged operations.
	OwnerAddress common.Address

	// ChainID is the EVM chain id of the target network. Live mode only.
	ChainID int64
	// ManagerPrivateKey signs every venue transaction. Live mode only.
	ManagerPrivateKey string

	// PositionManagerAddress is the NonfungiblePositionManager contract. Live mode only.
	PositionManagerAddress common.Address
	// PoolAddress is the managed pool. Live mode only.
	PoolAddress common.Address
	// TokenAAddress and TokenBAddress are the pool's token0 and token1. Live mode only.
	TokenAAddress common.Address
	TokenBAddress common.Address
	// OracleFeedAddress is the aggregator quoting token A in token B. Live mode only.
	OracleFeedAddress common.Address

	// TokenADecimals and TokenBDecimals scale raw amounts for USD valuation.
	TokenADecimals int
	TokenBDecimals int

	// FeeTier is the pool fee in pips; it fixes the tick spacing.
	FeeTier uint32

	// WebPort is the port of the dashboard/API server.
	WebPort string

	// LogLevel and LogFormat configure the logger.
	LogLevel  string
	LogFormat string

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64

	// PaperPrice is the token A price in token B the paper venue and oracle start at.
	PaperPrice float64
	// PaperSeedA and PaperSeedB are raw amounts credited to the paper custody at startup and
	// deployed as a position when none is held.
	PaperSeedA uint64
	PaperSeedB uint64
	// PaperFeesPerMinuteA and PaperFeesPerMinuteB are raw fee amounts accrued to the paper position every minute.
	PaperFeesPerMinuteA uint64
	PaperFeesPerMinuteB uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Variables marked live-only are required only when CLPM_MODE=live.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RunMode = Mode(strings.ToLower(getEnvOrDefault("CLPM_MODE", string(ModePaper))))
	if RunMode != ModeLive && RunMode != ModePaper {
		return fmt.Errorf("%w: CLPM_MODE must be %q or %q, got %q", ErrInvalidConfig, ModeLive, ModePaper, RunMode)
	}

	OwnerAddress, err = getEnvAsAddress("OWNER_ADDRESS")
	if err != nil {
		return err
	}

	feeTier, err := getEnvAsUint64("FEE_TIER")
	if err != nil {
		return err
	}
	if _, err := TickSpacingForFeeTier(uint32(feeTier)); err != nil {
		return err
	}
	FeeTier = uint32(feeTier)

	if TokenADecimals, err = getEnvAsDecimals("TOKEN_A_DECIMALS"); err != nil {
		return err
	}
	if TokenBDecimals, err = getEnvAsDecimals("TOKEN_B_DECIMALS"); err != nil {
		return err
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFormat = getEnvOrDefault("LOG_FORMAT", "console")

	if err := loadEndpointConfig(); err != nil {
		return err
	}
	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	if RunMode == ModeLive {
		if err := loadLiveConfig(); err != nil {
			return err
		}
	} else if err := loadPaperConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("mode", string(RunMode)).
		Str("owner", OwnerAddress.Hex()).
		Uint32("feeTier", FeeTier).
		Int64("chainID", ChainID).
		Msg("Configuration loaded successfully.")

	return nil
}

func loadLiveConfig() error {
	var err error

	chainID, err := getEnvAsUint64("CHAIN_ID")
	if err != nil {
		return err
	}
	ChainID = int64(chainID)

	if ManagerPrivateKey, err = getEnv("MANAGER_PRIVATE_KEY"); err != nil {
		return err
	}
	if PositionManagerAddress, err = getEnvAsAddress("POSITION_MANAGER_ADDRESS"); err != nil {
		return err
	}
	if PoolAddress, err = getEnvAsAddress("POOL_ADDRESS"); err != nil {
		return err
	}
	if TokenAAddress, err = getEnvAsAddress("TOKEN_A_ADDRESS"); err != nil {
		return err
	}
	if TokenBAddress, err = getEnvAsAddress("TOKEN_B_ADDRESS"); err != nil {
		return err
	}
	if OracleFeedAddress, err = getEnvAsAddress("ORACLE_FEED_ADDRESS"); err != nil {
		return err
	}

	DefaultGasLimit = 500_000
	if _, set := os.LookupEnv("GAS_DEFAULT_LIMIT"); set {
		if DefaultGasLimit, err = getEnvAsUint64("GAS_DEFAULT_LIMIT"); err != nil {
			return err
		}
	}
	return nil
}

func loadPaperConfig() error {
	PaperPrice = 2000
	if _, set := os.LookupEnv("PAPER_PRICE"); set {
		var err error
		if PaperPrice, err = getEnvAsFloat64("PAPER_PRICE"); err != nil {
			return err
		}
	}
	if PaperPrice <= 0 {
		return fmt.Errorf("%w: PAPER_PRICE must be positive, got %v", ErrInvalidConfig, PaperPrice)
	}

	for key, dst := range map[string]*uint64{
		"PAPER_SEED_A":            &PaperSeedA,
		"PAPER_SEED_B":            &PaperSeedB,
		"PAPER_FEES_A_PER_MINUTE": &PaperFeesPerMinuteA,
		"PAPER_FEES_B_PER_MINUTE": &PaperFeesPerMinuteB,
	} {
		*dst = 0
		if _, set := os.LookupEnv(key); !set {
			continue
		}
		v, err := getEnvAsUint64(key)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves an optional string environment variable.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves a non-zero hex address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	addr := common.HexToAddress(valueStr)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("environment variable " + key + " cannot be the zero address")
	}
	return addr, nil
}

// getEnvAsDecimals retrieves a token decimals value in [0, 18].
func getEnvAsDecimals(key string) (int, error) {
	value, err := getEnvAsUint64(key)
	if err != nil {
		return 0, err
	}
	if value > 18 {
		return 0, fmt.Errorf("environment variable %s must be within [0, 18], got %d", key, value)
	}
	return int(value), nil
}
