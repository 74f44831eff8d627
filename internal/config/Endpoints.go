package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the JSON-RPC endpoint of the EVM node. Required in live mode.
	NodeRPC string

	// CoinGeckoBaseURL and DexScreenerBaseURL feed the advisory dashboard. Empty means the public API.
	CoinGeckoBaseURL   string
	DexScreenerBaseURL string
	// CoinGeckoAPIKey is an optional demo key.
	CoinGeckoAPIKey string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	if RunMode == ModeLive {
		var err error
		NodeRPC, err = getEnv("NODE_RPC")
		if err != nil {
			return err
		}
	}

	CoinGeckoBaseURL = getEnvOrDefault("COINGECKO_API", "")
	DexScreenerBaseURL = getEnvOrDefault("DEXSCREENER_API", "")
	CoinGeckoAPIKey = getEnvOrDefault("COINGECKO_API_KEY", "")

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("CoinGecko", CoinGeckoBaseURL).
		Str("DexScreener", DexScreenerBaseURL).
		Bool("CoinGeckoKey", CoinGeckoAPIKey != "").
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
