/*
CoinGecko is used for advisory price history and spot prices.

This file maps token symbols to CoinGecko coin ids. Most ids are not the symbol, so a missing
entry falls back to the lowercased symbol, which only works for a handful of coins.
Set advisory.coingecko_id in the strategy file when the symbol is not listed here.

*/

package config

import "strings"

var (
	SymbolToCoinGeckoID = map[string]string{
		"WETH":  "weth",
		"ETH":   "ethereum",
		"WBTC":  "wrapped-bitcoin",
		"CBBTC": "coinbase-wrapped-btc",
		"USDC":  "usd-coin",
		"USDT":  "tether",
		"DAI":   "dai",
		"LINK":  "chainlink",
		"UNI":   "uniswap",
		"ARB":   "arbitrum",
		"OP":    "optimism",
		"MATIC": "matic-network",
		"PAXG":  "pax-gold",
		"ATOM":  "cosmos",
		"TIA":   "celestia",
	}
)

// CoinGeckoID resolves a token symbol to its CoinGecko id.
func CoinGeckoID(symbol string) string {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := SymbolToCoinGeckoID[key]; ok {
		return id
	}
	return strings.ToLower(key)
}
