package datafetcher

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// PairStats is the DexScreener view of a pool. All values are in USD.
type PairStats struct {
	ChainID       string  `json:"chain_id"`
	DexID         string  `json:"dex_id"`
	PairAddress   string  `json:"pair_address"`
	BaseSymbol    string  `json:"base_symbol"`
	QuoteSymbol   string  `json:"quote_symbol"`
	PriceUSD      float64 `json:"price_usd"`
	Volume24hUSD  float64 `json:"volume_24h_usd"`
	LiquidityUSD  float64 `json:"liquidity_usd"` // Aggregate pool TVL, not active liquidity
	PriceChange24 float64 `json:"price_change_24h"`
}

type dexScreenerResponse struct {
	Pairs []struct {
		ChainID     string `json:"chainId"`
		DexID       string `json:"dexId"`
		PairAddress string `json:"pairAddress"`
		BaseToken   struct {
			Symbol string `json:"symbol"`
		} `json:"baseToken"`
		QuoteToken struct {
			Symbol string `json:"symbol"`
		} `json:"quoteToken"`
		PriceUSD string `json:"priceUsd"`
		Volume   struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
	} `json:"pairs"`
}

// FetchPairStats returns DexScreener's 24h volume and liquidity for a pool.
func (c *Client) FetchPairStats(ctx context.Context, chainID, pairAddress string) (PairStats, error) {
	chainID = strings.TrimSpace(strings.ToLower(chainID))
	pairAddress = strings.TrimSpace(pairAddress)
	if chainID == "" || pairAddress == "" {
		return PairStats{}, fmt.Errorf("%w: chain id and pair address are required", ErrAPIResponseInvalid)
	}

	endpoint := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", c.dexScreener, url.PathEscape(chainID), url.PathEscape(pairAddress))

	var resp dexScreenerResponse
	if err := c.getJSON(ctx, c.dexLimiter, endpoint, nil, &resp); err != nil {
		return PairStats{}, fmt.Errorf("failed to fetch pair stats for %s/%s: %w", chainID, pairAddress, err)
	}

	for _, p := range resp.Pairs {
		if !strings.EqualFold(p.PairAddress, pairAddress) {
			continue
		}
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil {
			return PairStats{}, fmt.Errorf("%w: priceUsd %q: %w", ErrInvalidPriceData, p.PriceUSD, err)
		}
		stats := PairStats{
			ChainID:       p.ChainID,
			DexID:         p.DexID,
			PairAddress:   p.PairAddress,
			BaseSymbol:    p.BaseToken.Symbol,
			QuoteSymbol:   p.QuoteToken.Symbol,
			PriceUSD:      price,
			Volume24hUSD:  p.Volume.H24,
			LiquidityUSD:  p.Liquidity.USD,
			PriceChange24: p.PriceChange.H24,
		}
		if err := validatePairStats(stats); err != nil {
			return PairStats{}, err
		}

		fetchLogger.Debug().
			Str("pair", stats.PairAddress).
			Float64("volume24h", stats.Volume24hUSD).
			Float64("liquidityUSD", stats.LiquidityUSD).
			Msg("Fetched pair stats")
		return stats, nil
	}

	return PairStats{}, fmt.Errorf("%w: pair %s not found on %s", ErrAPIResponseInvalid, pairAddress, chainID)
}

func validatePairStats(s PairStats) error {
	if err := validatePrice(s.PriceUSD); err != nil {
		return err
	}
	for _, v := range []struct {
		name  string
		value float64
	}{{"volume24h", s.Volume24hUSD}, {"liquidity", s.LiquidityUSD}} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) || v.value < 0 {
			return fmt.Errorf("%w: %s must be finite and non-negative: %f", ErrAPIResponseInvalid, v.name, v.value)
		}
	}
	return nil
}
