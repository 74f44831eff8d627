/*
This file is used to fetch spot and historical price data from the CoinGecko API.

Volatility for the advisory range suggestion needs a contiguous hourly series; CoinGecko
returns hourly granularity for windows between 2 and 90 days.
*/

package datafetcher

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/elys-network/clpm/internal/types"
)

const (
	MIN_HISTORY_DAYS = 2
	MAX_HISTORY_DAYS = 90
	// Share of the expected hourly points that must be present.
	minCoverage = 0.9
)

type coinGeckoMarketChart struct {
	Prices [][2]float64 `json:"prices"` // [unix ms, price]
}

func (c *Client) coinGeckoHeaders() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": c.apiKey}
}

// FetchSpotPrice returns the current USD price of a CoinGecko coin id.
func (c *Client) FetchSpotPrice(ctx context.Context, coinID string) (float64, error) {
	coinID = strings.TrimSpace(strings.ToLower(coinID))
	if coinID == "" {
		return 0, fmt.Errorf("%w: empty coin id", ErrInvalidPriceData)
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.coinGecko, url.QueryEscape(coinID))

	var data map[string]map[string]float64
	if err := c.getJSON(ctx, c.cgLimiter, endpoint, c.coinGeckoHeaders(), &data); err != nil {
		return 0, fmt.Errorf("failed to fetch spot price for %s: %w", coinID, err)
	}

	price, ok := data[coinID]["usd"]
	if !ok {
		return 0, fmt.Errorf("%w: %s price not found in response", ErrInvalidPriceData, coinID)
	}
	if err := validatePrice(price); err != nil {
		return 0, fmt.Errorf("%s: %w", coinID, err)
	}

	fetchLogger.Debug().Str("coin", coinID).Float64("usd", price).Msg("Fetched spot price")
	return price, nil
}

// FetchHourlyPrices fetches days of hourly USD prices with strict validation, oldest first.
func (c *Client) FetchHourlyPrices(ctx context.Context, coinID string, days int) ([]types.PriceData, error) {
	coinID = strings.TrimSpace(strings.ToLower(coinID))
	if coinID == "" {
		return nil, fmt.Errorf("%w: empty coin id", ErrInvalidPriceData)
	}
	if days < MIN_HISTORY_DAYS || days > MAX_HISTORY_DAYS {
		return nil, fmt.Errorf("%w: days must be within [%d, %d], got %d", ErrInvalidPriceData, MIN_HISTORY_DAYS, MAX_HISTORY_DAYS, days)
	}

	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", c.coinGecko, url.PathEscape(coinID), days)

	var chart coinGeckoMarketChart
	if err := c.getJSON(ctx, c.cgLimiter, endpoint, c.coinGeckoHeaders(), &chart); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", coinID, err)
	}

	required := int(math.Floor(float64(days*24) * minCoverage))
	if len(chart.Prices) < required {
		fetchLogger.Error().
			Str("coin", coinID).
			Int("received", len(chart.Prices)).
			Int("required", required).
			Msg("Insufficient data points received")
		return nil, fmt.Errorf("%w: %s: received %d points, required %d", ErrInsufficientData, coinID, len(chart.Prices), required)
	}

	priceData := make([]types.PriceData, 0, len(chart.Prices))
	for i, point := range chart.Prices {
		ts, price := point[0], point[1]
		if ts <= 0 {
			return nil, fmt.Errorf("%w: invalid timestamp at index %d for %s", ErrInvalidPriceData, i, coinID)
		}
		if err := validatePrice(price); err != nil {
			fetchLogger.Error().Err(err).Str("coin", coinID).Int("dataPointIndex", i).Msg("Invalid data point")
			return nil, fmt.Errorf("invalid data point %d for %s: %w", i, coinID, err)
		}
		priceData = append(priceData, types.PriceData{
			Timestamp: time.UnixMilli(int64(ts)).UTC(),
			Price:     price,
		})
	}

	if err := validateTimeSequence(priceData, coinID); err != nil {
		return nil, err
	}

	fetchLogger.Info().
		Str("coin", coinID).
		Int("dataPoints", len(priceData)).
		Time("oldestData", priceData[0].Timestamp).
		Time("newestData", priceData[len(priceData)-1].Timestamp).
		Msg("Successfully retrieved and validated price data")

	return priceData, nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price is not finite: %f", ErrInvalidPriceData, price)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive: %f", ErrInvalidPriceData, price)
	}
	return nil
}

// validateTimeSequence ensures the price data has proper chronological sequence
func validateTimeSequence(priceData []types.PriceData, coin string) error {
	if len(priceData) < 2 {
		return fmt.Errorf("%w: insufficient data points to validate sequence for %s", ErrInsufficientData, coin)
	}

	for i := 1; i < len(priceData); i++ {
		if !priceData[i].Timestamp.After(priceData[i-1].Timestamp) {
			return fmt.Errorf("%w: data points not in chronological order for %s at index %d", ErrInvalidPriceData, coin, i)
		}

		// Gaps are tolerated; volatility is annualized per observation.
		timeDiff := priceData[i].Timestamp.Sub(priceData[i-1].Timestamp)
		if timeDiff < 30*time.Minute || timeDiff > 90*time.Minute {
			fetchLogger.Warn().
				Str("coin", coin).
				Int("index", i).
				Dur("timeDiff", timeDiff).
				Msg("Unusual time gap between data points")
		}
	}

	return nil
}
