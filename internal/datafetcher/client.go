/*

This file contains the shared HTTP client for the advisory market-data feeds.

Market data never reaches a lifecycle decision: it feeds the advisory projection and the
dashboard only. Every provider gets its own rate limiter; requests retry on transport errors,
429 and 5xx with a linear backoff.

*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/elys-network/clpm/internal/logger"
)

var fetchLogger = logger.GetForComponent("market_data")

var ErrAPIResponseInvalid = errors.New("API response validation failed")
var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrInsufficientData = errors.New("insufficient price data for volatility calculation")

const (
	DefaultCoinGeckoBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultDexScreenerBaseURL = "https://api.dexscreener.com"

	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30

	// Public CoinGecko allows ~30 calls/min; DexScreener pairs allow 300/min.
	coinGeckoRatePerSec   = 0.4
	dexScreenerRatePerSec = 4
)

// ClientConfig configures the market-data client. Empty URLs use the public endpoints.
type ClientConfig struct {
	CoinGeckoBaseURL   string
	CoinGeckoAPIKey    string // Optional demo/pro key, sent as x-cg-demo-api-key
	DexScreenerBaseURL string
	Timeout            time.Duration
	RetryWait          time.Duration
}

// Client fetches advisory market data from CoinGecko and DexScreener.
type Client struct {
	http        *http.Client
	coinGecko   string
	dexScreener string
	apiKey      string
	retryWait   time.Duration
	cgLimiter   *rate.Limiter
	dexLimiter  *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.CoinGeckoBaseURL == "" {
		cfg.CoinGeckoBaseURL = DefaultCoinGeckoBaseURL
	}
	if cfg.DexScreenerBaseURL == "" {
		cfg.DexScreenerBaseURL = DefaultDexScreenerBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = TIMEOUT_SECONDS * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		coinGecko:   cfg.CoinGeckoBaseURL,
		dexScreener: cfg.DexScreenerBaseURL,
		apiKey:      cfg.CoinGeckoAPIKey,
		retryWait:   cfg.RetryWait,
		cgLimiter:   rate.NewLimiter(coinGeckoRatePerSec, 3),
		dexLimiter:  rate.NewLimiter(dexScreenerRatePerSec, 10),
	}
}

// getJSON performs a rate-limited GET with retries and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, limiter *rate.Limiter, url string, headers map[string]string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		fetchLogger.Debug().Str("url", url).Int("attempt", attempt).Int("maxRetries", MAX_RETRIES).Msg("Making API request")

		body, retry, err := c.do(ctx, url, headers)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: failed to parse JSON response: %w", ErrAPIResponseInvalid, err)
			}
			return nil
		}

		lastErr = err
		if !retry || attempt == MAX_RETRIES {
			break
		}
		fetchLogger.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("Request failed, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.retryWait):
		}
	}

	fetchLogger.Error().Err(lastErr).Str("url", url).Msg("All retry attempts failed")
	return lastErr
}

// do returns the body of a 200 response, or an error and whether it is worth retrying.
func (c *Client) do(ctx context.Context, url string, headers map[string]string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if len(body) == 0 {
			return nil, false, fmt.Errorf("%w: empty response body", ErrAPIResponseInvalid)
		}
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrAPIResponseInvalid, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrAPIResponseInvalid, resp.StatusCode, truncate(body, 200))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
