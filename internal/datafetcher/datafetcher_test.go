package datafetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(ClientConfig{
		CoinGeckoBaseURL:   srv.URL,
		DexScreenerBaseURL: srv.URL,
		Timeout:            2 * time.Second,
		RetryWait:          time.Millisecond,
	})
	// Tests should not wait on the public-API pacing.
	c.cgLimiter.SetLimit(1000)
	c.cgLimiter.SetBurst(1000)
	c.dexLimiter.SetLimit(1000)
	c.dexLimiter.SetBurst(1000)
	return c
}

func hourlyChart(points int, start time.Time, price float64) string {
	var b strings.Builder
	b.WriteString(`{"prices":[`)
	for i := 0; i < points; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "[%d,%f]", start.Add(time.Duration(i)*time.Hour).UnixMilli(), price+float64(i%5))
	}
	b.WriteString("]}")
	return b.String()
}

func TestFetchSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		fmt.Fprint(w, `{"ethereum":{"usd":2500.5}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.apiKey = "demo-key"

	price, err := c.FetchSpotPrice(context.Background(), " Ethereum ")
	require.NoError(t, err)
	assert.Equal(t, 2500.5, price)
}

func TestFetchSpotPriceMissingCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchSpotPrice(context.Background(), "ethereum")
	assert.ErrorIs(t, err, ErrInvalidPriceData)
}

func TestFetchSpotPriceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ethereum":{"usd":1}}`)
	}))
	defer srv.Close()

	price, err := newTestClient(srv).FetchSpotPrice(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchSpotPriceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchSpotPrice(context.Background(), "ethereum")
	assert.ErrorIs(t, err, ErrAPIResponseInvalid)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchHourlyPrices(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/market_chart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		fmt.Fprint(w, hourlyChart(168, start, 2000))
	}))
	defer srv.Close()

	prices, err := newTestClient(srv).FetchHourlyPrices(context.Background(), "ethereum", 7)
	require.NoError(t, err)
	require.Len(t, prices, 168)
	assert.Equal(t, start, prices[0].Timestamp)
	assert.Equal(t, 2000.0, prices[0].Price)
	assert.True(t, prices[167].Timestamp.After(prices[0].Timestamp))
}

func TestFetchHourlyPricesValidation(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()
	c := newTestClient(srv)

	_, err := c.FetchHourlyPrices(context.Background(), "ethereum", 1)
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	body = hourlyChart(10, start, 2000)
	_, err = c.FetchHourlyPrices(context.Background(), "ethereum", 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	body = hourlyChart(48, start, -1)
	_, err = c.FetchHourlyPrices(context.Background(), "ethereum", 2)
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	ts := start.UnixMilli()
	points := make([]string, 0, 48)
	for i := 0; i < 48; i++ {
		points = append(points, fmt.Sprintf("[%d,100]", ts))
	}
	body = `{"prices":[` + strings.Join(points, ",") + `]}`
	_, err = c.FetchHourlyPrices(context.Background(), "ethereum", 2)
	assert.ErrorIs(t, err, ErrInvalidPriceData)
}

func TestFetchPairStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/pairs/ethereum/0xABC", r.URL.Path)
		fmt.Fprint(w, `{"pairs":[
			{"chainId":"ethereum","dexId":"uniswap","pairAddress":"0xabc",
			 "baseToken":{"symbol":"WETH"},"quoteToken":{"symbol":"USDC"},
			 "priceUsd":"2500.25","volume":{"h24":1500000},"liquidity":{"usd":4000000},
			 "priceChange":{"h24":-1.5}}]}`)
	}))
	defer srv.Close()

	stats, err := newTestClient(srv).FetchPairStats(context.Background(), "Ethereum", "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "WETH", stats.BaseSymbol)
	assert.Equal(t, 2500.25, stats.PriceUSD)
	assert.Equal(t, 1500000.0, stats.Volume24hUSD)
	assert.Equal(t, 4000000.0, stats.LiquidityUSD)
	assert.Equal(t, -1.5, stats.PriceChange24)
}

func TestFetchPairStatsErrors(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()
	c := newTestClient(srv)

	_, err := c.FetchPairStats(context.Background(), "", "0xabc")
	assert.ErrorIs(t, err, ErrAPIResponseInvalid)

	body = `{"pairs":[]}`
	_, err = c.FetchPairStats(context.Background(), "ethereum", "0xabc")
	assert.ErrorIs(t, err, ErrAPIResponseInvalid)

	body = `{"pairs":[{"pairAddress":"0xabc","priceUsd":"abc"}]}`
	_, err = c.FetchPairStats(context.Background(), "ethereum", "0xabc")
	assert.ErrorIs(t, err, ErrInvalidPriceData)

	body = `{"pairs":[{"pairAddress":"0xabc","priceUsd":"1","volume":{"h24":-5}}]}`
	_, err = c.FetchPairStats(context.Background(), "ethereum", "0xabc")
	assert.ErrorIs(t, err, ErrAPIResponseInvalid)

	body = `not json`
	_, err = c.FetchPairStats(context.Background(), "ethereum", "0xabc")
	assert.ErrorIs(t, err, ErrAPIResponseInvalid)
}
