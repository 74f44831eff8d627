package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clpm/internal/types"
)

type stubSource struct {
	quote types.PriceQuote
	err   error
	calls int
}

func (s *stubSource) Latest(ctx context.Context) (types.PriceQuote, error) {
	s.calls++
	return s.quote, s.err
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T, src Source) *Gateway {
	t.Helper()
	g, err := NewGateway(src, Config{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return g
}

func TestGetValidatedPriceAcceptsFreshQuote(t *testing.T) {
	src := &stubSource{quote: types.PriceQuote{Value: sdkmath.NewInt(2_000_00000000), Decimals: 8, ObservedAt: fixedNow.Add(-3599 * time.Second)}}
	g := newTestGateway(t, src)

	q, err := g.GetValidatedPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2000.000000000000000000", q.Dec().String())
}

func TestGetValidatedPriceRejectsStaleQuoteRegardlessOfValue(t *testing.T) {
	for _, v := range []int64{1, 2_000_00000000, 1 << 60} {
		src := &stubSource{quote: types.PriceQuote{Value: sdkmath.NewInt(v), Decimals: 8, ObservedAt: fixedNow.Add(-3601 * time.Second)}}
		_, err := newTestGateway(t, src).GetValidatedPrice(context.Background())
		assert.ErrorIs(t, err, ErrStaleOracle)
	}
}

func TestGetValidatedPriceBoundaryIsInclusive(t *testing.T) {
	src := &stubSource{quote: types.PriceQuote{Value: sdkmath.NewInt(1), ObservedAt: fixedNow.Add(-time.Hour)}}
	_, err := newTestGateway(t, src).GetValidatedPrice(context.Background())
	assert.NoError(t, err)
}

func TestGetValidatedPriceRejectsNonPositiveValue(t *testing.T) {
	for _, v := range []sdkmath.Int{sdkmath.ZeroInt(), sdkmath.NewInt(-5), {}} {
		src := &stubSource{quote: types.PriceQuote{Value: v, ObservedAt: fixedNow}}
		_, err := newTestGateway(t, src).GetValidatedPrice(context.Background())
		assert.ErrorIs(t, err, ErrInvalidOracleValue)
	}
}

func TestGetValidatedPriceRejectsFutureQuote(t *testing.T) {
	src := &stubSource{quote: types.PriceQuote{Value: sdkmath.NewInt(1), ObservedAt: fixedNow.Add(10 * time.Minute)}}
	_, err := newTestGateway(t, src).GetValidatedPrice(context.Background())
	assert.ErrorIs(t, err, ErrStaleOracle)
}

func TestGetValidatedPriceFetchesEveryCall(t *testing.T) {
	src := &stubSource{quote: types.PriceQuote{Value: sdkmath.NewInt(1), ObservedAt: fixedNow}}
	g := newTestGateway(t, src)
	for i := 0; i < 3; i++ {
		_, err := g.GetValidatedPrice(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)

	src.err = errors.New("rpc down")
	_, err := g.GetValidatedPrice(context.Background())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

type stubCaller struct {
	decimals uint8
	answer   *big.Int
	updated  int64
}

func (s *stubCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := aggregatorABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(s.decimals)
	default:
		return method.Outputs.Pack(big.NewInt(1), s.answer, big.NewInt(s.updated), big.NewInt(s.updated), big.NewInt(1))
	}
}

func TestChainlinkSourceLatest(t *testing.T) {
	caller := &stubCaller{decimals: 8, answer: big.NewInt(3_500_12345678), updated: fixedNow.Unix()}
	src, err := NewChainlinkSource(caller, common.HexToAddress("0x00000000000000000000000000000000000000cc"))
	require.NoError(t, err)

	q, err := src.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), q.Decimals)
	assert.Equal(t, int64(3_500_12345678), q.Value.Int64())
	assert.True(t, q.ObservedAt.Equal(fixedNow))

	caller.answer = big.NewInt(-1)
	q, err = src.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, q.Value.IsZero())

	g := newTestGateway(t, src)
	_, err = g.GetValidatedPrice(context.Background())
	assert.ErrorIs(t, err, ErrInvalidOracleValue)
}
