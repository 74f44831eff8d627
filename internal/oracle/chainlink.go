package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/clpm/internal/types"
)

var aggregatorABI abi.ABI

func init() {
	var err error
	aggregatorABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "latestRoundData",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "roundId", "type": "uint80"},
				{"name": "answer", "type": "int256"},
				{"name": "startedAt", "type": "uint256"},
				{"name": "updatedAt", "type": "uint256"},
				{"name": "answeredInRound", "type": "uint80"}
			]
		},
		{
			"name": "decimals",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint8"}]
		}
	]`))
	if err != nil {
		panic("aggregator abi parse: " + err.Error())
	}
}

// ChainlinkSource reads a Chainlink AggregatorV3 price feed.
type ChainlinkSource struct {
	caller ethereum.ContractCaller
	feed   common.Address

	decimalsOnce sync.Once
	decimals     uint8
	decimalsErr  error
}

func NewChainlinkSource(caller ethereum.ContractCaller, feed common.Address) (*ChainlinkSource, error) {
	if caller == nil {
		return nil, errors.New("contract caller cannot be nil")
	}
	if feed == (common.Address{}) {
		return nil, errors.New("feed address cannot be zero")
	}
	return &ChainlinkSource{caller: caller, feed: feed}, nil
}

func (c *ChainlinkSource) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.feed, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return aggregatorABI.Unpack(method, out)
}

func (c *ChainlinkSource) feedDecimals(ctx context.Context) (uint8, error) {
	c.decimalsOnce.Do(func() {
		vals, err := c.call(ctx, "decimals")
		if err != nil {
			c.decimalsErr = err
			return
		}
		d, ok := vals[0].(uint8)
		if !ok {
			c.decimalsErr = fmt.Errorf("decimals has type %T", vals[0])
			return
		}
		c.decimals = d
	})
	return c.decimals, c.decimalsErr
}

// Latest returns the answer and updatedAt of the latest round. Validation is left to the Gateway,
// except that a negative answer is passed through as zero.
func (c *ChainlinkSource) Latest(ctx context.Context) (types.PriceQuote, error) {
	decimals, err := c.feedDecimals(ctx)
	if err != nil {
		return types.PriceQuote{}, err
	}
	vals, err := c.call(ctx, "latestRoundData")
	if err != nil {
		return types.PriceQuote{}, err
	}
	if len(vals) != 5 {
		return types.PriceQuote{}, fmt.Errorf("latestRoundData: expected 5 outputs, got %d", len(vals))
	}
	answer, ok := vals[1].(*big.Int)
	if !ok {
		return types.PriceQuote{}, fmt.Errorf("answer has type %T", vals[1])
	}
	updatedAt, ok := vals[3].(*big.Int)
	if !ok || !updatedAt.IsInt64() {
		return types.PriceQuote{}, fmt.Errorf("updatedAt is invalid: %v", vals[3])
	}

	value := sdkmath.ZeroInt()
	if answer.Sign() > 0 {
		value = sdkmath.NewIntFromBigInt(answer)
	}

	return types.PriceQuote{
		Value:      value,
		Decimals:   decimals,
		ObservedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}
