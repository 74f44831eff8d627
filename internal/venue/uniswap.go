/*

This file contains the Uniswap V3 adapter. Position primitives go through the
NonfungiblePositionManager, the current tick comes from the pool's slot0 and custody
is the signing account itself. Result amounts are decoded from receipt events.

*/

package venue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
	"github.com/elys-network/clpm/internal/wallet"
)

var venueLogger = logger.GetForComponent("venue_uniswap")

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Chain is the transaction layer the adapter needs. *wallet.SigningClient satisfies it.
type Chain interface {
	Address() common.Address
	Query(ctx context.Context, call wallet.ContractCall) ([]interface{}, error)
	Execute(ctx context.Context, call wallet.ContractCall) (*ethtypes.Receipt, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TransferNative(ctx context.Context, to common.Address, value *big.Int) (*ethtypes.Receipt, error)
}

// UniswapV3Config holds the deployment addresses of one pool.
type UniswapV3Config struct {
	PositionManager  common.Address
	Pool             common.Address
	TokenA           common.Address // token0
	TokenB           common.Address // token1
	FeeTier          uint32         // pips, e.g. 3000
	TickSpacing      int32
	DeadlineWindow   time.Duration // Added to now for every position call
	NativeGasReserve *big.Int      // Native balance kept back when sweeping
}

// UniswapV3 implements Gateway and Custody against a Uniswap V3 deployment.
type UniswapV3 struct {
	chain Chain
	cfg   UniswapV3Config
	now   func() time.Time
}

// mintParams mirrors INonfungiblePositionManager.MintParams.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type increaseLiquidityParams struct {
	TokenId        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// NewUniswapV3 creates the adapter with comprehensive validation
func NewUniswapV3(chain Chain, cfg UniswapV3Config) (*UniswapV3, error) {
	if chain == nil {
		return nil, errors.New("chain cannot be nil")
	}
	if err := validateUniswapConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.NativeGasReserve == nil {
		cfg.NativeGasReserve = new(big.Int)
	}
	return &UniswapV3{chain: chain, cfg: cfg, now: time.Now}, nil
}

func validateUniswapConfig(cfg UniswapV3Config) error {
	zero := common.Address{}
	if cfg.PositionManager == zero || cfg.Pool == zero || cfg.TokenA == zero || cfg.TokenB == zero {
		return errors.New("position manager, pool and token addresses are required")
	}
	if bytes.Compare(cfg.TokenA.Bytes(), cfg.TokenB.Bytes()) >= 0 {
		return fmt.Errorf("token A %s must sort below token B %s (token0/token1 order)", cfg.TokenA.Hex(), cfg.TokenB.Hex())
	}
	if cfg.FeeTier == 0 {
		return errors.New("fee tier cannot be zero")
	}
	if cfg.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing must be positive, got %d", cfg.TickSpacing)
	}
	if cfg.DeadlineWindow <= 0 {
		return errors.New("deadline window must be positive")
	}
	return nil
}

func (u *UniswapV3) deadline() *big.Int {
	return big.NewInt(u.now().Add(u.cfg.DeadlineWindow).Unix())
}

func venueErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrVenue, op, err)
}

func (u *UniswapV3) TickSpacing() int32 {
	return u.cfg.TickSpacing
}

// OpenPosition mints a position owned by the custody address. Minimums are zero; the caller
// sizes amounts against the current tick.
func (u *UniswapV3) OpenPosition(ctx context.Context, params MintParams) (MintResult, error) {
	receipt, err := u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "mint",
		Args: []interface{}{mintParams{
			Token0:         u.cfg.TokenA,
			Token1:         u.cfg.TokenB,
			Fee:            new(big.Int).SetUint64(uint64(u.cfg.FeeTier)),
			TickLower:      big.NewInt(int64(params.TickLower)),
			TickUpper:      big.NewInt(int64(params.TickUpper)),
			Amount0Desired: utils.SDKIntToBigInt(params.AmountADesired),
			Amount1Desired: utils.SDKIntToBigInt(params.AmountBDesired),
			Amount0Min:     new(big.Int),
			Amount1Min:     new(big.Int),
			Recipient:      u.chain.Address(),
			Deadline:       u.deadline(),
		}},
	})
	if err != nil {
		return MintResult{}, venueErr("mint", err)
	}

	id, liq, a, b, err := u.decodeLiquidityEvent(receipt, "IncreaseLiquidity")
	if err != nil {
		return MintResult{}, venueErr("mint", err)
	}

	venueLogger.Info().
		Uint64("positionID", uint64(id)).
		Int32("tickLower", params.TickLower).
		Int32("tickUpper", params.TickUpper).
		Str("liquidity", liq.String()).
		Msg("Position minted")

	return MintResult{ID: id, Liquidity: liq, UsedA: a, UsedB: b}, nil
}

func (u *UniswapV3) IncreaseLiquidity(ctx context.Context, id types.PositionID, amountA, amountB sdkmath.Int) (IncreaseResult, error) {
	receipt, err := u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "increaseLiquidity",
		Args: []interface{}{increaseLiquidityParams{
			TokenId:        new(big.Int).SetUint64(uint64(id)),
			Amount0Desired: utils.SDKIntToBigInt(amountA),
			Amount1Desired: utils.SDKIntToBigInt(amountB),
			Amount0Min:     new(big.Int),
			Amount1Min:     new(big.Int),
			Deadline:       u.deadline(),
		}},
	})
	if err != nil {
		return IncreaseResult{}, venueErr("increaseLiquidity", err)
	}
	_, liq, a, b, err := u.decodeLiquidityEvent(receipt, "IncreaseLiquidity")
	if err != nil {
		return IncreaseResult{}, venueErr("increaseLiquidity", err)
	}
	return IncreaseResult{Liquidity: liq, UsedA: a, UsedB: b}, nil
}

func (u *UniswapV3) DecreaseLiquidityToZero(ctx context.Context, id types.PositionID) (sdkmath.Int, sdkmath.Int, error) {
	pos, err := u.PositionInfo(ctx, id)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if pos.Liquidity.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	receipt, err := u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "decreaseLiquidity",
		Args: []interface{}{decreaseLiquidityParams{
			TokenId:    new(big.Int).SetUint64(uint64(id)),
			Liquidity:  utils.SDKIntToBigInt(pos.Liquidity),
			Amount0Min: new(big.Int),
			Amount1Min: new(big.Int),
			Deadline:   u.deadline(),
		}},
	})
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), venueErr("decreaseLiquidity", err)
	}
	_, _, a, b, err := u.decodeLiquidityEvent(receipt, "DecreaseLiquidity")
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), venueErr("decreaseLiquidity", err)
	}
	return a, b, nil
}

func (u *UniswapV3) Collect(ctx context.Context, id types.PositionID, recipient common.Address) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "collect",
		Args: []interface{}{collectParams{
			TokenId:    new(big.Int).SetUint64(uint64(id)),
			Recipient:  recipient,
			Amount0Max: maxUint128,
			Amount1Max: maxUint128,
		}},
	})
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), venueErr("collect", err)
	}

	fields, _, err := wallet.EventsByName(receipt, positionManagerABI, u.cfg.PositionManager, "Collect")
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), venueErr("collect", err)
	}
	// Collect with nothing owed emits no event.
	if len(fields) == 0 {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	a, b, err := amountPair(fields[0])
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), venueErr("collect", err)
	}
	return a, b, nil
}

func (u *UniswapV3) Burn(ctx context.Context, id types.PositionID) error {
	_, err := u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "burn",
		Args:   []interface{}{new(big.Int).SetUint64(uint64(id))},
	})
	if err != nil {
		return venueErr("burn", err)
	}
	return nil
}

func (u *UniswapV3) CurrentTick(ctx context.Context) (int32, error) {
	vals, err := u.chain.Query(ctx, wallet.ContractCall{ABI: poolABI, To: u.cfg.Pool, Method: "slot0"})
	if err != nil {
		return 0, venueErr("slot0", err)
	}
	if len(vals) < 2 {
		return 0, venueErr("slot0", fmt.Errorf("expected 7 outputs, got %d", len(vals)))
	}
	tick, err := toInt32(vals[1])
	if err != nil {
		return 0, venueErr("slot0", err)
	}
	return tick, nil
}

func (u *UniswapV3) PositionInfo(ctx context.Context, id types.PositionID) (types.Position, error) {
	vals, err := u.chain.Query(ctx, wallet.ContractCall{
		ABI:    positionManagerABI,
		To:     u.cfg.PositionManager,
		Method: "positions",
		Args:   []interface{}{new(big.Int).SetUint64(uint64(id))},
	})
	if err != nil {
		return types.Position{}, venueErr("positions", err)
	}
	if len(vals) != 12 {
		return types.Position{}, venueErr("positions", fmt.Errorf("expected 12 outputs, got %d", len(vals)))
	}

	lower, err := toInt32(vals[5])
	if err != nil {
		return types.Position{}, venueErr("positions", err)
	}
	upper, err := toInt32(vals[6])
	if err != nil {
		return types.Position{}, venueErr("positions", err)
	}
	ints := make([]sdkmath.Int, 0, 3)
	for _, idx := range []int{7, 10, 11} {
		v, ok := vals[idx].(*big.Int)
		if !ok {
			return types.Position{}, venueErr("positions", fmt.Errorf("output %d has type %T", idx, vals[idx]))
		}
		i, err := utils.BigIntToSDKInt(v)
		if err != nil {
			return types.Position{}, venueErr("positions", err)
		}
		ints = append(ints, i)
	}

	return types.Position{
		ID:        id,
		TickLower: lower,
		TickUpper: upper,
		Liquidity: ints[0],
		OwedA:     ints[1],
		OwedB:     ints[2],
	}, nil
}

// decodeLiquidityEvent reads the first IncreaseLiquidity/DecreaseLiquidity event of the receipt.
func (u *UniswapV3) decodeLiquidityEvent(receipt *ethtypes.Receipt, name string) (types.PositionID, sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	fields, logs, err := wallet.EventsByName(receipt, positionManagerABI, u.cfg.PositionManager, name)
	if err != nil {
		return 0, zero, zero, zero, err
	}
	if len(fields) == 0 {
		return 0, zero, zero, zero, fmt.Errorf("no %s event in receipt", name)
	}
	if len(logs[0].Topics) < 2 {
		return 0, zero, zero, zero, fmt.Errorf("%s event missing tokenId topic", name)
	}
	tokenID := new(big.Int).SetBytes(logs[0].Topics[1].Bytes())
	if !tokenID.IsUint64() || tokenID.Sign() == 0 {
		return 0, zero, zero, zero, fmt.Errorf("tokenId %s out of range", tokenID)
	}

	liqRaw, ok := fields[0]["liquidity"].(*big.Int)
	if !ok {
		return 0, zero, zero, zero, fmt.Errorf("%s liquidity has type %T", name, fields[0]["liquidity"])
	}
	liq, err := utils.BigIntToSDKInt(liqRaw)
	if err != nil {
		return 0, zero, zero, zero, err
	}
	a, b, err := amountPair(fields[0])
	if err != nil {
		return 0, zero, zero, zero, err
	}
	return types.PositionID(tokenID.Uint64()), liq, a, b, nil
}

func amountPair(fields map[string]interface{}) (sdkmath.Int, sdkmath.Int, error) {
	raw0, ok0 := fields["amount0"].(*big.Int)
	raw1, ok1 := fields["amount1"].(*big.Int)
	if !ok0 || !ok1 {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), errors.New("event amounts missing")
	}
	a, err := utils.BigIntToSDKInt(raw0)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	b, err := utils.BigIntToSDKInt(raw1)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return a, b, nil
}

func toInt32(v interface{}) (int32, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("expected *big.Int tick, got %T", v)
	}
	if !b.IsInt64() || b.Int64() < -887272 || b.Int64() > 887272 {
		return 0, fmt.Errorf("tick %s out of range", b)
	}
	return int32(b.Int64()), nil
}
