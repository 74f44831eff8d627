package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
	"github.com/elys-network/clpm/internal/wallet"
)

var ErrUnsupportedAsset = errors.New("unsupported asset")

func (u *UniswapV3) Address() common.Address {
	return u.chain.Address()
}

func (u *UniswapV3) token(asset types.Asset) (common.Address, error) {
	switch asset {
	case types.AssetA:
		return u.cfg.TokenA, nil
	case types.AssetB:
		return u.cfg.TokenB, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
}

func (u *UniswapV3) Balance(ctx context.Context, asset types.Asset, holder common.Address) (sdkmath.Int, error) {
	if asset == types.AssetNative {
		bal, err := u.chain.NativeBalance(ctx, holder)
		if err != nil {
			return sdkmath.ZeroInt(), venueErr("native balance", err)
		}
		out, err := utils.BigIntToSDKInt(bal)
		if err != nil {
			return sdkmath.ZeroInt(), venueErr("native balance", err)
		}
		return out, nil
	}

	token, err := u.token(asset)
	if err != nil {
		return sdkmath.ZeroInt(), venueErr("balanceOf", err)
	}
	vals, err := u.chain.Query(ctx, wallet.ContractCall{ABI: erc20ABI, To: token, Method: "balanceOf", Args: []interface{}{holder}})
	if err != nil {
		return sdkmath.ZeroInt(), venueErr("balanceOf", err)
	}
	if len(vals) != 1 {
		return sdkmath.ZeroInt(), venueErr("balanceOf", fmt.Errorf("expected 1 output, got %d", len(vals)))
	}
	raw, ok := vals[0].(*big.Int)
	if !ok {
		return sdkmath.ZeroInt(), venueErr("balanceOf", fmt.Errorf("output has type %T", vals[0]))
	}
	out, err := utils.BigIntToSDKInt(raw)
	if err != nil {
		return sdkmath.ZeroInt(), venueErr("balanceOf", err)
	}
	return out, nil
}

// Pull uses transferFrom, so from must have approved the custody address.
func (u *UniswapV3) Pull(ctx context.Context, asset types.Asset, from common.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return nil
	}
	token, err := u.token(asset)
	if err != nil {
		return venueErr("transferFrom", err)
	}
	_, err = u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    erc20ABI,
		To:     token,
		Method: "transferFrom",
		Args:   []interface{}{from, u.chain.Address(), utils.SDKIntToBigInt(amount)},
	})
	if err != nil {
		return venueErr("transferFrom", err)
	}
	return nil
}

// Push sends from custody. Native sweeps keep NativeGasReserve back for fees, so the
// amount sent can be lower than requested.
func (u *UniswapV3) Push(ctx context.Context, asset types.Asset, to common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	if asset == types.AssetNative {
		value := new(big.Int).Sub(utils.SDKIntToBigInt(amount), u.cfg.NativeGasReserve)
		if value.Sign() <= 0 {
			return sdkmath.ZeroInt(), nil
		}
		if _, err := u.chain.TransferNative(ctx, to, value); err != nil {
			return sdkmath.ZeroInt(), venueErr("native transfer", err)
		}
		return sdkmath.NewIntFromBigInt(value), nil
	}

	token, err := u.token(asset)
	if err != nil {
		return sdkmath.ZeroInt(), venueErr("transfer", err)
	}
	_, err = u.chain.Execute(ctx, wallet.ContractCall{
		ABI:    erc20ABI,
		To:     token,
		Method: "transfer",
		Args:   []interface{}{to, utils.SDKIntToBigInt(amount)},
	})
	if err != nil {
		return sdkmath.ZeroInt(), venueErr("transfer", err)
	}
	return amount, nil
}

// EnsureApprovals grants the position manager an unlimited allowance on both tokens
// when the current allowance is below minAllowance.
func (u *UniswapV3) EnsureApprovals(ctx context.Context, minAllowance *big.Int) error {
	for _, token := range []common.Address{u.cfg.TokenA, u.cfg.TokenB} {
		vals, err := u.chain.Query(ctx, wallet.ContractCall{
			ABI:    erc20ABI,
			To:     token,
			Method: "allowance",
			Args:   []interface{}{u.chain.Address(), u.cfg.PositionManager},
		})
		if err != nil {
			return venueErr("allowance", err)
		}
		if len(vals) == 1 {
			if current, ok := vals[0].(*big.Int); ok && current.Cmp(minAllowance) >= 0 {
				venueLogger.Debug().Str("token", token.Hex()).Msg("Allowance already sufficient")
				continue
			}
		}

		venueLogger.Info().Str("token", token.Hex()).Msg("Approving position manager")
		_, err = u.chain.Execute(ctx, wallet.ContractCall{
			ABI:    erc20ABI,
			To:     token,
			Method: "approve",
			Args:   []interface{}{u.cfg.PositionManager, maxUint256},
		})
		if err != nil {
			return venueErr("approve", err)
		}
	}
	return nil
}
