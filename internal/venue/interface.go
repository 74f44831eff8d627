package venue

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/clpm/internal/types"
)

// ErrVenue wraps every failure reported by a venue or custody adapter. Callers treat it as
// fatal for the current operation and never retry automatically.
var ErrVenue = errors.New("venue error")

// MintParams describes a new position. Amounts are the desired maxima in minor units.
type MintParams struct {
	TickLower      int32
	TickUpper      int32
	AmountADesired sdkmath.Int
	AmountBDesired sdkmath.Int
}

// MintResult reports the opened position and how much of each token it consumed.
type MintResult struct {
	ID        types.PositionID
	Liquidity sdkmath.Int
	UsedA     sdkmath.Int
	UsedB     sdkmath.Int
}

// IncreaseResult reports liquidity added to an existing position.
type IncreaseResult struct {
	Liquidity sdkmath.Int
	UsedA     sdkmath.Int
	UsedB     sdkmath.Int
}

// Gateway abstracts the liquidity venue's position primitives.
// Implementations perform translation only and hold no business logic.
type Gateway interface {
	// OpenPosition mints a new position funded from custody.
	OpenPosition(ctx context.Context, params MintParams) (MintResult, error)

	// IncreaseLiquidity adds custody funds to an existing position.
	IncreaseLiquidity(ctx context.Context, id types.PositionID, amountA, amountB sdkmath.Int) (IncreaseResult, error)

	// DecreaseLiquidityToZero removes all liquidity. The freed principal becomes owed to the
	// position and is returned by the next Collect.
	DecreaseLiquidityToZero(ctx context.Context, id types.PositionID) (sdkmath.Int, sdkmath.Int, error)

	// Collect transfers everything owed to the position (fees plus decreased principal) to recipient.
	Collect(ctx context.Context, id types.PositionID, recipient common.Address) (sdkmath.Int, sdkmath.Int, error)

	// Burn destroys an empty position.
	Burn(ctx context.Context, id types.PositionID) error

	// CurrentTick returns the pool's current tick.
	CurrentTick(ctx context.Context) (int32, error)

	// PositionInfo reads a position's ticks, liquidity and owed amounts.
	PositionInfo(ctx context.Context, id types.PositionID) (types.Position, error)

	// TickSpacing returns the pool's tick spacing, fixed by its fee tier.
	TickSpacing() int32
}

// Custody abstracts the token accounts the manager controls.
type Custody interface {
	// Address is the account holding the manager's funds.
	Address() common.Address

	// Balance returns holder's balance of asset.
	Balance(ctx context.Context, asset types.Asset, holder common.Address) (sdkmath.Int, error)

	// Pull moves amount of asset from an external account into custody. The account must
	// have granted an allowance to the custody address.
	Pull(ctx context.Context, asset types.Asset, from common.Address, amount sdkmath.Int) error

	// Push sends amount of asset from custody to an external account and returns the amount sent.
	Push(ctx context.Context, asset types.Asset, to common.Address, amount sdkmath.Int) (sdkmath.Int, error)
}
