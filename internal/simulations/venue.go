/*

This file contains an in-memory venue used for paper trading and tests. It implements
venue.Gateway and venue.Custody with Uniswap V3 liquidity math on raw token amounts,
and supports failure injection and per-operation hooks.

*/

package simulations

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/tickmath"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/venue"
)

var simLogger = logger.GetForComponent("simulated_venue")

// Op names a venue or custody call for failure injection and hooks.
type Op string

const (
	OpOpen         Op = "open"
	OpIncrease     Op = "increase"
	OpDecrease     Op = "decrease"
	OpCollect      Op = "collect"
	OpBurn         Op = "burn"
	OpCurrentTick  Op = "current_tick"
	OpPositionInfo Op = "position_info"
	OpBalance      Op = "balance"
	OpPull         Op = "pull"
	OpPush         Op = "push"
)

// Venue is a single simulated pool plus the token ledger of every account.
type Venue struct {
	mu        sync.Mutex
	spacing   int32
	tick      int32
	custody   common.Address
	balances  map[common.Address]map[types.Asset]sdkmath.Int
	positions map[types.PositionID]*types.Position
	nextID    uint64
	failures  map[Op]error
	hooks     map[Op]func()
	calls     []Op
}

func NewVenue(spacing, currentTick int32, custody common.Address) *Venue {
	return &Venue{
		spacing:   spacing,
		tick:      currentTick,
		custody:   custody,
		balances:  make(map[common.Address]map[types.Asset]sdkmath.Int),
		positions: make(map[types.PositionID]*types.Position),
		failures:  make(map[Op]error),
		hooks:     make(map[Op]func()),
	}
}

// SetTick moves the simulated price.
func (v *Venue) SetTick(tick int32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tick = tick
}

// Fund credits holder with amount of asset.
func (v *Venue) Fund(holder common.Address, asset types.Asset, amount sdkmath.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(holder, asset, amount)
}

// FailOn makes every call of op fail with err wrapped in venue.ErrVenue until cleared with a nil err.
func (v *Venue) FailOn(op Op, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		delete(v.failures, op)
		return
	}
	v.failures[op] = err
}

// OnCall registers fn to run at the start of every call of op, before the venue lock is taken.
func (v *Venue) OnCall(op Op, fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if fn == nil {
		delete(v.hooks, op)
		return
	}
	v.hooks[op] = fn
}

// Calls returns the operations invoked so far, in order.
func (v *Venue) Calls() []Op {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Op(nil), v.calls...)
}

// BalanceOf reads the ledger without going through the Custody interface.
func (v *Venue) BalanceOf(holder common.Address, asset types.Asset) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance(holder, asset)
}

// Position returns a copy of a position if it exists.
func (v *Venue) Position(id types.PositionID) (types.Position, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.positions[id]
	if !ok {
		return types.Position{}, false
	}
	return *p, true
}

// AccrueFees adds owed fees to a position.
func (v *Venue) AccrueFees(id types.PositionID, amountA, amountB sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.positions[id]
	if !ok {
		return fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	p.OwedA = p.OwedA.Add(amountA)
	p.OwedB = p.OwedB.Add(amountB)
	return nil
}

// AccrueAll adds owed fees to every position that still has liquidity.
func (v *Venue) AccrueAll(amountA, amountB sdkmath.Int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, p := range v.positions {
		if p.Liquidity.IsPositive() {
			p.OwedA = p.OwedA.Add(amountA)
			p.OwedB = p.OwedB.Add(amountB)
			n++
		}
	}
	return n
}

// begin runs the hook for op, then takes the lock and records the call. The caller must unlock.
func (v *Venue) begin(op Op) error {
	v.mu.Lock()
	hook := v.hooks[op]
	v.mu.Unlock()
	if hook != nil {
		hook()
	}

	v.mu.Lock()
	v.calls = append(v.calls, op)
	if err, ok := v.failures[op]; ok {
		return fmt.Errorf("%w: simulated %s failure: %w", venue.ErrVenue, op, err)
	}
	return nil
}

func (v *Venue) TickSpacing() int32 {
	return v.spacing
}

func (v *Venue) OpenPosition(ctx context.Context, params venue.MintParams) (venue.MintResult, error) {
	if err := v.begin(OpOpen); err != nil {
		v.mu.Unlock()
		return venue.MintResult{}, err
	}
	defer v.mu.Unlock()

	if err := tickmath.ValidateTicks(params.TickLower, params.TickUpper, v.spacing); err != nil {
		return venue.MintResult{}, fmt.Errorf("%w: mint: %w", venue.ErrVenue, err)
	}
	liq, usedA, usedB, err := v.addLiquidity(params.TickLower, params.TickUpper, params.AmountADesired, params.AmountBDesired)
	if err != nil {
		return venue.MintResult{}, err
	}

	v.nextID++
	id := types.PositionID(v.nextID)
	v.positions[id] = &types.Position{
		ID:        id,
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Liquidity: liq,
		OwedA:     sdkmath.ZeroInt(),
		OwedB:     sdkmath.ZeroInt(),
	}

	simLogger.Debug().
		Uint64("positionID", uint64(id)).
		Str("liquidity", liq.String()).
		Str("usedA", usedA.String()).
		Str("usedB", usedB.String()).
		Msg("Simulated mint")

	return venue.MintResult{ID: id, Liquidity: liq, UsedA: usedA, UsedB: usedB}, nil
}

func (v *Venue) IncreaseLiquidity(ctx context.Context, id types.PositionID, amountA, amountB sdkmath.Int) (venue.IncreaseResult, error) {
	if err := v.begin(OpIncrease); err != nil {
		v.mu.Unlock()
		return venue.IncreaseResult{}, err
	}
	defer v.mu.Unlock()

	p, ok := v.positions[id]
	if !ok {
		return venue.IncreaseResult{}, fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	liq, usedA, usedB, err := v.addLiquidity(p.TickLower, p.TickUpper, amountA, amountB)
	if err != nil {
		return venue.IncreaseResult{}, err
	}
	p.Liquidity = p.Liquidity.Add(liq)
	return venue.IncreaseResult{Liquidity: liq, UsedA: usedA, UsedB: usedB}, nil
}

// addLiquidity sizes liquidity for the desired amounts at the current tick and debits custody.
// Must be called with the lock held.
func (v *Venue) addLiquidity(lower, upper int32, desiredA, desiredB sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	sqrtP, sqrtA, sqrtB := tickmath.TickToSqrtPrice(v.tick), tickmath.TickToSqrtPrice(lower), tickmath.TickToSqrtPrice(upper)

	liqF, err := tickmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, toFloat(desiredA), toFloat(desiredB))
	if err != nil {
		return zero, zero, zero, fmt.Errorf("%w: %w", venue.ErrVenue, err)
	}
	liqF = math.Floor(liqF)
	if liqF <= 0 {
		return zero, zero, zero, fmt.Errorf("%w: amounts provide zero liquidity", venue.ErrVenue)
	}

	a, b, err := tickmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liqF)
	if err != nil {
		return zero, zero, zero, fmt.Errorf("%w: %w", venue.ErrVenue, err)
	}
	usedA := sdkmath.MinInt(fromFloat(math.Ceil(a)), orZero(desiredA))
	usedB := sdkmath.MinInt(fromFloat(math.Ceil(b)), orZero(desiredB))

	if v.balance(v.custody, types.AssetA).LT(usedA) || v.balance(v.custody, types.AssetB).LT(usedB) {
		return zero, zero, zero, fmt.Errorf("%w: custody balance below mint amounts", venue.ErrVenue)
	}
	v.debit(v.custody, types.AssetA, usedA)
	v.debit(v.custody, types.AssetB, usedB)

	return fromFloat(liqF), usedA, usedB, nil
}

func (v *Venue) DecreaseLiquidityToZero(ctx context.Context, id types.PositionID) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if err := v.begin(OpDecrease); err != nil {
		v.mu.Unlock()
		return zero, zero, err
	}
	defer v.mu.Unlock()

	p, ok := v.positions[id]
	if !ok {
		return zero, zero, fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	if p.Liquidity.IsZero() {
		return zero, zero, nil
	}
	a, b, err := tickmath.AmountsForLiquidity(
		tickmath.TickToSqrtPrice(v.tick),
		tickmath.TickToSqrtPrice(p.TickLower),
		tickmath.TickToSqrtPrice(p.TickUpper),
		toFloat(p.Liquidity),
	)
	if err != nil {
		return zero, zero, fmt.Errorf("%w: %w", venue.ErrVenue, err)
	}
	amountA, amountB := fromFloat(math.Floor(a)), fromFloat(math.Floor(b))
	p.OwedA = p.OwedA.Add(amountA)
	p.OwedB = p.OwedB.Add(amountB)
	p.Liquidity = sdkmath.ZeroInt()
	return amountA, amountB, nil
}

func (v *Venue) Collect(ctx context.Context, id types.PositionID, recipient common.Address) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if err := v.begin(OpCollect); err != nil {
		v.mu.Unlock()
		return zero, zero, err
	}
	defer v.mu.Unlock()

	p, ok := v.positions[id]
	if !ok {
		return zero, zero, fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	a, b := p.OwedA, p.OwedB
	v.credit(recipient, types.AssetA, a)
	v.credit(recipient, types.AssetB, b)
	p.OwedA, p.OwedB = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	return a, b, nil
}

func (v *Venue) Burn(ctx context.Context, id types.PositionID) error {
	if err := v.begin(OpBurn); err != nil {
		v.mu.Unlock()
		return err
	}
	defer v.mu.Unlock()

	p, ok := v.positions[id]
	if !ok {
		return fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	if !p.Liquidity.IsZero() || !p.OwedA.IsZero() || !p.OwedB.IsZero() {
		return fmt.Errorf("%w: position %d not cleared", venue.ErrVenue, id)
	}
	delete(v.positions, id)
	return nil
}

func (v *Venue) CurrentTick(ctx context.Context) (int32, error) {
	if err := v.begin(OpCurrentTick); err != nil {
		v.mu.Unlock()
		return 0, err
	}
	defer v.mu.Unlock()
	return v.tick, nil
}

func (v *Venue) PositionInfo(ctx context.Context, id types.PositionID) (types.Position, error) {
	if err := v.begin(OpPositionInfo); err != nil {
		v.mu.Unlock()
		return types.Position{}, err
	}
	defer v.mu.Unlock()
	p, ok := v.positions[id]
	if !ok {
		return types.Position{}, fmt.Errorf("%w: unknown position %d", venue.ErrVenue, id)
	}
	return *p, nil
}

// Custody

func (v *Venue) Address() common.Address {
	return v.custody
}

func (v *Venue) Balance(ctx context.Context, asset types.Asset, holder common.Address) (sdkmath.Int, error) {
	if err := v.begin(OpBalance); err != nil {
		v.mu.Unlock()
		return sdkmath.ZeroInt(), err
	}
	defer v.mu.Unlock()
	return v.balance(holder, asset), nil
}

func (v *Venue) Pull(ctx context.Context, asset types.Asset, from common.Address, amount sdkmath.Int) error {
	if err := v.begin(OpPull); err != nil {
		v.mu.Unlock()
		return err
	}
	defer v.mu.Unlock()
	if amount.IsNil() || !amount.IsPositive() {
		return nil
	}
	if asset == types.AssetNative {
		return fmt.Errorf("%w: native pull unsupported", venue.ErrVenue)
	}
	if v.balance(from, asset).LT(amount) {
		return fmt.Errorf("%w: transferFrom exceeds balance", venue.ErrVenue)
	}
	v.debit(from, asset, amount)
	v.credit(v.custody, asset, amount)
	return nil
}

func (v *Venue) Push(ctx context.Context, asset types.Asset, to common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.begin(OpPush); err != nil {
		v.mu.Unlock()
		return sdkmath.ZeroInt(), err
	}
	defer v.mu.Unlock()
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if v.balance(v.custody, asset).LT(amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: transfer exceeds balance", venue.ErrVenue)
	}
	v.debit(v.custody, asset, amount)
	v.credit(to, asset, amount)
	return amount, nil
}

// ledger helpers, lock held

func (v *Venue) balance(holder common.Address, asset types.Asset) sdkmath.Int {
	if b, ok := v.balances[holder][asset]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (v *Venue) credit(holder common.Address, asset types.Asset, amount sdkmath.Int) {
	if amount.IsNil() || amount.IsZero() {
		return
	}
	if v.balances[holder] == nil {
		v.balances[holder] = make(map[types.Asset]sdkmath.Int)
	}
	v.balances[holder][asset] = v.balance(holder, asset).Add(amount)
}

func (v *Venue) debit(holder common.Address, asset types.Asset, amount sdkmath.Int) {
	if amount.IsNil() || amount.IsZero() {
		return
	}
	v.balances[holder][asset] = v.balance(holder, asset).Sub(amount)
}

func toFloat(i sdkmath.Int) float64 {
	if i.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(i.BigInt()).Float64()
	return f
}

func fromFloat(f float64) sdkmath.Int {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return sdkmath.ZeroInt()
	}
	bf := new(big.Float).SetFloat64(f)
	out, _ := bf.Int(nil)
	return sdkmath.NewIntFromBigInt(out)
}

func orZero(i sdkmath.Int) sdkmath.Int {
	if i.IsNil() {
		return sdkmath.ZeroInt()
	}
	return i
}
