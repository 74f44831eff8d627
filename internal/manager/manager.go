/*

This file contains the position lifecycle manager: the state machine that owns the single
concentrated-liquidity position and drives the venue, custody and oracle through it.

States are Empty (no position id held) and Active. At most one lifecycle operation runs at a
time; a concurrent call is rejected with ErrReentrantCall instead of waiting.

*/

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/tickmath"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
	"github.com/elys-network/clpm/internal/venue"
)

// Manager represents the position lifecycle manager with all its dependencies
type Manager struct {
	// Core dependencies
	logger   zerolog.Logger
	gateway  venue.Gateway
	custody  venue.Custody
	oracle   PriceOracle
	store    Store
	observer Observer

	// Configuration
	owner     common.Address
	decimalsA int
	decimalsB int
	now       func() time.Time

	// Runtime state
	busy     atomic.Bool
	mu       sync.RWMutex
	position types.Position
	rangeCfg types.RangeConfiguration
}

// Config holds the configuration for creating a new Manager instance
type Config struct {
	Gateway      venue.Gateway
	Custody      venue.Custody
	Oracle       PriceOracle
	Store        Store
	Observer     Observer // Optional
	Owner        common.Address
	RangePercent float64 // Used unless a persisted value exists
	DecimalsA    int
	DecimalsB    int
	Now          func() time.Time // Optional, defaults to time.Now
}

// Snapshot is a consistent read-only view of the manager.
type Snapshot struct {
	State    types.PositionState      `json:"state"`
	Position types.Position           `json:"position"`
	Range    types.RangeConfiguration `json:"range"`
	Busy     bool                     `json:"busy"`
}

// NewManager creates a manager and restores any persisted state. A persisted position is
// re-read from the venue so liquidity reflects the chain, not the last snapshot.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if err := validateManagerConfig(cfg); err != nil {
		return nil, fmt.Errorf("manager configuration validation failed: %w", err)
	}

	m := &Manager{
		logger:    logger.GetForComponent("position_manager"),
		gateway:   cfg.Gateway,
		custody:   cfg.Custody,
		oracle:    cfg.Oracle,
		store:     cfg.Store,
		observer:  cfg.Observer,
		owner:     cfg.Owner,
		decimalsA: cfg.DecimalsA,
		decimalsB: cfg.DecimalsB,
		now:       cfg.Now,
		position:  emptyPosition(),
		rangeCfg: types.RangeConfiguration{
			RangePercent: cfg.RangePercent,
			TickSpacing:  cfg.Gateway.TickSpacing(),
		},
	}
	if m.observer == nil {
		m.observer = noopObserver{}
	}
	if m.now == nil {
		m.now = time.Now
	}

	if err := m.restore(ctx); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("owner", m.owner.Hex()).
		Str("custody", m.custody.Address().Hex()).
		Float64("rangePercent", m.rangeCfg.RangePercent).
		Int32("tickSpacing", m.rangeCfg.TickSpacing).
		Str("state", string(m.position.State())).
		Msg("Position manager created")

	return m, nil
}

// validateManagerConfig validates the manager configuration
func validateManagerConfig(cfg Config) error {
	if cfg.Gateway == nil {
		return errors.New("venue gateway cannot be nil")
	}
	if cfg.Custody == nil {
		return errors.New("custody cannot be nil")
	}
	if cfg.Oracle == nil {
		return errors.New("oracle cannot be nil")
	}
	if cfg.Store == nil {
		return errors.New("store cannot be nil")
	}
	if cfg.Owner == (common.Address{}) {
		return errors.New("owner address cannot be zero")
	}
	if cfg.Gateway.TickSpacing() <= 0 {
		return fmt.Errorf("%w: %d", tickmath.ErrInvalidSpacing, cfg.Gateway.TickSpacing())
	}
	if err := tickmath.ValidateRangePercent(cfg.RangePercent); err != nil {
		return err
	}
	if cfg.DecimalsA < 0 || cfg.DecimalsA > 18 || cfg.DecimalsB < 0 || cfg.DecimalsB > 18 {
		return errors.New("token decimals must be within [0, 18]")
	}
	return nil
}

func (m *Manager) restore(ctx context.Context) error {
	saved, found, err := m.store.LoadManagerState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load manager state: %w", err)
	}
	if !found {
		return nil
	}
	if saved.TickSpacing != 0 && saved.TickSpacing != m.rangeCfg.TickSpacing {
		return fmt.Errorf("persisted tick spacing %d does not match venue spacing %d", saved.TickSpacing, m.rangeCfg.TickSpacing)
	}
	if tickmath.ValidateRangePercent(saved.RangePercent) == nil {
		m.rangeCfg.RangePercent = saved.RangePercent
	}
	if saved.PositionID == types.NoPosition {
		return nil
	}

	live, err := m.gateway.PositionInfo(ctx, saved.PositionID)
	if err != nil {
		return fmt.Errorf("failed to read persisted position %d: %w", saved.PositionID, err)
	}
	m.position = live
	m.position.ID = saved.PositionID
	m.position.Closing = saved.Closing

	m.logger.Info().
		Uint64("positionID", uint64(saved.PositionID)).
		Int32("tickLower", live.TickLower).
		Int32("tickUpper", live.TickUpper).
		Str("liquidity", live.Liquidity.String()).
		Bool("pendingClose", saved.Closing != nil).
		Msg("Restored active position")
	return nil
}

// --- guards and bookkeeping ---

func (m *Manager) requireOwner(caller common.Address) error {
	if caller != m.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// enter takes the busy flag. It never waits.
func (m *Manager) enter() error {
	if !m.busy.CompareAndSwap(false, true) {
		m.observer.ReentrancyRejected()
		return ErrReentrantCall
	}
	return nil
}

func (m *Manager) exit() {
	m.busy.Store(false)
}

func (m *Manager) opLogger(op types.OperationType) zerolog.Logger {
	return m.logger.With().Str("op", string(op)).Str("op_id", uuid.New().String()).Logger()
}

func (m *Manager) current() (types.Position, types.RangeConfiguration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position, m.rangeCfg
}

// setPosition swaps the held position and persists the new state. Persistence failures are
// logged; they do not change the outcome of the venue mutation that preceded them.
func (m *Manager) setPosition(ctx context.Context, log zerolog.Logger, pos types.Position) {
	m.mu.Lock()
	m.position = pos
	m.mu.Unlock()
	m.observer.PositionChanged(pos)
	m.persist(ctx, log)
}

func (m *Manager) persist(ctx context.Context, log zerolog.Logger) {
	pos, rng := m.current()
	err := m.store.SaveManagerState(ctx, types.ManagerState{
		PositionID:   pos.ID,
		TickLower:    pos.TickLower,
		TickUpper:    pos.TickUpper,
		RangePercent: rng.RangePercent,
		TickSpacing:  rng.TickSpacing,
		Closing:      pos.Closing,
		UpdatedAt:    m.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Uint64("positionID", uint64(pos.ID)).Msg("Failed to persist manager state")
	}
}

func (m *Manager) recordOperation(ctx context.Context, log zerolog.Logger, rec types.OperationRecord) {
	rec.ID = uuid.New().String()
	rec.Timestamp = m.now().UTC()
	rec.AmountA = utils.OrZero(rec.AmountA)
	rec.AmountB = utils.OrZero(rec.AmountB)
	rec.Liquidity = utils.OrZero(rec.Liquidity)
	if err := m.store.RecordOperation(ctx, rec); err != nil {
		log.Error().Err(err).Str("type", string(rec.Type)).Msg("Failed to record operation")
	}
}

func (m *Manager) recordFee(ctx context.Context, log zerolog.Logger, id types.PositionID, source types.FeeSource, a, b sdkmath.Int, usd float64) {
	rec := types.FeeRecord{
		ID:         uuid.New().String(),
		Timestamp:  m.now().UTC(),
		PositionID: id,
		Source:     source,
		AmountA:    utils.OrZero(a),
		AmountB:    utils.OrZero(b),
		USDValue:   usd,
	}
	if err := m.store.RecordFee(ctx, rec); err != nil {
		log.Error().Err(err).Str("source", string(source)).Msg("Failed to record fee")
	}
	m.observer.FeesRealized(source, usd)
}

// valueUSD prices amounts for reporting only. Oracle failures yield 0 and a warning.
func (m *Manager) valueUSD(ctx context.Context, log zerolog.Logger, a, b sdkmath.Int) float64 {
	if utils.OrZero(a).IsZero() && utils.OrZero(b).IsZero() {
		return 0
	}
	quote, err := m.oracle.GetValidatedPrice(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not value fees, recording 0 USD")
		return 0
	}
	v, err := utils.USDValue(a, m.decimalsA, b, m.decimalsB, quote.Dec())
	if err != nil {
		log.Warn().Err(err).Msg("Could not value fees, recording 0 USD")
		return 0
	}
	return v
}

func (m *Manager) observe(op types.OperationType, start time.Time, err error) {
	m.observer.OperationCompleted(op, err == nil, m.now().Sub(start))
}

func emptyPosition() types.Position {
	return types.Position{
		ID:        types.NoPosition,
		Liquidity: sdkmath.ZeroInt(),
		OwedA:     sdkmath.ZeroInt(),
		OwedB:     sdkmath.ZeroInt(),
	}
}

// --- read-only views ---

// Snapshot returns the held position and range configuration.
func (m *Manager) Snapshot() Snapshot {
	pos, rng := m.current()
	return Snapshot{State: pos.State(), Position: pos, Range: rng, Busy: m.busy.Load()}
}

// RangeConfig returns the range policy.
func (m *Manager) RangeConfig() types.RangeConfiguration {
	_, rng := m.current()
	return rng
}

// Owner returns the address allowed to call owner-only operations.
func (m *Manager) Owner() common.Address {
	return m.owner
}

// Holdings reads the balances held in custody.
func (m *Manager) Holdings(ctx context.Context) (types.HoldingsBalance, error) {
	addr := m.custody.Address()
	a, err := m.custody.Balance(ctx, types.AssetA, addr)
	if err != nil {
		return types.HoldingsBalance{}, err
	}
	b, err := m.custody.Balance(ctx, types.AssetB, addr)
	if err != nil {
		return types.HoldingsBalance{}, err
	}
	n, err := m.custody.Balance(ctx, types.AssetNative, addr)
	if err != nil {
		return types.HoldingsBalance{}, err
	}
	return types.HoldingsBalance{AmountA: a, AmountB: b, Native: n}, nil
}

// LivePosition re-reads the active position from the venue, including owed fees.
func (m *Manager) LivePosition(ctx context.Context) (types.Position, error) {
	pos, _ := m.current()
	if !pos.IsActive() {
		return types.Position{}, ErrNoActivePosition
	}
	return m.gateway.PositionInfo(ctx, pos.ID)
}
