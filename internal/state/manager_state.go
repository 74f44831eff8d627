package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elys-network/clpm/internal/types"
)

// LoadManagerState returns the persisted manager state. found is false on a fresh database.
func (s *Store) LoadManagerState(ctx context.Context) (types.ManagerState, bool, error) {
	if s == nil || s.db == nil {
		return types.ManagerState{}, false, ErrNotInitialized
	}

	query := `SELECT position_id, tick_lower, tick_upper, range_percent, tick_spacing, pending_close, updated_at
		FROM manager_state WHERE id = 1`

	var (
		st        types.ManagerState
		id        int64
		pending   string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&id, &st.TickLower, &st.TickUpper, &st.RangePercent, &st.TickSpacing, &pending, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ManagerState{}, false, nil
	}
	if err != nil {
		return types.ManagerState{}, false, fmt.Errorf("failed to load manager state: %w", err)
	}
	if id < 0 {
		return types.ManagerState{}, false, fmt.Errorf("corrupt manager state: negative position id %d", id)
	}
	st.PositionID = types.PositionID(id)
	st.UpdatedAt = fromMicros(updatedAt)
	if pending != "" {
		st.Closing = &types.PendingClose{}
		if err := json.Unmarshal([]byte(pending), st.Closing); err != nil {
			return types.ManagerState{}, false, fmt.Errorf("corrupt manager state: pending close: %w", err)
		}
	}

	stateLogger.Debug().
		Uint64("positionID", uint64(st.PositionID)).
		Float64("rangePercent", st.RangePercent).
		Bool("pendingClose", st.Closing != nil).
		Msg("Loaded manager state")
	return st, true, nil
}

// SaveManagerState upserts the single manager state row.
func (s *Store) SaveManagerState(ctx context.Context, st types.ManagerState) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	pending := ""
	if st.Closing != nil {
		data, err := json.Marshal(st.Closing)
		if err != nil {
			return fmt.Errorf("failed to encode pending close: %w", err)
		}
		pending = string(data)
	}

	query := s.rebind(`INSERT INTO manager_state (id, position_id, tick_lower, tick_upper, range_percent, tick_spacing, pending_close, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			position_id = excluded.position_id,
			tick_lower = excluded.tick_lower,
			tick_upper = excluded.tick_upper,
			range_percent = excluded.range_percent,
			tick_spacing = excluded.tick_spacing,
			pending_close = excluded.pending_close,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		int64(st.PositionID), st.TickLower, st.TickUpper, st.RangePercent, st.TickSpacing, pending, toMicros(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save manager state: %w", err)
	}

	stateLogger.Info().
		Uint64("positionID", uint64(st.PositionID)).
		Int32("tickLower", st.TickLower).
		Int32("tickUpper", st.TickUpper).
		Float64("rangePercent", st.RangePercent).
		Bool("pendingClose", st.Closing != nil).
		Msg("Manager state saved to database")
	return nil
}
