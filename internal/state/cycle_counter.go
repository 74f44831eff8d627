/*

This file manages the persistent keeper cycle counter.
The counter is stored in the database to ensure continuity across restarts.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CurrentCycleNumber retrieves the current cycle number from the database
func (s *Store) CurrentCycleNumber(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}

	var currentCycle int
	err := s.db.QueryRowContext(ctx, `SELECT current_cycle FROM cycle_counter WHERE id = 1`).Scan(&currentCycle)
	if errors.Is(err, sql.ErrNoRows) {
		stateLogger.Warn().Msg("No cycle counter row found, initializing to 0")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}
	return currentCycle, nil
}

// IncrementCycleNumber increments the cycle counter and returns the new value
func (s *Store) IncrementCycleNumber(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}

	updateQuery := s.rebind(`
		UPDATE cycle_counter
		SET current_cycle = current_cycle + 1,
		    updated_at = ?
		WHERE id = 1
		RETURNING current_cycle`)

	var newCycle int
	if err := s.db.QueryRowContext(ctx, updateQuery, toMicros(time.Now())).Scan(&newCycle); err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}

	stateLogger.Debug().Int("newCycle", newCycle).Msg("Incremented cycle counter")
	return newCycle, nil
}

// ResetCycleNumber resets the cycle counter to a specific value (for testing/maintenance)
func (s *Store) ResetCycleNumber(ctx context.Context, cycleNumber int) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}

	result, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE cycle_counter SET current_cycle = ?, updated_at = ? WHERE id = 1`),
		cycleNumber, toMicros(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to reset cycle number to %d: %w", cycleNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting cycle number")
	}

	stateLogger.Warn().Int("cycleNumber", cycleNumber).Msg("Reset cycle counter")
	return nil
}
