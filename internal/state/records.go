package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
)

// RecordFee appends a fee record.
func (s *Store) RecordFee(ctx context.Context, rec types.FeeRecord) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	query := s.rebind(`INSERT INTO fee_records (id, recorded_at, position_id, source, amount_a, amount_b, usd_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, toMicros(rec.Timestamp), int64(rec.PositionID), string(rec.Source),
		utils.OrZero(rec.AmountA).String(), utils.OrZero(rec.AmountB).String(), rec.USDValue)
	if err != nil {
		return fmt.Errorf("failed to record fee %s: %w", rec.ID, err)
	}

	stateLogger.Debug().
		Str("id", rec.ID).
		Str("source", string(rec.Source)).
		Float64("usdValue", rec.USDValue).
		Msg("Fee record saved")
	return nil
}

// RecordOperation appends an operation record.
func (s *Store) RecordOperation(ctx context.Context, rec types.OperationRecord) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	query := s.rebind(`INSERT INTO operation_records
		(id, recorded_at, op_type, position_id, tick_lower, tick_upper, amount_a, amount_b, liquidity, success, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, toMicros(rec.Timestamp), string(rec.Type), int64(rec.PositionID), rec.TickLower, rec.TickUpper,
		utils.OrZero(rec.AmountA).String(), utils.OrZero(rec.AmountB).String(), utils.OrZero(rec.Liquidity).String(),
		rec.Success, rec.Message)
	if err != nil {
		return fmt.Errorf("failed to record operation %s: %w", rec.ID, err)
	}
	return nil
}

// ListFeeRecords returns fee records with from <= timestamp < to, oldest first.
func (s *Store) ListFeeRecords(ctx context.Context, from, to time.Time) ([]types.FeeRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	query := s.rebind(`SELECT id, recorded_at, position_id, source, amount_a, amount_b, usd_value
		FROM fee_records
		WHERE recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at ASC`)

	rows, err := s.db.QueryContext(ctx, query, toMicros(from), toMicros(to))
	if err != nil {
		stateLogger.Error().Err(err).Msg("Failed to query fee records")
		return nil, fmt.Errorf("failed to query fee records: %w", err)
	}
	defer rows.Close()

	var records []types.FeeRecord
	for rows.Next() {
		var (
			rec        types.FeeRecord
			recordedAt int64
			positionID int64
			source     string
			a, b       string
		)
		if err := rows.Scan(&rec.ID, &recordedAt, &positionID, &source, &a, &b, &rec.USDValue); err != nil {
			return nil, fmt.Errorf("failed to scan fee record: %w", err)
		}
		rec.Timestamp = fromMicros(recordedAt)
		rec.PositionID = types.PositionID(positionID)
		rec.Source = types.FeeSource(source)
		if rec.AmountA, err = parseAmount(a); err != nil {
			return nil, fmt.Errorf("fee record %s: %w", rec.ID, err)
		}
		if rec.AmountB, err = parseAmount(b); err != nil {
			return nil, fmt.Errorf("fee record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	stateLogger.Debug().Int("count", len(records)).Time("from", from).Time("to", to).Msg("Retrieved fee records")
	return records, nil
}

// ListOperations returns the most recent operation records, newest first.
func (s *Store) ListOperations(ctx context.Context, limit int) ([]types.OperationRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := s.rebind(`SELECT id, recorded_at, op_type, position_id, tick_lower, tick_upper,
			amount_a, amount_b, liquidity, success, message
		FROM operation_records
		ORDER BY recorded_at DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		stateLogger.Error().Err(err).Msg("Failed to query operation records")
		return nil, fmt.Errorf("failed to query operation records: %w", err)
	}
	defer rows.Close()

	var records []types.OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

func scanOperation(rows *sql.Rows) (types.OperationRecord, error) {
	var (
		rec        types.OperationRecord
		recordedAt int64
		positionID int64
		opType     string
		a, b, liq  string
	)
	err := rows.Scan(&rec.ID, &recordedAt, &opType, &positionID, &rec.TickLower, &rec.TickUpper,
		&a, &b, &liq, &rec.Success, &rec.Message)
	if err != nil {
		return types.OperationRecord{}, fmt.Errorf("failed to scan operation record: %w", err)
	}
	rec.Timestamp = fromMicros(recordedAt)
	rec.Type = types.OperationType(opType)
	rec.PositionID = types.PositionID(positionID)
	if rec.AmountA, err = parseAmount(a); err != nil {
		return types.OperationRecord{}, err
	}
	if rec.AmountB, err = parseAmount(b); err != nil {
		return types.OperationRecord{}, err
	}
	if rec.Liquidity, err = parseAmount(liq); err != nil {
		return types.OperationRecord{}, err
	}
	return rec, nil
}

func parseAmount(v string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(v)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid stored amount %q", v)
	}
	return amount, nil
}
