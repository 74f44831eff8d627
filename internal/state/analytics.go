package state

import (
	"context"
	"fmt"
	"time"

	"github.com/elys-network/clpm/internal/types"
)

// FeeSourceTotal aggregates fee records of one source.
type FeeSourceTotal struct {
	Source   types.FeeSource `json:"source"`
	Count    int             `json:"count"`
	TotalUSD float64         `json:"total_usd"`
}

// OperationStats represents aggregated lifecycle operation counts
type OperationStats struct {
	Type       types.OperationType `json:"type"`
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	LastAt     time.Time           `json:"last_at"`
}

// FeeTotalsBySource sums fee USD value per source for records with from <= timestamp < to.
func (s *Store) FeeTotalsBySource(ctx context.Context, from, to time.Time) ([]FeeSourceTotal, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	query := s.rebind(`
		SELECT source, COUNT(*), COALESCE(SUM(usd_value), 0)
		FROM fee_records
		WHERE recorded_at >= ? AND recorded_at < ?
		GROUP BY source
		ORDER BY source`)

	rows, err := s.db.QueryContext(ctx, query, toMicros(from), toMicros(to))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate fee records: %w", err)
	}
	defer rows.Close()

	var totals []FeeSourceTotal
	for rows.Next() {
		var (
			t      FeeSourceTotal
			source string
		)
		if err := rows.Scan(&source, &t.Count, &t.TotalUSD); err != nil {
			return nil, fmt.Errorf("failed to scan fee totals: %w", err)
		}
		t.Source = types.FeeSource(source)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return totals, nil
}

// GetOperationStats retrieves per-type operation counts since the given time
func (s *Store) GetOperationStats(ctx context.Context, since time.Time) ([]OperationStats, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	query := s.rebind(`
		SELECT
			op_type,
			COUNT(*) AS total,
			COUNT(CASE WHEN success THEN 1 END) AS successful,
			MAX(recorded_at) AS last_at
		FROM operation_records
		WHERE recorded_at >= ?
		GROUP BY op_type
		ORDER BY op_type`)

	rows, err := s.db.QueryContext(ctx, query, toMicros(since))
	if err != nil {
		return nil, fmt.Errorf("failed to get operation stats: %w", err)
	}
	defer rows.Close()

	var stats []OperationStats
	for rows.Next() {
		var (
			st     OperationStats
			opType string
			lastAt int64
		)
		if err := rows.Scan(&opType, &st.Total, &st.Successful, &lastAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation stats: %w", err)
		}
		st.Type = types.OperationType(opType)
		st.LastAt = fromMicros(lastAt)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	stateLogger.Debug().Int("types", len(stats)).Time("since", since).Msg("Retrieved operation stats")
	return stats, nil
}
