package manager

import (
	"context"
	"time"

	"github.com/elys-network/clpm/internal/types"
)

// PriceOracle returns a validated price. *oracle.Gateway satisfies it.
type PriceOracle interface {
	GetValidatedPrice(ctx context.Context) (types.PriceQuote, error)
}

// Store persists the manager state and the append-only records. *state.Store satisfies it.
type Store interface {
	LoadManagerState(ctx context.Context) (types.ManagerState, bool, error)
	SaveManagerState(ctx context.Context, s types.ManagerState) error
	RecordFee(ctx context.Context, rec types.FeeRecord) error
	RecordOperation(ctx context.Context, rec types.OperationRecord) error
}

// Observer receives lifecycle telemetry. *metrics.Collectors satisfies it.
type Observer interface {
	OperationCompleted(op types.OperationType, success bool, elapsed time.Duration)
	FeesRealized(source types.FeeSource, usdValue float64)
	PositionChanged(pos types.Position)
	ReentrancyRejected()
}

type noopObserver struct{}

func (noopObserver) OperationCompleted(types.OperationType, bool, time.Duration) {}
func (noopObserver) FeesRealized(types.FeeSource, float64) {}
func (noopObserver) PositionChanged(types.Position) {}
func (noopObserver) ReentrancyRejected() {}
