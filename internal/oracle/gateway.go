/*

This file contains the oracle gateway. It is the only path by which a price enters the
position manager's decisions: every call fetches fresh and validates before returning.

*/

package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/types"
)

const (
	// DefaultStalenessBound rejects quotes observed more than an hour ago.
	DefaultStalenessBound = time.Hour
	// DefaultMaxFutureSkew tolerates small clock differences with the oracle.
	DefaultMaxFutureSkew = time.Minute
)

var (
	ErrStaleOracle        = errors.New("oracle quote is stale")
	ErrInvalidOracleValue = errors.New("oracle value must be positive")
	ErrOracleUnavailable  = errors.New("oracle source failed")
)

var oracleLogger = logger.GetForComponent("oracle_gateway")

// Source returns the latest raw observation of the oracle.
type Source interface {
	Latest(ctx context.Context) (types.PriceQuote, error)
}

// Config bounds what the gateway accepts.
type Config struct {
	StalenessBound time.Duration
	MaxFutureSkew  time.Duration
	Now            func() time.Time // Injectable clock, defaults to time.Now
}

// Gateway validates quotes from a Source. It keeps no cache.
type Gateway struct {
	source Source
	cfg    Config
}

func NewGateway(source Source, cfg Config) (*Gateway, error) {
	if source == nil {
		return nil, errors.New("oracle source cannot be nil")
	}
	if cfg.StalenessBound == 0 {
		cfg.StalenessBound = DefaultStalenessBound
	}
	if cfg.MaxFutureSkew == 0 {
		cfg.MaxFutureSkew = DefaultMaxFutureSkew
	}
	if cfg.StalenessBound < 0 || cfg.MaxFutureSkew < 0 {
		return nil, errors.New("oracle bounds cannot be negative")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gateway{source: source, cfg: cfg}, nil
}

// GetValidatedPrice fetches the latest quote and rejects it when it is older than the
// staleness bound, observed in the future beyond the allowed skew, or not positive.
func (g *Gateway) GetValidatedPrice(ctx context.Context) (types.PriceQuote, error) {
	quote, err := g.source.Latest(ctx)
	if err != nil {
		return types.PriceQuote{}, errors.Join(ErrOracleUnavailable, err)
	}

	now := g.cfg.Now()
	age := now.Sub(quote.ObservedAt)
	if quote.ObservedAt.IsZero() || age > g.cfg.StalenessBound {
		oracleLogger.Warn().
			Time("observedAt", quote.ObservedAt).
			Dur("age", age).
			Dur("bound", g.cfg.StalenessBound).
			Msg("Rejecting stale oracle quote")
		return types.PriceQuote{}, fmt.Errorf("%w: observed %s ago, bound %s", ErrStaleOracle, age, g.cfg.StalenessBound)
	}
	if -age > g.cfg.MaxFutureSkew {
		return types.PriceQuote{}, fmt.Errorf("%w: observed %s in the future", ErrStaleOracle, -age)
	}

	if quote.Value.IsNil() || !quote.Value.IsPositive() {
		return types.PriceQuote{}, fmt.Errorf("%w: got %v", ErrInvalidOracleValue, quote.Value)
	}

	oracleLogger.Debug().
		Str("value", quote.Value.String()).
		Uint8("decimals", quote.Decimals).
		Time("observedAt", quote.ObservedAt).
		Msg("Oracle quote validated")

	return quote, nil
}
