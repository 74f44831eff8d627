package simulations

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clpm/internal/types"
)

// PriceSource is a settable oracle.Source.
type PriceSource struct {
	mu    sync.Mutex
	quote types.PriceQuote
	err   error
	calls int
}

func NewPriceSource(value sdkmath.Int, decimals uint8, observedAt time.Time) *PriceSource {
	return &PriceSource{quote: types.PriceQuote{Value: value, Decimals: decimals, ObservedAt: observedAt}}
}

func (p *PriceSource) Set(quote types.PriceQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quote = quote
	p.err = nil
}

// SetError makes Latest fail until the next Set.
func (p *PriceSource) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *PriceSource) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *PriceSource) Latest(ctx context.Context) (types.PriceQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return types.PriceQuote{}, fmt.Errorf("simulated oracle failure: %w", p.err)
	}
	return p.quote, nil
}
