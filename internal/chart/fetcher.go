// Package chart loads historical OHLC bars for one symbol at a time.
// Selecting a new symbol supersedes any in-flight load: the previous request
// is cancelled and only the newest selection ever produces a result.
package chart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/pricestream/internal/model"
)

// ErrSuperseded is returned from a load that was cancelled by a newer one.
var ErrSuperseded = errors.New("chart load superseded by a newer request")

// BarSource fetches historical bars. The REST client satisfies this.
type BarSource interface {
	GetOHLC(ctx context.Context, symbol string, days int) (*model.ChartData, error)
}

// Fetcher serializes chart loads per selection. It holds no bar data itself;
// callers own the result.
type Fetcher struct {
	source BarSource
	days   int
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64 // Load generation; a newer load supersedes older registrations
}

// NewFetcher creates a Fetcher loading days worth of bars per request.
func NewFetcher(source BarSource, days int, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if days <= 0 {
		days = 30
	}
	return &Fetcher{source: source, days: days, logger: logger}
}

// Load fetches bars for symbol, cancelling any load still in flight. A load
// that loses to a newer one returns ErrSuperseded.
func (f *Fetcher) Load(ctx context.Context, symbol string) (*model.ChartData, error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		// Only clear our own registration; a newer load may have replaced it.
		if f.gen == gen {
			f.cancel = nil
		}
		f.mu.Unlock()
		cancel()
	}()

	data, err := f.source.GetOHLC(loadCtx, symbol, f.days)
	if err != nil {
		if errors.Is(loadCtx.Err(), context.Canceled) && ctx.Err() == nil {
			f.logger.Debug("chart load superseded", "symbol", symbol)
			return nil, ErrSuperseded
		}
		return nil, err
	}

	f.logger.Debug("chart loaded",
		"symbol", symbol,
		"candles", len(data.Candles),
	)
	return data, nil
}
