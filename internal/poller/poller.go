package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/pricestream/internal/api"
	"github.com/rickgao/pricestream/internal/model"
)

// SymbolSource provides the symbols to poll. The streaming manager satisfies
// this, so pull mode polls exactly the set push mode subscribes to.
type SymbolSource interface {
	Symbols() []string
}

// UpdateHandler receives fetched quotes.
type UpdateHandler interface {
	HandleUpdate(update model.PriceUpdate) error
}

// UpdateHandlerFunc is a function adapter for UpdateHandler.
type UpdateHandlerFunc func(model.PriceUpdate) error

func (f UpdateHandlerFunc) HandleUpdate(u model.PriceUpdate) error {
	return f(u)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 5s)
	Concurrency int           // Max concurrent requests (default: 8)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		Concurrency: 8,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically fetches quotes via REST. It is the pull-mode
// counterpart of the streaming feed: one Poller runs while pull mode is
// active and is stopped when the process switches back to push.
type Poller struct {
	cfg     Config
	client  *api.Client
	symbols SymbolSource
	handler UpdateHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, symbols SymbolSource, handler UpdateHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &Poller{
		cfg:     cfg,
		client:  client,
		symbols: symbols,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("quote poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("quote poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches quotes for all subscribed symbols concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	symbols := p.symbols.Symbols()
	if len(symbols) == 0 {
		p.logger.Debug("no symbols to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollSymbol(symbol); err != nil {
				p.logger.Warn("failed to poll symbol",
					"symbol", symbol,
					"err", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(symbol)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"symbols", len(symbols),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollSymbol fetches and handles a single symbol's quote.
func (p *Poller) pollSymbol(symbol string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	quote, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}

	if p.handler != nil {
		if err := p.handler.HandleUpdate(*quote); err != nil {
			return err
		}
	}

	return nil
}
