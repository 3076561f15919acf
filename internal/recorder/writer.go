package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/pricestream/internal/model"
)

// DB is the batch-execution surface the writer needs. *pgxpool.Pool
// satisfies it.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config contains batching configuration for the tick writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the initial capacity of the intake buffer.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		BufferSize:    1024,
	}
}

// tickRow is a row for the price_ticks table.
type tickRow struct {
	ObservedAt    int64 // Microseconds
	ReceivedAt    int64 // Microseconds
	Symbol        string
	Price         float64
	Change        *float64
	ChangePercent *float64
	SessionID     string
}

// Metrics holds writer counters.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// TickWriter buffers price updates and batch-inserts them into the
// price_ticks table. Duplicate (symbol, observed_at) pairs from overlapping
// push and pull delivery are skipped at the database.
type TickWriter struct {
	cfg       Config
	sessionID string
	logger    *slog.Logger

	input *GrowableBuffer[model.PriceUpdate]
	db    DB

	batch       []tickRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewTickWriter creates a TickWriter tagging every row with sessionID.
func NewTickWriter(cfg Config, db DB, sessionID string, logger *slog.Logger) *TickWriter {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &TickWriter{
		cfg:       cfg,
		sessionID: sessionID,
		db:        db,
		logger:    logger,
		input:     NewGrowableBuffer[model.PriceUpdate](cfg.BufferSize),
		batch:     make([]tickRow, 0, cfg.BatchSize),
	}
}

// Offer enqueues an update for persistence. It never blocks; once the writer
// is stopped the update is counted as dropped.
func (w *TickWriter) Offer(u model.PriceUpdate) bool {
	if w.input.Send(u) {
		return true
	}

	w.batchMu.Lock()
	w.metrics.Dropped++
	w.batchMu.Unlock()
	return false
}

// Start begins consuming updates and writing to the database.
func (w *TickWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("tick writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"session_id", w.sessionID,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing what remains. The final
// drain and flush run under the caller's ctx; the writer's own context is
// already cancelled by then.
func (w *TickWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping tick writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("tick writer stopped")
	case <-ctx.Done():
		w.logger.Warn("tick writer stop timed out")
	}

	// Drain what the consume loop left buffered, then flush.
	for {
		u, ok := w.input.TryReceive()
		if !ok {
			break
		}
		w.appendRow(w.transform(u))
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *TickWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the intake buffer and accumulates batches.
func (w *TickWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			u, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleUpdate(u)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *TickWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleUpdate transforms and adds an update to the batch.
func (w *TickWriter) handleUpdate(u model.PriceUpdate) {
	if w.appendRow(w.transform(u)) {
		w.flush(w.ctx)
	}
}

// appendRow adds a row to the batch and reports whether the batch-size
// threshold was reached.
func (w *TickWriter) appendRow(row tickRow) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a PriceUpdate to a tickRow.
func (w *TickWriter) transform(u model.PriceUpdate) tickRow {
	return tickRow{
		ObservedAt:    u.ObservedAt.UnixMicro(),
		ReceivedAt:    u.ReceivedAt.UnixMicro(),
		Symbol:        u.Symbol,
		Price:         u.Price,
		Change:        u.Change,
		ChangePercent: u.ChangePercent,
		SessionID:     w.sessionID,
	}
}

// flush writes the current batch to the database.
func (w *TickWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]tickRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed ticks",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TickWriter) batchInsert(ctx context.Context, rows []tickRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO price_ticks (observed_at, received_at, symbol, price, change, change_percent, session_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, observed_at) DO NOTHING
		`, r.ObservedAt, r.ReceivedAt, r.Symbol, r.Price, r.Change, r.ChangePercent, r.SessionID)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
