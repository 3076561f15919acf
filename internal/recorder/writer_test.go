package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/pricestream/internal/model"
)

// fakeDB records the context each batch was sent under and acknowledges
// every queued statement as a fresh insert.
type fakeDB struct {
	mu     sync.Mutex
	ctxs   []context.Context
	queued []int
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	f.ctxs = append(f.ctxs, ctx)
	f.queued = append(f.queued, b.Len())
	f.mu.Unlock()
	return &fakeBatchResults{}
}

type fakeBatchResults struct{}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

func TestTickWriter_Transform(t *testing.T) {
	w := NewTickWriter(DefaultConfig(), nil, "session-1", nil)

	change := 2.25
	changePct := 1.19
	observed := time.Date(2026, 6, 1, 14, 30, 0, 500_000_000, time.UTC)
	received := observed.Add(20 * time.Millisecond)

	row := w.transform(model.PriceUpdate{
		Symbol:        "AAPL",
		Price:         190.5,
		Change:        &change,
		ChangePercent: &changePct,
		ObservedAt:    observed,
		ReceivedAt:    received,
	})

	if row.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", row.Symbol)
	}
	if row.Price != 190.5 {
		t.Errorf("Price = %f, want 190.5", row.Price)
	}
	if row.ObservedAt != observed.UnixMicro() {
		t.Errorf("ObservedAt = %d, want %d", row.ObservedAt, observed.UnixMicro())
	}
	if row.ReceivedAt != received.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, received.UnixMicro())
	}
	if row.Change == nil || *row.Change != 2.25 {
		t.Errorf("Change = %v, want 2.25", row.Change)
	}
	if row.SessionID != "session-1" {
		t.Errorf("SessionID = %s, want session-1", row.SessionID)
	}
}

func TestTickWriter_Transform_NilChange(t *testing.T) {
	w := NewTickWriter(DefaultConfig(), nil, "session-1", nil)

	row := w.transform(model.PriceUpdate{
		Symbol:     "MSFT",
		Price:      420.0,
		ObservedAt: time.Now(),
		ReceivedAt: time.Now(),
	})

	if row.Change != nil {
		t.Errorf("Change = %v, want nil", row.Change)
	}
	if row.ChangePercent != nil {
		t.Errorf("ChangePercent = %v, want nil", row.ChangePercent)
	}
}

func TestTickWriter_Lifecycle(t *testing.T) {
	cfg := Config{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	w := NewTickWriter(cfg, nil, "session-1", nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestTickWriter_HandleUpdate_AddsToBatch(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	w := NewTickWriter(cfg, nil, "session-1", nil)

	w.handleUpdate(model.PriceUpdate{
		Symbol:     "AAPL",
		Price:      190.5,
		ObservedAt: time.Now(),
		ReceivedAt: time.Now(),
	})

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}

func TestTickWriter_StopFlushesBufferedTicks(t *testing.T) {
	db := &fakeDB{}
	cfg := Config{
		BatchSize:     100, // Never reached: the shutdown flush does the work
		FlushInterval: time.Hour,
	}
	w := NewTickWriter(cfg, db, "session-1", nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, sym := range []string{"AAPL", "MSFT", "TSLA"} {
		if !w.Offer(model.PriceUpdate{
			Symbol:     sym,
			Price:      100.0,
			ObservedAt: time.Now(),
			ReceivedAt: time.Now(),
		}) {
			t.Fatalf("Offer(%s) rejected", sym)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.ctxs) != 1 {
		t.Fatalf("SendBatch called %d times, want 1", len(db.ctxs))
	}
	if db.queued[0] != 3 {
		t.Errorf("flushed %d rows, want 3", db.queued[0])
	}
	// The shutdown flush runs under the caller's context; the writer's own
	// context is already cancelled at that point.
	if err := db.ctxs[0].Err(); err != nil {
		t.Errorf("shutdown flush used a dead context: %v", err)
	}
	if got := w.Stats().Inserts; got != 3 {
		t.Errorf("Inserts = %d, want 3", got)
	}
	if got := w.input.Len(); got != 0 {
		t.Errorf("intake buffer still holds %d items after Stop", got)
	}
}

func TestTickWriter_OfferAfterStopIsDropped(t *testing.T) {
	w := NewTickWriter(DefaultConfig(), nil, "session-1", nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if w.Offer(model.PriceUpdate{Symbol: "AAPL"}) {
		t.Error("Offer succeeded after Stop")
	}
	if got := w.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestTickWriter_Stats(t *testing.T) {
	w := NewTickWriter(DefaultConfig(), nil, "session-1", nil)

	stats := w.Stats()
	if stats.Inserts != 0 {
		t.Errorf("initial Inserts = %d, want 0", stats.Inserts)
	}
	if stats.Errors != 0 {
		t.Errorf("initial Errors = %d, want 0", stats.Errors)
	}
	if stats.Flushes != 0 {
		t.Errorf("initial Flushes = %d, want 0", stats.Flushes)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", cfg.FlushInterval)
	}
	if cfg.BufferSize != 1024 {
		t.Errorf("BufferSize = %d, want 1024", cfg.BufferSize)
	}
}
