package chart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// blockingSource blocks each fetch until released or cancelled.
type blockingSource struct {
	mu      sync.Mutex
	release chan struct{}
	days    []int
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{})}
}

func (s *blockingSource) GetOHLC(ctx context.Context, symbol string, days int) (*model.ChartData, error) {
	s.mu.Lock()
	s.days = append(s.days, days)
	release := s.release
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-release:
		return &model.ChartData{
			Candles: []model.Candle{{Time: 1748736000, Close: 190.5}},
		}, nil
	}
}

func TestFetcher_Load(t *testing.T) {
	src := newBlockingSource()
	close(src.release) // Never block.
	f := NewFetcher(src, 30, nil)

	data, err := f.Load(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(data.Candles) != 1 {
		t.Errorf("len(Candles) = %d, want 1", len(data.Candles))
	}
	if src.days[0] != 30 {
		t.Errorf("days = %d, want 30", src.days[0])
	}
}

// waitFetches blocks until the source has seen n fetches begin.
func waitFetches(t *testing.T, src *blockingSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		src.mu.Lock()
		got := len(src.days)
		src.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("source never saw %d fetches", n)
}

func TestFetcher_NewLoadSupersedesInFlight(t *testing.T) {
	src := newBlockingSource()
	f := NewFetcher(src, 30, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.Load(context.Background(), "AAPL")
		firstDone <- err
	}()
	waitFetches(t, src, 1)

	// Issue the superseding load while the first is still blocked in the
	// source; the source stays unreleased until both fetches are in flight.
	var data *model.ChartData
	var secondErr error
	secondDone := make(chan struct{})
	go func() {
		data, secondErr = f.Load(context.Background(), "MSFT")
		close(secondDone)
	}()
	waitFetches(t, src, 2)

	select {
	case err := <-firstDone:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("first Load error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Load never returned after being superseded")
	}

	close(src.release)
	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second Load never returned")
	}
	if secondErr != nil {
		t.Fatalf("second Load failed: %v", secondErr)
	}
	if data == nil || len(data.Candles) != 1 {
		t.Fatalf("second Load data = %+v, want one candle", data)
	}
}

func TestFetcher_CallerCancelIsNotSupersede(t *testing.T) {
	src := newBlockingSource()
	f := NewFetcher(src, 30, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Load(ctx, "AAPL")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if errors.Is(err, ErrSuperseded) {
			t.Error("caller cancellation misreported as supersede")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Load never returned")
	}
}

func TestFetcher_DefaultDays(t *testing.T) {
	src := newBlockingSource()
	close(src.release)
	f := NewFetcher(src, 0, nil)

	if _, err := f.Load(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src.days[0] != 30 {
		t.Errorf("days = %d, want default 30", src.days[0])
	}
}
