package quote

import (
	"testing"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

func update(symbol string, price float64, observed time.Time) model.PriceUpdate {
	return model.PriceUpdate{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: observed,
		ReceivedAt: time.Now(),
	}
}

func TestCache_ApplyAndGet(t *testing.T) {
	c := NewCache()
	now := time.Now()

	if !c.Apply(update("AAPL", 190.5, now)) {
		t.Error("first Apply rejected")
	}

	got, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("Get miss after Apply")
	}
	if got.Price != 190.5 {
		t.Errorf("Price = %f, want 190.5", got.Price)
	}

	if _, ok := c.Get("MSFT"); ok {
		t.Error("Get hit for unknown symbol")
	}
}

func TestCache_StaleObservationRejected(t *testing.T) {
	c := NewCache()
	now := time.Now()

	c.Apply(update("AAPL", 191.0, now))
	if c.Apply(update("AAPL", 190.0, now.Add(-time.Second))) {
		t.Error("older observation accepted over newer one")
	}

	got, _ := c.Get("AAPL")
	if got.Price != 191.0 {
		t.Errorf("Price = %f, want 191.0", got.Price)
	}

	// Newer observation replaces.
	if !c.Apply(update("AAPL", 192.0, now.Add(time.Second))) {
		t.Error("newer observation rejected")
	}
	got, _ = c.Get("AAPL")
	if got.Price != 192.0 {
		t.Errorf("Price = %f, want 192.0", got.Price)
	}
}

func TestCache_AllSortedBySymbol(t *testing.T) {
	c := NewCache()
	now := time.Now()

	c.Apply(update("NVDA", 1.0, now))
	c.Apply(update("AAPL", 2.0, now))
	c.Apply(update("MSFT", 3.0, now))

	all := c.All()
	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(all) != len(want) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i].Symbol != want[i] {
			t.Errorf("All()[%d].Symbol = %s, want %s", i, all[i].Symbol, want[i])
		}
	}
}

func TestCache_DropAndLen(t *testing.T) {
	c := NewCache()
	now := time.Now()

	c.Apply(update("AAPL", 1.0, now))
	c.Apply(update("MSFT", 2.0, now))
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	c.Drop("AAPL")
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("AAPL"); ok {
		t.Error("Get hit after Drop")
	}

	// Dropping an unknown symbol is a no-op.
	c.Drop("XXXX")
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
