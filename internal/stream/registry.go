package stream

import (
	"sort"
	"strings"
	"sync"
)

// Canonical normalizes a symbol to its canonical uppercase form, so that
// "aapl" and "AAPL" refer to the same registry entry.
func Canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Registry is the desired-state set of symbols the consumer wants updates
// for. It has no knowledge of connection state: entries persist across
// disconnects and the Manager reconciles them with the transport.
type Registry struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		symbols: make(map[string]struct{}),
	}
}

// Add records the desire for a symbol. It is idempotent and reports whether
// the symbol was newly added.
func (r *Registry) Add(symbol string) bool {
	sym := Canonical(symbol)
	if sym == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.symbols[sym]; ok {
		return false
	}
	r.symbols[sym] = struct{}{}
	return true
}

// Remove drops a symbol. Removing a non-member is a no-op; it reports
// whether the symbol was present.
func (r *Registry) Remove(symbol string) bool {
	sym := Canonical(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.symbols[sym]; !ok {
		return false
	}
	delete(r.symbols, sym)
	return true
}

// Contains reports whether a symbol is in the registry.
func (r *Registry) Contains(symbol string) bool {
	sym := Canonical(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.symbols[sym]
	return ok
}

// Snapshot returns the current membership as a sorted copy. Sorting keeps
// subscription replay deterministic.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.symbols))
	for sym := range r.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of subscribed symbols.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.symbols)
}
