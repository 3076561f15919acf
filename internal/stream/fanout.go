package stream

import (
	"sync"
	"sync/atomic"
)

// handlerRef is one registered callback. The removed flag is checked at
// dispatch time so disposing a handler mid-dispatch neither skips nor
// double-invokes its siblings.
type handlerRef[T any] struct {
	fn      func(T)
	removed atomic.Bool
}

// fanout maintains an ordered list of handlers for one event category and
// dispatches to a copy-on-dispatch snapshot of that list.
type fanout[T any] struct {
	mu       sync.Mutex
	handlers []*handlerRef[T]

	// onPanic receives recovered values from failing handlers; a failing
	// handler never prevents delivery to the rest of the snapshot.
	onPanic func(recovered any)
}

func newFanout[T any](onPanic func(recovered any)) *fanout[T] {
	return &fanout[T]{onPanic: onPanic}
}

// register appends a handler and returns its disposer. The disposer is
// idempotent and safe to call concurrently with dispatch.
func (f *fanout[T]) register(fn func(T)) func() {
	ref := &handlerRef[T]{fn: fn}

	f.mu.Lock()
	f.handlers = append(f.handlers, ref)
	f.mu.Unlock()

	return func() {
		if ref.removed.Swap(true) {
			return
		}
		f.mu.Lock()
		for i, h := range f.handlers {
			if h == ref {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
	}
}

// dispatch invokes every live handler in registration order.
func (f *fanout[T]) dispatch(v T) {
	f.mu.Lock()
	snapshot := make([]*handlerRef[T], len(f.handlers))
	copy(snapshot, f.handlers)
	f.mu.Unlock()

	for _, ref := range snapshot {
		if ref.removed.Load() {
			continue
		}
		f.invoke(ref.fn, v)
	}
}

func (f *fanout[T]) invoke(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil && f.onPanic != nil {
			f.onPanic(r)
		}
	}()
	fn(v)
}

// size returns the number of registered handlers.
func (f *fanout[T]) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}
