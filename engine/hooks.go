package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrHalt can be returned by a hook to stop dispatching to the remaining hooks.
// It isn't a failure: whoever fired the hook decides what halting means
// (e.g. the form module returns the response set by the halting observer as-is).
var ErrHalt = errors.New("hook dispatch halted")

// DefaultPriority is used by hooks that don't care about ordering.
const DefaultPriority = 10

type HookFunc[T any] func(ctx context.Context, payload T) error

// Hook is an ordered list of observers for a single lifecycle point.
// Lower priorities run first, equal priorities run in registration order.
type Hook[T any] struct {
	mu      sync.Mutex
	entries []hookEntry[T]
}

type hookEntry[T any] struct {
	priority int
	fn       HookFunc[T]
}

func (h *Hook[T]) Add(priority int, fn HookFunc[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := len(h.entries)
	for i > 0 && h.entries[i-1].priority > priority {
		i--
	}
	h.entries = slices.Insert(h.entries, i, hookEntry[T]{priority: priority, fn: fn})
}

// Len returns the number of registered observers.
func (h *Hook[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Fire calls every observer in order. The first error is returned and stops dispatch,
// check for ErrHalt with errors.Is to distinguish intentional halts.
func (h *Hook[T]) Fire(ctx context.Context, payload T) error {
	h.mu.Lock()
	entries := slices.Clone(h.entries)
	h.mu.Unlock()

	for _, e := range entries {
		if err := e.fn(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}
