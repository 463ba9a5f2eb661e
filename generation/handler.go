// Package generation implements the write-epoch handler shared by the
// dictionary and the value store. It owns the monotonically increasing
// generation counter and computes the oldest generation any active reader
// could still be observing, which gates hold-list trimming.
//
// The dictionary never consults the handler directly; every generation
// dependent call receives its generation as an explicit argument, so the
// handler is replaceable by synthetic sequences in tests.
package generation

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/uniquestore/core"
)

// Handler issues generations and tracks reader guards.
type Handler struct {
	current atomic.Uint64

	mu     sync.Mutex
	active map[core.Generation]int
}

// NewHandler creates a handler. The first generation is 1, so an initial
// trim at the first-used generation frees nothing.
func NewHandler() *Handler {
	h := &Handler{active: make(map[core.Generation]int)}
	h.current.Store(1)
	return h
}

// Current returns the current generation.
func (h *Handler) Current() core.Generation {
	return core.Generation(h.current.Load())
}

// Increment closes the current write epoch. Writer-side only; called after
// hold lists have been transferred at the closing generation.
func (h *Handler) Increment() {
	h.current.Add(1)
}

// FirstUsed returns the oldest generation a live guard is pinned to, or the
// current generation when no guards are active. Trimming hold lists at this
// value is always safe.
func (h *Handler) FirstUsed() core.Generation {
	h.mu.Lock()
	defer h.mu.Unlock()
	first := h.Current()
	for gen := range h.active {
		if gen < first {
			first = gen
		}
	}
	return first
}

// Guard pins the current generation until released. Readers take a guard
// before traversing a frozen root and release it when done; the pinned
// generation keeps every node and buffer retired at or after it alive.
func (h *Handler) Guard() *Guard {
	h.mu.Lock()
	defer h.mu.Unlock()
	gen := h.Current()
	h.active[gen]++
	return &Guard{h: h, gen: gen}
}

// Guard pins a generation on behalf of a reader.
type Guard struct {
	h        *Handler
	gen      core.Generation
	released atomic.Bool
}

// Generation returns the pinned generation.
func (g *Guard) Generation() core.Generation { return g.gen }

// Release unpins the generation. Safe to call more than once.
func (g *Guard) Release() {
	if g.released.Swap(true) {
		return
	}
	g.h.mu.Lock()
	defer g.h.mu.Unlock()
	g.h.active[g.gen]--
	if g.h.active[g.gen] == 0 {
		delete(g.h.active, g.gen)
	}
}
