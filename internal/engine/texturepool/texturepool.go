// Package texturepool manages a fixed-capacity set of integer slots
// backed by one host-owned texture array, handed out as Handles whose
// Release is idempotent and safe to defer. A slot returns to the pool
// only through Release; AssertAllReleased reports any handle left live
// at teardown. A mutex-guarded free list is the whole state;
// acquire and release are the only operations on it.
package texturepool

import (
	"sort"
	"sync"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/hostapi"
)

// Pool hands out texture-array slot indices in [0, capacity). At most
// capacity Handles are ever live at once; the Handle -> slot mapping
// is injective, so slots never alias.
type Pool struct {
	name     string
	renderer hostapi.Renderer
	array    hostapi.TextureArray

	mu        sync.Mutex
	free      []int // sorted ascending; acquire always takes free[0]
	liveCount int
}

// New creates a pool of the given capacity, dimension, and format,
// asking the renderer to allocate the backing texture array up front.
func New(name string, renderer hostapi.Renderer, capacity, dimension int, format hostapi.TextureFormat) (*Pool, error) {
	array, err := renderer.CreateTextureArray(dimension, format, capacity)
	if err != nil {
		return nil, err
	}
	free := make([]int, capacity)
	for i := range free {
		free[i] = i
	}
	return &Pool{name: name, renderer: renderer, array: array, free: free}, nil
}

// Handle is a scoped, single-owner reference to one acquired slot.
// Its zero value is not valid; always obtain one via Pool.Acquire.
// Release returns the slot to the pool; Release is idempotent and
// safe to defer.
type Handle struct {
	pool     *Pool
	slot     int
	released bool
}

// Slot returns the texture-array layer index this handle owns.
func (h *Handle) Slot() int { return h.slot }

// Release returns the slot to the pool's free list. A second call is
// a no-op: releasing twice must never free someone else's slot.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.pool.release(h.slot)
}

// Acquire returns the smallest free slot wrapped in a Handle, or a
// PoolExhaustedError if the pool is empty. The chunk that requested
// it is expected to skip its store task on this error and let the
// next tick retry.
func (p *Pool) Acquire() (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, engerr.NewPoolExhaustedError(p.name)
	}
	slot := p.free[0]
	p.free = p.free[1:]
	p.liveCount++
	return &Handle{pool: p, slot: slot}, nil
}

func (p *Pool) release(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := sort.SearchInts(p.free, slot)
	p.free = append(p.free, 0)
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = slot
	p.liveCount--
}

// Upload replaces the contents of h's slot with image, which must
// already match the pool's configured dimensions and pixel format —
// the renderer is the sole validator of that contract.
func (p *Pool) Upload(h *Handle, image []byte) error {
	return p.renderer.UpdateTextureLayer(p.array, h.slot, image)
}

// Array returns the backing host texture array, for wiring into
// per-instance shader parameters.
func (p *Pool) Array() hostapi.TextureArray { return p.array }

// LiveCount returns the number of currently acquired, unreleased
// handles.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveCount
}

// AssertAllReleased panics if any handle is still outstanding. Call
// at teardown; a leaked handle is a programmer error.
func (p *Pool) AssertAllReleased() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveCount != 0 {
		engerr.AssertionFailed("texturepool %q: %d handle(s) still live at teardown", p.name, p.liveCount)
	}
}
