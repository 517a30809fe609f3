// Package registry provides per-layer chunk storage: an ordered
// mapping from (ChunkIndex, LOD) to chunk artifact with atomic
// insertion and removal under concurrent builders. Every layer owns
// one Registry; store and unload are the only writers and both hold
// the registry lock for the duration of the mutation, so observers
// see the by-key and by-index views change together.
//
// The key set is additionally kept in a github.com/google/btree so
// that iteration-order-sensitive paths (cleanup sweeps, debug key
// dumps) observe a deterministic, sorted order, which a plain Go map
// cannot give.
package registry

import (
	"sync"

	"github.com/google/btree"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
)

// Chunk is the minimal contract every chunk variant satisfies so the
// registry can store, locate, and unload it without knowing its
// concrete type.
type Chunk interface {
	Key() geom.ChunkKey
	Bounds() geom.Rect
	Unload()
}

// Registry stores chunks of one layer, keyed both by ChunkKey (for
// LOD-specific existence checks) and by ChunkIndex (for latest-LOD
// lookups). Two chunks at the same index but different LODs may
// coexist until a cleanup sweep removes the stale one.
type Registry[T interface {
	Chunk
	comparable
}] struct {
	mu      sync.Mutex
	byKey   map[geom.ChunkKey]T
	byIndex map[geom.ChunkIndex]T
	ordered *btree.BTreeG[geom.ChunkKey]
}

// New creates an empty registry.
func New[T interface {
	Chunk
	comparable
}]() *Registry[T] {
	return &Registry[T]{
		byKey:   make(map[geom.ChunkKey]T),
		byIndex: make(map[geom.ChunkIndex]T),
		ordered: btree.NewG(32, geom.ChunkKey.Less),
	}
}

// Insert inserts chunk into the by-key map and replaces the by-index
// entry for its index. Newest wins: a LOD-2 chunk stored after a
// LOD-0 chunk at the same index becomes the latest.
func (r *Registry[T]) Insert(chunk T) {
	key := chunk.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = chunk
	r.byIndex[key.Index] = chunk
	r.ordered.ReplaceOrInsert(key)
}

// Has reports membership of the exact (index, LOD) pair without
// loading the chunk.
func (r *Registry[T]) Has(key geom.ChunkKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byKey[key]
	return ok
}

// LatestByIndex returns the most recently inserted chunk at idx, or
// the zero value and false if none is loaded.
func (r *Registry[T]) LatestByIndex(idx geom.ChunkIndex) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byIndex[idx]
	return c, ok
}

// Unload removes each key's chunk from both maps, calling the chunk's
// Unload hook first. The by-index entry is only removed if it still
// points at the same chunk instance being unloaded — a newer-LOD
// chunk may already have replaced it there, and that replacement must
// survive. Unloading a key that is not registered is a programmer
// error and panics.
func (r *Registry[T]) Unload(keys []geom.ChunkKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		chunk, ok := r.byKey[key]
		if !ok {
			engerr.AssertionFailed("registry.Unload: key %+v not present", key)
		}
		chunk.Unload()
		delete(r.byKey, key)
		r.ordered.Delete(key)
		if current, ok := r.byIndex[key.Index]; ok && current == chunk {
			delete(r.byIndex, key.Index)
		}
	}
}

// LoadedKeys returns every loaded ChunkKey in sorted order (by X,
// then Z, then LOD).
func (r *Registry[T]) LoadedKeys() []geom.ChunkKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]geom.ChunkKey, 0, r.ordered.Len())
	r.ordered.Ascend(func(k geom.ChunkKey) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Len returns the number of loaded (ChunkIndex, LOD) entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// All returns every loaded chunk, ordered by key. The slice is a
// snapshot; the registry may change after it is taken.
func (r *Registry[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, r.ordered.Len())
	r.ordered.Ascend(func(k geom.ChunkKey) bool {
		out = append(out, r.byKey[k])
		return true
	})
	return out
}

// ForEachIndexed calls fn once per distinct ChunkIndex with its
// latest chunk, in sorted index order. fn runs outside the registry
// lock, on a snapshot.
func (r *Registry[T]) ForEachIndexed(fn func(idx geom.ChunkIndex, chunk T)) {
	r.mu.Lock()
	seen := make(map[geom.ChunkIndex]struct{}, len(r.byIndex))
	snapshot := make([]struct {
		idx   geom.ChunkIndex
		chunk T
	}, 0, len(r.byIndex))
	r.ordered.Ascend(func(k geom.ChunkKey) bool {
		if _, ok := seen[k.Index]; ok {
			return true
		}
		seen[k.Index] = struct{}{}
		snapshot = append(snapshot, struct {
			idx   geom.ChunkIndex
			chunk T
		}{k.Index, r.byIndex[k.Index]})
		return true
	})
	r.mu.Unlock()

	for _, e := range snapshot {
		fn(e.idx, e.chunk)
	}
}
