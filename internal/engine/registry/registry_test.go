package registry

import (
	"testing"

	"worldforge/internal/engine/geom"
)

type fakeChunk struct {
	key      geom.ChunkKey
	bounds   geom.Rect
	unloaded bool
}

func (c *fakeChunk) Key() geom.ChunkKey { return c.key }
func (c *fakeChunk) Bounds() geom.Rect  { return c.bounds }
func (c *fakeChunk) Unload()            { c.unloaded = true }

func newChunk(x, z int32, lod int) *fakeChunk {
	idx := geom.ChunkIndex{X: x, Z: z}
	return &fakeChunk{
		key:    geom.ChunkKey{Index: idx, LOD: lod},
		bounds: geom.RectFromChunk(idx, 100),
	}
}

func TestInsertAndLookup(t *testing.T) {
	r := New[*fakeChunk]()
	c := newChunk(0, 0, 0)
	r.Insert(c)

	if !r.Has(c.key) {
		t.Error("Has returned false for inserted key")
	}
	if r.Has(geom.ChunkKey{Index: c.key.Index, LOD: 1}) {
		t.Error("Has returned true for a different LOD")
	}
	got, ok := r.LatestByIndex(c.key.Index)
	if !ok || got != c {
		t.Errorf("LatestByIndex = %v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestNewestWinsByIndex(t *testing.T) {
	r := New[*fakeChunk]()
	old := newChunk(0, 0, 0)
	newer := newChunk(0, 0, 2)
	r.Insert(old)
	r.Insert(newer)

	got, _ := r.LatestByIndex(old.key.Index)
	if got != newer {
		t.Error("by-index entry should point at the newest insert")
	}
	if !r.Has(old.key) || !r.Has(newer.key) {
		t.Error("both LODs should coexist in the by-key map")
	}
}

func TestUnloadPreservesNewerByIndex(t *testing.T) {
	r := New[*fakeChunk]()
	old := newChunk(0, 0, 0)
	newer := newChunk(0, 0, 2)
	r.Insert(old)
	r.Insert(newer)

	r.Unload([]geom.ChunkKey{old.key})

	if !old.unloaded {
		t.Error("unloaded chunk's Unload hook was not called")
	}
	if r.Has(old.key) {
		t.Error("unloaded key still present")
	}
	got, ok := r.LatestByIndex(old.key.Index)
	if !ok || got != newer {
		t.Error("unloading the replaced chunk must not evict the newer by-index entry")
	}

	r.Unload([]geom.ChunkKey{newer.key})
	if _, ok := r.LatestByIndex(old.key.Index); ok {
		t.Error("by-index entry should be gone after unloading its own chunk")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after unloading everything", r.Len())
	}
}

func TestUnloadUnknownKeyPanics(t *testing.T) {
	r := New[*fakeChunk]()
	defer func() {
		if recover() == nil {
			t.Error("Unload of an unknown key should panic")
		}
	}()
	r.Unload([]geom.ChunkKey{{Index: geom.ChunkIndex{X: 9, Z: 9}, LOD: 0}})
}

func TestLoadedKeysSorted(t *testing.T) {
	r := New[*fakeChunk]()
	for _, c := range []*fakeChunk{
		newChunk(1, 0, 0), newChunk(-1, 2, 0), newChunk(0, 0, 1), newChunk(0, 0, 0),
	} {
		r.Insert(c)
	}
	keys := r.LoadedKeys()
	if len(keys) != 4 {
		t.Fatalf("LoadedKeys returned %d keys", len(keys))
	}
	for i := 0; i < len(keys)-1; i++ {
		if !keys[i].Less(keys[i+1]) {
			t.Errorf("keys out of order: %v before %v", keys[i], keys[i+1])
		}
	}
	all := r.All()
	if len(all) != 4 {
		t.Fatalf("All returned %d chunks", len(all))
	}
	for i, c := range all {
		if c.key != keys[i] {
			t.Errorf("All[%d] = %v, want %v", i, c.key, keys[i])
		}
	}
}

func TestForEachIndexedVisitsLatest(t *testing.T) {
	r := New[*fakeChunk]()
	r.Insert(newChunk(0, 0, 0))
	newer := newChunk(0, 0, 1)
	r.Insert(newer)
	r.Insert(newChunk(1, 0, 0))

	visited := make(map[geom.ChunkIndex]*fakeChunk)
	r.ForEachIndexed(func(idx geom.ChunkIndex, c *fakeChunk) {
		visited[idx] = c
	})
	if len(visited) != 2 {
		t.Fatalf("visited %d indexes, want 2", len(visited))
	}
	if visited[newer.key.Index] != newer {
		t.Error("ForEachIndexed should hand out the latest chunk per index")
	}
}
