// Package terrain implements the terrain layer: one large, unpadded
// chunk holding an adaptive quad-tree rebuilt around the reference
// point each build, and a main-thread finalization pass that diffs
// the quad-tree's current leaves against previously materialized
// scene nodes, spawning, keeping, or despawning mesh instances
// through hostapi.Renderer.
package terrain

import (
	"context"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/hostapi"
	"worldforge/internal/engine/layers/road"
	"worldforge/internal/engine/meshcatalog"
	"worldforge/internal/engine/quadtree"
	"worldforge/internal/engine/registry"
	"worldforge/internal/engine/taskgraph"
)

// tile is one materialized scene node bound to a quad-tree leaf.
type tile struct {
	lod          int
	neighborLODs [4]int
	instance     hostapi.InstanceId
}

// Chunk holds one terrain tile's quad-tree and its currently
// materialized scene nodes, keyed by leaf rectangle.
type Chunk struct {
	key    geom.ChunkKey
	bounds geom.Rect

	mu       sync.Mutex
	tree     *quadtree.QuadTree
	tiles    map[geom.Rect]tile
	renderer hostapi.Renderer
}

func (c *Chunk) Key() geom.ChunkKey { return c.key }
func (c *Chunk) Bounds() geom.Rect  { return c.bounds }

// Unload despawns every scene node this chunk owns.
func (c *Chunk) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tiles {
		c.renderer.DespawnMeshInstance(t.instance)
	}
	c.tiles = nil
}

// Tree returns the chunk's current quad-tree, for debug accessors
// and tests.
func (c *Chunk) Tree() *quadtree.QuadTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

// TileCount reports how many scene nodes are currently materialized.
func (c *Chunk) TileCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

// Layer produces terrain Chunks keyed by their schedule LOD band;
// its parent is the road layer, read only during Finalize, never
// during build.
type Layer struct {
	name      string
	chunkSize float32
	renderer  hostapi.Renderer
	roadLayer *road.Layer
	catalog   *meshcatalog.Catalog
	maxLods   int
	curve     quadtree.LodCurve
	elements  int
	reg       *registry.Registry[*Chunk]

	mu        sync.Mutex
	reference mgl32.Vec2
}

// New returns a terrain layer rooted on a chunkSize grid, with
// maxLods/curve driving every chunk's quad-tree, catalog supplying
// T-junction-stitched meshes, and elementCount the per-tile mesh
// tessellation resolution.
func New(name string, renderer hostapi.Renderer, roadLayer *road.Layer, catalog *meshcatalog.Catalog, chunkSize float32, maxLods int, curve quadtree.LodCurve, elementCount int) *Layer {
	return &Layer{
		name:      name,
		chunkSize: chunkSize,
		renderer:  renderer,
		roadLayer: roadLayer,
		catalog:   catalog,
		maxLods:   maxLods,
		curve:     curve,
		elements:  elementCount,
		reg:       registry.New[*Chunk](),
	}
}

func (l *Layer) Name() string       { return l.name }
func (l *Layer) ChunkSize() float32 { return l.chunkSize }
func (l *Layer) Padding() float32   { return 0 }

func (l *Layer) IndicesForRect(rect geom.Rect) []geom.ChunkIndex {
	return geom.IndicesCoveringRect(rect, l.chunkSize)
}

func (l *Layer) Bounds(idx geom.ChunkIndex) geom.Rect {
	return geom.RectFromChunk(idx, l.chunkSize)
}

func (l *Layer) HasChunk(idx geom.ChunkIndex, lod int) bool {
	return l.reg.Has(geom.ChunkKey{Index: idx, LOD: lod})
}

// ClampLOD is the identity. Mesh LOD variation lives inside each
// chunk's quad-tree, but keying the chunk by its schedule LOD means a
// reference point crossing a distance band invalidates the chunk and
// rebuilds the quad-tree around the new position.
func (l *Layer) ClampLOD(scheduleLOD int) int { return scheduleLOD }

// SetReference records the manager's latest reference position, read
// by every build task this tick.
func (l *Layer) SetReference(p mgl32.Vec2) {
	l.mu.Lock()
	l.reference = p
	l.mu.Unlock()
}

func (l *Layer) reading() mgl32.Vec2 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reference
}

// Registry exposes the terrain registry for debug accessors and tests.
func (l *Layer) Registry() *registry.Registry[*Chunk] { return l.reg }

func (l *Layer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID {
	bounds := l.Bounds(idx)
	maxLods, curve := l.maxLods, l.curve
	reference := l.reading()
	renderer := l.renderer

	key := geom.ChunkKey{Index: idx, LOD: lod}
	buildID := taskgraph.TaskID(l.name + ":build:" + key.String())
	var chunk *Chunk
	g.AddTask(buildID, func(ctx context.Context) error {
		chunk = &Chunk{
			key:      key,
			bounds:   bounds,
			tree:     quadtree.New(bounds, maxLods, curve),
			tiles:    make(map[geom.Rect]tile),
			renderer: renderer,
		}
		chunk.tree.InsertReference(reference)
		chunk.tree.Balance()
		return nil
	}, parentDeps...)

	storeID := taskgraph.TaskID(l.name + ":store:" + key.String())
	g.AddTask(storeID, func(ctx context.Context) error {
		l.reg.Insert(chunk)
		return nil
	}, buildID)
	return storeID
}

// Finalize runs the main-thread sync pass over every loaded chunk:
// keep tiles whose rectangle is still a leaf with the same LOD
// vector, spawn new ones, and despawn ones no longer present.
func (l *Layer) Finalize(ctx context.Context) {
	l.reg.ForEachIndexed(func(idx geom.ChunkIndex, chunk *Chunk) {
		l.finalizeChunk(idx, chunk)
	})
}

func (l *Layer) finalizeChunk(idx geom.ChunkIndex, chunk *Chunk) {
	chunk.mu.Lock()
	defer chunk.mu.Unlock()

	infos := chunk.tree.LeafInfo()
	next := make(map[geom.Rect]tile, len(infos))

	for _, info := range infos {
		if existing, ok := chunk.tiles[info.Rect]; ok && existing.lod == info.LOD && existing.neighborLODs == info.NeighborLODs {
			next[info.Rect] = existing
			delete(chunk.tiles, info.Rect)
			continue
		}
		if existing, ok := chunk.tiles[info.Rect]; ok {
			chunk.renderer.DespawnMeshInstance(existing.instance)
			delete(chunk.tiles, info.Rect)
		}
		next[info.Rect] = l.spawnTile(idx, info)
	}

	for _, stale := range chunk.tiles {
		chunk.renderer.DespawnMeshInstance(stale.instance)
	}
	chunk.tiles = next
}

func (l *Layer) spawnTile(idx geom.ChunkIndex, info quadtree.LeafInfo) tile {
	flags := flagsFromNeighborLODs(info.LOD, info.NeighborLODs)
	mesh := l.catalog.Get(l.elements, info.Rect.Width(), flags)

	instance, err := l.renderer.SpawnMeshInstance(mesh)
	if err != nil {
		engerr.AssertionFailed("terrain: SpawnMeshInstance failed: %v", err)
	}
	l.renderer.SetInstanceParameter(instance, "origin", info.Rect.Min)

	if roadChunk, ok := l.roadLayer.ChunkAtWorld(info.Rect.Center()); ok {
		l.renderer.SetInstanceParameter(instance, "road_texture_array", l.roadLayer.Pool(roadChunk.Key().LOD).Array())
		l.renderer.SetInstanceParameter(instance, "road_texture_slot", roadChunk.Slot())
	}

	return tile{lod: info.LOD, neighborLODs: info.NeighborLODs, instance: instance}
}

// dirFlag maps a quad-tree cardinal direction to its meshcatalog
// T-junction bit.
var dirFlag = [4]meshcatalog.Flags{
	quadtree.North: meshcatalog.FlagN,
	quadtree.South: meshcatalog.FlagS,
	quadtree.East:  meshcatalog.FlagE,
	quadtree.West:  meshcatalog.FlagW,
}

// flagsFromNeighborLODs flags a direction iff it has a neighbor and
// that neighbor's LOD is coarser (numerically smaller) than lod, so
// the selected mesh stitches against the coarser side.
func flagsFromNeighborLODs(lod int, nlods [4]int) meshcatalog.Flags {
	var flags meshcatalog.Flags
	for _, dir := range quadtree.Directions {
		if nlods[dir] != -1 && nlods[dir] < lod {
			flags |= dirFlag[dir]
		}
	}
	return flags
}

func (l *Layer) CleanupPass(totalRegion geom.Rect, lodFor func(mgl32.Vec2) int) int {
	var toUnload []geom.ChunkKey
	for _, chunk := range l.reg.All() {
		if !chunk.bounds.Intersects(totalRegion) || chunk.key.LOD != lodFor(chunk.bounds.Center()) {
			toUnload = append(toUnload, chunk.key)
		}
	}
	if len(toUnload) > 0 {
		l.reg.Unload(toUnload)
	}
	return len(toUnload)
}

// LoadedCount reports how many terrain chunks are currently loaded.
func (l *Layer) LoadedCount() int { return l.reg.Len() }

// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
func (l *Layer) LoadedKeys() []geom.ChunkKey { return l.reg.LoadedKeys() }
