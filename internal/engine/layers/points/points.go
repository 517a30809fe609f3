// Package points implements the Voronoi-points layer, the root
// producer. Each chunk holds a small jittered set of candidate
// Voronoi site positions, seeded deterministically from the chunk's
// world position so two builds of the same chunk always agree.
package points

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/noise"
	"worldforge/internal/engine/registry"
	"worldforge/internal/engine/taskgraph"
)

// Chunk holds the jittered site positions sampled within one
// points-layer cell. Has no LOD and owns no pooled resources.
type Chunk struct {
	key    geom.ChunkKey
	bounds geom.Rect
	Sites  []mgl32.Vec2
}

func (c *Chunk) Key() geom.ChunkKey  { return c.key }
func (c *Chunk) Bounds() geom.Rect   { return c.bounds }
func (c *Chunk) Unload()             {}

// Layer produces Chunks on a uniform grid of side length chunkSize,
// no padding, always at LOD 0.
type Layer struct {
	name      string
	chunkSize float32
	k         int
	seedSalt  int64
	reg       *registry.Registry[*Chunk]
}

// New returns a points layer: chunkSize meters per side, a K x K
// jittered-sample grid per chunk, seeded from seedSalt.
func New(name string, chunkSize float32, k int, seedSalt int64) *Layer {
	return &Layer{
		name:      name,
		chunkSize: chunkSize,
		k:         k,
		seedSalt:  seedSalt,
		reg:       registry.New[*Chunk](),
	}
}

func (l *Layer) Name() string        { return l.name }
func (l *Layer) ChunkSize() float32  { return l.chunkSize }
func (l *Layer) Padding() float32    { return 0 }

func (l *Layer) IndicesForRect(rect geom.Rect) []geom.ChunkIndex {
	return geom.IndicesCoveringRect(rect, l.chunkSize)
}

func (l *Layer) Bounds(idx geom.ChunkIndex) geom.Rect {
	return geom.RectFromChunk(idx, l.chunkSize)
}

func (l *Layer) HasChunk(idx geom.ChunkIndex, lod int) bool {
	return l.reg.Has(geom.ChunkKey{Index: idx, LOD: lod})
}

// ClampLOD always returns 0: the points layer ignores LOD entirely.
func (l *Layer) ClampLOD(int) int { return 0 }

// Registry exposes the points registry for the triangulation layer to
// read sites from neighboring chunks.
func (l *Layer) Registry() *registry.Registry[*Chunk] { return l.reg }

func (l *Layer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID {
	bounds := l.Bounds(idx)
	k := l.k
	salt := l.seedSalt
	buildID := taskgraph.TaskID(l.name + ":build:" + idx.String())
	var chunk *Chunk
	g.AddTask(buildID, func(ctx context.Context) error {
		chunk = build(idx, bounds, k, salt)
		return nil
	}, parentDeps...)

	storeID := taskgraph.TaskID(l.name + ":store:" + idx.String())
	g.AddTask(storeID, func(ctx context.Context) error {
		l.reg.Insert(chunk)
		return nil
	}, buildID)
	return storeID
}

func build(idx geom.ChunkIndex, bounds geom.Rect, k int, salt int64) *Chunk {
	seed := noise.HashChunk(bounds.Min[0], bounds.Min[1], salt)
	rng := noise.NewRNG(seed)
	cellSize := bounds.Width() / float32(k)
	sites := make([]mgl32.Vec2, 0, k*k)
	for cz := 0; cz < k; cz++ {
		for cx := 0; cx < k; cx++ {
			centerX := bounds.Min[0] + (float32(cx)+0.5)*cellSize
			centerZ := bounds.Min[1] + (float32(cz)+0.5)*cellSize
			jx := float32(rng.Uniform(float64(-cellSize/2), float64(cellSize/2)))
			jz := float32(rng.Uniform(float64(-cellSize/2), float64(cellSize/2)))
			sites = append(sites, mgl32.Vec2{centerX + jx, centerZ + jz})
		}
	}
	return &Chunk{
		key:    geom.ChunkKey{Index: idx, LOD: 0},
		bounds: bounds,
		Sites:  sites,
	}
}

func (l *Layer) Finalize(ctx context.Context) {}

func (l *Layer) CleanupPass(totalRegion geom.Rect, lodFor func(mgl32.Vec2) int) int {
	var toUnload []geom.ChunkKey
	for _, chunk := range l.reg.All() {
		if !chunk.bounds.Intersects(totalRegion) {
			toUnload = append(toUnload, chunk.key)
		}
	}
	if len(toUnload) > 0 {
		l.reg.Unload(toUnload)
	}
	return len(toUnload)
}

// LoadedCount reports how many point chunks are currently loaded.
func (l *Layer) LoadedCount() int { return l.reg.Len() }

// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
func (l *Layer) LoadedKeys() []geom.ChunkKey { return l.reg.LoadedKeys() }
