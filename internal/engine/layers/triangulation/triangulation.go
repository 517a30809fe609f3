// Package triangulation implements the Voronoi-triangulation layer:
// a Delaunay triangulation over every points-layer site touching a
// padded region, plus a per-site biome classification derived from
// two independent noise fields.
package triangulation

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engconfig"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/layers/points"
	"worldforge/internal/engine/noise"
	"worldforge/internal/engine/registry"
	"worldforge/internal/engine/taskgraph"
)

// BiomeWeight is one corner of a biomes_at query result: a classified
// biome and its squared-barycentric-ready weight.
type BiomeWeight struct {
	Biome  engconfig.Biome
	Weight float32
}

// Chunk holds the triangulation and per-site biome classification for
// one region. Side length matches the points layer; its query surface
// is BiomesAt.
type Chunk struct {
	key       geom.ChunkKey
	bounds    geom.Rect
	sites     []mgl32.Vec2
	biomes    []engconfig.Biome
	triangles []triangleIdx
}

func (c *Chunk) Key() geom.ChunkKey { return c.key }
func (c *Chunk) Bounds() geom.Rect  { return c.bounds }
func (c *Chunk) Unload()            {}

// BiomesAt locates the triangle containing point and returns its
// three (biome, weight) corners in barycentric-weight form, or false
// if point falls outside every triangle this chunk covers.
func (c *Chunk) BiomesAt(point mgl32.Vec2) ([3]BiomeWeight, bool) {
	for _, t := range c.triangles {
		wa, wb, wc, ok := barycentric(point, c.sites[t.A], c.sites[t.B], c.sites[t.C])
		if !ok {
			continue
		}
		return [3]BiomeWeight{
			{Biome: c.biomes[t.A], Weight: wa},
			{Biome: c.biomes[t.B], Weight: wb},
			{Biome: c.biomes[t.C], Weight: wc},
		}, true
	}
	return [3]BiomeWeight{}, false
}

// Layer produces triangulation Chunks on the same grid as its parent
// points layer, padded by half a chunk so neighboring point chunks
// contribute sites near a tile's border.
type Layer struct {
	name      string
	chunkSize float32
	padding   float32
	parent    *points.Layer
	biomes    *engconfig.BiomeGeneratorSettings
	seedU     int64
	seedV     int64
	reg       *registry.Registry[*Chunk]
}

// New returns a triangulation layer reading sites from parent,
// classifying biomes via settings, with independent noise seeds seedU
// and seedV for the (u,v) selector fields.
func New(name string, parent *points.Layer, settings *engconfig.BiomeGeneratorSettings, seedU, seedV int64) *Layer {
	return &Layer{
		name:      name,
		chunkSize: parent.ChunkSize(),
		padding:   parent.ChunkSize() / 2,
		parent:    parent,
		biomes:    settings,
		seedU:     seedU,
		seedV:     seedV,
		reg:       registry.New[*Chunk](),
	}
}

func (l *Layer) Name() string       { return l.name }
func (l *Layer) ChunkSize() float32 { return l.chunkSize }
func (l *Layer) Padding() float32   { return l.padding }

func (l *Layer) IndicesForRect(rect geom.Rect) []geom.ChunkIndex {
	return geom.IndicesCoveringRect(rect, l.chunkSize)
}

func (l *Layer) Bounds(idx geom.ChunkIndex) geom.Rect {
	return geom.RectFromChunk(idx, l.chunkSize)
}

func (l *Layer) HasChunk(idx geom.ChunkIndex, lod int) bool {
	return l.reg.Has(geom.ChunkKey{Index: idx, LOD: lod})
}

// ClampLOD always returns 0: the triangulation layer ignores LOD entirely.
func (l *Layer) ClampLOD(int) int { return 0 }

// Registry exposes the triangulation registry for the heightmap layer
// to locate the chunk covering a given world position.
func (l *Layer) Registry() *registry.Registry[*Chunk] { return l.reg }

func (l *Layer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID {
	bounds := l.Bounds(idx)
	collectRect := bounds.Grow(l.padding * 2)
	parentIndices := geom.IndicesCoveringRect(collectRect, l.parent.ChunkSize())
	parent := l.parent
	biomes := l.biomes
	seedU, seedV := l.seedU, l.seedV

	buildID := taskgraph.TaskID(l.name + ":build:" + idx.String())
	var chunk *Chunk
	g.AddTask(buildID, func(ctx context.Context) error {
		chunk = build(idx, bounds, parentIndices, parent, biomes, seedU, seedV)
		return nil
	}, parentDeps...)

	storeID := taskgraph.TaskID(l.name + ":store:" + idx.String())
	g.AddTask(storeID, func(ctx context.Context) error {
		l.reg.Insert(chunk)
		return nil
	}, buildID)
	return storeID
}

func build(idx geom.ChunkIndex, bounds geom.Rect, parentIndices []geom.ChunkIndex, parent *points.Layer, biomeSettings *engconfig.BiomeGeneratorSettings, seedU, seedV int64) *Chunk {
	var sites []mgl32.Vec2
	for _, pIdx := range parentIndices {
		pointChunk, ok := parent.Registry().LatestByIndex(pIdx)
		if !ok {
			continue
		}
		sites = append(sites, pointChunk.Sites...)
	}

	biomes := make([]engconfig.Biome, len(sites))
	for i, s := range sites {
		u := noise.Value2D(float64(s[0]), float64(s[1]), seedU)
		v := noise.Value2D(float64(s[0]), float64(s[1]), seedV)
		biomes[i] = biomeSettings.Classify(mgl32.Vec2{float32(u), float32(v)})
	}

	triangles := bowyerWatson(sites)

	return &Chunk{
		key:       geom.ChunkKey{Index: idx, LOD: 0},
		bounds:    bounds,
		sites:     sites,
		biomes:    biomes,
		triangles: triangles,
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

// LoadedCount reports how many triangulation chunks are currently loaded.
func (l *Layer) LoadedCount() int { return l.reg.Len() }

// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
func (l *Layer) LoadedKeys() []geom.ChunkKey { return l.reg.LoadedKeys() }

// ChunkAt returns the loaded triangulation chunk covering point, for
// the heightmap layer's per-pixel lookup, or false if none covers it
// yet. By the time a dependent chunk builds, the scheduler has
// already stored every triangulation chunk it reads.
func (l *Layer) ChunkAt(point mgl32.Vec2) (*Chunk, bool) {
	idx := geom.ChunkIndexAt(point, l.chunkSize)
	return l.reg.LatestByIndex(idx)
}
