// Package heightmap implements the heightmap layer: a per-chunk
// bilinear field of terrain height synthesized by blending each
// pixel's triangle corner biomes with squared barycentric weights,
// sharpening transitions relative to a linear blend while still
// summing to one.
package heightmap

import (
	"context"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engconfig"
	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/layers/triangulation"
	"worldforge/internal/engine/noise"
	"worldforge/internal/engine/registry"
	"worldforge/internal/engine/sampler"
	"worldforge/internal/engine/taskgraph"
)

// Fixed per-biome height-noise parameters.
const (
	noiseOctaves     = 4
	noisePersistence = 0.5
	noiseLacunarity  = 2.0
)

// Chunk holds the synthesized height field for one region.
type Chunk struct {
	key    geom.ChunkKey
	bounds geom.Rect
	Field  *sampler.BilinearField
}

func (c *Chunk) Key() geom.ChunkKey { return c.key }
func (c *Chunk) Bounds() geom.Rect  { return c.bounds }
func (c *Chunk) Unload()            {}

// Layer produces height Chunks reading triangle/biome data from a
// parent triangulation layer.
type Layer struct {
	name      string
	chunkSize float32
	padding   float32
	dimension int
	parent    *triangulation.Layer
	reg       *registry.Registry[*Chunk]
}

// New returns a heightmap layer with the given chunk geometry and
// field resolution, reading from parent.
func New(name string, chunkSize, padding float32, dimension int, parent *triangulation.Layer) *Layer {
	return &Layer{
		name:      name,
		chunkSize: chunkSize,
		padding:   padding,
		dimension: dimension,
		parent:    parent,
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

// ClampLOD always returns 0: the heightmap layer ignores LOD entirely.
func (l *Layer) ClampLOD(int) int { return 0 }

// Registry exposes the heightmap registry for direct chunk lookups;
// the road layer samples through SampleRow instead.
func (l *Layer) Registry() *registry.Registry[*Chunk] { return l.reg }

func (l *Layer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID {
	bounds := l.Bounds(idx)
	dimension := l.dimension
	parent := l.parent

	buildID := taskgraph.TaskID(l.name + ":build:" + idx.String())
	var chunk *Chunk
	g.AddTask(buildID, func(ctx context.Context) error {
		chunk = build(idx, bounds, dimension, parent)
		return nil
	}, parentDeps...)

	storeID := taskgraph.TaskID(l.name + ":store:" + idx.String())
	g.AddTask(storeID, func(ctx context.Context) error {
		l.reg.Insert(chunk)
		return nil
	}, buildID)
	return storeID
}

func build(idx geom.ChunkIndex, bounds geom.Rect, dimension int, parent *triangulation.Layer) *Chunk {
	field := sampler.NewBilinearField(dimension, bounds)
	step := bounds.Width() / float32(dimension)
	var warned bool
	for y := 0; y < dimension; y++ {
		worldZ := bounds.Min[1] + (float32(y)+0.5)*step
		for x := 0; x < dimension; x++ {
			worldX := bounds.Min[0] + (float32(x)+0.5)*step
			p := mgl32.Vec2{worldX, worldZ}
			field.Set(x, y, samplePixel(p, parent, &warned))
		}
	}
	return &Chunk{
		key:    geom.ChunkKey{Index: idx, LOD: 0},
		bounds: bounds,
		Field:  field,
	}
}

// samplePixel logs a GenerationError at most once per build; the
// offending pixel defaults to zero and the chunk still stores.
func samplePixel(p mgl32.Vec2, parent *triangulation.Layer, warned *bool) float64 {
	logOnce := func(err error) {
		if *warned {
			return
		}
		*warned = true
		log.Print(err)
	}

	triChunk, ok := parent.ChunkAt(p)
	if !ok {
		logOnce(engerr.NewGenerationError("no triangulation chunk covers pixel position"))
		return 0
	}
	corners, ok := triChunk.BiomesAt(p)
	if !ok {
		logOnce(engerr.NewGenerationError("pixel position outside every triangle"))
		return 0
	}

	var sumSquares, accum float64
	for _, corner := range corners {
		w2 := float64(corner.Weight) * float64(corner.Weight)
		sumSquares += w2
		h := heightFor(corner.Biome, p)
		accum += w2 * h
	}
	if sumSquares == 0 {
		return 0
	}
	return accum / sumSquares
}

func heightFor(biome engconfig.Biome, p mgl32.Vec2) float64 {
	n := noise.Signed2D(float64(p[0]), float64(p[1]), biome.NoiseSeed, noiseOctaves, noisePersistence, noiseLacunarity)
	return float64(biome.ReferenceHeight) + (n*0.5+0.5)*float64(biome.HeightMultiplier)
}

// ChunkAt returns the loaded heightmap chunk covering worldPos, for
// the road layer's per-pixel fill pass, or false if none is loaded.
func (l *Layer) ChunkAt(worldPos mgl32.Vec2) (*Chunk, bool) {
	idx := geom.ChunkIndexAt(worldPos, l.chunkSize)
	return l.reg.LatestByIndex(idx)
}

// Sample locates the chunk covering worldPos and bilinearly samples
// its field. Returns a MissingChunkError if no chunk is loaded there
// yet.
func (l *Layer) Sample(worldPos mgl32.Vec2) (float64, error) {
	chunk, ok := l.ChunkAt(worldPos)
	if !ok {
		return 0, engerr.NewMissingChunkError(l.name)
	}
	return chunk.Field.Sample(worldPos), nil
}

// SampleWithGradient locates the chunk covering worldPos and returns
// its height plus a finite-difference gradient estimated with step
// eps.
func (l *Layer) SampleWithGradient(worldPos mgl32.Vec2, eps float32) (float64, mgl32.Vec2, error) {
	chunk, ok := l.ChunkAt(worldPos)
	if !ok {
		return 0, mgl32.Vec2{}, engerr.NewMissingChunkError(l.name)
	}
	h, grad := chunk.Field.SampleWithGradient(worldPos, eps)
	return h, grad, nil
}

// SampleRow samples count evenly-spaced points along the world-space
// segment from start to end without re-locating the owning chunk per
// point. The whole segment must lie within one loaded chunk; the
// road layer's scanline fill is the caller.
func (l *Layer) SampleRow(start, end mgl32.Vec2, count int) ([]float64, error) {
	chunk, ok := l.ChunkAt(start)
	if !ok {
		return nil, engerr.NewMissingChunkError(l.name)
	}
	return chunk.Field.SampleRow(start, end, count), nil
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

// LoadedCount reports how many height chunks are currently loaded.
func (l *Layer) LoadedCount() int { return l.reg.Len() }

// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
func (l *Layer) LoadedKeys() []geom.ChunkKey { return l.reg.LoadedKeys() }
