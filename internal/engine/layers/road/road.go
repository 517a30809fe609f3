// Package road implements the road / derived-texture layer: a
// per-chunk image sampled from the parent heightmap and uploaded
// into a bounded texture-array slot, one pool per LOD band. A chunk
// that cannot acquire a slot skips its store task entirely and is
// retried the next tick once demand re-propagates.
package road

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/hostapi"
	"worldforge/internal/engine/layers/heightmap"
	"worldforge/internal/engine/registry"
	"worldforge/internal/engine/sampler"
	"worldforge/internal/engine/taskgraph"
	"worldforge/internal/engine/texturepool"
)

// Chunk holds one LOD band's derived artifacts: a CPU-side bilinear
// field queryable through Sample, and the pool handle its GPU texture
// was uploaded under. Unload releases the handle.
type Chunk struct {
	key    geom.ChunkKey
	bounds geom.Rect
	field  *sampler.BilinearField
	handle *texturepool.Handle
}

func (c *Chunk) Key() geom.ChunkKey { return c.key }
func (c *Chunk) Bounds() geom.Rect  { return c.bounds }

// Unload releases the chunk's texture-pool handle, if it has one.
func (c *Chunk) Unload() {
	if c.handle != nil {
		c.handle.Release()
	}
}

// Slot returns the texture-array layer index this chunk's image lives
// in, for the terrain layer's per-instance shader parameters.
func (c *Chunk) Slot() int { return c.handle.Slot() }

// Field returns the chunk's CPU-side bilinear field.
func (c *Chunk) Field() *sampler.BilinearField { return c.field }

// Layer produces Chunks on the same grid as its parent heightmap
// layer, one texture-slot pool per LOD band. fieldDimension sizes the
// CPU-side bilinear field; textureDimension sizes every pool's GPU
// images.
type Layer struct {
	name       string
	chunkSize  float32
	parent     *heightmap.Layer
	pools      []*texturepool.Pool // indexed by LOD
	fieldDim   int
	textureDim int
	reg        *registry.Registry[*Chunk]
}

// New returns a road layer reading from parent, with one pool per LOD
// band built from capacities (len(capacities) fixes the layer's LOD
// count).
func New(name string, renderer hostapi.Renderer, parent *heightmap.Layer, fieldDimension, textureDimension int, capacities []int) (*Layer, error) {
	pools := make([]*texturepool.Pool, len(capacities))
	for lod, cap := range capacities {
		pool, err := texturepool.New(name+":lod"+strconv.Itoa(lod), renderer, cap, textureDimension, hostapi.TextureFormatR32F)
		if err != nil {
			return nil, err
		}
		pools[lod] = pool
	}
	return &Layer{
		name:       name,
		chunkSize:  parent.ChunkSize(),
		parent:     parent,
		pools:      pools,
		fieldDim:   fieldDimension,
		textureDim: textureDimension,
		reg:        registry.New[*Chunk](),
	}, nil
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

// ClampLOD clamps a schedule-derived LOD into this layer's configured
// pool count, since road genuinely varies its artifact by LOD band.
func (l *Layer) ClampLOD(scheduleLOD int) int {
	if scheduleLOD < 0 {
		return 0
	}
	if scheduleLOD >= len(l.pools) {
		return len(l.pools) - 1
	}
	return scheduleLOD
}

// Registry exposes the road registry for the terrain layer's
// finalization pass to locate a tile's reference road chunk.
func (l *Layer) Registry() *registry.Registry[*Chunk] { return l.reg }

// Pool returns the LOD band's backing texture-array pool, for the
// terrain layer's per-instance shader parameter wiring.
func (l *Layer) Pool(lod int) *texturepool.Pool { return l.pools[lod] }

func (l *Layer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID {
	bounds := l.Bounds(idx)
	fieldDim, textureDim := l.fieldDim, l.textureDim
	parent := l.parent
	pool := l.pools[lod]

	key := geom.ChunkKey{Index: idx, LOD: lod}
	buildID := taskgraph.TaskID(l.name + ":build:" + key.String())
	var chunk *Chunk
	var skip bool
	g.AddTask(buildID, func(ctx context.Context) error {
		chunk, skip = build(idx, lod, bounds, fieldDim, textureDim, parent, pool)
		return nil
	}, parentDeps...)

	storeID := taskgraph.TaskID(l.name + ":store:" + key.String())
	g.AddTask(storeID, func(ctx context.Context) error {
		if skip {
			return nil
		}
		l.reg.Insert(chunk)
		return nil
	}, buildID)
	return storeID
}

// fillFromParent rasterizes the parent heightmap across bounds into a
// dimension x dimension scanline raster. A row whose parent chunk is
// not loaded stays zero; the scheduler stores parents before children
// build, so that only fires on a misconfigured graph, and build must
// not panic over it.
func fillFromParent(bounds geom.Rect, dimension int, parent *heightmap.Layer) []float32 {
	pixels := make([]float32, dimension*dimension)
	step := bounds.Width() / float32(dimension)
	for y := 0; y < dimension; y++ {
		worldZ := bounds.Min[1] + (float32(y)+0.5)*step
		rowStart := mgl32.Vec2{bounds.Min[0] + 0.5*step, worldZ}
		rowEnd := mgl32.Vec2{bounds.Max[0] - 0.5*step, worldZ}
		row, err := parent.SampleRow(rowStart, rowEnd, dimension)
		if err != nil {
			continue
		}
		for x, v := range row {
			pixels[y*dimension+x] = float32(v)
		}
	}
	return pixels
}

// build rasterizes the parent heightmap twice — once into the chunk's
// CPU-side field, once into the GPU image uploaded via a freshly
// acquired pool handle. On an exhausted pool it reports (nil, true):
// the caller must skip the store task, not fail the tick.
func build(idx geom.ChunkIndex, lod int, bounds geom.Rect, fieldDim, textureDim int, parent *heightmap.Layer, pool *texturepool.Pool) (*Chunk, bool) {
	handle, err := pool.Acquire()
	if err != nil {
		return nil, true
	}

	field := sampler.NewBilinearField(fieldDim, bounds)
	fieldPixels := fillFromParent(bounds, fieldDim, parent)
	for y := 0; y < fieldDim; y++ {
		for x := 0; x < fieldDim; x++ {
			field.Set(x, y, float64(fieldPixels[y*fieldDim+x]))
		}
	}

	texturePixels := fillFromParent(bounds, textureDim, parent)
	if err := pool.Upload(handle, encodeR32F(texturePixels)); err != nil {
		handle.Release()
		engerr.AssertionFailed("road: upload to acquired slot failed: %v", err)
	}

	return &Chunk{
		key:    geom.ChunkKey{Index: idx, LOD: lod},
		bounds: bounds,
		field:  field,
		handle: handle,
	}, false
}

// encodeR32F packs pixels as little-endian float32, the TextureFormatR32F
// wire layout hostapi.Renderer.UpdateTextureLayer expects.
func encodeR32F(pixels []float32) []byte {
	buf := make([]byte, 4*len(pixels))
	for i, p := range pixels {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(p))
	}
	return buf
}

func (l *Layer) Finalize(ctx context.Context) {}

func (l *Layer) CleanupPass(totalRegion geom.Rect, lodFor func(mgl32.Vec2) int) int {
	var toUnload []geom.ChunkKey
	for _, chunk := range l.reg.All() {
		desired := l.ClampLOD(lodFor(chunk.bounds.Center()))
		if !chunk.bounds.Intersects(totalRegion) || chunk.key.LOD != desired {
			toUnload = append(toUnload, chunk.key)
		}
	}
	if len(toUnload) > 0 {
		l.reg.Unload(toUnload)
	}
	return len(toUnload)
}

// LoadedCount reports how many road chunks are currently loaded,
// across every LOD band.
func (l *Layer) LoadedCount() int { return l.reg.Len() }

// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
func (l *Layer) LoadedKeys() []geom.ChunkKey { return l.reg.LoadedKeys() }

// ChunkAt returns the loaded road chunk at idx.
func (l *Layer) ChunkAt(idx geom.ChunkIndex) (*Chunk, bool) {
	return l.reg.LatestByIndex(idx)
}

// ChunkAtWorld returns the loaded road chunk covering worldPos, for
// the terrain layer's finalization pass.
func (l *Layer) ChunkAtWorld(worldPos mgl32.Vec2) (*Chunk, bool) {
	return l.reg.LatestByIndex(geom.ChunkIndexAt(worldPos, l.chunkSize))
}

// Sample reads the chunk-local bilinear field at worldPos. Returns a
// MissingChunkError if no road chunk covers the position yet.
func (l *Layer) Sample(worldPos mgl32.Vec2) (float64, error) {
	chunk, ok := l.ChunkAtWorld(worldPos)
	if !ok {
		return 0, engerr.NewMissingChunkError(l.name)
	}
	return chunk.field.Sample(worldPos), nil
}
