// Package geom holds the small shared value types every layer and
// component in the engine builds on: chunk coordinates and the
// axis-aligned world-space rectangle a chunk owns.
package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkIndex is a 2D integer coordinate in a layer's uniform grid.
// Different layers use different cell sizes, so an index is only
// meaningful paired with the layer (or chunk side length) it came from.
type ChunkIndex struct {
	X, Z int32
}

// ChunkKey uniquely identifies a chunk artifact within one layer.
type ChunkKey struct {
	Index ChunkIndex
	LOD   int
}

// String renders idx as "x,z", used to build readable taskgraph.TaskIDs.
func (idx ChunkIndex) String() string {
	return fmt.Sprintf("%d,%d", idx.X, idx.Z)
}

// String renders k as "x,z@lod".
func (k ChunkKey) String() string {
	return fmt.Sprintf("%s@%d", k.Index, k.LOD)
}

// Less gives ChunkKey a total order: by X, then Z, then LOD. Used to
// keep registry iteration and cleanup sweeps deterministic.
func (k ChunkKey) Less(other ChunkKey) bool {
	if k.Index.X != other.Index.X {
		return k.Index.X < other.Index.X
	}
	if k.Index.Z != other.Index.Z {
		return k.Index.Z < other.Index.Z
	}
	return k.LOD < other.LOD
}

// Rect is an axis-aligned world-space rectangle, inclusive of Min and
// exclusive of Max on both axes.
type Rect struct {
	Min, Max mgl32.Vec2
}

// RectFromChunk returns the exact bounds of ChunkIndex idx in a grid
// of the given side length:
// idx*chunkSize .. idx*chunkSize+chunkSize on both axes.
func RectFromChunk(idx ChunkIndex, chunkSize float32) Rect {
	minX := float32(idx.X) * chunkSize
	minZ := float32(idx.Z) * chunkSize
	return Rect{
		Min: mgl32.Vec2{minX, minZ},
		Max: mgl32.Vec2{minX + chunkSize, minZ + chunkSize},
	}
}

// ChunkIndexAt returns the index of the chunk of the given side length
// that contains world position p.
func ChunkIndexAt(p mgl32.Vec2, chunkSize float32) ChunkIndex {
	return ChunkIndex{
		X: int32(floorDiv(p[0], chunkSize)),
		Z: int32(floorDiv(p[1], chunkSize)),
	}
}

func floorDiv(a, b float32) float32 {
	q := a / b
	fq := float32(int32(q))
	if fq > q {
		fq--
	}
	return fq
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() mgl32.Vec2 {
	return mgl32.Vec2{(r.Min[0] + r.Max[0]) / 2, (r.Min[1] + r.Max[1]) / 2}
}

// Width returns Max.X - Min.X.
func (r Rect) Width() float32 { return r.Max[0] - r.Min[0] }

// Height returns Max.Z - Min.Z (the rectangle's Z extent).
func (r Rect) Height() float32 { return r.Max[1] - r.Min[1] }

// Grow returns r expanded by pad on all four sides.
func (r Rect) Grow(pad float32) Rect {
	return Rect{
		Min: mgl32.Vec2{r.Min[0] - pad, r.Min[1] - pad},
		Max: mgl32.Vec2{r.Max[0] + pad, r.Max[1] + pad},
	}
}

// Intersects reports whether r and other share any area.
func (r Rect) Intersects(other Rect) bool {
	if r.Max[0] <= other.Min[0] || other.Max[0] <= r.Min[0] {
		return false
	}
	if r.Max[1] <= other.Min[1] || other.Max[1] <= r.Min[1] {
		return false
	}
	return true
}

// Contains reports whether p lies within r (Min inclusive, Max exclusive).
func (r Rect) Contains(p mgl32.Vec2) bool {
	return p[0] >= r.Min[0] && p[0] < r.Max[0] && p[1] >= r.Min[1] && p[1] < r.Max[1]
}

// Union returns the smallest rectangle containing both r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		Min: mgl32.Vec2{min32(r.Min[0], other.Min[0]), min32(r.Min[1], other.Min[1])},
		Max: mgl32.Vec2{max32(r.Max[0], other.Max[0]), max32(r.Max[1], other.Max[1])},
	}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b mgl32.Vec2) float32 {
	return a.Sub(b).Len()
}

// IndicesCoveringRect returns every ChunkIndex, in a grid of the given
// chunkSize, whose bounds intersect rect. Shared by every layer's
// IndicesForRect: each layer only differs in chunkSize and padding,
// not in how a rectangle maps onto its grid.
func IndicesCoveringRect(rect Rect, chunkSize float32) []ChunkIndex {
	minIdx := ChunkIndexAt(rect.Min, chunkSize)
	// Max is exclusive; step one unit back before indexing so a rect
	// edge exactly on a chunk boundary doesn't pull in an empty row.
	maxIdx := ChunkIndexAt(mgl32.Vec2{rect.Max[0] - 1e-3, rect.Max[1] - 1e-3}, chunkSize)
	var out []ChunkIndex
	for x := minIdx.X; x <= maxIdx.X; x++ {
		for z := minIdx.Z; z <= maxIdx.Z; z++ {
			out = append(out, ChunkIndex{X: x, Z: z})
		}
	}
	return out
}
