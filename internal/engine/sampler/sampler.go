// Package sampler provides the world-bounded bilinear scalar field:
// a D×D grid of floats mapped onto a world rectangle with the extreme
// pixels on the rectangle's edges, read back with border-clamped
// bilinear interpolation. It is
// the common read surface between layers: the heightmap layer builds
// one per chunk and the road layer samples it per pixel.
package sampler

import (
	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/geom"
)

// BilinearField is a D×D grid of float64 samples covering Rect in
// world space.
type BilinearField struct {
	dimension int
	rect      geom.Rect
	data      []float64 // row-major, data[y*dimension+x]
}

// NewBilinearField allocates a zero-filled field of the given
// dimension over rect.
func NewBilinearField(dimension int, rect geom.Rect) *BilinearField {
	return &BilinearField{
		dimension: dimension,
		rect:      rect,
		data:      make([]float64, dimension*dimension),
	}
}

// Dimension returns D.
func (f *BilinearField) Dimension() int { return f.dimension }

// Rect returns the world rectangle this field covers.
func (f *BilinearField) Rect() geom.Rect { return f.rect }

// Set stores value at grid cell (x, y).
func (f *BilinearField) Set(x, y int, value float64) {
	f.data[y*f.dimension+x] = value
}

// At returns the raw grid value at cell (x, y), no interpolation.
func (f *BilinearField) At(x, y int) float64 {
	return f.data[y*f.dimension+x]
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pixelCoords maps a world position into this field's pixel space,
// with no half-pixel offset: normalized into [0,1]² by rect, then scaled
// by (D-1) so the grid's extreme pixels sit exactly at the world
// rect's corners while everything in between interpolates smoothly.
func (f *BilinearField) pixelCoords(worldPos mgl32.Vec2) (px, py float64) {
	w, h := f.rect.Width(), f.rect.Height()
	nx := float64((worldPos[0] - f.rect.Min[0]) / w)
	ny := float64((worldPos[1] - f.rect.Min[1]) / h)
	nx = clampf(nx, 0, 1)
	ny = clampf(ny, 0, 1)
	scale := float64(f.dimension - 1)
	if f.dimension <= 1 {
		scale = 0
	}
	return nx * scale, ny * scale
}

// Sample bilinearly interpolates the field at worldPos, clamping to
// the border rather than extrapolating or wrapping: sampling at a
// world-rect corner returns that corner's pixel value exactly.
func (f *BilinearField) Sample(worldPos mgl32.Vec2) float64 {
	px, py := f.pixelCoords(worldPos)
	return f.sampleAtPixel(px, py)
}

func (f *BilinearField) sampleAtPixel(px, py float64) float64 {
	x0 := clampi(int(px), 0, f.dimension-1)
	y0 := clampi(int(py), 0, f.dimension-1)
	x1 := clampi(x0+1, 0, f.dimension-1)
	y1 := clampi(y0+1, 0, f.dimension-1)
	fx := px - float64(x0)
	fy := py - float64(y0)

	v00 := f.At(x0, y0)
	v10 := f.At(x1, y0)
	v01 := f.At(x0, y1)
	v11 := f.At(x1, y1)

	i0 := v00 + (v10-v00)*fx
	i1 := v01 + (v11-v01)*fx
	return i0 + (i1-i0)*fy
}

// SampleWithGradient returns the field's value at worldPos and a
// forward-difference gradient, each component estimated by stepping
// eps world units along that axis: (h(p+εx̂)-h(p))/ε, (h(p+εŷ)-h(p))/ε.
func (f *BilinearField) SampleWithGradient(worldPos mgl32.Vec2, eps float32) (float64, mgl32.Vec2) {
	h := f.Sample(worldPos)
	hx := f.Sample(mgl32.Vec2{worldPos[0] + eps, worldPos[1]})
	hy := f.Sample(mgl32.Vec2{worldPos[0], worldPos[1] + eps})
	grad := mgl32.Vec2{
		float32((hx - h)) / eps,
		float32((hy - h)) / eps,
	}
	return h, grad
}

// SampleRow samples count evenly-spaced points along the world-space
// segment from start to end, inclusive of both ends, for callers
// that rasterize a scanline at a time.
func (f *BilinearField) SampleRow(start, end mgl32.Vec2, count int) []float64 {
	if count <= 0 {
		return nil
	}
	out := make([]float64, count)
	if count == 1 {
		out[0] = f.Sample(start)
		return out
	}
	for i := 0; i < count; i++ {
		t := float32(i) / float32(count-1)
		p := mgl32.Vec2{
			start[0] + (end[0]-start[0])*t,
			start[1] + (end[1]-start[1])*t,
		}
		out[i] = f.Sample(p)
	}
	return out
}
