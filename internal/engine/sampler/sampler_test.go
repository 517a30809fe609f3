package sampler

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/geom"
)

func gradientField() *BilinearField {
	// data[y][x] = x + 4y over the unit world rect.
	f := NewBilinearField(4, geom.Rect{Min: mgl32.Vec2{0, 0}, Max: mgl32.Vec2{1, 1}})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			f.Set(x, y, float64(x+4*y))
		}
	}
	return f
}

func TestSampleCornersAndCenter(t *testing.T) {
	f := gradientField()
	tests := []struct {
		name string
		p    mgl32.Vec2
		want float64
	}{
		{"min corner", mgl32.Vec2{0, 0}, 0},
		{"max corner", mgl32.Vec2{1, 1}, 15},
		{"center", mgl32.Vec2{0.5, 0.5}, 7.5},
		{"x corner", mgl32.Vec2{1, 0}, 3},
		{"y corner", mgl32.Vec2{0, 1}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Sample(tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Sample(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestSampleClampsOutsideRect(t *testing.T) {
	f := gradientField()
	if got := f.Sample(mgl32.Vec2{-5, -5}); got != 0 {
		t.Errorf("sample below min = %v, want clamped corner 0", got)
	}
	if got := f.Sample(mgl32.Vec2{5, 5}); got != 15 {
		t.Errorf("sample above max = %v, want clamped corner 15", got)
	}
}

func TestSampleIsContinuousAcrossPixels(t *testing.T) {
	f := gradientField()
	prev := f.Sample(mgl32.Vec2{0, 0.25})
	for x := float32(0.01); x <= 1; x += 0.01 {
		cur := f.Sample(mgl32.Vec2{x, 0.25})
		if cur < prev-1e-6 {
			t.Fatalf("sampling not monotone along a monotone row at x=%v: %v -> %v", x, prev, cur)
		}
		prev = cur
	}
}

func TestSampleWithGradient(t *testing.T) {
	f := gradientField()
	h, grad := f.SampleWithGradient(mgl32.Vec2{0.4, 0.4}, 0.05)
	if math.Abs(h-f.Sample(mgl32.Vec2{0.4, 0.4})) > 1e-9 {
		t.Errorf("gradient sample height %v disagrees with Sample", h)
	}
	// The field rises 3 per world unit in x and 12 per world unit in y.
	if math.Abs(float64(grad[0])-3) > 1e-3 {
		t.Errorf("grad x = %v, want 3", grad[0])
	}
	if math.Abs(float64(grad[1])-12) > 1e-3 {
		t.Errorf("grad y = %v, want 12", grad[1])
	}
}

func TestSampleRowMatchesPointSamples(t *testing.T) {
	f := gradientField()
	start := mgl32.Vec2{0, 0.5}
	end := mgl32.Vec2{1, 0.5}
	row := f.SampleRow(start, end, 7)
	if len(row) != 7 {
		t.Fatalf("row length = %d", len(row))
	}
	for i, got := range row {
		tt := float32(i) / 6
		want := f.Sample(mgl32.Vec2{start[0] + (end[0]-start[0])*tt, 0.5})
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("row[%d] = %v, want %v", i, got, want)
		}
	}

	if got := f.SampleRow(start, end, 1); len(got) != 1 || got[0] != f.Sample(start) {
		t.Errorf("single-sample row = %v", got)
	}
	if got := f.SampleRow(start, end, 0); got != nil {
		t.Errorf("zero-count row = %v, want nil", got)
	}
}

func TestSinglePixelField(t *testing.T) {
	f := NewBilinearField(1, geom.Rect{Min: mgl32.Vec2{0, 0}, Max: mgl32.Vec2{10, 10}})
	f.Set(0, 0, 42)
	for _, p := range []mgl32.Vec2{{0, 0}, {5, 5}, {10, 10}} {
		if got := f.Sample(p); got != 42 {
			t.Errorf("Sample(%v) = %v, want 42", p, got)
		}
	}
}
