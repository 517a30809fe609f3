package heightmap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engconfig"
	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/layers/points"
	"worldforge/internal/engine/layers/triangulation"
	"worldforge/internal/engine/taskgraph"
)

func runGraph(t *testing.T, g *taskgraph.Graph) {
	t.Helper()
	f := taskgraph.NewExecutor(4).Launch(context.Background(), g)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if finished, err := f.Poll(); finished {
			if err != nil {
				t.Fatalf("graph error: %v", err)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("graph did not finish")
}

func testSettings() *engconfig.BiomeGeneratorSettings {
	return &engconfig.BiomeGeneratorSettings{Biomes: []engconfig.Biome{
		{Name: "low", SelectorMin: mgl32.Vec2{0, 0}, SelectorMax: mgl32.Vec2{1, 0.5}, ReferenceHeight: 0, HeightMultiplier: 5, NoiseSeed: 3},
		{Name: "high", SelectorMin: mgl32.Vec2{0, 0.5}, SelectorMax: mgl32.Vec2{1, 1.001}, ReferenceHeight: 40, HeightMultiplier: 20, NoiseSeed: 5},
	}}
}

// buildHeightmap builds the points and triangulation chunks one
// heightmap chunk depends on, then the heightmap chunk itself.
func buildHeightmap(t *testing.T, idx geom.ChunkIndex) *Layer {
	t.Helper()
	pts := points.New("points", 512, 3, 11)
	tri := triangulation.New("tri", pts, testSettings(), 21, 22)
	hm := New("height", 256, 64, 16, tri)

	g := taskgraph.NewGraph()
	hmBounds := hm.Bounds(idx).Grow(hm.Padding())

	var triDeps []taskgraph.TaskID
	seenPts := map[geom.ChunkIndex]taskgraph.TaskID{}
	for _, tIdx := range tri.IndicesForRect(hmBounds) {
		collect := tri.Bounds(tIdx).Grow(tri.Padding() * 2)
		var deps []taskgraph.TaskID
		for _, pIdx := range pts.IndicesForRect(collect) {
			id, ok := seenPts[pIdx]
			if !ok {
				id = pts.EnqueueBuild(g, pIdx, 0, nil)
				seenPts[pIdx] = id
			}
			deps = append(deps, id)
		}
		triDeps = append(triDeps, tri.EnqueueBuild(g, tIdx, 0, deps))
	}
	hm.EnqueueBuild(g, idx, 0, triDeps)
	runGraph(t, g)
	return hm
}

func TestBuildBlendsWithinBiomeRange(t *testing.T) {
	idx := geom.ChunkIndex{X: 0, Z: 0}
	hm := buildHeightmap(t, idx)

	chunk, ok := hm.Registry().LatestByIndex(idx)
	if !ok {
		t.Fatal("heightmap chunk not stored")
	}
	if chunk.Field.Dimension() != 16 {
		t.Fatalf("field dimension = %d, want 16", chunk.Field.Dimension())
	}
	// Squared-barycentric blending is a convex combination of per-biome
	// heights, so every pixel stays inside the extreme biome range.
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := chunk.Field.At(x, y)
			if v < 0 || v > 60 {
				t.Fatalf("pixel (%d,%d) = %v outside the configured biome range [0,60]", x, y, v)
			}
		}
	}
}

func TestSampleQueries(t *testing.T) {
	idx := geom.ChunkIndex{X: 0, Z: 0}
	hm := buildHeightmap(t, idx)

	p := mgl32.Vec2{128, 128}
	h, err := hm.Sample(p)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	h2, grad, err := hm.SampleWithGradient(p, 1)
	if err != nil {
		t.Fatalf("SampleWithGradient: %v", err)
	}
	if h2 != h {
		t.Errorf("gradient height %v disagrees with Sample %v", h2, h)
	}
	_ = grad

	row, err := hm.SampleRow(mgl32.Vec2{10, 128}, mgl32.Vec2{200, 128}, 8)
	if err != nil {
		t.Fatalf("SampleRow: %v", err)
	}
	if len(row) != 8 {
		t.Fatalf("row length = %d", len(row))
	}
	for i, v := range row {
		tt := float32(i) / 7
		want, err := hm.Sample(mgl32.Vec2{10 + 190*tt, 128})
		if err != nil {
			t.Fatalf("Sample along row: %v", err)
		}
		if v != want {
			t.Errorf("row[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestSampleMissingChunk(t *testing.T) {
	idx := geom.ChunkIndex{X: 0, Z: 0}
	hm := buildHeightmap(t, idx)

	if _, err := hm.Sample(mgl32.Vec2{-10, -10}); !errors.Is(err, engerr.ErrMissingChunk) {
		t.Errorf("Sample outside loaded chunks error = %v, want missing chunk", err)
	}
	if _, _, err := hm.SampleWithGradient(mgl32.Vec2{5000, 5000}, 1); !errors.Is(err, engerr.ErrMissingChunk) {
		t.Errorf("SampleWithGradient error = %v, want missing chunk", err)
	}
}

func TestBuildDeterministic(t *testing.T) {
	idx := geom.ChunkIndex{X: 1, Z: 0}
	a := buildHeightmap(t, idx)
	b := buildHeightmap(t, idx)

	ca, _ := a.Registry().LatestByIndex(idx)
	cb, _ := b.Registry().LatestByIndex(idx)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if ca.Field.At(x, y) != cb.Field.At(x, y) {
				t.Fatalf("pixel (%d,%d) differs across identical builds", x, y)
			}
		}
	}
}
