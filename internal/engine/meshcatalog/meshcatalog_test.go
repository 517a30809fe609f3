package meshcatalog

import (
	"testing"
)

func TestUnflaggedMeshCounts(t *testing.T) {
	m := build(2, 1, 0)
	// A 2x2 cell grid on a half-step lattice has a 5x5 vertex set.
	if got := len(m.Positions); got != 25 {
		t.Errorf("vertex count = %d, want 25", got)
	}
	if len(m.UVs) != len(m.Positions) {
		t.Errorf("uv count %d != vertex count %d", len(m.UVs), len(m.Positions))
	}
	// Eight triangles per cell, four cells.
	if got := len(m.Indices); got != 4*8*3 {
		t.Errorf("index count = %d, want %d", got, 4*8*3)
	}
}

func TestFlaggedEdgeCollapsesTriangles(t *testing.T) {
	plain := build(2, 1, 0)
	stitched := build(2, 1, FlagN)
	// Each of the two north-boundary cells loses one triangle.
	if got, want := len(stitched.Indices), len(plain.Indices)-2*3; got != want {
		t.Errorf("stitched index count = %d, want %d", got, want)
	}
}

func TestFlaggedEdgeSkipsMidpoints(t *testing.T) {
	m := build(2, 1, FlagN)
	// The north-edge midpoint vertices sit at z=0, x=0.25 and x=0.75.
	// No triangle may reference them.
	banned := map[int]bool{}
	for i, p := range m.Positions {
		if p[2] == 0 && (p[0] == 0.25 || p[0] == 0.75) {
			banned[i] = true
		}
	}
	for _, idx := range m.Indices {
		if banned[int(idx)] {
			t.Fatalf("index %d references a suppressed north-edge midpoint", idx)
		}
	}
}

func TestMeshIsDeterministic(t *testing.T) {
	a := build(4, 32, FlagE|FlagS)
	b := build(4, 32, FlagE|FlagS)
	if len(a.Indices) != len(b.Indices) || len(a.Positions) != len(b.Positions) {
		t.Fatal("two builds of the same mesh differ in size")
	}
	for i := range a.Indices {
		if a.Indices[i] != b.Indices[i] {
			t.Fatalf("index %d differs", i)
		}
	}
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] {
			t.Fatalf("position %d differs", i)
		}
	}
}

func TestSideLengthScalesPositions(t *testing.T) {
	m := build(2, 64, 0)
	for _, p := range m.Positions {
		if p[0] < 0 || p[0] > 64 || p[2] < 0 || p[2] > 64 {
			t.Fatalf("position %v outside [0,64] tile", p)
		}
		if p[1] != 0 {
			t.Fatalf("position %v not flat", p)
		}
	}
	for _, uv := range m.UVs {
		if uv[0] < 0 || uv[0] > 1 || uv[1] < 0 || uv[1] > 1 {
			t.Fatalf("uv %v outside the unit square", uv)
		}
	}
}

func TestCatalogCaches(t *testing.T) {
	c := NewCatalog()
	a := c.Get(8, 100, FlagW)
	b := c.Get(8, 100, FlagW)
	if a != b {
		t.Error("catalog rebuilt a cached mesh")
	}
	if c.Get(8, 100, FlagN) == a {
		t.Error("different flags returned the same mesh")
	}
}

func TestUsefulFlagCombinations(t *testing.T) {
	combos := UsefulFlagCombinations()
	if len(combos) != 9 {
		t.Fatalf("got %d combinations, want 9", len(combos))
	}
	seen := map[Flags]bool{}
	for _, f := range combos {
		if seen[f] {
			t.Errorf("duplicate combination %b", f)
		}
		seen[f] = true
		// No combination may contain opposite edges.
		if f&(FlagN|FlagS) == FlagN|FlagS || f&(FlagE|FlagW) == FlagE|FlagW {
			t.Errorf("combination %b pairs opposite edges", f)
		}
	}
}
