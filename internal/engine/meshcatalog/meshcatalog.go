// Package meshcatalog builds on first request and caches the terrain tile meshes
// for each T-junction flag combination a quad-tree leaf can present.
// The mesh for a given (elementCount, sideLength, flags) triple is a
// pure function of its inputs, so the catalog is just a memoizing
// cache in front of that function.
package meshcatalog

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Flags is a bitset over the four cardinal edges of a terrain tile.
// A bit set for edge D means "the neighbor across D is coarser than
// this tile," so the mesh must suppress a T-junction on that edge.
type Flags uint8

const (
	FlagN Flags = 1 << iota
	FlagE
	FlagS
	FlagW
)

// Mesh is an indexed triangle mesh in a tile's local [0, sideLength]²
// space, Y held at zero. The terrain layer spawns it unchanged and
// places the instance through its "origin" instance parameter; no
// heights are written into the mesh.
type Mesh struct {
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
}

type key struct {
	elementCount int
	sideLength   float32
	flags        Flags
}

// Catalog memoizes Mesh by (elementCount, sideLength, flags). Safe
// for concurrent use by multiple chunk build tasks.
type Catalog struct {
	mu    sync.Mutex
	cache map[key]*Mesh
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{cache: make(map[key]*Mesh)}
}

// Get returns the mesh for this combination, building and caching it
// on first request.
func (c *Catalog) Get(elementCount int, sideLength float32, flags Flags) *Mesh {
	k := key{elementCount, sideLength, flags}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.cache[k]; ok {
		return m
	}
	m := build(elementCount, sideLength, flags)
	c.cache[k] = m
	return m
}

// edgeSpec describes one of a cell's four edges in fan order: the two
// corner half-coordinates it spans and its midpoint half-coordinate,
// plus which Flags bit and grid boundary row/column it applies to.
type edgeSpec struct {
	bit                Flags
	cornerA, cornerB   [2]int32 // half-grid coordinates, relative offsets within the cell
	mid                [2]int32
	onBoundary         func(i, j, elementCount int) bool
}

var edgeSpecs = [4]edgeSpec{
	{bit: FlagN, cornerA: [2]int32{0, 0}, cornerB: [2]int32{2, 0}, mid: [2]int32{1, 0},
		onBoundary: func(i, j, n int) bool { return j == 0 }},
	{bit: FlagE, cornerA: [2]int32{2, 0}, cornerB: [2]int32{2, 2}, mid: [2]int32{2, 1},
		onBoundary: func(i, j, n int) bool { return i == n-1 }},
	{bit: FlagS, cornerA: [2]int32{2, 2}, cornerB: [2]int32{0, 2}, mid: [2]int32{1, 2},
		onBoundary: func(i, j, n int) bool { return j == n-1 }},
	{bit: FlagW, cornerA: [2]int32{0, 2}, cornerB: [2]int32{0, 0}, mid: [2]int32{0, 1},
		onBoundary: func(i, j, n int) bool { return i == 0 }},
}

// build generates the mesh for an elementCount x elementCount grid of
// cells, each laid out as a 3x3 sub-node pattern (corners, edge
// midpoints, center). For each flagged edge, on cells touching that
// grid boundary, the two triangles straddling the edge's midpoint
// collapse into one triangle that omits it, matching the coarser
// neighbor's vertex set across that edge.
func build(elementCount int, sideLength float32, flags Flags) *Mesh {
	if elementCount < 1 {
		elementCount = 1
	}
	m := &Mesh{}
	verts := make(map[[2]int32]uint32)
	denom := float32(2 * elementCount)

	vertexAt := func(x2, y2 int32) uint32 {
		k := [2]int32{x2, y2}
		if idx, ok := verts[k]; ok {
			return idx
		}
		u := float32(x2) / denom
		v := float32(y2) / denom
		idx := uint32(len(m.Positions))
		m.Positions = append(m.Positions, mgl32.Vec3{u * sideLength, 0, v * sideLength})
		m.UVs = append(m.UVs, mgl32.Vec2{u, v})
		verts[k] = idx
		return idx
	}

	tri := func(a, b, c uint32) {
		m.Indices = append(m.Indices, a, b, c)
	}

	for j := 0; j < elementCount; j++ {
		for i := 0; i < elementCount; i++ {
			baseX, baseY := int32(2*i), int32(2*j)
			centerIdx := vertexAt(baseX+1, baseY+1)
			for _, es := range edgeSpecs {
				a := vertexAt(baseX+es.cornerA[0], baseY+es.cornerA[1])
				b := vertexAt(baseX+es.cornerB[0], baseY+es.cornerB[1])
				if flags&es.bit != 0 && es.onBoundary(i, j, elementCount) {
					tri(a, b, centerIdx)
					continue
				}
				mid := vertexAt(baseX+es.mid[0], baseY+es.mid[1])
				tri(a, mid, centerIdx)
				tri(mid, b, centerIdx)
			}
		}
	}
	return m
}

// UsefulFlagCombinations lists the nine T-junction flag sets the
// quad-tree's balance invariant (neighbor LOD differs by at most one
// level) can actually produce for a leaf: no coarse neighbor, each
// single edge coarse, and each pair of adjacent edges coarse. The two
// opposite-edge pairs and any three-or-four-edge combination cannot
// occur, since every non-root leaf has a sibling of its own LOD (or a
// finer subtree) across one edge of each opposite pair, and that edge
// is never flagged.
func UsefulFlagCombinations() []Flags {
	return []Flags{
		0,
		FlagN, FlagE, FlagS, FlagW,
		FlagN | FlagE, FlagE | FlagS, FlagS | FlagW, FlagW | FlagN,
	}
}
