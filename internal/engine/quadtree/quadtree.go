// Package quadtree provides the adaptive quad-tree the terrain layer
// subdivides its chunks with: reference-point-driven subdivision,
// greater-or-equal neighbor finding, balancing, and per-leaf
// neighbor-LOD reporting for T-junction mesh selection.
//
// Nodes live in a flat slice (an arena) and every link — parent,
// children, neighbor results — is a NodeId index rather than a
// pointer, so the tree can be reset and regrown in place without a
// web of back-pointers.
//
// Child order is fixed to NW, NE, SE, SW (index 0..3); the sibling,
// mirror, and edge tables below are all derived from that one
// ordering so the direction frame and the child frame can never
// disagree.
package quadtree

import (
	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/geom"
)

// NodeId indexes into a QuadTree's node arena. -1 denotes "no node".
type NodeId int32

const noNode NodeId = -1

// Direction names one of the four cardinal edges a leaf can neighbor
// across.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

// Directions lists all four cardinal directions, in the fixed order
// used by LeafInfo.NeighborLODs.
var Directions = [4]Direction{North, South, East, West}

const (
	childNW = 0
	childNE = 1
	childSE = 2
	childSW = 3
)

// Node is one arena entry: either an internal node with four children
// or a leaf. Parent is noNode for the root.
type Node struct {
	Rect     geom.Rect
	LOD      int
	Parent   NodeId
	Children [4]NodeId
	Leaf     bool
}

// LodCurve maps a normalized [0,1] proximity ratio to a distance
// scale. Must be monotone; supplied as engine configuration.
type LodCurve func(float32) float32

// LeafInfo is the finalization-facing summary of one leaf: its
// rectangle, its LOD, and a representative neighbor LOD per direction
// (-1 if no neighbor exists on that side).
type LeafInfo struct {
	Rect         geom.Rect
	LOD          int
	NeighborLODs [4]int
}

// QuadTree is an arena of Nodes rooted at a fixed rectangle, regrown
// in place each time InsertReference is called after Reset.
type QuadTree struct {
	nodes    []Node
	root     NodeId
	rootSide float32
	maxLods  int
	curve    LodCurve
}

// New creates a QuadTree over root, with the given maximum LOD depth
// and LOD distance curve. maxLods <= 0 produces a tree that never
// subdivides: a single root leaf for any reference point.
func New(root geom.Rect, maxLods int, curve LodCurve) *QuadTree {
	t := &QuadTree{
		rootSide: root.Width(),
		maxLods:  maxLods,
		curve:    curve,
	}
	t.Reset(root)
	return t
}

// Reset discards all nodes and reinitializes the tree as a single
// root leaf over rect.
func (t *QuadTree) Reset(rect geom.Rect) {
	t.rootSide = rect.Width()
	t.nodes = t.nodes[:0]
	t.nodes = append(t.nodes, Node{Rect: rect, LOD: 0, Parent: noNode, Leaf: true})
	t.root = 0
}

// lodDistance is the subdivision threshold for a node at the given
// LOD: half the root side scaled by the curve sampled at the node's
// remaining-depth ratio. At the deepest level the ratio is 0, so an
// identity curve stops subdividing everywhere except exactly at a
// node's center.
func (t *QuadTree) lodDistance(lod int) float32 {
	var ratio float32
	if t.maxLods > 1 {
		ratio = 1 - float32(lod)/float32(t.maxLods-1)
	}
	return 0.5 * t.rootSide * t.curve(ratio)
}

// chebDistance is the max-norm distance between two points. Square
// LOD bands around the reference align with the square node grid, so
// a node whose center the reference sits on keeps subdividing all the
// way down instead of stalling on a corner-diagonal that a Euclidean
// band would exclude.
func chebDistance(a, b mgl32.Vec2) float32 {
	dx := a[0] - b[0]
	if dx < 0 {
		dx = -dx
	}
	dz := a[1] - b[1]
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// InsertReference walks the tree from the root, subdividing any leaf
// whose center lies within lodDistance(leaf.LOD) of point and whose
// LOD has not yet reached maxLods, recursing into newly created
// children.
func (t *QuadTree) InsertReference(point mgl32.Vec2) {
	t.insertAt(t.root, point)
}

func (t *QuadTree) insertAt(id NodeId, point mgl32.Vec2) {
	if t.nodes[id].Leaf {
		node := t.nodes[id]
		if node.LOD < t.maxLods && chebDistance(node.Rect.Center(), point) <= t.lodDistance(node.LOD) {
			t.subdivide(id)
		} else {
			return
		}
	}
	for _, c := range t.nodes[id].Children {
		t.insertAt(c, point)
	}
}

// Subdivide splits leaf id into four NW/NE/SE/SW children at LOD+1.
// Splitting a node already at maxLods is a programmer error.
func (t *QuadTree) Subdivide(id NodeId) {
	if t.nodes[id].LOD >= t.maxLods {
		panic("quadtree: subdividing a leaf already at max depth")
	}
	t.subdivide(id)
}

func (t *QuadTree) subdivide(id NodeId) {
	node := t.nodes[id]
	mid := node.Rect.Center()
	rects := [4]geom.Rect{
		childNW: {Min: mgl32.Vec2{node.Rect.Min[0], node.Rect.Min[1]}, Max: mgl32.Vec2{mid[0], mid[1]}},
		childNE: {Min: mgl32.Vec2{mid[0], node.Rect.Min[1]}, Max: mgl32.Vec2{node.Rect.Max[0], mid[1]}},
		childSE: {Min: mgl32.Vec2{mid[0], mid[1]}, Max: mgl32.Vec2{node.Rect.Max[0], node.Rect.Max[1]}},
		childSW: {Min: mgl32.Vec2{node.Rect.Min[0], mid[1]}, Max: mgl32.Vec2{mid[0], node.Rect.Max[1]}},
	}
	var children [4]NodeId
	for i, r := range rects {
		children[i] = NodeId(len(t.nodes))
		t.nodes = append(t.nodes, Node{Rect: r, LOD: node.LOD + 1, Parent: id, Leaf: true})
	}
	node.Leaf = false
	node.Children = children
	t.nodes[id] = node
}

func (t *QuadTree) childIndexOf(parent, child NodeId) int {
	for i, c := range t.nodes[parent].Children {
		if c == child {
			return i
		}
	}
	panic("quadtree: child not found under parent")
}

// siblingInDir[dir][childIdx] gives the sibling index sharing an edge
// with childIdx in direction dir within the same parent, or -1 if
// childIdx is already on that edge of the parent (climb required).
var siblingInDir = [4][4]int{
	North: {childNW: -1, childNE: -1, childSE: childNE, childSW: childNW},
	South: {childNW: childSW, childNE: childSE, childSE: -1, childSW: -1},
	East:  {childNW: childNE, childNE: -1, childSE: -1, childSW: childSE},
	West:  {childNW: -1, childNE: childNW, childSE: childSW, childSW: -1},
}

// mirrorInDir[dir][childIdx] gives, once a same-or-larger neighbor has
// been found by climbing in direction dir, which of that neighbor's
// children sits directly across the shared edge from the original
// child at childIdx.
var mirrorInDir = [4][4]int{
	North: {childNW: childSW, childNE: childSE, childSE: 0, childSW: 0},
	South: {childNW: 0, childNE: 0, childSE: childNE, childSW: childNW},
	East:  {childNW: 0, childNE: childNW, childSE: childSW, childSW: 0},
	West:  {childNW: childNE, childNE: 0, childSE: 0, childSW: childSE},
}

// edgeChildrenFacing[dir] lists the two children of a neighbor node
// (found across direction dir) that touch the shared edge, used to
// collect every leaf along that edge once the neighbor subtree is
// finer than the original node.
var edgeChildrenFacing = [4][2]int{
	North: {childSW, childSE},
	South: {childNW, childNE},
	East:  {childNW, childSW},
	West:  {childNE, childSE},
}

// geNeighbor finds the greater-or-equal-sized neighbor of id across
// dir: the smallest node, at or above id's own size, whose region is
// adjacent to id on that side. Climb until the current node has a
// sibling toward dir, take it; otherwise keep climbing and mirror
// back down one step on the way out.
func (t *QuadTree) geNeighbor(id NodeId, dir Direction) (NodeId, bool) {
	node := t.nodes[id]
	if node.Parent == noNode {
		return noNode, false
	}
	childIdx := t.childIndexOf(node.Parent, id)
	if sib := siblingInDir[dir][childIdx]; sib != -1 {
		return t.nodes[node.Parent].Children[sib], true
	}
	parentNeighbor, ok := t.geNeighbor(node.Parent, dir)
	if !ok {
		return noNode, false
	}
	if t.nodes[parentNeighbor].Leaf {
		return parentNeighbor, true
	}
	mirrored := mirrorInDir[dir][childIdx]
	return t.nodes[parentNeighbor].Children[mirrored], true
}

// Neighbors returns every leaf edge-adjacent to id across dir: the
// greater-or-equal neighbor if it is a leaf, otherwise every leaf of
// its subtree touching the shared edge.
func (t *QuadTree) Neighbors(id NodeId, dir Direction) []NodeId {
	ge, ok := t.geNeighbor(id, dir)
	if !ok {
		return nil
	}
	if t.nodes[ge].Leaf {
		return []NodeId{ge}
	}
	var out []NodeId
	t.collectEdgeLeaves(ge, dir, &out)
	return out
}

func (t *QuadTree) collectEdgeLeaves(id NodeId, dir Direction, out *[]NodeId) {
	node := t.nodes[id]
	if node.Leaf {
		*out = append(*out, id)
		return
	}
	for _, c := range edgeChildrenFacing[dir] {
		t.collectEdgeLeaves(node.Children[c], dir, out)
	}
}

// Leaves returns every current leaf's NodeId, in arena order.
func (t *QuadTree) Leaves() []NodeId {
	var out []NodeId
	for i, n := range t.nodes {
		if n.Leaf {
			out = append(out, NodeId(i))
		}
	}
	return out
}

// Node returns the node stored at id.
func (t *QuadTree) Node(id NodeId) Node { return t.nodes[id] }

// NeighborsAt returns the leaf containing point and its edge-adjacent
// leaves per direction.
func (t *QuadTree) NeighborsAt(point mgl32.Vec2) (NodeId, [4][]NodeId, bool) {
	id := t.root
	if !t.nodes[id].Rect.Contains(point) {
		return noNode, [4][]NodeId{}, false
	}
	for !t.nodes[id].Leaf {
		for _, c := range t.nodes[id].Children {
			if t.nodes[c].Rect.Contains(point) {
				id = c
				break
			}
		}
	}
	var nbs [4][]NodeId
	for _, dir := range Directions {
		nbs[dir] = t.Neighbors(id, dir)
	}
	return id, nbs, true
}

// Balance repeatedly scans leaves and subdivides whichever side of an
// over-steep LOD step is coarser, until every pair of edge-adjacent
// leaves differs by at most one LOD level. Terminates because
// subdivision only refines and depth is bounded by maxLods.
func (t *QuadTree) Balance() {
	for {
		progressed := false
		for _, id := range t.Leaves() {
			if !t.nodes[id].Leaf {
				continue
			}
			lod := t.nodes[id].LOD
		dirs:
			for _, dir := range Directions {
				for _, nb := range t.Neighbors(id, dir) {
					if !t.nodes[nb].Leaf {
						continue
					}
					switch {
					case lod-t.nodes[nb].LOD > 1:
						t.subdivide(nb)
						progressed = true
					case t.nodes[nb].LOD-lod > 1:
						t.subdivide(id)
						progressed = true
						break dirs
					}
				}
			}
		}
		if !progressed {
			return
		}
	}
}

// LeafInfo returns, for every current leaf, its rectangle, LOD, and a
// representative neighbor LOD in each of the four directions (-1 if
// no neighbor exists on that side).
func (t *QuadTree) LeafInfo() []LeafInfo {
	leaves := t.Leaves()
	out := make([]LeafInfo, 0, len(leaves))
	for _, id := range leaves {
		node := t.nodes[id]
		var nlods [4]int
		for _, dir := range Directions {
			nbs := t.Neighbors(id, dir)
			if len(nbs) == 0 {
				nlods[dir] = -1
			} else {
				nlods[dir] = t.nodes[nbs[0]].LOD
			}
		}
		out = append(out, LeafInfo{Rect: node.Rect, LOD: node.LOD, NeighborLODs: nlods})
	}
	return out
}
