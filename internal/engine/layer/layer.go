// Package layer defines the Layer contract the manager drives, the
// Graph of producer layers demand propagates through, and the
// Schedule used to turn a reference distance into a LOD level.
// Concrete layers live under internal/engine/layers/*; this package
// only knows the shape the manager needs, not any layer's internals.
package layer

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/taskgraph"
)

// Layer is the manager-facing contract every concrete layer
// (points, triangulation, heightmap, road, terrain) implements.
type Layer interface {
	// Name is this layer's unique identifier within a manager.
	Name() string
	// ChunkSize is this layer's grid cell side length, in world units.
	ChunkSize() float32
	// Padding is the extra radius this layer requires from its parents
	// around each of its chunks. Demand propagation grows a chunk's
	// bounds by it before recursing into parent layers.
	Padding() float32
	// IndicesForRect returns every ChunkIndex this layer's grid
	// intersects within rect.
	IndicesForRect(rect geom.Rect) []geom.ChunkIndex
	// Bounds returns idx's exact world rectangle in this layer's grid.
	Bounds(idx geom.ChunkIndex) geom.Rect
	// HasChunk reports whether a chunk is loaded at exactly (idx, lod).
	HasChunk(idx geom.ChunkIndex, lod int) bool
	// ClampLOD maps a schedule-derived LOD onto the LOD this layer
	// actually builds at. Layers that ignore LOD always return 0, so
	// demand propagation never asks them to rebuild as the reference
	// point moves; LOD-aware layers clamp to their own configured
	// depth instead.
	ClampLOD(scheduleLOD int) int
	// EnqueueBuild registers this chunk's build and store tasks into g,
	// gated on parentDeps (the store tasks of every parent layer's
	// chunks this tick touched). Returns the store task's TaskID so
	// dependent layers can gate on it in turn.
	EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, parentDeps []taskgraph.TaskID) taskgraph.TaskID
	// Finalize runs any main-thread-only bookkeeping after a tick's
	// task graph completes (scene node sync for the terrain layer; a
	// no-op for layers with nothing to finalize).
	Finalize(ctx context.Context)
	// CleanupPass unloads any registered chunk whose bounds fall
	// outside totalRegion or whose LOD no longer matches
	// ClampLOD(lodFor(center)), and reports how many chunks it unloaded.
	CleanupPass(totalRegion geom.Rect, lodFor func(center mgl32.Vec2) int) int
	// LoadedCount reports how many (ChunkIndex, LOD) entries are
	// currently registered.
	LoadedCount() int
	// LoadedKeys returns every registered (ChunkIndex, LOD), sorted.
	LoadedKeys() []geom.ChunkKey
}

// Graph is the DAG of layers: edges run parent -> child, meaning the
// child depends on (reads) the parent. Leaves are layers nothing
// depends on — the outermost consumers demand propagation starts
// from.
type Graph struct {
	layers   map[string]Layer
	parents  map[string][]string
	children map[string][]string
	order    []string
}

// NewGraph returns an empty layer graph.
func NewGraph() *Graph {
	return &Graph{
		layers:   make(map[string]Layer),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
}

// InsertLayer appends layer. Names must be unique within the manager;
// a duplicate is a topology error.
func (g *Graph) InsertLayer(l Layer) error {
	name := l.Name()
	if _, exists := g.layers[name]; exists {
		return engerr.NewTopologyError("duplicate layer name " + name)
	}
	g.layers[name] = l
	g.order = append(g.order, name)
	return nil
}

// AddDependency adds a directed edge parent -> child: child reads
// parent. Both names must already be present; an edge that would
// close a cycle is refused, so the graph stays acyclic by
// construction.
func (g *Graph) AddDependency(childName, parentName string) error {
	if _, ok := g.layers[childName]; !ok {
		return engerr.NewTopologyError("unknown child layer " + childName)
	}
	if _, ok := g.layers[parentName]; !ok {
		return engerr.NewTopologyError("unknown parent layer " + parentName)
	}
	for _, p := range g.parents[childName] {
		if p == parentName {
			return engerr.NewTopologyError("duplicate dependency " + parentName + " -> " + childName)
		}
	}
	if g.reachable(childName, parentName) {
		return engerr.NewTopologyError("dependency " + parentName + " -> " + childName + " would close a cycle")
	}
	g.parents[childName] = append(g.parents[childName], parentName)
	g.children[parentName] = append(g.children[parentName], childName)
	return nil
}

// reachable reports whether to is reachable from from by walking
// parent -> child edges, i.e. whether to already, transitively,
// depends on from. Used to refuse an edge that would close a cycle.
func (g *Graph) reachable(from, to string) bool {
	if from == to {
		return true
	}
	visited := make(map[string]bool)
	var visit func(name string) bool
	visit = func(name string) bool {
		if name == to {
			return true
		}
		if visited[name] {
			return false
		}
		visited[name] = true
		for _, child := range g.children[name] {
			if visit(child) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// Layer returns the named layer.
func (g *Graph) Layer(name string) (Layer, bool) {
	l, ok := g.layers[name]
	return l, ok
}

// Parents returns the names of layerName's direct parents.
func (g *Graph) Parents(layerName string) []string {
	return g.parents[layerName]
}

// Leaves returns every layer nothing depends on, in insertion order —
// the layers demand propagation starts from each tick.
func (g *Graph) Leaves() []Layer {
	var out []Layer
	for _, name := range g.order {
		if len(g.children[name]) == 0 {
			out = append(out, g.layers[name])
		}
	}
	return out
}

// TopoOrderParentsFirst returns every layer name such that every
// parent precedes its children — the order the manager assembles
// per-layer task sub-graphs in, so a child's parentDeps are always
// already present.
func (g *Graph) TopoOrderParentsFirst() []string {
	indegree := make(map[string]int, len(g.order))
	for _, name := range g.order {
		indegree[name] = len(g.parents[name])
	}
	var queue []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	var out []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, name)
		for _, child := range g.children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return out
}

// AllLayers returns every layer in insertion order.
func (g *Graph) AllLayers() []Layer {
	out := make([]Layer, len(g.order))
	for i, name := range g.order {
		out[i] = g.layers[name]
	}
	return out
}

// Schedule is an ordered sequence of distance thresholds. Index i is
// the maximum reference-distance for LOD level i; beyond the last
// threshold, LOD equals the last index.
type Schedule []float32

// LODFor returns the first i such that distance < thresholds[i],
// clamped to len(s)-1.
func (s Schedule) LODFor(distance float32) int {
	for i, threshold := range s {
		if distance < threshold {
			return i
		}
	}
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}
