// Package manager provides the engine's scheduler: it owns the layer
// graph, drives topological demand propagation each tick, assembles
// and launches one combined task graph for everything missing, and
// sweeps stale chunks once their region or LOD no longer matches.
package manager

import (
	"context"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/layer"
	"worldforge/internal/engine/taskgraph"
	"worldforge/internal/profiling"
)

// referenceSetter is implemented by layers whose build depends on the
// reference position beyond ordinary LOD selection (the terrain
// layer's quad-tree). The manager discovers it via a type assertion
// rather than widening the Layer interface for one consumer.
type referenceSetter interface {
	SetReference(mgl32.Vec2)
}

// TickStats is a per-Update counter snapshot: what a call launched,
// what a completed launch actually stored, and what the cleanup sweep
// removed.
type TickStats struct {
	// TickCompleted reports whether a previously in-flight build
	// finished and was finalized this call.
	TickCompleted bool
	// BuildsAttempted is the number of (ChunkIndex, LOD) pairs newly
	// launched into the task graph this call, across every layer. On a
	// TickCompleted call it instead reports the completed launch's
	// size.
	BuildsAttempted int
	// BuildsStored is the number of the completed launch's chunks that
	// actually inserted into a registry.
	BuildsStored int
	// PoolExhaustedSkips is the shortfall between the completed
	// launch's attempts and stores: chunks whose build gave up on a
	// full texture pool and skipped the store task.
	PoolExhaustedSkips int
	// Unloads is the number of chunks the cleanup sweep unloaded.
	Unloads int
}

// Manager drives the layer graph: demand propagation, task-graph
// assembly, lifecycle, and LOD selection.
type Manager struct {
	graph    *layer.Graph
	schedule layer.Schedule
	executor *taskgraph.Executor

	future        *taskgraph.Future
	pendingCounts map[string]int // builds attempted per layer, for the in-flight launch
	preLaunchLoad map[string]int // LoadedCount() per layer, taken right before Launch
	lastBuilt     map[string][]geom.ChunkKey
}

// New returns an empty Manager whose task graphs run on a worker pool
// of the given parallelism.
func New(parallelism int) *Manager {
	return &Manager{
		graph:     layer.NewGraph(),
		executor:  taskgraph.NewExecutor(parallelism),
		lastBuilt: make(map[string][]geom.ChunkKey),
	}
}

// InsertLayer appends a layer. Duplicate names return a topology
// error.
func (m *Manager) InsertLayer(l layer.Layer) error {
	return m.graph.InsertLayer(l)
}

// AddDependency adds a directed parent -> child edge: childName reads
// parentName. Refuses dangling names, duplicate edges, and any edge
// that would close a cycle.
func (m *Manager) AddDependency(childName, parentName string) error {
	return m.graph.AddDependency(childName, parentName)
}

// SetLODSchedule installs the distance thresholds LOD selection runs
// against.
func (m *Manager) SetLODSchedule(thresholds []float32) {
	m.schedule = append(layer.Schedule(nil), thresholds...)
}

// Layer returns the named layer, for callers that need a concrete
// layer's query surface (heightmap.Sample, triangulation.ChunkAt,
// etc.) beyond the generic layer.Layer contract.
func (m *Manager) Layer(name string) (layer.Layer, bool) {
	return m.graph.Layer(name)
}

// LastBuiltKeys returns, per layer name, the (ChunkIndex, LOD) set
// this manager most recently launched a build for.
func (m *Manager) LastBuiltKeys() map[string][]geom.ChunkKey {
	out := make(map[string][]geom.ChunkKey, len(m.lastBuilt))
	for k, v := range m.lastBuilt {
		out[k] = append([]geom.ChunkKey(nil), v...)
	}
	return out
}

// LoadedKeysPerLayer returns every layer's loaded key set, sorted.
func (m *Manager) LoadedKeysPerLayer() map[string][]geom.ChunkKey {
	out := make(map[string][]geom.ChunkKey)
	for _, l := range m.graph.AllLayers() {
		out[l.Name()] = l.LoadedKeys()
	}
	return out
}

// Busy reports whether a task graph is currently in flight.
func (m *Manager) Busy() bool { return m.future != nil }

type buildEntry struct {
	idx geom.ChunkIndex
	lod int
}

// Update is the tick entry point. Exactly one launch may be building
// at any moment: while one is in flight, Update only polls it (a
// non-blocking check) and returns. The call that observes completion
// runs every layer's Finalize hook, then falls through to schedule the
// next launch: propagate demand leaves-first, sweep chunks whose
// region or LOD no longer matches, assemble the combined task graph,
// and launch it if it is non-empty.
func (m *Manager) Update(requestedRect geom.Rect, referencePosition mgl32.Vec2) TickStats {
	defer profiling.Track("manager.update")()

	var stats TickStats
	if m.future != nil {
		finished, err := m.future.Poll()
		if !finished {
			return stats
		}
		if err != nil {
			log.Printf("worldforge: tick task graph reported an error: %v", err)
		}
		stats.TickCompleted = true
		m.finishTick(&stats)
	}

	for _, setter := range m.referenceSetters() {
		setter.SetReference(referencePosition)
	}

	lodFor := func(center mgl32.Vec2) int {
		return m.schedule.LODFor(geom.Distance(center, referencePosition))
	}

	stopPropagate := profiling.Track("manager.propagate")
	buildSets, regions := m.propagate(requestedRect, lodFor)
	stopPropagate()

	// Sweep before launching so a slot freed by an unload (a texture
	// pool handle, a replaced LOD) is available to the builds that are
	// about to run.
	stats.Unloads = m.cleanup(regions, lodFor)

	g := m.assembleGraph(buildSets)
	attempted := 0
	m.lastBuilt = make(map[string][]geom.ChunkKey, len(buildSets))
	m.pendingCounts = make(map[string]int, len(buildSets))
	for name, entries := range buildSets {
		attempted += len(entries)
		m.pendingCounts[name] = len(entries)
		keys := make([]geom.ChunkKey, len(entries))
		for i, e := range entries {
			keys[i] = geom.ChunkKey{Index: e.idx, LOD: e.lod}
		}
		m.lastBuilt[name] = keys
	}
	// On a TickCompleted call, BuildsAttempted already reports the
	// completed launch; the new launch's size will be reported by the
	// call that observes it finish.
	if !stats.TickCompleted {
		stats.BuildsAttempted = attempted
	}

	if g.Empty() {
		return stats
	}

	m.preLaunchLoad = make(map[string]int, len(m.pendingCounts))
	for _, l := range m.graph.AllLayers() {
		m.preLaunchLoad[l.Name()] = l.LoadedCount()
	}

	m.future = m.executor.Launch(context.Background(), g)
	return stats
}

// finishTick runs every layer's Finalize hook and fills in the
// completed launch's counters. BuildsStored is derived from the
// LoadedCount delta since the snapshot taken right before Launch; any
// shortfall against BuildsAttempted is a store task that skipped.
func (m *Manager) finishTick(stats *TickStats) {
	for _, l := range m.graph.AllLayers() {
		l.Finalize(context.Background())
	}
	m.future = nil

	attempted := 0
	for _, n := range m.pendingCounts {
		attempted += n
	}
	stored := 0
	for _, l := range m.graph.AllLayers() {
		name := l.Name()
		delta := l.LoadedCount() - m.preLaunchLoad[name]
		if delta > 0 {
			stored += delta
		}
	}
	if stored > attempted {
		stored = attempted
	}
	stats.BuildsAttempted = attempted
	stats.BuildsStored = stored
	stats.PoolExhaustedSkips = attempted - stored
}

func (m *Manager) referenceSetters() []referenceSetter {
	var out []referenceSetter
	for _, l := range m.graph.AllLayers() {
		if rs, ok := l.(referenceSetter); ok {
			out = append(out, rs)
		}
	}
	return out
}

// propagate walks the layer graph leaves-first. For each layer it
// computes the chunk grid covering the incoming region, selects each
// chunk's desired LOD, and adds anything not already loaded at that
// exact (index, LOD) to the layer's build set. The region handed to
// parents is the incoming region merged with every requested chunk's
// bounds grown by this layer's padding — every requested chunk, not
// just the missing ones, so a steady-state tick keeps demanding the
// same padded parent regions and the sweep never eats a parent a
// loaded chunk still reads from.
//
// The per-layer merged regions are returned for the cleanup sweep:
// each layer is only trimmed against the region that was actually
// demanded of it.
func (m *Manager) propagate(requestedRect geom.Rect, lodFor func(mgl32.Vec2) int) (map[string][]buildEntry, map[string]geom.Rect) {
	buildSets := make(map[string][]buildEntry)
	seen := make(map[string]map[geom.ChunkKey]bool)
	regions := make(map[string]geom.Rect)

	var visit func(l layer.Layer, rect geom.Rect)
	visit = func(l layer.Layer, rect geom.Rect) {
		name := l.Name()
		if existing, ok := regions[name]; ok {
			regions[name] = existing.Union(rect)
		} else {
			regions[name] = rect
		}
		if seen[name] == nil {
			seen[name] = make(map[geom.ChunkKey]bool)
		}

		boundsForParent := rect
		for _, idx := range l.IndicesForRect(rect) {
			bounds := l.Bounds(idx)
			boundsForParent = boundsForParent.Union(bounds.Grow(l.Padding()))
			desired := l.ClampLOD(lodFor(bounds.Center()))
			if l.HasChunk(idx, desired) {
				continue
			}
			key := geom.ChunkKey{Index: idx, LOD: desired}
			if seen[name][key] {
				continue
			}
			seen[name][key] = true
			buildSets[name] = append(buildSets[name], buildEntry{idx: idx, lod: desired})
		}

		for _, parentName := range m.graph.Parents(name) {
			parentLayer, _ := m.graph.Layer(parentName)
			visit(parentLayer, boundsForParent)
		}
	}

	for _, leaf := range m.graph.Leaves() {
		visit(leaf, requestedRect)
	}

	return buildSets, regions
}

// cleanup runs every layer's CleanupPass against that layer's own
// demanded region and sums the unload counts. A layer no demand
// reached this tick is left untouched.
func (m *Manager) cleanup(regions map[string]geom.Rect, lodFor func(mgl32.Vec2) int) int {
	defer profiling.Track("manager.cleanup")()
	total := 0
	for _, l := range m.graph.AllLayers() {
		region, ok := regions[l.Name()]
		if !ok {
			continue
		}
		total += l.CleanupPass(region, lodFor)
	}
	return total
}

// assembleGraph composes one task graph from every layer's per-chunk
// build and store tasks, visiting layers parents-first so each
// chunk's build can be gated on the store tasks of every parent
// chunk this tick touched. A child therefore never starts building
// before all of its parents have stored.
func (m *Manager) assembleGraph(buildSets map[string][]buildEntry) *taskgraph.Graph {
	g := taskgraph.NewGraph()
	storeIDs := make(map[string][]taskgraph.TaskID)

	for _, name := range m.graph.TopoOrderParentsFirst() {
		entries := buildSets[name]
		if len(entries) == 0 {
			// Still collect parent store IDs transitively: a child
			// whose direct parent built nothing must wait on the
			// grandparent's stores instead.
			var inherited []taskgraph.TaskID
			for _, parentName := range m.graph.Parents(name) {
				inherited = append(inherited, storeIDs[parentName]...)
			}
			storeIDs[name] = inherited
			continue
		}
		l, _ := m.graph.Layer(name)

		var parentDeps []taskgraph.TaskID
		for _, parentName := range m.graph.Parents(name) {
			parentDeps = append(parentDeps, storeIDs[parentName]...)
		}

		var stores []taskgraph.TaskID
		for _, e := range entries {
			storeID := l.EnqueueBuild(g, e.idx, e.lod, parentDeps)
			stores = append(stores, storeID)
		}
		storeIDs[name] = stores
	}

	return g
}

// AssertConfig panics if the manager's LOD schedule is empty — a
// manager with no schedule can never resolve a desired LOD and must
// not be ticked.
func (m *Manager) AssertConfig() {
	if len(m.schedule) == 0 {
		engerr.AssertionFailed("manager: SetLODSchedule was never called")
	}
}
