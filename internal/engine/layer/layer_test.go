package layer

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/taskgraph"
)

// nopLayer is the smallest Layer implementation the graph tests need.
type nopLayer struct {
	name string
}

func (l *nopLayer) Name() string                               { return l.name }
func (l *nopLayer) ChunkSize() float32                         { return 100 }
func (l *nopLayer) Padding() float32                           { return 0 }
func (l *nopLayer) IndicesForRect(geom.Rect) []geom.ChunkIndex { return nil }
func (l *nopLayer) Bounds(idx geom.ChunkIndex) geom.Rect       { return geom.RectFromChunk(idx, 100) }
func (l *nopLayer) HasChunk(geom.ChunkIndex, int) bool         { return false }
func (l *nopLayer) ClampLOD(int) int                           { return 0 }
func (l *nopLayer) EnqueueBuild(g *taskgraph.Graph, idx geom.ChunkIndex, lod int, deps []taskgraph.TaskID) taskgraph.TaskID {
	return ""
}
func (l *nopLayer) Finalize(context.Context)                        {}
func (l *nopLayer) CleanupPass(geom.Rect, func(mgl32.Vec2) int) int { return 0 }
func (l *nopLayer) LoadedCount() int                                { return 0 }
func (l *nopLayer) LoadedKeys() []geom.ChunkKey                     { return nil }

func TestInsertDuplicateName(t *testing.T) {
	g := NewGraph()
	if err := g.InsertLayer(&nopLayer{name: "a"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := g.InsertLayer(&nopLayer{name: "a"})
	if !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("duplicate insert error = %v, want topology error", err)
	}
}

func TestAddDependencyValidation(t *testing.T) {
	g := NewGraph()
	g.InsertLayer(&nopLayer{name: "a"})
	g.InsertLayer(&nopLayer{name: "b"})

	if err := g.AddDependency("b", "a"); err != nil {
		t.Fatalf("valid edge: %v", err)
	}
	if err := g.AddDependency("b", "a"); !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("duplicate edge error = %v", err)
	}
	if err := g.AddDependency("b", "ghost"); !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("dangling parent error = %v", err)
	}
	if err := g.AddDependency("ghost", "a"); !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("dangling child error = %v", err)
	}
}

func TestCycleRefused(t *testing.T) {
	g := NewGraph()
	for _, name := range []string{"a", "b", "c"} {
		g.InsertLayer(&nopLayer{name: name})
	}
	// a <- b <- c, then closing c <- a must be refused.
	if err := g.AddDependency("b", "a"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency("c", "b"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency("a", "c"); !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("cycle-closing edge error = %v, want topology error", err)
	}
	if err := g.AddDependency("a", "a"); !errors.Is(err, engerr.ErrTopology) {
		t.Errorf("self edge error = %v, want topology error", err)
	}
}

func TestLeavesAndTopoOrder(t *testing.T) {
	g := NewGraph()
	for _, name := range []string{"points", "tri", "height", "road"} {
		g.InsertLayer(&nopLayer{name: name})
	}
	g.AddDependency("tri", "points")
	g.AddDependency("height", "tri")
	g.AddDependency("road", "height")

	leaves := g.Leaves()
	if len(leaves) != 1 || leaves[0].Name() != "road" {
		t.Errorf("leaves = %v", leaves)
	}

	order := g.TopoOrderParentsFirst()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if !(pos["points"] < pos["tri"] && pos["tri"] < pos["height"] && pos["height"] < pos["road"]) {
		t.Errorf("topo order = %v", order)
	}
}

func TestScheduleLODFor(t *testing.T) {
	s := Schedule{100, 200, 300}
	tests := []struct {
		distance float32
		want     int
	}{
		{0, 0}, {99.9, 0}, {100, 1}, {150, 1}, {250, 2}, {300, 2}, {9999, 2},
	}
	for _, tt := range tests {
		if got := s.LODFor(tt.distance); got != tt.want {
			t.Errorf("LODFor(%v) = %d, want %d", tt.distance, got, tt.want)
		}
	}
	if got := (Schedule{}).LODFor(50); got != 0 {
		t.Errorf("empty schedule LODFor = %d, want 0", got)
	}
}
