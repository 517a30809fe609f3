package terrain

import (
	"testing"

	"worldforge/internal/engine/meshcatalog"
	"worldforge/internal/engine/quadtree"
)

func TestFlagsFromNeighborLODs(t *testing.T) {
	tests := []struct {
		name  string
		lod   int
		nlods [4]int
		want  meshcatalog.Flags
	}{
		{"no neighbors", 2, [4]int{-1, -1, -1, -1}, 0},
		{"all same lod", 2, [4]int{2, 2, 2, 2}, 0},
		{"coarser north", 2, [4]int{1, 2, 2, 2}, meshcatalog.FlagN},
		{"coarser south and west", 3, [4]int{3, 2, 3, 2}, meshcatalog.FlagS | meshcatalog.FlagW},
		{"finer neighbors ignored", 1, [4]int{2, 2, 2, 2}, 0},
		{"missing side never flagged", 2, [4]int{-1, 1, -1, 1}, meshcatalog.FlagS | meshcatalog.FlagW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nlods [4]int
			nlods[quadtree.North] = tt.nlods[0]
			nlods[quadtree.South] = tt.nlods[1]
			nlods[quadtree.East] = tt.nlods[2]
			nlods[quadtree.West] = tt.nlods[3]
			if got := flagsFromNeighborLODs(tt.lod, nlods); got != tt.want {
				t.Errorf("flags = %b, want %b", got, tt.want)
			}
		})
	}
}
