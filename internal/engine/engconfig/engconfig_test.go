package engconfig

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
)

// mapStore is an in-memory host config store for Load tests.
type mapStore struct {
	floats      map[string]float32
	ints        map[string]int
	floatSlices map[string][]float32
	intSlices   map[string][]int
	refs        map[string]any
}

func (s *mapStore) Float(key string) (float32, bool)        { v, ok := s.floats[key]; return v, ok }
func (s *mapStore) Int(key string) (int, bool)              { v, ok := s.ints[key]; return v, ok }
func (s *mapStore) FloatSlice(key string) ([]float32, bool) { v, ok := s.floatSlices[key]; return v, ok }
func (s *mapStore) IntSlice(key string) ([]int, bool)       { v, ok := s.intSlices[key]; return v, ok }
func (s *mapStore) Ref(key string) (any, bool)              { v, ok := s.refs[key]; return v, ok }

func validStore() *mapStore {
	return &mapStore{
		floats: map[string]float32{
			"terrain.chunk_size": 1024,
			"render_distance":    4096,
		},
		ints: map[string]int{
			"terrain.normal_height_texture_size": 256,
			"road_sdf_dimensions":                128,
		},
		floatSlices: map[string][]float32{
			"terrain.lod_max_distances": {512, 2048, 8192},
		},
		intSlices: map[string][]int{
			"terrain.normal_height_texture_count_per_lod": {8, 8, 4},
		},
		refs: map[string]any{
			"terrain.biome_settings": defaultBiomes(),
		},
	}
}

func TestLoadHappyPath(t *testing.T) {
	cfg, err := Load(validStore())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TerrainChunkSize != 1024 {
		t.Errorf("TerrainChunkSize = %v", cfg.TerrainChunkSize)
	}
	if cfg.MaxLods != 3 {
		t.Errorf("MaxLods = %d, want len(lod_max_distances)", cfg.MaxLods)
	}
	if cfg.RoadSDFDimensions != 128 {
		t.Errorf("RoadSDFDimensions = %d", cfg.RoadSDFDimensions)
	}
	if len(cfg.NormalHeightTextureCountPerLOD) != 3 {
		t.Errorf("pool capacities = %v", cfg.NormalHeightTextureCountPerLOD)
	}
}

func TestLoadMissingKeys(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*mapStore)
	}{
		{"chunk size missing", func(s *mapStore) { delete(s.floats, "terrain.chunk_size") }},
		{"chunk size negative", func(s *mapStore) { s.floats["terrain.chunk_size"] = -5 }},
		{"texture size missing", func(s *mapStore) { delete(s.ints, "terrain.normal_height_texture_size") }},
		{"pool capacities missing", func(s *mapStore) { delete(s.intSlices, "terrain.normal_height_texture_count_per_lod") }},
		{"pool capacity negative", func(s *mapStore) {
			s.intSlices["terrain.normal_height_texture_count_per_lod"] = []int{4, -1, 4}
		}},
		{"lod distances missing", func(s *mapStore) { delete(s.floatSlices, "terrain.lod_max_distances") }},
		{"capacity length mismatch", func(s *mapStore) {
			s.intSlices["terrain.normal_height_texture_count_per_lod"] = []int{8}
		}},
		{"biomes missing", func(s *mapStore) { delete(s.refs, "terrain.biome_settings") }},
		{"biomes wrong type", func(s *mapStore) { s.refs["terrain.biome_settings"] = "nope" }},
		{"road dimensions missing", func(s *mapStore) { delete(s.ints, "road_sdf_dimensions") }},
		{"render distance missing", func(s *mapStore) { delete(s.floats, "render_distance") }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			s := validStore()
			tt.mutate(s)
			if _, err := Load(s); !errors.Is(err, engerr.ErrConfig) {
				t.Errorf("Load error = %v, want config error", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	settings := defaultBiomes()
	tests := []struct {
		uv   mgl32.Vec2
		want string
	}{
		{mgl32.Vec2{0.5, 0.1}, "ocean"},
		{mgl32.Vec2{0.5, 0.45}, "plains"},
		{mgl32.Vec2{0.5, 0.7}, "hills"},
		{mgl32.Vec2{0.5, 0.99}, "mountains"},
		{mgl32.Vec2{0.5, 1.0}, "mountains"},
	}
	for _, tt := range tests {
		if got := settings.Classify(tt.uv); got.Name != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.uv, got.Name, tt.want)
		}
	}
}

func TestStaticIsComplete(t *testing.T) {
	cfg := Static()
	if cfg.BiomeSettings == nil || len(cfg.BiomeSettings.Biomes) == 0 {
		t.Error("Static config has no biomes")
	}
	if cfg.WorkerParallelism < 2 {
		t.Errorf("WorkerParallelism = %d, want at least 2", cfg.WorkerParallelism)
	}
	if cfg.LodCurve == nil || cfg.LodCurve(1) != 1 {
		t.Error("Static config lod curve is not the identity")
	}
	if len(cfg.NormalHeightTextureCountPerLOD) != len(cfg.LODMaxDistances) {
		t.Error("pool capacities do not match the LOD schedule length")
	}
}
