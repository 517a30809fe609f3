// Package engconfig builds the explicit EngineConfig value the rest
// of the engine is threaded through. There is exactly one
// EngineConfig, built once at startup and passed explicitly to
// whatever needs it; nothing in the engine reaches into a
// process-wide registry.
package engconfig

import (
	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engerr"
	"worldforge/internal/engine/hostapi"
)

// Biome names one entry of a BiomeGeneratorSettings resource: a
// selector rectangle in the [0,1]² (u,v) noise space, plus the
// per-biome parameters height synthesis blends with.
type Biome struct {
	Name             string
	SelectorMin      mgl32.Vec2
	SelectorMax      mgl32.Vec2
	ReferenceHeight  float32
	HeightMultiplier float32
	NoiseSeed        int64
}

func (b Biome) selects(uv mgl32.Vec2) bool {
	return uv[0] >= b.SelectorMin[0] && uv[0] < b.SelectorMax[0] &&
		uv[1] >= b.SelectorMin[1] && uv[1] < b.SelectorMax[1]
}

// BiomeGeneratorSettings is the "terrain.biome_settings" host resource:
// an ordered list of biome selector rectangles that must cover [0,1]².
type BiomeGeneratorSettings struct {
	Biomes []Biome
}

// Classify returns the first biome whose selector rectangle contains
// uv. Configurations are required to cover [0,1]²; if none match (a
// misconfigured resource) the last biome is returned as a safe default
// rather than failing a build over a config defect.
func (s *BiomeGeneratorSettings) Classify(uv mgl32.Vec2) Biome {
	for _, b := range s.Biomes {
		if b.selects(uv) {
			return b
		}
	}
	return s.Biomes[len(s.Biomes)-1]
}

// EngineConfig collects every host-sourced tunable plus the engine's
// own internal tuning (layer chunk sizes and padding the host store
// has no keys for, worker parallelism, the quad-tree LOD curve).
// Build one with Load or Static; never reach into a global.
type EngineConfig struct {
	// Host-recognized keys. TerrainChunkSize is terrain.chunk_size,
	// which — despite the key's name — is the heightmap layer's chunk
	// side length, not the terrain quad-tree layer's.
	TerrainChunkSize               float32
	NormalHeightTextureSize        int
	NormalHeightTextureCountPerLOD []int
	LODMaxDistances                []float32
	BiomeSettings                  *BiomeGeneratorSettings
	RoadSDFDimensions              int
	RenderDistance                 float32

	// Internal engine tuning, not sourced from the host config store.
	PointsChunkSize    float32
	HeightmapPadding   float32
	HeightmapDimension int
	VoronoiJitterK     int
	// TerrainQuadChunkSize is the large, unpadded chunk side length
	// the terrain quad-tree layer subdivides internally; the host
	// store has no key for it.
	TerrainQuadChunkSize float32
	MeshElementCount     int
	MaxLods              int
	LodCurve             func(float32) float32
	WorkerParallelism    int
	Seed                 int64
}

// LodCurveIdentity is the default, monotone LOD curve: lodCurve(x) = x.
func LodCurveIdentity(x float32) float32 { return x }

// Static builds an EngineConfig directly from Go values, for tests
// and the demo command.
func Static() *EngineConfig {
	return &EngineConfig{
		TerrainChunkSize:               1024,
		NormalHeightTextureSize:        256,
		NormalHeightTextureCountPerLOD: []int{16, 32, 128},
		LODMaxDistances:                []float32{512, 2048, 8192},
		BiomeSettings:                  defaultBiomes(),
		RoadSDFDimensions:              256,
		RenderDistance:                 4096,
		PointsChunkSize:                2048,
		HeightmapPadding:               128,
		HeightmapDimension:             64,
		VoronoiJitterK:                 4,
		TerrainQuadChunkSize:           2048,
		MeshElementCount:               8,
		MaxLods:                        4,
		LodCurve:                       LodCurveIdentity,
		WorkerParallelism:              4,
		Seed:                           1337,
	}
}

func defaultBiomes() *BiomeGeneratorSettings {
	return &BiomeGeneratorSettings{Biomes: []Biome{
		{Name: "ocean", SelectorMin: mgl32.Vec2{0, 0}, SelectorMax: mgl32.Vec2{1, 0.3}, ReferenceHeight: -8, HeightMultiplier: 4, NoiseSeed: 11},
		{Name: "plains", SelectorMin: mgl32.Vec2{0, 0.3}, SelectorMax: mgl32.Vec2{1, 0.6}, ReferenceHeight: 2, HeightMultiplier: 6, NoiseSeed: 23},
		{Name: "hills", SelectorMin: mgl32.Vec2{0, 0.6}, SelectorMax: mgl32.Vec2{1, 0.85}, ReferenceHeight: 18, HeightMultiplier: 28, NoiseSeed: 37},
		{Name: "mountains", SelectorMin: mgl32.Vec2{0, 0.85}, SelectorMax: mgl32.Vec2{1, 1.0 + 1e-3}, ReferenceHeight: 60, HeightMultiplier: 90, NoiseSeed: 53},
	}}
}

// Load performs the typed host-store lookups and returns a
// ConfigError for the first missing or malformed key. Internal-only
// tuning fields are filled from defaults, since the host config store
// does not recognize them.
func Load(store hostapi.ConfigStore) (*EngineConfig, error) {
	cfg := Static()

	chunkSize, ok := store.Float("terrain.chunk_size")
	if !ok || chunkSize <= 0 {
		return nil, engerr.NewConfigError("terrain.chunk_size", "missing or not positive")
	}
	cfg.TerrainChunkSize = chunkSize

	texSize, ok := store.Int("terrain.normal_height_texture_size")
	if !ok || texSize <= 0 {
		return nil, engerr.NewConfigError("terrain.normal_height_texture_size", "missing or not positive")
	}
	cfg.NormalHeightTextureSize = texSize

	texCounts, ok := store.IntSlice("terrain.normal_height_texture_count_per_lod")
	if !ok || len(texCounts) == 0 {
		return nil, engerr.NewConfigError("terrain.normal_height_texture_count_per_lod", "missing or empty")
	}
	for _, c := range texCounts {
		if c < 0 {
			return nil, engerr.NewConfigError("terrain.normal_height_texture_count_per_lod", "negative capacity")
		}
	}
	cfg.NormalHeightTextureCountPerLOD = texCounts

	lodDistances, ok := store.FloatSlice("terrain.lod_max_distances")
	if !ok || len(lodDistances) == 0 {
		return nil, engerr.NewConfigError("terrain.lod_max_distances", "missing or empty")
	}
	cfg.LODMaxDistances = lodDistances
	cfg.MaxLods = len(lodDistances)
	if len(texCounts) != len(lodDistances) {
		return nil, engerr.NewConfigError("terrain.normal_height_texture_count_per_lod", "length must match terrain.lod_max_distances")
	}

	biomeRef, ok := store.Ref("terrain.biome_settings")
	if !ok {
		return nil, engerr.NewConfigError("terrain.biome_settings", "missing")
	}
	biomeSettings, ok := biomeRef.(*BiomeGeneratorSettings)
	if !ok || len(biomeSettings.Biomes) == 0 {
		return nil, engerr.NewConfigError("terrain.biome_settings", "not a BiomeGeneratorSettings resource")
	}
	cfg.BiomeSettings = biomeSettings

	roadDim, ok := store.Int("road_sdf_dimensions")
	if !ok || roadDim <= 0 {
		return nil, engerr.NewConfigError("road_sdf_dimensions", "missing or not positive")
	}
	cfg.RoadSDFDimensions = roadDim

	renderDistance, ok := store.Float("render_distance")
	if !ok || renderDistance <= 0 {
		return nil, engerr.NewConfigError("render_distance", "missing or not positive")
	}
	cfg.RenderDistance = renderDistance

	return cfg, nil
}
