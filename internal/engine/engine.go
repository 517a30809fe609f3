// Package engine assembles the streaming world-generation pipeline:
// five producer layers (Voronoi points, triangulation, heightmap,
// road textures, terrain quad-tree) wired into one manager with their
// dependency edges and LOD schedule.
package engine

import (
	"github.com/go-gl/mathgl/mgl32"

	"worldforge/internal/engine/engconfig"
	"worldforge/internal/engine/geom"
	"worldforge/internal/engine/hostapi"
	"worldforge/internal/engine/layers/heightmap"
	"worldforge/internal/engine/layers/points"
	"worldforge/internal/engine/layers/road"
	"worldforge/internal/engine/layers/terrain"
	"worldforge/internal/engine/layers/triangulation"
	"worldforge/internal/engine/manager"
	"worldforge/internal/engine/meshcatalog"
	"worldforge/internal/engine/quadtree"
)

// Layer names within a World's manager.
const (
	LayerPoints        = "voronoi_points"
	LayerTriangulation = "voronoi_triangulation"
	LayerHeightmap     = "heightmap"
	LayerRoad          = "road"
	LayerTerrain       = "terrain"
)

// World owns a fully wired layer pipeline and the manager driving it.
type World struct {
	Manager       *manager.Manager
	Points        *points.Layer
	Triangulation *triangulation.Layer
	Heightmap     *heightmap.Layer
	Road          *road.Layer
	Terrain       *terrain.Layer
	Catalog       *meshcatalog.Catalog

	cfg *engconfig.EngineConfig
}

// New wires the five layers from cfg against the given host renderer.
func New(cfg *engconfig.EngineConfig, renderer hostapi.Renderer) (*World, error) {
	m := manager.New(cfg.WorkerParallelism)
	m.SetLODSchedule(cfg.LODMaxDistances)

	pts := points.New(LayerPoints, cfg.PointsChunkSize, cfg.VoronoiJitterK, cfg.Seed)
	tri := triangulation.New(LayerTriangulation, pts, cfg.BiomeSettings, cfg.Seed+1, cfg.Seed+2)
	hm := heightmap.New(LayerHeightmap, cfg.TerrainChunkSize, cfg.HeightmapPadding, cfg.HeightmapDimension, tri)
	rd, err := road.New(LayerRoad, renderer, hm, cfg.RoadSDFDimensions, cfg.NormalHeightTextureSize, cfg.NormalHeightTextureCountPerLOD)
	if err != nil {
		return nil, err
	}
	catalog := meshcatalog.NewCatalog()
	ter := terrain.New(LayerTerrain, renderer, rd, catalog, cfg.TerrainQuadChunkSize, cfg.MaxLods, quadtree.LodCurve(cfg.LodCurve), cfg.MeshElementCount)

	if err := m.InsertLayer(pts); err != nil {
		return nil, err
	}
	if err := m.InsertLayer(tri); err != nil {
		return nil, err
	}
	if err := m.InsertLayer(hm); err != nil {
		return nil, err
	}
	if err := m.InsertLayer(rd); err != nil {
		return nil, err
	}
	if err := m.InsertLayer(ter); err != nil {
		return nil, err
	}

	deps := [][2]string{
		{LayerTriangulation, LayerPoints},
		{LayerHeightmap, LayerTriangulation},
		{LayerRoad, LayerHeightmap},
		{LayerTerrain, LayerRoad},
	}
	for _, d := range deps {
		if err := m.AddDependency(d[0], d[1]); err != nil {
			return nil, err
		}
	}

	return &World{
		Manager:       m,
		Points:        pts,
		Triangulation: tri,
		Heightmap:     hm,
		Road:          rd,
		Terrain:       ter,
		Catalog:       catalog,
		cfg:           cfg,
	}, nil
}

// Update runs one tick centered on reference, requesting the
// configured render-distance square around it.
func (w *World) Update(reference mgl32.Vec2) manager.TickStats {
	half := w.cfg.RenderDistance / 2
	rect := geom.Rect{
		Min: mgl32.Vec2{reference[0] - half, reference[1] - half},
		Max: mgl32.Vec2{reference[0] + half, reference[1] + half},
	}
	return w.Manager.Update(rect, reference)
}

// SampleHeight reads the generated height field at worldPos.
func (w *World) SampleHeight(worldPos mgl32.Vec2) (float64, error) {
	return w.Heightmap.Sample(worldPos)
}

// SampleHeightWithGradient reads the height field and its
// finite-difference gradient at worldPos.
func (w *World) SampleHeightWithGradient(worldPos mgl32.Vec2, eps float32) (float64, mgl32.Vec2, error) {
	return w.Heightmap.SampleWithGradient(worldPos, eps)
}

// SampleRoadField reads the road layer's chunk-local derived field at
// worldPos.
func (w *World) SampleRoadField(worldPos mgl32.Vec2) (float64, error) {
	return w.Road.Sample(worldPos)
}
