package hostapi

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRenderer is an in-memory Renderer for the demo command and
// for tests: it allocates byte-backed texture arrays, tracks live
// mesh instances, and validates upload sizes the way a GPU-backed
// host would. Safe for concurrent use by build tasks.
type MemoryRenderer struct {
	mu        sync.Mutex
	arrays    []*memArray
	instances map[InstanceId]any
	params    map[InstanceId]map[string]any
	globals   map[string]any
}

type memArray struct {
	dimension  int
	format     TextureFormat
	layerCount int
	layers     [][]byte
}

// NewMemoryRenderer returns an empty MemoryRenderer.
func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{
		instances: make(map[InstanceId]any),
		params:    make(map[InstanceId]map[string]any),
		globals:   make(map[string]any),
	}
}

func bytesPerPixel(format TextureFormat) int {
	switch format {
	case TextureFormatR32F, TextureFormatRGBA8:
		return 4
	}
	return 4
}

// CreateTextureArray allocates a texture array of layerCount square
// layers of the given dimension.
func (r *MemoryRenderer) CreateTextureArray(dimension int, format TextureFormat, layerCount int) (TextureArray, error) {
	if dimension < 0 || layerCount < 0 {
		return nil, fmt.Errorf("renderer: invalid texture array %dx%d[%d]", dimension, dimension, layerCount)
	}
	a := &memArray{
		dimension:  dimension,
		format:     format,
		layerCount: layerCount,
		layers:     make([][]byte, layerCount),
	}
	r.mu.Lock()
	r.arrays = append(r.arrays, a)
	r.mu.Unlock()
	return a, nil
}

// UpdateTextureLayer replaces one layer's contents. The image length
// must match the array's dimension and pixel format exactly.
func (r *MemoryRenderer) UpdateTextureLayer(tex TextureArray, layerIndex int, image []byte) error {
	a, ok := tex.(*memArray)
	if !ok {
		return fmt.Errorf("renderer: unknown texture array %T", tex)
	}
	if layerIndex < 0 || layerIndex >= a.layerCount {
		return fmt.Errorf("renderer: layer %d out of range [0,%d)", layerIndex, a.layerCount)
	}
	want := a.dimension * a.dimension * bytesPerPixel(a.format)
	if len(image) != want {
		return fmt.Errorf("renderer: image size %d does not match layer size %d", len(image), want)
	}
	r.mu.Lock()
	a.layers[layerIndex] = append([]byte(nil), image...)
	r.mu.Unlock()
	return nil
}

// SetGlobalShaderParameter records a global parameter.
func (r *MemoryRenderer) SetGlobalShaderParameter(name string, value any) {
	r.mu.Lock()
	r.globals[name] = value
	r.mu.Unlock()
}

// SpawnMeshInstance registers a live instance for mesh and returns
// its id.
func (r *MemoryRenderer) SpawnMeshInstance(mesh any) (InstanceId, error) {
	id := uuid.New()
	r.mu.Lock()
	r.instances[id] = mesh
	r.params[id] = make(map[string]any)
	r.mu.Unlock()
	return id, nil
}

// DespawnMeshInstance removes a live instance. Despawning an unknown
// id is a programmer error.
func (r *MemoryRenderer) DespawnMeshInstance(id InstanceId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; !ok {
		panic("renderer: despawn of unknown instance " + id.String())
	}
	delete(r.instances, id)
	delete(r.params, id)
}

// SetInstanceParameter records a per-instance parameter.
func (r *MemoryRenderer) SetInstanceParameter(id InstanceId, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.params[id]; ok {
		p[name] = value
	}
}

// InstanceCount reports how many mesh instances are currently live.
func (r *MemoryRenderer) InstanceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// InstanceParameter returns a live instance's parameter value.
func (r *MemoryRenderer) InstanceParameter(id InstanceId, name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.params[id]
	if !ok {
		return nil, false
	}
	v, ok := p[name]
	return v, ok
}

// LayerBytes returns a copy of one uploaded layer, or nil if nothing
// was ever uploaded to it.
func (r *MemoryRenderer) LayerBytes(tex TextureArray, layerIndex int) []byte {
	a, ok := tex.(*memArray)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if layerIndex < 0 || layerIndex >= len(a.layers) {
		return nil
	}
	return append([]byte(nil), a.layers[layerIndex]...)
}
