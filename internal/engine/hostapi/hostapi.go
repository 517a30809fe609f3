// Package hostapi declares the engine's external collaborators: the
// host rendering system the terrain layer drives, and the host
// configuration store the engine reads typed keys from.
// The only Renderer implementation in this module is the in-memory
// MemoryRenderer (memrenderer.go); a real renderer comes from the
// host's scene/graphics subsystem. ConfigStore has no implementation
// here: the host's asset/config loader supplies it.
package hostapi

import "github.com/google/uuid"

// InstanceId names a live mesh instance spawned on the host renderer.
type InstanceId = uuid.UUID

// Renderer is the seam to the host rendering system. Its callers are
// the terrain layer's finalization step (mesh instances and their
// parameters) and texturepool (texture array creation and layer
// uploads).
type Renderer interface {
	CreateTextureArray(dimension int, format TextureFormat, layerCount int) (TextureArray, error)
	UpdateTextureLayer(tex TextureArray, layerIndex int, image []byte) error
	SetGlobalShaderParameter(name string, value any)
	SpawnMeshInstance(mesh any) (InstanceId, error)
	DespawnMeshInstance(id InstanceId)
	SetInstanceParameter(id InstanceId, name string, value any)
}

// TextureArray is an opaque handle to a host-owned texture array; the
// engine never interprets its contents, only indexes into it via
// TextureSlotPool slot numbers.
type TextureArray any

// TextureFormat names the pixel layout of a host texture array.
type TextureFormat int

const (
	TextureFormatR32F TextureFormat = iota
	TextureFormatRGBA8
)

// ConfigStore is a typed key/value lookup over the host's
// configuration assets. engconfig.Load lists the recognized keys.
type ConfigStore interface {
	Float(key string) (float32, bool)
	Int(key string) (int, bool)
	FloatSlice(key string) ([]float32, bool)
	IntSlice(key string) ([]int, bool)
	Ref(key string) (any, bool)
}
