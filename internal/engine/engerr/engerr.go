// Package engerr defines the engine's error kinds. Query-path
// errors (MissingChunkError) are ordinary returned errors the caller
// is expected to handle as "not yet available." Construction-time and
// graph-mutation errors (ConfigError, TopologyError) are fatal to the
// caller, who is expected to abort startup. PoolExhaustedError and
// GenerationError are build-time conditions a chunk's build task
// reports in-band; they never cross a task boundary as a panic.
package engerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds for errors.Is checks.
var (
	ErrConfig        = errors.New("config error")
	ErrTopology      = errors.New("topology error")
	ErrMissingChunk  = errors.New("chunk not yet available")
	ErrPoolExhausted = errors.New("texture pool exhausted")
	ErrGeneration    = errors.New("generation error")
)

// ConfigError reports a missing, malformed, or out-of-range
// configuration key. Fatal at manager construction.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: key %q: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError builds a ConfigError for key with the given reason.
func NewConfigError(key, reason string) error {
	return &ConfigError{Key: key, Reason: reason}
}

// TopologyError reports a duplicate layer name, a dangling dependency,
// or an edge that would close a cycle in the LayerGraph. Fatal,
// rejected at graph-mutation time.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string { return "topology: " + e.Reason }

func (e *TopologyError) Unwrap() error { return ErrTopology }

// NewTopologyError builds a TopologyError with the given reason.
func NewTopologyError(reason string) error {
	return &TopologyError{Reason: reason}
}

// MissingChunkError reports that a query for a world position found no
// loaded chunk covering it. Never retried internally; the caller sees
// it as "not yet available."
type MissingChunkError struct {
	Layer string
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("%s: no loaded chunk covers the requested position", e.Layer)
}

func (e *MissingChunkError) Unwrap() error { return ErrMissingChunk }

// NewMissingChunkError builds a MissingChunkError for the named layer.
func NewMissingChunkError(layer string) error {
	return &MissingChunkError{Layer: layer}
}

// PoolExhaustedError reports that a texture-pool acquire during build
// returned no free slot. The chunk must skip its store task; the
// manager does not retry automatically.
type PoolExhaustedError struct {
	Pool string
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("%s: pool exhausted, producer stalled", e.Pool)
}

func (e *PoolExhaustedError) Unwrap() error { return ErrPoolExhausted }

// NewPoolExhaustedError builds a PoolExhaustedError for the named pool.
func NewPoolExhaustedError(pool string) error {
	return &PoolExhaustedError{Pool: pool}
}

// GenerationError reports that a per-pixel heightmap task could not
// find biome weights for a point expected to lie inside a
// triangulation. Logged once per build; the offending pixel defaults
// to zero and the chunk stores normally.
type GenerationError struct {
	Detail string
}

func (e *GenerationError) Error() string { return "generation: " + e.Detail }

func (e *GenerationError) Unwrap() error { return ErrGeneration }

// NewGenerationError builds a GenerationError with the given detail.
func NewGenerationError(detail string) error {
	return &GenerationError{Detail: detail}
}

// AssertionFailed panics reporting a violated engine invariant. It is
// never caught; the process is expected to abort.
func AssertionFailed(format string, args ...any) {
	panic(fmt.Sprintf("invariant violated: "+format, args...))
}
