// Package noise provides deterministic seeded value noise for the
// biome selector fields and per-biome height variation. Lattice
// corners draw their values from this package's RNG, so the whole
// package has exactly one mixing function; given the same (x, z,
// seed) inputs every sample is stable across runs and independent of
// task completion order.
package noise

import "math"

// Distinct odd multipliers decorrelate the two lattice axes before
// the RNG's mixer runs; sharing a multiplier would mirror the field
// along the diagonal.
const (
	axisMulX int64 = 0x6C8E9CF570932BD5
	axisMulZ int64 = 0x5851F42D4C957F2D
)

// cellSeed folds a lattice cell coordinate and a caller seed into one
// RNG seed.
func cellSeed(cx, cz, seed int64) int64 {
	return seed ^ cx*axisMulX ^ cz*axisMulZ
}

// cornerValue is the value-noise lattice sample at an integer corner,
// in [0,1).
func cornerValue(cx, cz, seed int64) float64 {
	return NewRNG(cellSeed(cx, cz, seed)).Float64()
}

// smooth is the cubic smoothstep ramp, flattening the interpolation
// weight at both lattice corners so the field's derivative is
// continuous across cell borders.
func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Value2D samples a single-octave value-noise field at (x, z), in [0,1].
func Value2D(x, z float64, seed int64) float64 {
	cx := math.Floor(x)
	cz := math.Floor(z)
	sx := smooth(x - cx)
	sz := smooth(z - cz)

	ix, iz := int64(cx), int64(cz)
	near := mix(cornerValue(ix, iz, seed), cornerValue(ix+1, iz, seed), sx)
	far := mix(cornerValue(ix, iz+1, seed), cornerValue(ix+1, iz+1, seed), sx)
	return mix(near, far, sz)
}

// Octave2D layers Value2D octaves, each at lacunarity times the
// previous frequency and persistence times the previous amplitude,
// normalized back into [0,1]. Octave seeds are drawn from one RNG
// stream so layers never share a lattice.
func Octave2D(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	seeds := NewRNG(seed)
	total := 0.0
	maxAmp := 0.0
	amp := 1.0
	freq := 1.0
	for i := 0; i < octaves; i++ {
		octaveSeed := int64(seeds.next())
		total += amp * Value2D(x*freq, z*freq, octaveSeed)
		maxAmp += amp
		amp *= persistence
		freq *= lacunarity
	}
	if maxAmp == 0 {
		return 0
	}
	return total / maxAmp
}

// Signed2D remaps Octave2D's [0,1] output to [-1,1], the convention
// the height synthesis expects before it re-normalizes with
// n*0.5 + 0.5.
func Signed2D(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	return Octave2D(x, z, seed, octaves, persistence, lacunarity)*2 - 1
}

// HashChunk derives a PRNG seed from a chunk's world position, used
// to seed deterministic per-chunk jittering. Positions on a chunk
// grid are whole meters, so truncation loses nothing.
func HashChunk(worldX, worldZ float32, salt int64) int64 {
	r := NewRNG(cellSeed(int64(worldX), int64(worldZ), salt))
	return int64(r.next())
}
