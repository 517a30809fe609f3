package noise

// RNG is a small SplitMix64 generator: enough for deterministic
// per-chunk jitter sampling without pulling in math/rand's global
// lock or an ecosystem PRNG the pack never uses for this purpose.
type RNG struct {
	state uint64
}

// NewRNG seeds an RNG from an arbitrary 64-bit seed (typically HashChunk's output).
func NewRNG(seed int64) *RNG {
	return &RNG{state: uint64(seed)}
}

func (r *RNG) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a uniform value in [0,1).
func (r *RNG) Float64() float64 {
	return float64(r.next()>>11) / float64(1<<53)
}

// Uniform returns a uniform value in [lo, hi).
func (r *RNG) Uniform(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
