package opt

// RandGen is a small deterministic random number generator (splitmix64).
// Its output depends only on the seed, never on platform or Go version.
type RandGen struct {
	state uint64
}

// NewRandGen creates a new random generator with a seed
func NewRandGen(seed uint64) *RandGen {
	return &RandGen{state: seed}
}

func (r *RandGen) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a pseudo-random float64 in [0.0, 1.0)
func (r *RandGen) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// Intn returns a pseudo-random int in [0, n)
func (r *RandGen) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

// Uniform returns a pseudo-random float64 in [lo, hi)
func (r *RandGen) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Perm returns a pseudo-random permutation of [0, n)
func (r *RandGen) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
