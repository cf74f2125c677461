// Package traits defines strategy representations and their mutation
// kernels.
//
// Strategies are stored as flat float64 vectors. Discrete strategies use a
// single entry holding the type index; continuous strategies hold one entry
// per trait, normalized to [0, 1].
package traits

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Traits is the strategy representation capability of a population.
type Traits interface {
	// Dim returns the length of a strategy vector.
	Dim() int
	// Discrete reports whether strategies are type indices.
	Discrete() bool
	// Random fills dst with a random initial strategy.
	Random(dst []float64, rng *rand.Rand)
	// Mutate replaces dst with a mutated strategy.
	Mutate(dst []float64, rng *rand.Rand)
	// Distance is zero iff both strategies are identical.
	Distance(a, b []float64) float64
	// Valid reports whether s is a representable strategy.
	Valid(s []float64) bool
}

// Kernel selects the mutation kernel of continuous traits.
type Kernel int

const (
	// Uniform draws a fresh uniform value.
	Uniform Kernel = iota
	// Gaussian perturbs the current value, resampling until it stays in
	// [0, 1].
	Gaussian
)

var kernelNames = []string{"uniform", "gaussian"}

func (k Kernel) String() string {
	if k < 0 || int(k) >= len(kernelNames) {
		return fmt.Sprintf("kernel(%d)", int(k))
	}
	return kernelNames[k]
}

// ParseKernel converts a name into a Kernel.
func ParseKernel(name string) (Kernel, error) {
	for i, n := range kernelNames {
		if n == name {
			return Kernel(i), nil
		}
	}
	return Uniform, fmt.Errorf("traits: unknown mutation kernel %q", name)
}

// Discrete represents strategies drawn from a finite set of types.
type Discrete struct {
	Types int
	// Frequencies of the initial types; nil means uniform.
	Frequencies []float64
	// ToOther excludes the current type when mutating.
	ToOther bool
}

func (d *Discrete) Dim() int       { return 1 }
func (d *Discrete) Discrete() bool { return true }

// TypeCount returns the number of strategy types.
func (d *Discrete) TypeCount() int { return d.Types }

func (d *Discrete) Random(dst []float64, rng *rand.Rand) {
	if len(d.Frequencies) != d.Types {
		dst[0] = float64(rng.IntN(d.Types))
		return
	}
	total := floats.Sum(d.Frequencies)
	r := rng.Float64() * total
	for t, f := range d.Frequencies {
		r -= f
		if r < 0 {
			dst[0] = float64(t)
			return
		}
	}
	dst[0] = float64(d.Types - 1)
}

func (d *Discrete) Mutate(dst []float64, rng *rand.Rand) {
	if !d.ToOther || d.Types < 2 {
		dst[0] = float64(rng.IntN(d.Types))
		return
	}
	t := rng.IntN(d.Types - 1)
	if t >= int(dst[0]) {
		t++
	}
	dst[0] = float64(t)
}

func (d *Discrete) Distance(a, b []float64) float64 {
	if a[0] == b[0] {
		return 0
	}
	return 1
}

func (d *Discrete) Valid(s []float64) bool {
	if len(s) != 1 {
		return false
	}
	t := s[0]
	return t == math.Trunc(t) && t >= 0 && int(t) < d.Types
}

// Continuous represents strategies made of N real valued traits, each in
// [Min[i], Max[i]]. Stored values are normalized to [0, 1].
type Continuous struct {
	N        int
	Min, Max []float64
	Kernel   Kernel
	// Sigma is the standard deviation of the Gaussian kernel in normalized
	// units.
	Sigma float64
	// Init holds the normalized initial value of every trait; nil draws
	// uniform values.
	Init []float64
}

func (c *Continuous) Dim() int       { return c.N }
func (c *Continuous) Discrete() bool { return false }

func (c *Continuous) Random(dst []float64, rng *rand.Rand) {
	if len(c.Init) == c.N {
		copy(dst, c.Init)
		return
	}
	for i := range dst[:c.N] {
		dst[i] = rng.Float64()
	}
}

func (c *Continuous) Mutate(dst []float64, rng *rand.Rand) {
	if c.Kernel == Uniform || c.Sigma <= 0 {
		for i := range dst[:c.N] {
			dst[i] = rng.Float64()
		}
		return
	}
	for i := range dst[:c.N] {
		n := distuv.Normal{Mu: dst[i], Sigma: c.Sigma, Src: rng}
		x := n.Rand()
		for x < 0 || x > 1 {
			x = n.Rand()
		}
		dst[i] = x
	}
}

func (c *Continuous) Distance(a, b []float64) float64 {
	return floats.Distance(a[:c.N], b[:c.N], 2)
}

func (c *Continuous) Valid(s []float64) bool {
	if len(s) != c.N {
		return false
	}
	for _, x := range s {
		if !(x >= 0 && x <= 1) {
			return false
		}
	}
	return true
}

// Decode converts the normalized strategy src into trait values.
func (c *Continuous) Decode(dst, src []float64) {
	for i := 0; i < c.N; i++ {
		lo, hi := c.bounds(i)
		dst[i] = lo + src[i]*(hi-lo)
	}
}

// Encode converts trait values into a normalized strategy.
func (c *Continuous) Encode(dst, src []float64) {
	for i := 0; i < c.N; i++ {
		lo, hi := c.bounds(i)
		if hi == lo {
			dst[i] = 0
			continue
		}
		dst[i] = math.Min(1, math.Max(0, (src[i]-lo)/(hi-lo)))
	}
}

func (c *Continuous) bounds(i int) (lo, hi float64) {
	lo, hi = 0, 1
	if i < len(c.Min) {
		lo = c.Min[i]
	}
	if i < len(c.Max) {
		hi = c.Max[i]
	}
	return lo, hi
}
