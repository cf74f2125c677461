// Package group samples the interaction and reference neighborhoods of
// focal sites.
package group

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/pthm-cable/ibs/geometry"
)

// Sampling selects how a neighborhood is drawn.
type Sampling int

const (
	// None yields no group; callers treat it as "no viable model".
	None Sampling = iota
	// All uses the full neighborhood.
	All
	// Count draws a uniform sample of fixed size without replacement, or
	// hierarchical representatives on hierarchy geometries.
	Count
)

var samplingNames = []string{"none", "all", "count"}

func (s Sampling) String() string {
	if s < 0 || int(s) >= len(samplingNames) {
		return fmt.Sprintf("sampling(%d)", int(s))
	}
	return samplingNames[s]
}

// ParseSampling converts a name into a Sampling.
func ParseSampling(name string) (Sampling, error) {
	for i, n := range samplingNames {
		if n == name {
			return Sampling(i), nil
		}
	}
	return None, fmt.Errorf("group: unknown sampling %q", name)
}

// Group is a transient view of a sampled neighborhood. Members is backed by
// sampler or geometry storage and is only valid until the next call to
// Sample; it must not be modified.
type Group struct {
	Focal   int
	Members []int
}

// Size returns the number of sampled members.
func (g Group) Size() int { return len(g.Members) }

// Sampler draws groups around focal sites.
type Sampler struct {
	Sampling Sampling
	// Size is the number of members drawn in Count mode.
	Size int

	rng *rand.Rand
	buf []int
	cum []float64
}

// NewSampler creates a sampler drawing groups with the shared generator.
func NewSampler(sampling Sampling, size int, rng *rand.Rand) *Sampler {
	return &Sampler{Sampling: sampling, Size: size, rng: rng}
}

// Sample returns the group of focal in geom. out selects outgoing neighbors
// (whom the focal affects) instead of incoming ones (who affects the
// focal). Sampling may permute the order of the geometry's neighbor lists.
func (s *Sampler) Sample(focal int, geom *geometry.Geometry, out bool) Group {
	grp := Group{Focal: focal}
	switch s.Sampling {
	case None:
		return grp
	case All:
		if geom.IsMeanField() {
			grp.Members = s.everyone(focal, geom.Size)
			return grp
		}
		grp.Members = geom.Neighbors(focal, out)
		return grp
	}

	n := s.Size
	if n <= 0 {
		return grp
	}
	switch {
	case geom.IsMeanField():
		grp.Members = s.mixed(focal, geom.Size, n)
	case geom.Kind == geometry.Hierarchy:
		grp.Members = s.hierarchical(focal, geom, n)
	default:
		grp.Members = s.subset(geom.Neighbors(focal, out), n)
	}
	return grp
}

func (s *Sampler) scratch(n int) []int {
	if cap(s.buf) < n {
		s.buf = make([]int, n)
	}
	return s.buf[:n]
}

// everyone lists all sites but the focal.
func (s *Sampler) everyone(focal, size int) []int {
	buf := s.scratch(size - 1)
	for i, j := 0, 0; i < size; i++ {
		if i != focal {
			buf[j] = i
			j++
		}
	}
	return buf
}

// mixed draws n distinct sites other than the focal from a well-mixed
// population of the given size.
func (s *Sampler) mixed(focal, size, n int) []int {
	if n >= size-1 {
		return s.everyone(focal, size)
	}
	buf := s.scratch(n)
	if n == 1 {
		r := s.rng.IntN(size - 1)
		if r >= focal {
			r++
		}
		buf[0] = r
		return buf
	}
	// Floyd's algorithm over the size-1 candidates
	picked := buf[:0]
	for j := size - 1 - n; j < size-1; j++ {
		r := s.rng.IntN(j + 1)
		if slices.Contains(picked, shift(r, focal)) {
			r = j
		}
		picked = append(picked, shift(r, focal))
	}
	return picked
}

func shift(r, focal int) int {
	if r >= focal {
		return r + 1
	}
	return r
}

// subset draws n members of the neighborhood without replacement by a
// partial shuffle of the neighbor list, touching at most min(n, k-n)
// entries.
func (s *Sampler) subset(nb []int, n int) []int {
	k := len(nb)
	if k == 0 {
		return nil
	}
	if n >= k {
		return nb
	}
	if n == 1 {
		buf := s.scratch(1)
		buf[0] = nb[s.rng.IntN(k)]
		return buf
	}
	if n <= k-n {
		for i := 0; i < n; i++ {
			j := i + s.rng.IntN(k-i)
			nb[i], nb[j] = nb[j], nb[i]
		}
		return nb[:n]
	}
	for i := 0; i < k-n; i++ {
		j := s.rng.IntN(k - i)
		nb[j], nb[k-1-i] = nb[k-1-i], nb[j]
	}
	return nb[:n]
}

// hierarchical draws n representatives. For every draw a level l is picked
// with probability proportional to LevelWeight^l and a member of the
// focal's level-l unit outside its level-(l-1) unit is returned; level 0 is
// the focal's own deme.
func (s *Sampler) hierarchical(focal int, geom *geometry.Geometry, n int) []int {
	units := geom.Units()
	w := geom.Spec.LevelWeight
	s.cum = s.cum[:0]
	total, p := 0.0, 1.0
	for range units {
		total += p
		s.cum = append(s.cum, total)
		p *= w
	}

	buf := s.scratch(n)
	for d := 0; d < n; d++ {
		level := 0
		if len(units) > 1 && w > 0 {
			r := s.rng.Float64() * total
			for level < len(units)-1 && r >= s.cum[level] {
				level++
			}
		}
		for level > 0 && units[level] == units[level-1] {
			level--
		}
		if level == 0 {
			start := focal / units[0] * units[0]
			buf[d] = start + shift(s.rng.IntN(units[0]-1), focal-start)
			continue
		}
		unit, sub := units[level], units[level-1]
		start := focal / unit * unit
		subStart := focal / sub * sub
		idx := start + s.rng.IntN(unit-sub)
		if idx >= subStart {
			idx += sub
		}
		buf[d] = idx
	}
	return buf
}
