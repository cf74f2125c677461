package geometry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

var (
	// ErrUnknownKind is returned for an unrecognised graph family.
	ErrUnknownKind = errors.New("geometry: unknown kind")
	// ErrNotRewirable is returned when a rewiring request cannot be applied.
	ErrNotRewirable = errors.New("geometry: not rewirable")
	// ErrAdjacency is returned when restored adjacency lists are inconsistent.
	ErrAdjacency = errors.New("geometry: invalid adjacency")
)

// Spec holds the structural parameters of a geometry. A Spec should pass
// through Check before it is handed to Build.
type Spec struct {
	Kind Kind
	Size int

	// Connectivity is the exact degree for lattices and regular graphs and
	// the mean degree for random and scale-free graphs.
	Connectivity float64

	// FixedBoundary selects fixed instead of periodic lattice boundaries.
	FixedBoundary bool

	// Petals and Amplification parameterise super-stars.
	Petals        int
	Amplification int

	// Exponent of the power-law degree distribution (ScaleFree). Zero
	// requests a uniform degree sequence.
	Exponent float64

	// Mixing is the probability of a preferential instead of an active link
	// in the Klemm-Eguiluz growth model.
	Mixing float64

	// Levels lists the branching of a hierarchy from the top level down to
	// the deme size. The product of all levels is the population size.
	Levels []int
	// LevelWeight is the relative weight of each further hierarchy level.
	LevelWeight float64

	// Fractions of undirected edges and directed links to rewire after
	// construction.
	RewireUndirected float64
	RewireDirected   float64
}

// Equal reports whether two specs describe the same structure.
func (s Spec) Equal(o Spec) bool {
	return s.Kind == o.Kind &&
		s.Size == o.Size &&
		s.Connectivity == o.Connectivity &&
		s.FixedBoundary == o.FixedBoundary &&
		s.Petals == o.Petals &&
		s.Amplification == o.Amplification &&
		s.Exponent == o.Exponent &&
		s.Mixing == o.Mixing &&
		slices.Equal(s.Levels, o.Levels) &&
		s.LevelWeight == o.LevelWeight &&
		s.RewireUndirected == o.RewireUndirected &&
		s.RewireDirected == o.RewireDirected
}

// healer records parameter corrections made while checking a spec.
type healer struct {
	logger  *slog.Logger
	kind    Kind
	changed bool
}

func (h *healer) fix(param string, requested, using any) {
	h.changed = true
	h.logger.Warn("geometry parameter adjusted",
		"geometry", h.kind.String(),
		"param", param,
		"requested", requested,
		"using", using,
	)
}

// degree sets the connectivity to k, warning only if the caller asked for
// something else.
func (h *healer) degree(c *float64, k float64) {
	if *c != 0 && *c != k {
		h.fix("connectivity", *c, k)
	}
	*c = k
}

func (h *healer) size(n *int, want int) {
	if *n != want {
		h.fix("size", *n, want)
		*n = want
	}
}

// Check validates the spec and returns a corrected copy. Infeasible sizes
// and parameters are rounded to the nearest admissible configuration and
// logged; the returned flag reports whether anything was corrected. Only an
// unknown family is an error.
func (s Spec) Check(logger *slog.Logger) (Spec, bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !s.Kind.Valid() {
		return s, false, fmt.Errorf("%w: %d", ErrUnknownKind, int(s.Kind))
	}

	out := s
	out.Levels = slices.Clone(s.Levels)
	h := &healer{logger: logger, kind: s.Kind}

	// hierarchies derive their size from the levels
	if out.Size < 2 && out.Kind != Hierarchy {
		h.size(&out.Size, 2)
	}

	switch out.Kind {
	case MeanField, Complete:
		out.Connectivity = float64(out.Size - 1)

	case Hierarchy:
		checkHierarchy(&out, h)

	case Star:
		if out.Size < 3 {
			h.size(&out.Size, 3)
		}
		out.Connectivity = 2 * float64(out.Size-1) / float64(out.Size)

	case Wheel:
		if out.Size < 4 {
			h.size(&out.Size, 4)
		}
		out.Connectivity = 4 * float64(out.Size-1) / float64(out.Size)

	case SuperStar:
		if out.Petals < 1 {
			h.fix("petals", out.Petals, 1)
			out.Petals = 1
		}
		if out.Amplification < 2 {
			h.fix("amplification", out.Amplification, 3)
			out.Amplification = 3
		}
		p, k := out.Petals, out.Amplification
		r := int(math.Round(float64(out.Size-1)/float64(p))) - (k - 2)
		if r < 1 {
			r = 1
		}
		h.size(&out.Size, 1+p*(r+k-2))

	case StrongAmplifier:
		u := nearestUnit(out.Size, amplifierSize)
		h.size(&out.Size, amplifierSize(u))

	case StrongSuppressor:
		u := nearestUnit(out.Size, suppressorSize)
		h.size(&out.Size, suppressorSize(u))

	case Linear:
		checkLinear(&out, h)

	case SquareNeumann, SquareNeumann2nd:
		h.degree(&out.Connectivity, 4)
		side := max(3, nearestRoot(out.Size, 2))
		h.size(&out.Size, side*side)

	case SquareMoore:
		h.degree(&out.Connectivity, 8)
		side := max(3, nearestRoot(out.Size, 2))
		h.size(&out.Size, side*side)

	case Square:
		if out.Connectivity == 4 {
			h.fix("kind", Square.String(), SquareNeumann.String())
			out.Kind = SquareNeumann
			side := max(3, nearestRoot(out.Size, 2))
			h.size(&out.Size, side*side)
			break
		}
		r := max(1, int(math.Round((math.Sqrt(out.Connectivity+1)-1)/2)))
		h.degree(&out.Connectivity, float64((2*r+1)*(2*r+1)-1))
		side := max(2*r+1, nearestRoot(out.Size, 2))
		h.size(&out.Size, side*side)

	case Cube:
		r := 0
		if out.Connectivity != 6 {
			r = max(1, int(math.Round((math.Cbrt(out.Connectivity+1)-1)/2)))
		}
		k := 6
		if r > 0 {
			k = (2*r+1)*(2*r+1)*(2*r+1) - 1
		}
		h.degree(&out.Connectivity, float64(k))
		side := max(3, 2*r+1, nearestRoot(out.Size, 3))
		h.size(&out.Size, side*side*side)

	case Honeycomb:
		h.degree(&out.Connectivity, 3)
		side := nearestRoot(out.Size, 2)
		if side%2 == 1 {
			side++
		}
		side = max(4, side)
		h.size(&out.Size, side*side)

	case Triangular:
		h.degree(&out.Connectivity, 6)
		side := max(3, nearestRoot(out.Size, 2))
		h.size(&out.Size, side*side)

	case Frucht, Tietze, Franklin:
		h.degree(&out.Connectivity, 3)
		h.size(&out.Size, 12)
	case Heawood:
		h.degree(&out.Connectivity, 3)
		h.size(&out.Size, 14)
	case Icosahedron:
		h.degree(&out.Connectivity, 5)
		h.size(&out.Size, 12)
	case Dodecahedron, Desargues:
		h.degree(&out.Connectivity, 3)
		h.size(&out.Size, 20)

	case RandomRegular:
		if out.Size < 3 {
			h.size(&out.Size, 3)
		}
		k := clampDegree(math.Round(out.Connectivity), 2, float64(out.Size-1))
		if k != out.Connectivity {
			h.fix("connectivity", out.Connectivity, k)
			out.Connectivity = k
		}
		if (out.Size*int(k))%2 == 1 {
			h.size(&out.Size, out.Size+1)
		}

	case RandomGraph, ScaleFree:
		if out.Size < 3 {
			h.size(&out.Size, 3)
		}
		k := clampDegree(out.Connectivity, 2, float64(out.Size-1))
		if k != out.Connectivity {
			h.fix("connectivity", out.Connectivity, k)
			out.Connectivity = k
		}
		if out.Exponent < 0 {
			h.fix("exponent", out.Exponent, 0.0)
			out.Exponent = 0
		}

	case RandomGraphDirected:
		if out.Size < 3 {
			h.size(&out.Size, 3)
		}
		k := clampDegree(out.Connectivity, 2, float64(2*(out.Size-1)))
		if k != out.Connectivity {
			h.fix("connectivity", out.Connectivity, k)
			out.Connectivity = k
		}

	case ScaleFreeBA, ScaleFreeKlemm:
		if out.Size < 4 {
			h.size(&out.Size, 4)
		}
		m := max(1, int(math.Round(out.Connectivity/2)))
		if 2*m > out.Size-2 {
			m = max(1, (out.Size-2)/2)
		}
		h.degree(&out.Connectivity, float64(2*m))
		if out.Mixing < 0 || out.Mixing > 1 {
			mix := math.Min(1, math.Max(0, out.Mixing))
			h.fix("mixing", out.Mixing, mix)
			out.Mixing = mix
		}
	}

	checkRewiring(&out, h)
	return out, h.changed, nil
}

func checkHierarchy(s *Spec, h *healer) {
	if len(s.Levels) == 0 {
		s.Levels = []int{s.Size}
	}
	// a level of one unit adds no members beyond the level below it
	last := len(s.Levels) - 1
	levels := make([]int, 0, len(s.Levels))
	for i, l := range s.Levels[:last] {
		if l < 2 {
			h.fix(fmt.Sprintf("levels[%d]", i), l, "dropped")
			continue
		}
		levels = append(levels, l)
	}
	deme := s.Levels[last]
	if deme < 2 {
		h.fix("deme size", deme, 2)
		deme = 2
	}
	s.Levels = append(levels, deme)
	last = len(s.Levels) - 1
	n := 1
	for _, l := range s.Levels {
		n *= l
	}
	h.size(&s.Size, n)
	if s.LevelWeight < 0 || s.LevelWeight > 1 {
		w := math.Min(1, math.Max(0, s.LevelWeight))
		h.fix("level weight", s.LevelWeight, w)
		s.LevelWeight = w
	}
	s.Connectivity = float64(s.Levels[last] - 1)
}

func checkLinear(s *Spec, h *healer) {
	if s.Size < 3 {
		h.size(&s.Size, 3)
	}
	k := int(math.Round(s.Connectivity))
	if k < 2 {
		k = 2
	}
	if k%2 == 1 {
		k++
	}
	for k > s.Size-1 && k > 2 {
		k -= 2
	}
	h.degree(&s.Connectivity, float64(k))
}

func checkRewiring(s *Spec, h *healer) {
	if s.RewireUndirected < 0 {
		h.fix("rewire undirected", s.RewireUndirected, 0.0)
		s.RewireUndirected = 0
	}
	if s.RewireDirected < 0 {
		h.fix("rewire directed", s.RewireDirected, 0.0)
		s.RewireDirected = 0
	}
	switch s.Kind {
	case MeanField, Complete, Hierarchy:
		if s.RewireUndirected > 0 || s.RewireDirected > 0 {
			h.fix("rewire", fmt.Sprintf("%g/%g", s.RewireUndirected, s.RewireDirected), "0/0")
			s.RewireUndirected, s.RewireDirected = 0, 0
		}
	}
	if s.Kind.Directed() && s.RewireUndirected > 0 {
		h.fix("rewire undirected", s.RewireUndirected, 0.0)
		s.RewireUndirected = 0
	}
}

func clampDegree(k, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, k))
}

// nearestRoot returns the integer d-th root of n rounded to nearest.
func nearestRoot(n, d int) int {
	return int(math.Round(math.Pow(float64(n), 1/float64(d))))
}

func amplifierSize(u int) int  { return u*u*u + u*u + u }
func suppressorSize(u int) int { return u * u * (1 + u) }

// nearestUnit returns the unit u >= 2 whose size formula is closest to n.
func nearestUnit(n int, size func(int) int) int {
	best := 2
	for u := 2; ; u++ {
		if abs(size(u)-n) < abs(size(best)-n) {
			best = u
		}
		if size(u) > n {
			return best
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
