package geometry

import "math"

// offset2 is a neighbor displacement on a square grid.
type offset2 struct{ dx, dy int }

// offset3 is a neighbor displacement on a cubic grid.
type offset3 struct{ dx, dy, dz int }

var (
	neumann    = []offset2{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	neumann2nd = []offset2{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	// axial coordinates of the triangular lattice
	triangular = []offset2{{0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}}
)

// wrap maps a coordinate onto [0, side) for periodic boundaries and reports
// whether it lies on the lattice for fixed boundaries.
func (g *Geometry) wrap(x, side int) (int, bool) {
	if x >= 0 && x < side {
		return x, true
	}
	if g.Spec.FixedBoundary {
		return 0, false
	}
	return ((x % side) + side) % side, true
}

func (g *Geometry) initLinear() {
	n := g.Size
	half := int(g.Spec.Connectivity) / 2
	for i := 0; i < n; i++ {
		for d := 1; d <= half; d++ {
			if j, ok := g.wrap(i+d, n); ok {
				g.addEdgeUnique(i, j)
			}
		}
	}
}

func squareOffsets(kind Kind, k int) []offset2 {
	switch kind {
	case SquareNeumann:
		return neumann
	case SquareNeumann2nd:
		return neumann2nd
	}
	r := 1
	if kind == Square {
		r = int(math.Round((math.Sqrt(float64(k+1)) - 1) / 2))
	}
	offs := make([]offset2, 0, (2*r+1)*(2*r+1)-1)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx != 0 || dy != 0 {
				offs = append(offs, offset2{dx, dy})
			}
		}
	}
	return offs
}

// initPlane links every cell of a side x side grid to the given offsets.
// Fixed boundaries drop links leaving the grid, so edge and corner cells
// end up with reduced neighborhoods.
func (g *Geometry) initPlane(offs []offset2) {
	side := int(math.Round(math.Sqrt(float64(g.Size))))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			i := y*side + x
			for _, o := range offs {
				nx, okx := g.wrap(x+o.dx, side)
				ny, oky := g.wrap(y+o.dy, side)
				if !okx || !oky {
					continue
				}
				g.addEdgeUnique(i, ny*side+nx)
			}
		}
	}
}

func (g *Geometry) initSquare() {
	g.initPlane(squareOffsets(g.Kind, int(g.Spec.Connectivity)))
}

func (g *Geometry) initTriangular() {
	g.initPlane(triangular)
}

// initHoneycomb realizes the hexagonal lattice as a brick wall: every cell
// links left and right plus one vertical neighbor whose direction alternates
// with the parity of x+y.
func (g *Geometry) initHoneycomb() {
	side := int(math.Round(math.Sqrt(float64(g.Size))))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			i := y*side + x
			for _, dx := range []int{-1, 1} {
				if nx, ok := g.wrap(x+dx, side); ok {
					g.addEdgeUnique(i, y*side+nx)
				}
			}
			dy := -1
			if (x+y)%2 == 0 {
				dy = 1
			}
			if ny, ok := g.wrap(y+dy, side); ok {
				g.addEdgeUnique(i, ny*side+x)
			}
		}
	}
}

func (g *Geometry) initCube() {
	side := int(math.Round(math.Cbrt(float64(g.Size))))
	var offs []offset3
	if g.Spec.Connectivity == 6 {
		offs = []offset3{{0, 0, -1}, {0, -1, 0}, {-1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	} else {
		r := int(math.Round((math.Cbrt(g.Spec.Connectivity+1) - 1) / 2))
		for dz := -r; dz <= r; dz++ {
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					if dx != 0 || dy != 0 || dz != 0 {
						offs = append(offs, offset3{dx, dy, dz})
					}
				}
			}
		}
	}
	for z := 0; z < side; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				i := (z*side+y)*side + x
				for _, o := range offs {
					nx, okx := g.wrap(x+o.dx, side)
					ny, oky := g.wrap(y+o.dy, side)
					nz, okz := g.wrap(z+o.dz, side)
					if !okx || !oky || !okz {
						continue
					}
					g.addEdgeUnique(i, (nz*side+ny)*side+nx)
				}
			}
		}
	}
}
