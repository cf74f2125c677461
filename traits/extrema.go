package traits

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Extremum is a point of [0,1]^d together with its function value.
type Extremum struct {
	X     []float64
	Value float64
}

// SearchOptions tune the coarse-to-fine grid search.
type SearchOptions struct {
	// Bins per dimension and refinement round.
	Bins int
	// Rounds of interval refinement.
	Rounds int
	// Polish refines the grid optimum with Nelder-Mead.
	Polish bool
}

// DefaultSearch is used when zero options are passed.
var DefaultSearch = SearchOptions{Bins: 10, Rounds: 5}

// Extrema finds the minimum and maximum of f over [0,1]^dim. Every round
// evaluates all bin combinations of the current intervals and shrinks each
// interval around the best bin. This brute-force search does not get stuck
// in local optima of rough payoff landscapes.
func Extrema(f func(x []float64) float64, dim int, opts SearchOptions) (lo, hi Extremum) {
	if opts.Bins < 1 {
		opts.Bins = DefaultSearch.Bins
	}
	if opts.Rounds < 1 {
		opts.Rounds = DefaultSearch.Rounds
	}
	lo = gridSearch(f, dim, opts, -1)
	hi = gridSearch(f, dim, opts, 1)
	if opts.Polish {
		lo = polish(f, lo, -1)
		hi = polish(f, hi, 1)
	}
	return lo, hi
}

// gridSearch maximizes sign*f.
func gridSearch(f func([]float64) float64, dim int, opts SearchOptions, sign float64) Extremum {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1
	}
	x := make([]float64, dim)
	idx := make([]int, dim)
	best := Extremum{X: make([]float64, dim), Value: math.Inf(-1)}

	for round := 0; round < opts.Rounds; round++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			for d := range x {
				x[d] = lower[d] + (upper[d]-lower[d])*float64(idx[d])/float64(opts.Bins)
			}
			if v := sign * f(x); v > best.Value {
				best.Value = v
				copy(best.X, x)
			}
			// odometer over all bin combinations
			d := 0
			for ; d < dim; d++ {
				idx[d]++
				if idx[d] <= opts.Bins {
					break
				}
				idx[d] = 0
			}
			if d == dim {
				break
			}
		}
		for d := range lower {
			w := (upper[d] - lower[d]) / float64(opts.Bins)
			lower[d] = math.Max(0, best.X[d]-w)
			upper[d] = math.Min(1, best.X[d]+w)
		}
	}
	best.Value *= sign
	return best
}

// polish runs Nelder-Mead from the grid optimum on f clamped to the unit
// cube and keeps the result only if it improves.
func polish(f func([]float64) float64, start Extremum, sign float64) Extremum {
	clamped := make([]float64, len(start.X))
	eval := func(x []float64) float64 {
		for i, v := range x {
			clamped[i] = math.Min(1, math.Max(0, v))
		}
		return -sign * f(clamped)
	}
	res, err := optimize.Minimize(
		optimize.Problem{Func: eval},
		append([]float64(nil), start.X...),
		&optimize.Settings{FuncEvaluations: 200 * (len(start.X) + 1)},
		&optimize.NelderMead{},
	)
	if err != nil || res == nil {
		return start
	}
	v := -res.F * sign
	if sign*v <= sign*start.Value {
		return start
	}
	x := make([]float64, len(res.X))
	for i, xi := range res.X {
		x[i] = math.Min(1, math.Max(0, xi))
	}
	return Extremum{X: x, Value: f(x)}
}
