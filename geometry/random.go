package geometry

import (
	"math"
	"slices"
	"sort"
)

// initRandom builds one of the randomized families. It reports false if the
// realization hit a dead end; the caller retries.
func (g *Geometry) initRandom() bool {
	switch g.Kind {
	case RandomRegular:
		k := int(g.Spec.Connectivity)
		degrees := make([]int, g.Size)
		for i := range degrees {
			degrees[i] = k
		}
		return g.realize(degrees)
	case ScaleFree:
		return g.realize(g.degreeSequence())
	case RandomGraph:
		return g.initRandomGraph()
	case RandomGraphDirected:
		return g.initRandomDigraph()
	case ScaleFreeBA:
		g.initBarabasiAlbert()
		return true
	case ScaleFreeKlemm:
		g.initKlemm()
		return true
	}
	return false
}

// degreeSequence draws a degree sequence with mean Connectivity. With a zero
// exponent the sequence is as uniform as the mean allows, otherwise degrees
// follow a truncated power law d^-Exponent on [1, Size-1] that is then
// shifted to the requested mean.
func (g *Geometry) degreeSequence() []int {
	n := g.Size
	rng := g.rng
	target := int(math.Round(g.Spec.Connectivity * float64(n)))
	if target%2 == 1 {
		target++
	}
	degrees := make([]int, n)

	if g.Spec.Exponent == 0 {
		base := target / n
		extra := target - base*n
		for i := range degrees {
			degrees[i] = base
		}
		for _, i := range rng.Perm(n)[:extra] {
			degrees[i]++
		}
		return degrees
	}

	cum := make([]float64, n-1)
	acc := 0.0
	for d := 1; d < n; d++ {
		acc += math.Pow(float64(d), -g.Spec.Exponent)
		cum[d-1] = acc
	}
	sum := 0
	for i := range degrees {
		degrees[i] = 1 + sort.SearchFloat64s(cum, rng.Float64()*acc)
		sum += degrees[i]
	}
	for sum < target {
		i := rng.IntN(n)
		if degrees[i] < n-1 {
			degrees[i]++
			sum++
		}
	}
	for sum > target {
		i := rng.IntN(n)
		if degrees[i] > 1 {
			degrees[i]--
			sum--
		}
	}
	return degrees
}

// realize links sites so that site i ends up with degrees[i] edges. First a
// connected spanning core is grown by attaching unconnected sites to
// connected ones with free slots; then the remaining slots are saturated by
// joining random pairs. Dead ends caused by duplicate edges are rescued with
// an edge swap.
func (g *Geometry) realize(degrees []int) bool {
	n := g.Size
	rng := g.rng
	free := slices.Clone(degrees)

	order := rng.Perm(n)
	// sites with degree >= 2 first so the core never runs out of free slots
	slices.SortStableFunc(order, func(a, b int) int {
		return boolRank(free[a] < 2) - boolRank(free[b] < 2)
	})
	active := []int{order[0]}
	for _, b := range order[1:] {
		if len(active) == 0 {
			return false
		}
		ai := rng.IntN(len(active))
		a := active[ai]
		g.AddEdge(a, b)
		free[a]--
		free[b]--
		if free[a] == 0 {
			active[ai] = active[len(active)-1]
			active = active[:len(active)-1]
		}
		if free[b] > 0 {
			active = append(active, b)
		}
	}

	var stubs []int
	for i, f := range free {
		for ; f > 0; f-- {
			stubs = append(stubs, i)
		}
	}
	if len(stubs)%2 == 1 {
		return false
	}
	for len(stubs) > 0 {
		linked := false
		for try := 0; try < 2*len(stubs)+10; try++ {
			i, j := rng.IntN(len(stubs)), rng.IntN(len(stubs))
			a, b := stubs[i], stubs[j]
			if i == j || a == b || g.IsNeighbor(a, b) {
				continue
			}
			g.AddEdge(a, b)
			stubs = removeStubs(stubs, i, j)
			linked = true
			break
		}
		if linked {
			continue
		}
		i := rng.IntN(len(stubs))
		j := (i + 1 + rng.IntN(len(stubs)-1)) % len(stubs)
		if !g.rescue(stubs[i], stubs[j]) {
			return false
		}
		stubs = removeStubs(stubs, i, j)
	}
	return g.IsConnected()
}

// rescue consumes one free slot of a and one of b (two of a if a == b) by
// breaking a random edge c-d and reconnecting a-c and b-d.
func (g *Geometry) rescue(a, b int) bool {
	rng := g.rng
	for try := 0; try < 10*g.Size; try++ {
		c := rng.IntN(g.Size)
		if len(g.Out[c]) == 0 {
			continue
		}
		d := g.Out[c][rng.IntN(len(g.Out[c]))]
		if c == a || c == b || d == a || d == b {
			continue
		}
		if g.IsNeighbor(a, c) || g.IsNeighbor(b, d) {
			continue
		}
		g.RemoveEdge(c, d)
		g.AddEdge(a, c)
		g.AddEdge(b, d)
		return true
	}
	return false
}

func removeStubs(stubs []int, i, j int) []int {
	if i < j {
		i, j = j, i
	}
	last := len(stubs) - 1
	stubs[i] = stubs[last]
	stubs = stubs[:last]
	last--
	stubs[j] = stubs[last]
	return stubs[:last]
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// initRandomGraph grows a random spanning tree and adds random edges until
// the mean degree is reached.
func (g *Geometry) initRandomGraph() bool {
	n := g.Size
	rng := g.rng
	order := rng.Perm(n)
	for i := 1; i < n; i++ {
		g.AddEdge(order[i], order[rng.IntN(i)])
	}
	target := int(math.Round(g.Spec.Connectivity * float64(n) / 2))
	edges := n - 1
	for tries := 0; edges < target; tries++ {
		if tries > 100*target {
			return false
		}
		a, b := rng.IntN(n), rng.IntN(n)
		if a == b || g.IsNeighbor(a, b) {
			continue
		}
		g.AddEdge(a, b)
		edges++
	}
	return true
}

// initRandomDigraph starts from a random directed cycle, which keeps the
// graph strongly connected, and adds random links until the mean total
// degree is reached.
func (g *Geometry) initRandomDigraph() bool {
	n := g.Size
	rng := g.rng
	order := rng.Perm(n)
	for i := 0; i < n; i++ {
		g.AddLink(order[i], order[(i+1)%n])
	}
	target := int(math.Round(g.Spec.Connectivity * float64(n) / 2))
	links := n
	for tries := 0; links < target; tries++ {
		if tries > 100*target {
			return false
		}
		a, b := rng.IntN(n), rng.IntN(n)
		if a == b || g.IsNeighbor(a, b) {
			continue
		}
		g.AddLink(a, b)
		links++
	}
	return true
}

// initBarabasiAlbert grows the graph by preferential attachment: every new
// site links to Connectivity/2 distinct existing sites chosen with
// probability proportional to their degree.
func (g *Geometry) initBarabasiAlbert() {
	n := g.Size
	rng := g.rng
	m := int(g.Spec.Connectivity) / 2
	var pool []int // every site appears once per incident edge
	for i := 0; i <= m; i++ {
		for j := i + 1; j <= m; j++ {
			g.AddEdge(i, j)
			pool = append(pool, i, j)
		}
	}
	for s := m + 1; s < n; s++ {
		for added := 0; added < m; {
			t := pool[rng.IntN(len(pool))]
			if g.IsNeighbor(s, t) {
				continue
			}
			g.AddEdge(s, t)
			added++
		}
		for _, t := range g.Out[s] {
			pool = append(pool, s, t)
		}
	}
}

// initKlemm implements the Klemm-Eguiluz model: new sites link to all active
// sites, each link being redirected to a preferentially chosen site with
// probability Mixing. The newcomer becomes active and one active site is
// deactivated with probability inversely proportional to its degree.
func (g *Geometry) initKlemm() {
	n := g.Size
	rng := g.rng
	m := int(g.Spec.Connectivity) / 2
	active := make([]int, 0, m+1)
	var pool []int
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			g.AddEdge(i, j)
			pool = append(pool, i, j)
		}
		active = append(active, i)
	}
	weights := make([]float64, 0, m+1)
	for s := m; s < n; s++ {
		for _, a := range active {
			t := a
			if len(pool) > 0 && rng.Float64() < g.Spec.Mixing {
				for try := 0; try < 10*m; try++ {
					c := pool[rng.IntN(len(pool))]
					if c != s && !g.IsNeighbor(s, c) {
						t = c
						break
					}
				}
			}
			if g.IsNeighbor(s, t) {
				continue
			}
			g.AddEdge(s, t)
			pool = append(pool, s, t)
		}
		active = append(active, s)
		if len(active) <= m {
			continue
		}
		weights = weights[:0]
		total := 0.0
		for _, a := range active {
			w := 1 / float64(max(1, len(g.Out[a])))
			total += w
			weights = append(weights, total)
		}
		k := sort.SearchFloat64s(weights, rng.Float64()*total)
		k = min(k, len(active)-1)
		active = slices.Delete(active, k, k+1)
	}
}
