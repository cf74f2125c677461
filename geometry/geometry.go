// Package geometry builds and maintains the networks on which individual
// based populations interact and reproduce.
//
// A Geometry stores, for every site, the outgoing neighbors (whom the site
// affects or replaces) and the incoming neighbors (who affects the site).
// Undirected graphs keep identical lists. Geometries are rebuilt from their
// Spec whenever a structural parameter changes; only rewiring and explicit
// link operations mutate an existing instance.
package geometry

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// maxRetries bounds the attempts of randomized constructions before the
// geometry falls back to mean-field.
const maxRetries = 10

// realizeRandom performs one attempt at a randomized construction.
var realizeRandom = (*Geometry).initRandom

// Stats holds degree statistics of a geometry.
type Stats struct {
	MinOut, MaxOut int
	MinIn, MaxIn   int
	MinTot, MaxTot int
	AvgOut, AvgIn  float64
	AvgTot         float64
	Regular        bool
}

// Geometry is the adjacency structure over Size sites.
type Geometry struct {
	Spec Spec

	Kind     Kind
	Size     int
	Directed bool
	Rewired  bool

	// Out and In are nil for mean-field geometries.
	Out [][]int
	In  [][]int

	// hierarchy unit sizes from the deme upwards.
	units []int

	stats     Stats
	evaluated bool

	rng    *rand.Rand
	logger *slog.Logger
}

// Build constructs the geometry described by spec. The spec is checked
// first; corrections are logged. Randomized families that repeatedly fail
// to realize degrade to mean-field with a warning.
func Build(spec Spec, rng *rand.Rand, logger *slog.Logger) (*Geometry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	spec, _, err := spec.Check(logger)
	if err != nil {
		return nil, err
	}

	g := &Geometry{
		Spec:     spec,
		Kind:     spec.Kind,
		Size:     spec.Size,
		Directed: spec.Kind.Directed(),
		rng:      rng,
		logger:   logger,
	}
	if g.Kind == MeanField {
		return g, nil
	}
	g.alloc()

	ok := true
	switch g.Kind {
	case Complete:
		g.initComplete()
	case Hierarchy:
		g.initHierarchy()
	case Star:
		g.initStar()
	case Wheel:
		g.initWheel()
	case SuperStar:
		g.initSuperStar()
	case StrongAmplifier:
		g.initAmplifier()
	case StrongSuppressor:
		g.initSuppressor()
	case Linear:
		g.initLinear()
	case SquareNeumann, SquareNeumann2nd, SquareMoore, Square:
		g.initSquare()
	case Cube:
		g.initCube()
	case Honeycomb:
		g.initHoneycomb()
	case Triangular:
		g.initTriangular()
	case Frucht, Tietze, Franklin, Heawood, Icosahedron, Dodecahedron, Desargues:
		g.initNamed()
	case RandomRegular, RandomGraph, RandomGraphDirected, ScaleFree, ScaleFreeBA, ScaleFreeKlemm:
		ok = g.retry(func() bool { return realizeRandom(g) })
	}
	if !ok {
		logger.Warn("geometry construction failed, falling back to mean-field",
			"geometry", spec.Kind.String(),
			"size", spec.Size,
			"retries", maxRetries,
		)
		g.Kind = MeanField
		g.Directed = false
		g.Out, g.In = nil, nil
		return g, nil
	}

	if spec.RewireUndirected > 0 {
		if err := g.RewireUndirected(spec.RewireUndirected); err != nil {
			logger.Warn("undirected rewiring skipped", "geometry", g.Kind.String(), "error", err)
		}
	}
	if spec.RewireDirected > 0 {
		if err := g.RewireDirected(spec.RewireDirected); err != nil {
			logger.Warn("directed rewiring skipped", "geometry", g.Kind.String(), "error", err)
		}
	}
	return g, nil
}

// retry runs a randomized construction until it succeeds or the retry budget
// is spent, clearing partial adjacency between attempts.
func (g *Geometry) retry(init func() bool) bool {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if init() {
			return true
		}
		g.logger.Debug("randomized construction failed, retrying",
			"geometry", g.Kind.String(), "attempt", attempt+1)
		g.alloc()
	}
	return false
}

func (g *Geometry) alloc() {
	g.Out = make([][]int, g.Size)
	g.In = make([][]int, g.Size)
	g.evaluated = false
}

// IsMeanField reports whether the geometry has no explicit links.
func (g *Geometry) IsMeanField() bool { return g.Kind == MeanField }

// Neighbors returns the outgoing (out=true) or incoming neighbors of i. The
// slice is owned by the geometry.
func (g *Geometry) Neighbors(i int, out bool) []int {
	if g.Out == nil {
		return nil
	}
	if out {
		return g.Out[i]
	}
	return g.In[i]
}

// IsNeighbor reports whether the link from -> to exists.
func (g *Geometry) IsNeighbor(from, to int) bool {
	if g.IsMeanField() {
		return from != to
	}
	return slices.Contains(g.Out[from], to)
}

// AddLink adds the directed link from -> to. Duplicates are not checked.
func (g *Geometry) AddLink(from, to int) {
	g.Out[from] = append(g.Out[from], to)
	g.In[to] = append(g.In[to], from)
	g.evaluated = false
}

// RemoveLink removes the directed link from -> to if present.
func (g *Geometry) RemoveLink(from, to int) {
	g.Out[from] = removeOne(g.Out[from], to)
	g.In[to] = removeOne(g.In[to], from)
	g.evaluated = false
}

// AddEdge adds the undirected edge a - b.
func (g *Geometry) AddEdge(a, b int) {
	g.AddLink(a, b)
	g.AddLink(b, a)
}

// RemoveEdge removes the undirected edge a - b.
func (g *Geometry) RemoveEdge(a, b int) {
	g.RemoveLink(a, b)
	g.RemoveLink(b, a)
}

// addEdgeUnique adds a - b unless it is a self-link or already present.
func (g *Geometry) addEdgeUnique(a, b int) {
	if a == b || slices.Contains(g.Out[a], b) {
		return
	}
	g.AddEdge(a, b)
}

func (g *Geometry) addLinkUnique(from, to int) {
	if from == to || slices.Contains(g.Out[from], to) {
		return
	}
	g.AddLink(from, to)
}

func removeOne(s []int, v int) []int {
	if i := slices.Index(s, v); i >= 0 {
		s[i] = s[len(s)-1]
		return s[:len(s)-1]
	}
	return s
}

// Links returns the total number of directed links.
func (g *Geometry) Links() int {
	if g.IsMeanField() {
		return g.Size * (g.Size - 1)
	}
	n := 0
	for _, out := range g.Out {
		n += len(out)
	}
	return n
}

// Evaluate recomputes the degree statistics.
func (g *Geometry) Evaluate() Stats {
	n := g.Size
	if g.IsMeanField() {
		k := n - 1
		g.stats = Stats{
			MinOut: k, MaxOut: k, MinIn: k, MaxIn: k, MinTot: 2 * k, MaxTot: 2 * k,
			AvgOut: float64(k), AvgIn: float64(k), AvgTot: float64(2 * k),
			Regular: true,
		}
		g.evaluated = true
		return g.stats
	}

	s := Stats{MinOut: math.MaxInt, MinIn: math.MaxInt, MinTot: math.MaxInt}
	var sumOut, sumIn int
	for i := 0; i < n; i++ {
		kout, kin := len(g.Out[i]), len(g.In[i])
		tot := kout + kin
		s.MinOut, s.MaxOut = min(s.MinOut, kout), max(s.MaxOut, kout)
		s.MinIn, s.MaxIn = min(s.MinIn, kin), max(s.MaxIn, kin)
		s.MinTot, s.MaxTot = min(s.MinTot, tot), max(s.MaxTot, tot)
		sumOut += kout
		sumIn += kin
	}
	s.AvgOut = float64(sumOut) / float64(n)
	s.AvgIn = float64(sumIn) / float64(n)
	s.AvgTot = float64(sumOut+sumIn) / float64(n)
	s.Regular = s.MinOut == s.MaxOut && s.MinIn == s.MaxIn
	g.stats = s
	g.evaluated = true
	return s
}

// Stats returns the cached degree statistics, evaluating them if needed.
func (g *Geometry) Stats() Stats {
	if !g.evaluated {
		return g.Evaluate()
	}
	return g.stats
}

// IsConnected reports whether every site can reach every other site when
// link directions are ignored.
func (g *Geometry) IsConnected() bool {
	if g.IsMeanField() || g.Size <= 1 {
		return true
	}
	cc := topo.ConnectedComponents(graph.Undirect{G: graphView{g}})
	return len(cc) == 1
}

// CheckLinks verifies that every outgoing link has its incoming counterpart
// and, for undirected geometries, that lists are symmetric.
func (g *Geometry) CheckLinks() error {
	if g.IsMeanField() {
		return nil
	}
	for i, out := range g.Out {
		for _, j := range out {
			if j < 0 || j >= g.Size {
				return fmt.Errorf("%w: link %d->%d out of range", ErrAdjacency, i, j)
			}
			if i == j {
				return fmt.Errorf("%w: self-link at %d", ErrAdjacency, i)
			}
			if !slices.Contains(g.In[j], i) {
				return fmt.Errorf("%w: link %d->%d has no incoming entry", ErrAdjacency, i, j)
			}
			if !g.Directed && !slices.Contains(g.Out[j], i) {
				return fmt.Errorf("%w: undirected link %d->%d is one-sided", ErrAdjacency, i, j)
			}
		}
	}
	return nil
}

// Adjacency returns a copy of the outgoing adjacency lists.
func (g *Geometry) Adjacency() [][]int {
	if g.IsMeanField() {
		return nil
	}
	out := make([][]int, g.Size)
	for i, l := range g.Out {
		out[i] = slices.Clone(l)
	}
	return out
}

// SetAdjacency replaces the links with the given outgoing adjacency lists,
// rebuilding the incoming lists. The geometry is left untouched on error.
func (g *Geometry) SetAdjacency(out [][]int) error {
	ng, err := g.fromAdjacency(out)
	if err != nil {
		return err
	}
	g.Out, g.In = ng.Out, ng.In
	g.evaluated = false
	return nil
}

// ValidateAdjacency reports whether out could be passed to SetAdjacency.
func (g *Geometry) ValidateAdjacency(out [][]int) error {
	_, err := g.fromAdjacency(out)
	return err
}

func (g *Geometry) fromAdjacency(out [][]int) (*Geometry, error) {
	if g.IsMeanField() {
		if len(out) != 0 {
			return nil, fmt.Errorf("%w: links on a mean-field geometry", ErrAdjacency)
		}
		return g, nil
	}
	if len(out) != g.Size {
		return nil, fmt.Errorf("%w: %d lists for %d sites", ErrAdjacency, len(out), g.Size)
	}
	ng := &Geometry{Spec: g.Spec, Kind: g.Kind, Size: g.Size, Directed: g.Directed, Rewired: g.Rewired}
	ng.alloc()
	for i, l := range out {
		for _, j := range l {
			if j < 0 || j >= g.Size || j == i || slices.Contains(ng.Out[i], j) {
				return nil, fmt.Errorf("%w: link %d->%d", ErrAdjacency, i, j)
			}
			ng.AddLink(i, j)
		}
	}
	if err := ng.CheckLinks(); err != nil {
		return nil, err
	}
	return ng, nil
}

// Units returns the sizes of the hierarchy units from the deme upwards; the
// last entry equals Size. Nil for other families.
func (g *Geometry) Units() []int { return g.units }

// graphView exposes the adjacency lists as a gonum directed graph.
type graphView struct{ g *Geometry }

func (v graphView) Node(id int64) graph.Node {
	if id < 0 || id >= int64(v.g.Size) {
		return nil
	}
	return simple.Node(id)
}

func (v graphView) Nodes() graph.Nodes {
	nodes := make([]graph.Node, v.g.Size)
	for i := range nodes {
		nodes[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (v graphView) nodes(ids []int) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = simple.Node(id)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (v graphView) From(id int64) graph.Nodes { return v.nodes(v.g.Out[id]) }
func (v graphView) To(id int64) graph.Nodes   { return v.nodes(v.g.In[id]) }

func (v graphView) HasEdgeFromTo(uid, vid int64) bool {
	return slices.Contains(v.g.Out[uid], int(vid))
}

func (v graphView) HasEdgeBetween(xid, yid int64) bool {
	return v.HasEdgeFromTo(xid, yid) || v.HasEdgeFromTo(yid, xid)
}

func (v graphView) Edge(uid, vid int64) graph.Edge {
	if !v.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}
