package geometry

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
)

func newRand() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func build(t *testing.T, spec Spec) *Geometry {
	t.Helper()
	g, err := Build(spec, newRand(), nil)
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", spec.Kind, err)
	}
	if err := g.CheckLinks(); err != nil {
		t.Fatalf("Build(%s) produced inconsistent links: %v", spec.Kind, err)
	}
	return g
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"n", SquareNeumann},
		{"N", SquareNeumann2nd},
		{"neumann", SquareNeumann},
		{" Moore ", SquareMoore},
		{"M", MeanField},
		{"scalefree-ba", ScaleFreeBA},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseKind("x"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	for _, k := range Kinds() {
		if got, err := ParseKind(k.Key()); err != nil || got != k {
			t.Errorf("key %q of %s does not round trip", k.Key(), k)
		}
	}
}

func TestSpecCheckHeals(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		wantSize int
		wantK    float64
	}{
		{"neumann rounds to square", Spec{Kind: SquareNeumann, Size: 90}, 81, 4},
		{"moore degree forced", Spec{Kind: SquareMoore, Size: 100, Connectivity: 4}, 100, 8},
		{"linear odd degree", Spec{Kind: Linear, Size: 20, Connectivity: 3}, 20, 4},
		{"random regular parity", Spec{Kind: RandomRegular, Size: 11, Connectivity: 3}, 12, 3},
		{"honeycomb even side", Spec{Kind: Honeycomb, Size: 81}, 100, 3},
		{"named size", Spec{Kind: Heawood, Size: 10}, 14, 3},
		{"hierarchy size from levels", Spec{Kind: Hierarchy, Size: 7, Levels: []int{2, 5}}, 10, 4},
		{"amplifier unit", Spec{Kind: StrongAmplifier, Size: 15}, 14, 0},
		{"hierarchy drops unit levels", Spec{Kind: Hierarchy, Levels: []int{1, 10}, LevelWeight: 0.5}, 10, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := tt.spec.Check(nil)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if !changed {
				t.Error("expected the spec to be corrected")
			}
			if got.Size != tt.wantSize {
				t.Errorf("size = %d, want %d", got.Size, tt.wantSize)
			}
			if tt.wantK != 0 && got.Connectivity != tt.wantK {
				t.Errorf("connectivity = %v, want %v", got.Connectivity, tt.wantK)
			}
		})
	}

	ok := Spec{Kind: SquareNeumann, Size: 100, Connectivity: 4}
	if _, changed, _ := ok.Check(nil); changed {
		t.Error("a feasible spec should pass unchanged")
	}
	if _, _, err := (Spec{Kind: Kind(99), Size: 10}).Check(nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRegularLattices(t *testing.T) {
	tests := []struct {
		spec      Spec
		degree    int
		connected bool
	}{
		{Spec{Kind: Linear, Size: 50, Connectivity: 4}, 4, true},
		{Spec{Kind: SquareNeumann, Size: 100}, 4, true},
		// diagonal neighbors split an even lattice by parity
		{Spec{Kind: SquareNeumann2nd, Size: 100}, 4, false},
		{Spec{Kind: SquareMoore, Size: 100}, 8, true},
		{Spec{Kind: Square, Size: 100, Connectivity: 24}, 24, true},
		{Spec{Kind: Cube, Size: 125, Connectivity: 6}, 6, true},
		{Spec{Kind: Cube, Size: 125, Connectivity: 26}, 26, true},
		{Spec{Kind: Honeycomb, Size: 100}, 3, true},
		{Spec{Kind: Triangular, Size: 100}, 6, true},
		{Spec{Kind: Triangular, Size: 25}, 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec.Kind.String(), func(t *testing.T) {
			g := build(t, tt.spec)
			s := g.Stats()
			if !s.Regular || s.MinOut != tt.degree || s.MaxOut != tt.degree {
				t.Errorf("stats = %+v, want regular degree %d", s, tt.degree)
			}
			if s.MinIn != tt.degree || s.AvgTot != float64(2*tt.degree) {
				t.Errorf("in-degree stats = %+v", s)
			}
			if g.Directed {
				t.Error("lattice should be undirected")
			}
			if g.IsConnected() != tt.connected {
				t.Errorf("connected = %t, want %t", g.IsConnected(), tt.connected)
			}
		})
	}
}

func TestVonNeumannNeighbors(t *testing.T) {
	g := build(t, Spec{Kind: SquareNeumann, Size: 100, Connectivity: 4})
	got := slices.Sorted(slices.Values(g.Neighbors(0, true)))
	want := []int{1, 9, 10, 90}
	if !slices.Equal(got, want) {
		t.Errorf("neighbors of 0 = %v, want %v", got, want)
	}
	if !g.IsNeighbor(55, 45) || g.IsNeighbor(55, 66) {
		t.Error("unexpected neighborhood of site 55")
	}
	if g.Links() != 400 {
		t.Errorf("links = %d, want 400", g.Links())
	}
}

func TestFixedBoundary(t *testing.T) {
	g := build(t, Spec{Kind: SquareNeumann, Size: 100, FixedBoundary: true})
	s := g.Stats()
	if s.MinOut != 2 || s.MaxOut != 4 || s.Regular {
		t.Errorf("stats = %+v, want corners of degree 2", s)
	}
	if len(g.Neighbors(0, true)) != 2 || len(g.Neighbors(1, true)) != 3 {
		t.Error("unexpected boundary degrees")
	}
	if !g.IsConnected() {
		t.Error("fixed boundary lattice should be connected")
	}
}

func TestNamedGraphs(t *testing.T) {
	tests := []struct {
		kind   Kind
		size   int
		degree int
	}{
		{Frucht, 12, 3},
		{Tietze, 12, 3},
		{Franklin, 12, 3},
		{Heawood, 14, 3},
		{Icosahedron, 12, 5},
		{Dodecahedron, 20, 3},
		{Desargues, 20, 3},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			g := build(t, Spec{Kind: tt.kind})
			if g.Size != tt.size {
				t.Errorf("size = %d, want %d", g.Size, tt.size)
			}
			s := g.Stats()
			if !s.Regular || s.MinOut != tt.degree {
				t.Errorf("stats = %+v, want %d-regular", s, tt.degree)
			}
			if !g.IsConnected() {
				t.Error("named graph should be connected")
			}
		})
	}
}

func TestStructuredGraphs(t *testing.T) {
	star := build(t, Spec{Kind: Star, Size: 10})
	if len(star.Neighbors(0, true)) != 9 || len(star.Neighbors(5, true)) != 1 {
		t.Error("star hub should link every leaf")
	}

	wheel := build(t, Spec{Kind: Wheel, Size: 10})
	if len(wheel.Neighbors(0, true)) != 9 || len(wheel.Neighbors(3, true)) != 3 {
		t.Error("wheel rim sites should have degree 3")
	}

	complete := build(t, Spec{Kind: Complete, Size: 10})
	if s := complete.Stats(); !s.Regular || s.MinOut != 9 {
		t.Errorf("complete stats = %+v", s)
	}

	h := build(t, Spec{Kind: Hierarchy, Size: 10, Levels: []int{2, 5}})
	if !slices.Equal(h.Units(), []int{5, 10}) {
		t.Errorf("units = %v, want [5 10]", h.Units())
	}
	if h.IsNeighbor(0, 5) || !h.IsNeighbor(0, 4) {
		t.Error("hierarchy demes should be disjoint cliques")
	}

	ss := build(t, Spec{Kind: SuperStar, Size: 31, Petals: 3, Amplification: 4})
	if !ss.Directed || !ss.IsConnected() {
		t.Error("super-star should be a connected digraph")
	}
	if len(ss.Neighbors(0, false)) != 3 {
		t.Errorf("hub has %d incoming links, want one per petal", len(ss.Neighbors(0, false)))
	}

	amp := build(t, Spec{Kind: StrongAmplifier, Size: 14})
	sup := build(t, Spec{Kind: StrongSuppressor, Size: 12})
	for _, g := range []*Geometry{amp, sup} {
		if !g.IsConnected() {
			t.Errorf("%s should be connected", g.Kind)
		}
	}
}

func TestCheckHierarchyLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	got, _, err := Spec{Kind: Hierarchy, Levels: []int{0, 3, 1, 4}, LevelWeight: 0.5}.Check(logger)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !slices.Equal(got.Levels, []int{3, 4}) || got.Size != 12 {
		t.Errorf("levels = %v size = %d, want [3 4] and 12", got.Levels, got.Size)
	}
	g := build(t, got)
	if !slices.Equal(g.Units(), []int{4, 12}) {
		t.Errorf("units = %v, want [4 12]", g.Units())
	}

	buf.Reset()
	got, _, err = Spec{Kind: Hierarchy, Levels: []int{2, 5}}.Check(logger)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if got.Size != 10 {
		t.Errorf("size = %d, want 10", got.Size)
	}
	if strings.Contains(buf.String(), `"using":2`) {
		t.Errorf("size derived from the levels was first healed to 2: %s", buf.String())
	}
}

func TestRandomFallback(t *testing.T) {
	defer func(f func(*Geometry) bool) { realizeRandom = f }(realizeRandom)
	attempts := 0
	realizeRandom = func(g *Geometry) bool {
		attempts++
		g.AddEdge(0, 1)
		return false
	}

	var buf bytes.Buffer
	g, err := Build(Spec{Kind: RandomRegular, Size: 20, Connectivity: 4}, newRand(), slog.New(slog.NewJSONHandler(&buf, nil)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if attempts != maxRetries {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries)
	}
	if !g.IsMeanField() || g.Out != nil || g.In != nil || g.Directed {
		t.Errorf("failed construction did not fall back to mean-field: kind=%s out=%v", g.Kind, g.Out)
	}
	if g.Size != 20 {
		t.Errorf("size = %d, want 20", g.Size)
	}
	if !strings.Contains(buf.String(), "falling back to mean-field") {
		t.Errorf("fallback not logged: %s", buf.String())
	}

	// partial links of a failed attempt are cleared before the next one
	attempts = 0
	realizeRandom = func(g *Geometry) bool {
		attempts++
		if len(g.Out[0]) != 0 {
			t.Fatalf("attempt %d sees links of a failed attempt", attempts)
		}
		g.AddEdge(0, 1)
		return attempts == 3
	}
	g, err = Build(Spec{Kind: RandomRegular, Size: 20, Connectivity: 4}, newRand(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.IsMeanField() || attempts != 3 {
		t.Errorf("mean-field=%t after %d attempts, want a graph after 3", g.IsMeanField(), attempts)
	}
}

func TestRandomGraphs(t *testing.T) {
	rr := build(t, Spec{Kind: RandomRegular, Size: 100, Connectivity: 4})
	if s := rr.Stats(); !s.Regular || s.MinOut != 4 {
		t.Errorf("random regular stats = %+v", s)
	}
	if !rr.IsConnected() {
		t.Error("random regular graph should be connected")
	}

	tests := []Spec{
		{Kind: RandomGraph, Size: 100, Connectivity: 6},
		{Kind: RandomGraphDirected, Size: 100, Connectivity: 6},
		{Kind: ScaleFree, Size: 100, Connectivity: 4},
		{Kind: ScaleFreeBA, Size: 100, Connectivity: 4},
		{Kind: ScaleFreeKlemm, Size: 100, Connectivity: 6, Mixing: 0.5},
	}
	for _, spec := range tests {
		t.Run(spec.Kind.String(), func(t *testing.T) {
			g := build(t, spec)
			if g.IsMeanField() {
				t.Fatal("construction fell back to mean-field")
			}
			if !g.IsConnected() {
				t.Error("graph should be connected")
			}
			s := g.Stats()
			if s.AvgTot < spec.Connectivity*0.8 || s.AvgTot > spec.Connectivity*2.2 {
				t.Errorf("average total degree %v far from %v", s.AvgTot, spec.Connectivity)
			}
		})
	}
}

func TestRewireUndirectedPreservesDegrees(t *testing.T) {
	g := build(t, Spec{Kind: SquareNeumann, Size: 100})
	before := g.Adjacency()
	if err := g.RewireUndirected(0.5); err != nil {
		t.Fatalf("RewireUndirected failed: %v", err)
	}
	if !g.Rewired {
		t.Error("geometry should be marked rewired")
	}
	if err := g.CheckLinks(); err != nil {
		t.Fatalf("rewiring broke symmetry: %v", err)
	}
	if s := g.Stats(); !s.Regular || s.MinOut != 4 {
		t.Errorf("rewiring changed degrees: %+v", s)
	}
	if !g.IsConnected() {
		t.Error("rewiring disconnected the lattice")
	}
	changed := 0
	for i, l := range g.Adjacency() {
		if !slices.Equal(slices.Sorted(slices.Values(l)), slices.Sorted(slices.Values(before[i]))) {
			changed++
		}
	}
	if changed == 0 {
		t.Error("no neighborhood changed")
	}
}

func TestRewireDirected(t *testing.T) {
	g := build(t, Spec{Kind: SquareNeumann, Size: 100})
	if err := g.Rewire(0, 0.3); err != nil {
		t.Fatalf("Rewire failed: %v", err)
	}
	if !g.Directed {
		t.Error("directed rewiring should make the geometry directed")
	}
	if err := g.CheckLinks(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < g.Size; i++ {
		if len(g.Out[i]) != 4 || len(g.In[i]) != 4 {
			t.Fatalf("site %d has degrees %d/%d, want 4/4", i, len(g.Out[i]), len(g.In[i]))
		}
	}
}

func TestRewireRejected(t *testing.T) {
	mf := build(t, Spec{Kind: MeanField, Size: 10})
	if err := mf.Rewire(0.5, 0); !errors.Is(err, ErrNotRewirable) {
		t.Errorf("expected ErrNotRewirable, got %v", err)
	}
	complete := build(t, Spec{Kind: Complete, Size: 10})
	if err := complete.RewireUndirected(0.5); !errors.Is(err, ErrNotRewirable) {
		t.Errorf("expected ErrNotRewirable, got %v", err)
	}
}

func TestMeanField(t *testing.T) {
	g := build(t, Spec{Kind: MeanField, Size: 10})
	if g.Links() != 90 || !g.IsNeighbor(1, 2) || g.IsNeighbor(3, 3) {
		t.Error("mean-field should link every pair")
	}
	if g.Adjacency() != nil || g.Neighbors(0, true) != nil {
		t.Error("mean-field has no explicit lists")
	}
	if err := g.SetAdjacency(nil); err != nil {
		t.Errorf("empty adjacency should be accepted: %v", err)
	}
	if err := g.SetAdjacency([][]int{{1}}); !errors.Is(err, ErrAdjacency) {
		t.Errorf("expected ErrAdjacency, got %v", err)
	}
}

func TestAdjacencyRoundTrip(t *testing.T) {
	spec := Spec{Kind: RandomRegular, Size: 50, Connectivity: 4}
	a := build(t, spec)
	b, err := Build(spec, rand.New(rand.NewPCG(99, 1)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetAdjacency(a.Adjacency()); err != nil {
		t.Fatalf("SetAdjacency failed: %v", err)
	}
	for i := 0; i < a.Size; i++ {
		if !slices.Equal(a.Out[i], b.Out[i]) {
			t.Fatalf("site %d: %v != %v", i, a.Out[i], b.Out[i])
		}
		if !slices.Equal(slices.Sorted(slices.Values(a.In[i])), slices.Sorted(slices.Values(b.In[i]))) {
			t.Fatalf("incoming lists of site %d differ", i)
		}
	}
}

func TestValidateAdjacency(t *testing.T) {
	g := build(t, Spec{Kind: Linear, Size: 4, Connectivity: 2})
	good := g.Adjacency()

	tests := []struct {
		name string
		adj  [][]int
	}{
		{"wrong length", good[:3]},
		{"self link", [][]int{{0, 1}, {0, 2}, {1, 3}, {2, 0}}},
		{"out of range", [][]int{{1, 7}, {0, 2}, {1, 3}, {2, 0}}},
		{"duplicate", [][]int{{1, 1}, {0, 2}, {1, 3}, {2, 0}}},
		{"one-sided", [][]int{{1, 3}, {0, 2}, {1, 3}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateAdjacency(tt.adj); !errors.Is(err, ErrAdjacency) {
				t.Errorf("expected ErrAdjacency, got %v", err)
			}
		})
	}
	if err := g.ValidateAdjacency(good); err != nil {
		t.Errorf("own adjacency rejected: %v", err)
	}
	// failed SetAdjacency leaves the geometry untouched
	if err := g.SetAdjacency(tests[1].adj); err == nil {
		t.Fatal("expected an error")
	}
	if !slices.Equal(g.Adjacency()[0], good[0]) {
		t.Error("geometry changed on a rejected adjacency")
	}
}
