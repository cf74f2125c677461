package geometry

func (g *Geometry) initComplete() {
	n := g.Size
	for i := 0; i < n; i++ {
		out := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				out = append(out, j)
			}
		}
		g.Out[i] = out
		g.In[i] = append([]int(nil), out...)
	}
}

// initHierarchy links the members of every deme into a complete graph.
// Interactions across higher levels are realized by hierarchical sampling.
func (g *Geometry) initHierarchy() {
	levels := g.Spec.Levels
	g.units = make([]int, len(levels))
	size := 1
	for j := range levels {
		size *= levels[len(levels)-1-j]
		g.units[j] = size
	}
	deme := g.units[0]
	for start := 0; start < g.Size; start += deme {
		for i := start; i < start+deme; i++ {
			for j := start; j < start+deme; j++ {
				if i != j {
					g.AddLink(i, j)
				}
			}
		}
	}
}

// initStar links every leaf to the hub at index 0.
func (g *Geometry) initStar() {
	for i := 1; i < g.Size; i++ {
		g.AddEdge(0, i)
	}
}

// initWheel is a star whose leaves additionally form a ring.
func (g *Geometry) initWheel() {
	rim := g.Size - 1
	for i := 0; i < rim; i++ {
		g.AddEdge(0, i+1)
		g.AddEdge(i+1, (i+1)%rim+1)
	}
}

// initSuperStar builds the directed super-star: the hub (index 0) feeds the
// reservoirs of every petal, each reservoir node feeds the petal's chain of
// amplification-2 nodes, and the chain's end feeds back into the hub.
func (g *Geometry) initSuperStar() {
	p, k := g.Spec.Petals, g.Spec.Amplification
	chain := k - 2
	r := (g.Size-1)/p - chain
	next := 1
	for petal := 0; petal < p; petal++ {
		reservoir := next
		chainStart := reservoir + r
		next = chainStart + chain
		target := 0
		if chain > 0 {
			target = chainStart
		}
		for i := reservoir; i < chainStart; i++ {
			g.AddLink(0, i)
			g.AddLink(i, target)
		}
		for c := chainStart; c < next; c++ {
			if c+1 < next {
				g.AddLink(c, c+1)
			} else {
				g.AddLink(c, 0)
			}
		}
	}
}

// initAmplifier builds a three tier amplifier with unit u: a clique core of
// u nodes, u² middle nodes each linked to the whole core, and u³ reservoir
// nodes hanging off the middle tier, u per middle node.
func (g *Geometry) initAmplifier() {
	u := nearestUnit(g.Size, amplifierSize)
	core, middle := u, u*u
	for i := 0; i < core; i++ {
		for j := i + 1; j < core; j++ {
			g.AddEdge(i, j)
		}
	}
	for m := 0; m < middle; m++ {
		for c := 0; c < core; c++ {
			g.AddEdge(core+m, c)
		}
	}
	for r := 0; r < g.Size-core-middle; r++ {
		g.AddEdge(core+middle+r, core+r/u)
	}
}

// initSuppressor builds a clique core of u² nodes; each core node c carries u
// leaves that are linked to c and to the next core node.
func (g *Geometry) initSuppressor() {
	u := nearestUnit(g.Size, suppressorSize)
	core := u * u
	for i := 0; i < core; i++ {
		for j := i + 1; j < core; j++ {
			g.AddEdge(i, j)
		}
	}
	for l := 0; l < g.Size-core; l++ {
		c := l / u
		leaf := core + l
		g.AddEdge(leaf, c)
		g.AddEdge(leaf, (c+1)%core)
	}
}

// LCF notations of the cubic symmetric graphs.
var lcf = map[Kind][]int{
	Frucht:       {-5, -2, -4, 2, 5, -2, 2, 5, -2, -5, 4, 2},
	Franklin:     {5, -5},
	Heawood:      {5, -5},
	Dodecahedron: {10, 7, 4, -4, -7, 10, -4, 7, -7, 4},
	Desargues:    {5, -5, 9, -9},
}

func (g *Geometry) initNamed() {
	switch g.Kind {
	case Tietze:
		g.initTietze()
		return
	case Icosahedron:
		g.initIcosahedron()
		return
	}
	n := g.Size
	jumps := lcf[g.Kind]
	for i := 0; i < n; i++ {
		g.addEdgeUnique(i, (i+1)%n)
	}
	for i := 0; i < n; i++ {
		j := ((i+jumps[i%len(jumps)])%n + n) % n
		g.addEdgeUnique(i, j)
	}
}

// initTietze builds the Petersen graph with one vertex replaced by a
// triangle.
func (g *Geometry) initTietze() {
	edges := [][2]int{
		// outer path of the Petersen graph without the replaced vertex
		{0, 1}, {1, 2}, {2, 3},
		// spokes
		{0, 5}, {1, 6}, {2, 7}, {3, 8},
		// inner pentagram
		{4, 6}, {6, 8}, {8, 5}, {5, 7}, {7, 4},
		// triangle and its attachments
		{9, 10}, {10, 11}, {11, 9}, {9, 0}, {10, 3}, {11, 4},
	}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
}

// initIcosahedron links apex 0, upper ring 1-5, lower ring 6-10 and apex 11.
func (g *Geometry) initIcosahedron() {
	for i := 0; i < 5; i++ {
		up, low := 1+i, 6+i
		g.AddEdge(0, up)
		g.AddEdge(up, 1+(i+1)%5)
		g.AddEdge(11, low)
		g.AddEdge(low, 6+(i+1)%5)
		g.AddEdge(up, low)
		g.AddEdge(up, 6+(i+1)%5)
	}
}
