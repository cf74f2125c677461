package geometry

import (
	"fmt"
	"math"
	"slices"
)

// rewireTarget returns the number of swaps needed to rewire a fraction
// 1-exp(-p) of n items.
func rewireTarget(p float64, n int) int {
	return int(math.Floor(-math.Expm1(-p)*float64(n) + 0.5))
}

// Rewire applies undirected rewiring followed by directed rewiring and
// stops at the first request the geometry cannot serve.
func (g *Geometry) Rewire(undirected, directed float64) error {
	if err := g.RewireUndirected(undirected); err != nil {
		return err
	}
	return g.RewireDirected(directed)
}

// RewireUndirected applies degree preserving edge swaps
// (a-an, b-bn) -> (a-bn, b-an) to a fraction 1-exp(-p) of the undirected
// edges. Swaps that would disconnect the graph are reverted and retried.
// Nothing is changed if the geometry cannot be rewired.
func (g *Geometry) RewireUndirected(p float64) error {
	if p <= 0 {
		return nil
	}
	if g.IsMeanField() || g.Directed {
		return fmt.Errorf("%w: undirected rewiring of %s geometry", ErrNotRewirable, g.describe())
	}
	edges := g.Links() / 2
	if edges < 2 || edges >= g.Size*(g.Size-1)/2 {
		return fmt.Errorf("%w: %d edges on %d sites", ErrNotRewirable, edges, g.Size)
	}

	target := rewireTarget(p, edges)
	rng := g.rng
	done := 0
	for tries := 0; done < target && tries < 20*target+100; tries++ {
		a := rng.IntN(g.Size)
		if len(g.Out[a]) == 0 {
			continue
		}
		an := g.Out[a][rng.IntN(len(g.Out[a]))]
		b := rng.IntN(g.Size)
		if b == a || b == an || len(g.Out[b]) == 0 {
			continue
		}
		bn := g.Out[b][rng.IntN(len(g.Out[b]))]
		if bn == a || bn == an {
			continue
		}
		if g.IsNeighbor(a, bn) || g.IsNeighbor(b, an) {
			continue
		}
		g.RemoveEdge(a, an)
		g.RemoveEdge(b, bn)
		g.AddEdge(a, bn)
		g.AddEdge(b, an)
		if !g.IsConnected() {
			g.RemoveEdge(a, bn)
			g.RemoveEdge(b, an)
			g.AddEdge(a, an)
			g.AddEdge(b, bn)
			continue
		}
		done++
	}
	if done > 0 {
		g.Rewired = true
	}
	g.logger.Debug("undirected rewiring", "geometry", g.describe(), "target", target, "swapped", done)
	return nil
}

// RewireDirected swaps the targets of pairs of directed links
// (a->an, b->bn) -> (a->bn, b->an) for a fraction 1-exp(-p) of all links.
// In- and out-degrees are preserved; undirected geometries become directed.
func (g *Geometry) RewireDirected(p float64) error {
	if p <= 0 {
		return nil
	}
	if g.IsMeanField() {
		return fmt.Errorf("%w: directed rewiring of %s geometry", ErrNotRewirable, g.describe())
	}
	links := g.Links()
	if links < 2 || links >= g.Size*(g.Size-1) {
		return fmt.Errorf("%w: %d links on %d sites", ErrNotRewirable, links, g.Size)
	}

	target := rewireTarget(p, links)
	rng := g.rng
	wasDirected := g.Directed
	g.Directed = true
	done := 0
	for tries := 0; done < target && tries < 20*target+100; tries++ {
		a := rng.IntN(g.Size)
		b := rng.IntN(g.Size)
		if a == b || len(g.Out[a]) == 0 || len(g.Out[b]) == 0 {
			continue
		}
		an := g.Out[a][rng.IntN(len(g.Out[a]))]
		bn := g.Out[b][rng.IntN(len(g.Out[b]))]
		if an == bn || bn == a || an == b {
			continue
		}
		if slices.Contains(g.Out[a], bn) || slices.Contains(g.Out[b], an) {
			continue
		}
		g.RemoveLink(a, an)
		g.RemoveLink(b, bn)
		g.AddLink(a, bn)
		g.AddLink(b, an)
		if !g.IsConnected() {
			g.RemoveLink(a, bn)
			g.RemoveLink(b, an)
			g.AddLink(a, an)
			g.AddLink(b, bn)
			continue
		}
		done++
	}
	if done > 0 {
		g.Rewired = true
	} else {
		g.Directed = wasDirected
	}
	g.logger.Debug("directed rewiring", "geometry", g.describe(), "target", target, "swapped", done)
	return nil
}

func (g *Geometry) describe() string {
	return fmt.Sprintf("%s(N=%d)", g.Kind.String(), g.Size)
}
