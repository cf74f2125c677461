package ibs

import (
	"fmt"
	"slices"

	"github.com/pthm-cable/ibs/geometry"
)

// State is a serializable snapshot of a population. Adjacency lists are
// only stored for geometries that are not uniquely determined by their
// spec.
type State struct {
	Size         int       `json:"size"`
	Dim          int       `json:"dim"`
	Strategies   []float64 `json:"strategies"`
	Scores       []float64 `json:"scores"`
	Interactions []int     `json:"interactions"`
	Generation   float64   `json:"generation"`
	RealTime     float64   `json:"realtime"`
	Updates      int64     `json:"updates"`
	Interaction  [][]int   `json:"interaction,omitempty"`
	Competition  [][]int   `json:"competition,omitempty"`
}

// Encode captures the current state.
func (p *Population) Encode() State {
	st := State{
		Size:         p.n,
		Dim:          p.dim,
		Strategies:   slices.Clone(p.strategies),
		Scores:       slices.Clone(p.scores),
		Interactions: slices.Clone(p.interactions),
		Generation:   p.generation,
		RealTime:     p.realtime,
		Updates:      p.updates,
	}
	if p.interaction != nil && stored(p.interaction) {
		st.Interaction = p.interaction.Adjacency()
	}
	if p.competition != nil && p.competition != p.interaction && stored(p.competition) {
		st.Competition = p.competition.Adjacency()
	}
	return st
}

func stored(g *geometry.Geometry) bool {
	return !g.IsMeanField() && (g.Rewired || g.Kind.Unique())
}

// Restore replaces the population state with st. The population must have
// been Reset with a matching configuration. Every part of st is validated
// before anything is changed; a mismatch rejects the whole state.
func (p *Population) Restore(st State) error {
	if !p.ready || p.pending {
		return ErrResetRequired
	}
	switch {
	case st.Size != p.n:
		return fmt.Errorf("%w: size %d, population has %d", ErrState, st.Size, p.n)
	case st.Dim != p.dim:
		return fmt.Errorf("%w: dimension %d, population has %d", ErrState, st.Dim, p.dim)
	case len(st.Strategies) != p.n*p.dim:
		return fmt.Errorf("%w: %d strategy entries, want %d", ErrState, len(st.Strategies), p.n*p.dim)
	case len(st.Scores) != p.n:
		return fmt.Errorf("%w: %d scores, want %d", ErrState, len(st.Scores), p.n)
	case len(st.Interactions) != p.n:
		return fmt.Errorf("%w: %d interaction counts, want %d", ErrState, len(st.Interactions), p.n)
	}
	for i := 0; i < p.n; i++ {
		if !p.traits.Valid(st.Strategies[i*p.dim : (i+1)*p.dim]) {
			return fmt.Errorf("%w: invalid strategy of agent %d", ErrState, i)
		}
		if st.Interactions[i] < 0 {
			return fmt.Errorf("%w: negative interaction count of agent %d", ErrState, i)
		}
	}
	separate := p.competition != p.interaction
	if st.Interaction != nil {
		if err := p.interaction.ValidateAdjacency(st.Interaction); err != nil {
			return fmt.Errorf("%w: interaction geometry: %w", ErrState, err)
		}
	}
	if st.Competition != nil {
		if !separate {
			return fmt.Errorf("%w: competition adjacency for a shared geometry", ErrState)
		}
		if err := p.competition.ValidateAdjacency(st.Competition); err != nil {
			return fmt.Errorf("%w: competition geometry: %w", ErrState, err)
		}
	}

	if st.Interaction != nil {
		if err := p.interaction.SetAdjacency(st.Interaction); err != nil {
			return fmt.Errorf("%w: interaction geometry: %w", ErrState, err)
		}
	}
	if st.Competition != nil {
		if err := p.competition.SetAdjacency(st.Competition); err != nil {
			return fmt.Errorf("%w: competition geometry: %w", ErrState, err)
		}
	}
	copy(p.strategies, st.Strategies)
	copy(p.scores, st.Scores)
	copy(p.interactions, st.Interactions)
	p.generation, p.realtime, p.updates = st.Generation, st.RealTime, st.Updates
	p.failed = nil
	p.refreshFitness()
	return nil
}
