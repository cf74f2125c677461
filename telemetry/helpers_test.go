package telemetry

import (
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/ibs/games"
	"github.com/pthm-cable/ibs/geometry"
	"github.com/pthm-cable/ibs/group"
	"github.com/pthm-cable/ibs/ibs"
	"github.com/pthm-cable/ibs/traits"
)

// newTestPopulation returns a reset prisoner's dilemma population on a
// 10x10 von Neumann lattice.
func newTestPopulation(t *testing.T, init ibs.InitType, strategy []float64) *ibs.Population {
	t.Helper()
	cfg := ibs.Config{
		Interaction:         geometry.Spec{Kind: geometry.SquareNeumann, Size: 100, Connectivity: 4},
		PopulationUpdate:    ibs.Async,
		PlayerUpdate:        ibs.ImitateLinear,
		InteractionSampling: group.All,
		ReferenceSampling:   group.Count,
		ReferenceGroup:      1,
		FitnessMap:          ibs.Static,
		Baseline:            1,
		Selection:           1,
		Init:                init,
		InitStrategy:        strategy,
	}
	p := ibs.New(cfg, &traits.Discrete{Types: 2}, games.PrisonersDilemma(1.2, 1), rand.New(rand.NewPCG(1, 2)), nil)
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	return p
}
