package ibs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvariant marks a broken bookkeeping invariant. The population
	// refuses to step until it is reset.
	ErrInvariant = errors.New("ibs: invariant violated")
	// ErrResetRequired is returned by Step when the configuration changed
	// structurally since the last Reset.
	ErrResetRequired = errors.New("ibs: reset required")
	// ErrState is returned when a saved state does not fit the population.
	ErrState = errors.New("ibs: incompatible state")
)

// InvariantError carries a dump of the fitness bookkeeping at the time an
// invariant failed.
type InvariantError struct {
	Op         string
	Generation float64
	SumFitness float64
	Recomputed float64
	Fitness    []float64
	Scores     []float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ibs: invariant violated in %s at generation %g: maintained fitness sum %g, recomputed %g",
		e.Op, e.Generation, e.SumFitness, e.Recomputed)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Dump lists the score and fitness of every agent.
func (e *InvariantError) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", e.Error())
	for i := range e.Fitness {
		fmt.Fprintf(&b, "%6d score=%-14g fitness=%g\n", i, e.Scores[i], e.Fitness[i])
	}
	return b.String()
}
