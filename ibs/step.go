package ibs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// maxRejections bounds rejection sampling before falling back to a scan.
const maxRejections = 1000

// Step advances the population by one update. After an invariant violation
// the population refuses to step until Reset.
func (p *Population) Step() error {
	if p.failed != nil {
		return p.failed
	}
	if !p.checked {
		p.Check()
	}
	if !p.ready || p.pending {
		return ErrResetRequired
	}

	dt := 1 / float64(p.n)
	var err error
	switch p.cfg.PopulationUpdate {
	case Sync:
		p.stepSync()
		dt = 1
	case Async:
		p.stepAsync()
	case MoranBirthDeath:
		err = p.stepBirthDeath()
	case MoranDeathBirth, MoranImitate:
		err = p.stepDeathBirth(p.cfg.PopulationUpdate == MoranImitate)
	case Custom:
		dt, err = p.Updater.Update(p)
	default:
		err = fmt.Errorf("ibs: unsupported population update %s", p.cfg.PopulationUpdate)
	}
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			p.failed = err
			p.logger.Error("population halted", "error", err, "generation", p.generation)
		}
		return err
	}

	p.generation += dt
	if p.cfg.PopulationUpdate.IsMoran() && p.sumFitness > 0 {
		p.realtime += distuv.Exponential{Rate: p.sumFitness, Src: p.rng}.Rand()
	} else {
		p.realtime += dt
	}
	p.updates++
	return nil
}

// Run performs steps updates and stops at the first error.
func (p *Population) Run(steps int) error {
	for s := 0; s < steps; s++ {
		if err := p.Step(); err != nil {
			return fmt.Errorf("step %d: %w", s, err)
		}
	}
	return nil
}

func (p *Population) stepAsync() {
	i := p.rng.IntN(p.n)
	changed := p.Propose(i)
	p.commitAt(i, changed, false)
}

// stepSync lets all agents propose from the same snapshot before any
// proposal is committed.
func (p *Population) stepSync() {
	for i := 0; i < p.n; i++ {
		p.changed[i] = p.Propose(i)
	}
	for i := 0; i < p.n; i++ {
		if p.changed[i] {
			copy(p.strategy(i), p.proposal(i))
		}
	}
	for i := 0; i < p.n; i++ {
		if p.changed[i] || !p.cfg.ResetOnChange {
			p.setScore(i, 0, 0)
		}
	}
	for i := 0; i < p.n; i++ {
		p.replayAt(i, false)
	}
}

func (p *Population) stepBirthDeath() error {
	parent, err := p.PickFitFocal()
	if err != nil {
		return err
	}
	grp := p.birthGroup.Sample(parent, p.competition, true)
	if grp.Size() == 0 {
		return nil
	}
	victim := grp.Members[0]
	p.commitAt(victim, p.Offspring(victim, parent), true)
	return nil
}

func (p *Population) stepDeathBirth(imitate bool) error {
	victim := p.rng.IntN(p.n)
	grp := p.refGroup.Sample(victim, p.competition, false)
	cands := append(p.cands[:0], grp.Members...)
	if imitate {
		cands = append(cands, victim)
	}
	p.cands = cands
	if len(cands) == 0 {
		return nil
	}
	parent := p.pickFitIn(cands)
	p.commitAt(victim, p.Offspring(victim, parent), true)
	return nil
}

// PickFitFocal draws an agent with probability proportional to its fitness.
// Small populations are scanned linearly; large ones use rejection sampling
// against the maximum fitness. A uniform agent is returned when all fitness
// is zero.
func (p *Population) PickFitFocal() (int, error) {
	if p.sumFitness <= 0 {
		return p.rng.IntN(p.n), nil
	}
	if p.n > p.cfg.SelectionThreshold {
		top := p.fitness[p.maxFitIdx]
		if top <= 0 {
			return -1, p.invariant("rejection sampling")
		}
		for k := 0; k < maxRejections; k++ {
			i := p.rng.IntN(p.n)
			if p.rng.Float64()*top < p.fitness[i] {
				return i, nil
			}
		}
	}
	if i, ok := p.scanFit(); ok {
		return i, nil
	}
	// the maintained sum drifted above the true total
	p.resum()
	if i, ok := p.scanFit(); ok {
		return i, nil
	}
	return -1, p.invariant("fitness proportional selection")
}

func (p *Population) scanFit() (int, bool) {
	r := p.rng.Float64() * p.sumFitness
	for i, f := range p.fitness {
		r -= f
		if r < 0 {
			return i, true
		}
	}
	return -1, false
}

// pickFitIn draws one of cands with probability proportional to its
// non-negative fitness.
func (p *Population) pickFitIn(cands []int) int {
	total := 0.0
	for _, c := range cands {
		total += max(0, p.fitness[c])
	}
	if total <= 0 {
		return cands[p.rng.IntN(len(cands))]
	}
	r := p.rng.Float64() * total
	for _, c := range cands {
		r -= max(0, p.fitness[c])
		if r < 0 {
			return c
		}
	}
	for k := len(cands) - 1; k >= 0; k-- {
		if p.fitness[cands[k]] > 0 {
			return cands[k]
		}
	}
	return cands[len(cands)-1]
}
