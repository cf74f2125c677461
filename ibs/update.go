package ibs

import (
	"math"
)

// Propose writes the next strategy of agent i into its proposal buffer by
// applying the player update to a sampled reference group, followed by a
// possible mutation. It reports whether the proposal differs from the
// current strategy. Nothing is committed.
func (p *Population) Propose(i int) bool {
	next := p.proposal(i)
	copy(next, p.strategy(i))

	if p.cfg.PlayerUpdate == BestResponse {
		p.updateBestResponse(i)
	} else {
		grp := p.refGroup.Sample(i, p.competition, false)
		if grp.Size() > 0 {
			p.applyRule(i, grp.Members)
		}
	}
	p.mutate(next)
	return p.traits.Distance(next, p.strategy(i)) > 0
}

// Commit makes the proposal of i its strategy and updates the scores of i
// and, where needed, of the agents interacting with it. newborn forces a
// score reset.
func (p *Population) Commit(i int, changed, newborn bool) { p.commitAt(i, changed, newborn) }

func (p *Population) applyRule(i int, models []int) {
	switch p.cfg.PlayerUpdate {
	case Best:
		p.updateBest(i, models, false)
	case BestRandom:
		p.updateBest(i, models, true)
	case Proportional:
		p.updateProportional(i, models)
	case ImitateLinear, ImitateBetter, Thermal:
		p.updateImitate(i, models)
	}
}

func (p *Population) adopt(i, model int) {
	if model != i {
		copy(p.proposal(i), p.strategy(model))
	}
}

// updateBest imitates the fittest of the focal and its models.
func (p *Population) updateBest(i int, models []int, random bool) {
	best := p.fitness[i]
	for _, j := range models {
		best = math.Max(best, p.fitness[j])
	}
	ties := p.ties[:0]
	if best-p.fitness[i] < tieTolerance {
		ties = append(ties, i)
	}
	for _, j := range models {
		if best-p.fitness[j] < tieTolerance {
			ties = append(ties, j)
		}
	}
	p.ties = ties

	var model int
	switch {
	case len(ties) == 1:
		model = ties[0]
	case random:
		model = ties[p.rng.IntN(len(ties))]
	case p.TieBreaker != nil:
		model = p.TieBreaker(i, ties)
	default:
		model = KeepFocal(i, ties)
	}
	p.adopt(i, model)
}

// updateBestResponse switches to the type with the highest payoff against
// the rest of the well-mixed population.
func (p *Population) updateBestResponse(i int) {
	counts := p.TypeCounts()
	me := int(p.strategies[i])
	counts[me]--

	best := math.Inf(-1)
	ties := p.ties[:0]
	for t, a := range p.typeVecs {
		pay := 0.0
		for u, c := range counts {
			if c > 0 {
				pay += float64(c) * p.game.Payoff(a, p.typeVecs[u])
			}
		}
		switch {
		case pay > best+tieTolerance:
			best = pay
			ties = append(ties[:0], t)
		case pay >= best-tieTolerance:
			ties = append(ties, t)
		}
	}
	p.ties = ties
	for _, t := range ties {
		if t == me {
			return
		}
	}
	p.proposal(i)[0] = float64(ties[p.rng.IntN(len(ties))])
}

// updateProportional imitates the focal or a model with probability
// proportional to fitness above the group minimum.
func (p *Population) updateProportional(i int, models []int) {
	cands := append(p.cands[:0], i)
	cands = append(cands, models...)
	p.cands = cands

	lo := math.Inf(1)
	for _, c := range cands {
		lo = math.Min(lo, p.fitness[c])
	}
	total := 0.0
	for _, c := range cands {
		total += p.fitness[c] - lo
	}
	if total <= 0 {
		return
	}
	r := p.rng.Float64() * total
	for _, c := range cands {
		if w := p.fitness[c] - lo; w > 0 {
			r -= w
			if r < 0 {
				p.adopt(i, c)
				return
			}
		}
	}
	// rounding: the last positive candidate wins
	for k := len(cands) - 1; k >= 0; k-- {
		if p.fitness[cands[k]] > lo {
			p.adopt(i, cands[k])
			return
		}
	}
}

// updateImitate adopts model j with probability q_j/len(models), where q_j
// is the rule's adoption probability bounded to [err, 1-err]. The focal
// keeps its strategy with the remaining probability.
func (p *Population) updateImitate(i int, models []int) {
	me := p.fitness[i]
	k := float64(len(models))
	r := p.rng.Float64()
	acc := 0.0
	for _, j := range models {
		acc += p.adoptProbability(me, p.fitness[j]) / k
		if r < acc {
			p.adopt(i, j)
			return
		}
	}
}

func (p *Population) adoptProbability(me, model float64) float64 {
	d := model - me
	span := p.fitnessMax - p.fitnessMin
	var q float64
	switch p.cfg.PlayerUpdate {
	case ImitateLinear:
		q = 0.5
		if span > 0 {
			q = 0.5 + 0.5*d/span
		}
	case ImitateBetter:
		if span > 0 {
			q = d / span
		}
	case Thermal:
		q = 1 / (2 + math.Exp(-d*p.cfg.Beta))
	}
	e := p.cfg.PlayerError
	return math.Min(1-e, math.Max(e, q))
}

// mutate replaces s by a mutant with the configured probability.
func (p *Population) mutate(s []float64) bool {
	mu := p.cfg.MutationRate
	if mu <= 0 {
		return false
	}
	if mu < 1 && p.rng.Float64() >= mu {
		return false
	}
	p.traits.Mutate(s, p.rng)
	return true
}

// Offspring writes the strategy of parent, possibly mutated, into the
// proposal of victim and reports whether it differs from the victim's
// current strategy.
func (p *Population) Offspring(victim, parent int) bool {
	next := p.proposal(victim)
	copy(next, p.strategy(parent))
	p.mutate(next)
	return p.traits.Distance(next, p.strategy(victim)) > 0
}
