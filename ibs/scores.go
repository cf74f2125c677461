package ibs

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/ibs/group"
)

// driftTolerance is the accumulated relative rounding error of sumFitness
// that triggers a full re-summation.
const driftTolerance = 1e-9

const epsilon = 0x1p-52

func (p *Population) strategy(i int) []float64 { return p.strategies[i*p.dim : (i+1)*p.dim] }
func (p *Population) proposal(i int) []float64 { return p.scratch[i*p.dim : (i+1)*p.dim] }

// score returns the effective score of i: the payoff total for accumulated
// scores, the average payoff otherwise.
func (p *Population) score(i int) float64 {
	if p.cfg.Accumulated || p.interactions[i] == 0 {
		return p.scores[i]
	}
	return p.scores[i] / float64(p.interactions[i])
}

func (p *Population) mapFitness(score float64) float64 {
	return p.cfg.FitnessMap.Apply(score, p.cfg.Baseline, p.cfg.Selection)
}

// setScore stores the payoff total and interaction count of i and updates
// fitness, sumFitness and the watermarks together.
func (p *Population) setScore(i int, total float64, count int) {
	prev := p.score(i)
	p.scores[i] = total
	p.interactions[i] = count
	p.trackScore(i, prev)

	old := p.fitness[i]
	fit := p.mapFitness(p.score(i))
	p.fitness[i] = fit
	p.sumFitness += fit - old
	p.drift += epsilon * (math.Abs(fit) + math.Abs(old) + math.Abs(p.sumFitness))
	if p.drift > driftTolerance*math.Abs(p.sumFitness) {
		p.resum()
	}
	p.trackFitness(i, old, fit)
}

func (p *Population) resum() {
	p.sumFitness = floats.Sum(p.fitness)
	p.drift = 0
}

// trackFitness maintains maxFitIdx. A full scan is needed only when the
// current maximum decreases.
func (p *Population) trackFitness(i int, old, fit float64) {
	switch {
	case fit > p.fitness[p.maxFitIdx]:
		p.maxFitIdx = i
	case i == p.maxFitIdx && fit < old:
		p.maxFitIdx = floats.MaxIdx(p.fitness)
	}
}

func (p *Population) trackScore(i int, prev float64) {
	s := p.score(i)
	if s > p.score(p.maxIdx) {
		p.maxIdx = i
	} else if i == p.maxIdx && s < prev {
		p.maxIdx = p.scanScore(1)
	}
	if s < p.score(p.minIdx) {
		p.minIdx = i
	} else if i == p.minIdx && s > prev {
		p.minIdx = p.scanScore(-1)
	}
}

func (p *Population) scanScore(sign float64) int {
	best := 0
	for i := 1; i < p.n; i++ {
		if sign*p.score(i) > sign*p.score(best) {
			best = i
		}
	}
	return best
}

// refreshFitness recomputes fitness and all aggregates from the scores.
func (p *Population) refreshFitness() {
	for i := 0; i < p.n; i++ {
		p.fitness[i] = p.mapFitness(p.score(i))
	}
	p.resum()
	p.maxFitIdx = floats.MaxIdx(p.fitness)
	p.minIdx = p.scanScore(-1)
	p.maxIdx = p.scanScore(1)
}

// resetScores clears all scores and lets every agent play one round.
func (p *Population) resetScores() {
	for i := 0; i < p.n; i++ {
		p.scores[i] = 0
		p.interactions[i] = 0
	}
	p.refreshFitness()
	for i := 0; i < p.n; i++ {
		p.replayAt(i, false)
	}
	p.resum()
}

// replayAt lets i play its interaction group, adding the payoffs to its
// score or replacing the score if reset is set.
func (p *Population) replayAt(i int, reset bool) {
	total, count := p.scores[i], p.interactions[i]
	if reset {
		total, count = 0, 0
	}
	grp := p.interGroup.Sample(i, p.interaction, true)
	me := p.strategy(i)
	for _, j := range grp.Members {
		total += p.game.Payoff(me, p.strategy(j))
	}
	p.setScore(i, total, count+grp.Size())
}

// dependents lists the agents whose interaction group contains i.
func (p *Population) dependents(i int) []int {
	if !p.interaction.IsMeanField() {
		return p.interaction.In[i]
	}
	if cap(p.others) < p.n-1 {
		p.others = make([]int, 0, p.n-1)
	}
	p.others = p.others[:0]
	for j := 0; j < p.n; j++ {
		if j != i {
			p.others = append(p.others, j)
		}
	}
	return p.others
}

// adjustScoresAt commits the proposal of i and corrects the scores of its
// dependents by the payoff difference instead of replaying their rounds.
func (p *Population) adjustScoresAt(i int) {
	old, next := p.strategy(i), p.proposal(i)
	for _, j := range p.dependents(i) {
		sj := p.strategy(j)
		delta := p.game.Payoff(sj, next) - p.game.Payoff(sj, old)
		p.setScore(j, p.scores[j]+delta, p.interactions[j])
	}
	copy(old, next)
	p.replayAt(i, true)
}

// commitAt makes the proposal of i its strategy and updates the scores.
// newborn forces a score reset as after a birth.
func (p *Population) commitAt(i int, changed, newborn bool) {
	if !changed {
		// strategy kept; dependents are unaffected
		p.replayAt(i, newborn || !p.cfg.ResetOnChange)
		return
	}
	switch {
	case p.adjust || p.mixedAll:
		p.adjustScoresAt(i)
	case p.cfg.InteractionSampling == group.All && !p.cfg.ResetOnChange:
		copy(p.strategy(i), p.proposal(i))
		p.replayAt(i, true)
		for _, j := range p.dependents(i) {
			p.replayAt(j, true)
		}
	default:
		copy(p.strategy(i), p.proposal(i))
		p.replayAt(i, true)
	}
}

// Consistent recomputes the total fitness and reports whether it matches
// the maintained sum within a relative tolerance of 1e-6.
func (p *Population) Consistent() (maintained, recomputed float64, ok bool) {
	recomputed = floats.Sum(p.fitness)
	scale := math.Max(1, math.Abs(recomputed))
	return p.sumFitness, recomputed, math.Abs(p.sumFitness-recomputed) <= 1e-6*scale
}

func (p *Population) invariant(op string) error {
	_, recomputed, _ := p.Consistent()
	return &InvariantError{
		Op:         op,
		Generation: p.generation,
		SumFitness: p.sumFitness,
		Recomputed: recomputed,
		Fitness:    append([]float64(nil), p.fitness...),
		Scores:     p.Scores(),
	}
}
