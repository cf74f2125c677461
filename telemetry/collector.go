package telemetry

import (
	"slices"

	"github.com/pthm-cable/ibs/ibs"
)

// timeTolerance absorbs rounding in generation counts accumulated from
// fractional steps.
const timeTolerance = 1e-9

// Collector samples a population at fixed generation intervals and
// produces Samples.
type Collector struct {
	every float64
	next  float64

	// strategies at the previous flush, for change counting
	prev []float64
}

// NewCollector creates a collector that flushes every `every` generations.
func NewCollector(every float64) *Collector {
	if every <= 0 {
		every = 1
	}
	return &Collector{every: every}
}

// ShouldFlush returns true once the population reached the next report time.
func (c *Collector) ShouldFlush(generation float64) bool {
	return generation >= c.next-timeTolerance
}

// Flush produces a Sample of p and schedules the next report.
func (c *Collector) Flush(p *ibs.Population) Sample {
	fitness := p.Fitness()
	mean, std, p10, p50, p90 := ComputeFitnessStats(fitness)
	lo, hi := p.ScoreBounds()

	s := Sample{
		Generation:  p.Generation(),
		RealTime:    p.RealTime(),
		Updates:     p.Updates(),
		FitnessMean: mean,
		FitnessStd:  std,
		FitnessP10:  p10,
		FitnessP50:  p50,
		FitnessP90:  p90,
		SumFitness:  p.SumFitness(),
		ScoreMin:    lo,
		ScoreMax:    hi,
		Types:       p.TypeCounts(),
	}
	if p.Dim() > 0 {
		sum := Summarize(p)
		s.TraitMean = sum.Traits[0].Mean
		s.TraitStd = sum.Traits[0].Std
	}

	strat := p.Strategies()
	if len(c.prev) == len(strat) {
		dim := p.Dim()
		for i := 0; i < p.Size(); i++ {
			if !slices.Equal(c.prev[i*dim:(i+1)*dim], strat[i*dim:(i+1)*dim]) {
				s.Changes++
			}
		}
	}
	c.prev = append(c.prev[:0], strat...)

	for c.next <= s.Generation+timeTolerance {
		c.next += c.every
	}
	return s
}

// Every returns the number of generations between samples.
func (c *Collector) Every() float64 {
	return c.every
}
