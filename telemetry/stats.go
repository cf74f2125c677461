package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/ibs/ibs"
)

// Sample holds aggregated statistics of a population at one report time.
type Sample struct {
	Generation float64 `csv:"generation"`
	RealTime   float64 `csv:"realtime"`
	Updates    int64   `csv:"updates"`

	// Fitness distribution
	FitnessMean float64 `csv:"fitness_mean"`
	FitnessStd  float64 `csv:"fitness_std"`
	FitnessP10  float64 `csv:"fitness_p10"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`
	SumFitness  float64 `csv:"sum_fitness"`

	// Effective score extremes
	ScoreMin float64 `csv:"score_min"`
	ScoreMax float64 `csv:"score_max"`

	// First trait, or the type index for discrete traits
	TraitMean float64 `csv:"trait_mean"`
	TraitStd  float64 `csv:"trait_std"`

	// Strategy changes since the previous sample
	Changes int `csv:"changes"`

	// Type counts for discrete traits
	Types []int `csv:"-"`
}

// Moments holds the mean and standard deviation of a quantity.
type Moments struct {
	Mean float64
	Std  float64
}

// Summary holds the moments of every trait and of fitness.
type Summary struct {
	Traits  []Moments
	Fitness Moments
}

// Summarize computes the mean and standard deviation of each trait and of
// fitness across the population.
func Summarize(p *ibs.Population) Summary {
	n, dim := p.Size(), p.Dim()
	s := Summary{Traits: make([]Moments, dim)}
	col := make([]float64, n)
	strat := p.Strategies()
	for d := 0; d < dim; d++ {
		for i := range col {
			col[i] = strat[i*dim+d]
		}
		s.Traits[d] = moments(col)
	}
	s.Fitness = moments(p.Fitness())
	return s
}

func moments(x []float64) Moments {
	if len(x) == 0 {
		return Moments{}
	}
	mean, variance := stat.PopMeanVariance(x, nil)
	return Moments{Mean: mean, Std: math.Sqrt(variance)}
}

// Histogram bins values into bins equal-width bins over [lo, hi]. Values
// outside the range are clamped into the first or last bin.
func Histogram(values []float64, bins int, lo, hi float64) []float64 {
	if bins < 1 {
		bins = 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	clamped := make([]float64, len(values))
	for i, v := range values {
		clamped[i] = min(max(v, lo), hi)
	}
	slices.Sort(clamped)
	// stat.Histogram excludes the upper divider
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	return stat.Histogram(nil, dividers, clamped, nil)
}

// Percentile calculates the p-th percentile of a sorted slice with linear
// interpolation. p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFitnessStats calculates mean, std and percentiles of values.
func ComputeFitnessStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	m := moments(values)
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return m.Mean, m.Std, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s Sample) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Float64("generation", s.Generation),
		slog.Float64("realtime", s.RealTime),
		slog.Int64("updates", s.Updates),
		slog.Float64("fitness_mean", s.FitnessMean),
		slog.Float64("fitness_std", s.FitnessStd),
		slog.Float64("score_min", s.ScoreMin),
		slog.Float64("score_max", s.ScoreMax),
		slog.Float64("trait_mean", s.TraitMean),
		slog.Float64("trait_std", s.TraitStd),
		slog.Int("changes", s.Changes),
	}
	if s.Types != nil {
		attrs = append(attrs, slog.Any("types", s.Types))
	}
	return slog.GroupValue(attrs...)
}

// Log writes the sample to logger.
func (s Sample) Log(logger *slog.Logger) {
	logger.Info("stats", "sample", s)
}
