// Package ibs runs individual-based evolutionary game dynamics on structured
// populations.
//
// A Population owns the strategies, scores and fitness of N agents placed on
// an interaction geometry (who plays whom) and a competition geometry (who
// imitates or replaces whom). Step advances the population by one update.
// All randomness comes from the generator injected into New, so a fixed seed
// reproduces a trajectory exactly.
package ibs

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pthm-cable/ibs/geometry"
	"github.com/pthm-cable/ibs/group"
	"github.com/pthm-cable/ibs/traits"
)

// Game is the payoff capability of the module being simulated.
type Game interface {
	// Payoff returns the score of strategy me against other.
	Payoff(me, other []float64) float64
}

// TieBreaker picks the model among agents of equal best fitness. tied
// contains the focal agent if it is among the best.
type TieBreaker func(focal int, tied []int) int

// KeepFocal is the default TieBreaker: the focal keeps its strategy if it
// is tied, otherwise the first tied candidate wins.
func KeepFocal(focal int, tied []int) int {
	if slices.Contains(tied, focal) {
		return focal
	}
	return tied[0]
}

// Updater implements custom population dynamics for the Custom population
// update. Update advances p by one step and returns the elapsed time in
// generations.
type Updater interface {
	Update(p *Population) (float64, error)
}

// tieTolerance is the fitness difference below which candidates tie.
const tieTolerance = 1e-8

// Population is the state of a simulated population.
type Population struct {
	// TieBreaker resolves ties of the Best update; nil uses KeepFocal.
	TieBreaker TieBreaker
	// Updater drives the Custom population update.
	Updater Updater

	cfg    Config
	traits traits.Traits
	game   Game
	rng    *rand.Rand
	logger *slog.Logger

	interaction *geometry.Geometry
	competition *geometry.Geometry

	interGroup *group.Sampler
	refGroup   *group.Sampler
	birthGroup *group.Sampler

	n, dim       int
	strategies   []float64
	scratch      []float64
	scores       []float64
	interactions []int
	fitness      []float64
	changed      []bool

	sumFitness float64
	drift      float64
	maxFitIdx  int
	minIdx     int
	maxIdx     int

	// adjust enables incremental score adjustments for explicit geometries;
	// mixedAll is the mean-field analogue.
	adjust   bool
	mixedAll bool

	payoffMin, payoffMax   float64
	fitnessMin, fitnessMax float64

	typeVecs [][]float64
	ties     []int
	cands    []int
	others   []int

	generation float64
	realtime   float64
	updates    int64

	checked bool
	pending bool
	ready   bool
	failed  error
}

// New creates a population. Check and Reset must run before the first
// Step; Reset runs Check itself if needed.
func New(cfg Config, tr traits.Traits, game Game, rng *rand.Rand, logger *slog.Logger) *Population {
	if logger == nil {
		logger = slog.Default()
	}
	return &Population{cfg: cfg, traits: tr, game: game, rng: rng, logger: logger}
}

// Config returns the current (checked) configuration.
func (p *Population) Config() Config { return p.cfg }

// SetConfig replaces the configuration. It takes effect after Check.
func (p *Population) SetConfig(cfg Config) {
	p.cfg = cfg
	p.checked = false
}

// Check validates the configuration against the traits, the game and the
// built geometries. Infeasible settings are corrected and logged. It returns
// true if a Reset is required before the next Step.
func (p *Population) Check() bool {
	cfg := &p.cfg
	warn := func(param string, requested, using any) {
		p.logger.Warn("population parameter adjusted", "param", param, "requested", requested, "using", using)
		p.pending = true
	}

	inter, _, err := cfg.Interaction.Check(p.logger)
	if err != nil {
		warn("interaction", cfg.Interaction.Kind, geometry.MeanField.String())
		inter, _, _ = geometry.Spec{Kind: geometry.MeanField, Size: cfg.Interaction.Size}.Check(p.logger)
	}
	cfg.Interaction = inter
	if cfg.Competition != nil {
		comp, _, err := cfg.Competition.Check(p.logger)
		switch {
		case err != nil:
			warn("competition", cfg.Competition.Kind, "interaction geometry")
			cfg.Competition = nil
		case comp.Size != inter.Size:
			warn("competition size", comp.Size, inter.Size)
			cfg.Competition = nil
		default:
			cfg.Competition = &comp
		}
	}
	if p.interaction == nil || !p.interaction.Spec.Equal(inter) {
		p.pending = true
	}
	if p.competition != nil && p.competition != p.interaction {
		if cfg.Competition == nil || !p.competition.Spec.Equal(*cfg.Competition) {
			p.pending = true
		}
	} else if cfg.Competition != nil {
		p.pending = true
	}
	if p.traits.Dim() != p.dim {
		p.pending = true
	}

	if cfg.PlayerError < 0 || cfg.PlayerError > 0.5 {
		e := math.Min(0.5, math.Max(0, cfg.PlayerError))
		warn("player error", cfg.PlayerError, e)
		cfg.PlayerError = e
	}
	if cfg.Beta < 0 {
		warn("beta", cfg.Beta, 0.0)
		cfg.Beta = 0
	}
	if cfg.MutationRate < 0 {
		warn("mutation rate", cfg.MutationRate, 0.0)
		cfg.MutationRate = 0
	}
	if cfg.InteractionSampling == group.Count && cfg.InteractionGroup < 1 {
		warn("interaction group", cfg.InteractionGroup, 1)
		cfg.InteractionGroup = 1
	}
	if cfg.ReferenceSampling == group.Count && cfg.ReferenceGroup < 1 {
		warn("reference group", cfg.ReferenceGroup, 1)
		cfg.ReferenceGroup = 1
	}
	if cfg.SelectionThreshold <= 0 {
		cfg.SelectionThreshold = DefaultSelectionThreshold
	}

	if cfg.PlayerUpdate == BestResponse {
		mixed := cfg.Interaction.Kind == geometry.MeanField
		if cfg.Competition != nil {
			mixed = cfg.Competition.Kind == geometry.MeanField
		}
		if _, ok := p.traits.(interface{ TypeCount() int }); !ok || !mixed {
			warn("player update", BestResponse.String(), Best.String())
			cfg.PlayerUpdate = Best
		}
	}
	if cfg.PopulationUpdate == Custom && p.Updater == nil {
		warn("population update", Custom.String(), Async.String())
		cfg.PopulationUpdate = Async
	}

	switch cfg.Init {
	case InitMono, InitMutant:
		if !p.traits.Valid(cfg.InitStrategy) {
			warn("init strategy", cfg.InitStrategy, InitRandom.String())
			cfg.Init = InitRandom
		}
	}

	p.payoffRange()
	kmax := float64(cfg.Interaction.Size - 1)
	p.fitnessRange(kmax)
	if cfg.PopulationUpdate.IsMoran() && p.fitnessMin < 0 {
		warn("fitness map", cfg.FitnessMap.String(), Exponential.String())
		cfg.FitnessMap = Exponential
		if cfg.Baseline <= 0 {
			cfg.Baseline = 1
		}
		if cfg.Selection <= 0 {
			cfg.Selection = 1
		}
		p.fitnessRange(kmax)
	}

	p.checked = true
	if !p.pending && p.ready {
		// parameters that only change the score to fitness map apply at once
		p.configureSamplers()
		p.adjust, p.mixedAll = p.adjustable()
		p.fitnessRange(p.maxGroup())
		p.refreshFitness()
	}
	return p.pending
}

// Reset builds the geometries and draws the initial configuration.
func (p *Population) Reset() error {
	if !p.checked {
		p.Check()
	}
	cfg := &p.cfg
	inter, err := geometry.Build(cfg.Interaction, p.rng, p.logger)
	if err != nil {
		return err
	}
	comp := inter
	if cfg.Competition != nil {
		if comp, err = geometry.Build(*cfg.Competition, p.rng, p.logger); err != nil {
			return err
		}
	}
	p.interaction, p.competition = inter, comp
	p.alloc(inter.Size, p.traits.Dim())

	p.generation, p.realtime, p.updates = 0, 0, 0
	p.failed = nil
	p.configureSamplers()
	p.adjust, p.mixedAll = p.adjustable()
	p.fitnessRange(p.maxGroup())

	p.initStrategies()
	p.resetScores()

	p.pending = false
	p.ready = true
	p.logger.Debug("population reset",
		"size", p.n,
		"interaction", inter.Kind.String(),
		"competition", comp.Kind.String(),
		"adjust", p.adjust,
	)
	return nil
}

func (p *Population) alloc(n, dim int) {
	if n != p.n || dim != p.dim || p.strategies == nil {
		p.strategies = make([]float64, n*dim)
		p.scratch = make([]float64, n*dim)
		p.scores = make([]float64, n)
		p.interactions = make([]int, n)
		p.fitness = make([]float64, n)
		p.changed = make([]bool, n)
	}
	p.n, p.dim = n, dim
	p.typeVecs = nil
	if d, ok := p.traits.(interface{ TypeCount() int }); ok {
		p.typeVecs = make([][]float64, d.TypeCount())
		for t := range p.typeVecs {
			p.typeVecs[t] = []float64{float64(t)}
		}
	}
}

func (p *Population) configureSamplers() {
	cfg := &p.cfg
	p.interGroup = group.NewSampler(cfg.InteractionSampling, cfg.InteractionGroup, p.rng)
	p.refGroup = group.NewSampler(cfg.ReferenceSampling, cfg.ReferenceGroup, p.rng)
	p.birthGroup = group.NewSampler(group.Count, 1, p.rng)
}

// adjustable reports whether score changes can be propagated incrementally.
func (p *Population) adjustable() (adjust, mixedAll bool) {
	cfg := &p.cfg
	if cfg.InteractionSampling != group.All || cfg.ResetOnChange || cfg.NoAdjust {
		return false, false
	}
	if p.interaction.IsMeanField() {
		return false, true
	}
	return true, false
}

func (p *Population) initStrategies() {
	switch p.cfg.Init {
	case InitMono, InitMutant:
		for i := 0; i < p.n; i++ {
			copy(p.strategy(i), p.cfg.InitStrategy)
		}
		if p.cfg.Init == InitMutant {
			p.traits.Mutate(p.strategy(p.rng.IntN(p.n)), p.rng)
		}
	default:
		for i := 0; i < p.n; i++ {
			p.traits.Random(p.strategy(i), p.rng)
		}
	}
}

// maxGroup returns the largest number of interactions per round.
func (p *Population) maxGroup() float64 {
	switch p.cfg.InteractionSampling {
	case group.None:
		return 0
	case group.Count:
		return float64(p.cfg.InteractionGroup)
	}
	if p.interaction == nil || p.interaction.IsMeanField() {
		return float64(p.cfg.Interaction.Size - 1)
	}
	return float64(p.interaction.Stats().MaxOut)
}

// payoffRange finds the extreme payoffs of a single interaction.
func (p *Population) payoffRange() {
	if d, ok := p.traits.(interface{ TypeCount() int }); ok {
		lo, hi := math.Inf(1), math.Inf(-1)
		a, b := []float64{0}, []float64{0}
		for s := 0; s < d.TypeCount(); s++ {
			for t := 0; t < d.TypeCount(); t++ {
				a[0], b[0] = float64(s), float64(t)
				v := p.game.Payoff(a, b)
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
		p.payoffMin, p.payoffMax = lo, hi
		return
	}
	dim := p.traits.Dim()
	f := func(x []float64) float64 { return p.game.Payoff(x[:dim], x[dim:]) }
	lo, hi := traits.Extrema(f, 2*dim, traits.SearchOptions{Bins: max(2, 20/(2*dim)), Rounds: 5, Polish: true})
	p.payoffMin, p.payoffMax = lo.Value, hi.Value
}

// fitnessRange derives the score and fitness ranges for at most k
// interactions per round.
func (p *Population) fitnessRange(k float64) {
	lo, hi := p.payoffMin, p.payoffMax
	if p.cfg.Accumulated {
		lo, hi = math.Min(0, k*lo), math.Max(0, k*hi)
	}
	a := p.cfg.FitnessMap.Apply(lo, p.cfg.Baseline, p.cfg.Selection)
	b := p.cfg.FitnessMap.Apply(hi, p.cfg.Baseline, p.cfg.Selection)
	p.fitnessMin, p.fitnessMax = math.Min(a, b), math.Max(a, b)
}

// Size returns the number of agents.
func (p *Population) Size() int { return p.n }

// Dim returns the length of a strategy vector.
func (p *Population) Dim() int { return p.dim }

// Traits returns the strategy representation.
func (p *Population) Traits() traits.Traits { return p.traits }

// Rand returns the generator shared by all components.
func (p *Population) Rand() *rand.Rand { return p.rng }

// Interaction and Competition return the built geometries; they are the
// same geometry unless a separate competition geometry was configured.
func (p *Population) Interaction() *geometry.Geometry { return p.interaction }
func (p *Population) Competition() *geometry.Geometry { return p.competition }

// Generation returns the elapsed time in generations.
func (p *Population) Generation() float64 { return p.generation }

// RealTime returns the elapsed time in units of the reproduction rate for
// Moran updates; it equals Generation otherwise.
func (p *Population) RealTime() float64 { return p.realtime }

// Updates returns the number of steps since the last reset.
func (p *Population) Updates() int64 { return p.updates }

// AdjustsScores reports whether score changes are propagated incrementally.
func (p *Population) AdjustsScores() bool { return p.adjust || p.mixedAll }

// FitnessBounds returns the range of attainable fitness values.
func (p *Population) FitnessBounds() (lo, hi float64) { return p.fitnessMin, p.fitnessMax }

// Agent describes a single agent.
type Agent struct {
	Strategy     []float64
	Score        float64
	Fitness      float64
	Interactions int
}

// Agent returns a copy of the state of agent i.
func (p *Population) Agent(i int) Agent {
	return Agent{
		Strategy:     slices.Clone(p.strategy(i)),
		Score:        p.score(i),
		Fitness:      p.fitness[i],
		Interactions: p.interactions[i],
	}
}

// Strategies returns the flat strategy array; agent i occupies
// [i*Dim, (i+1)*Dim). The slice must not be modified.
func (p *Population) Strategies() []float64 { return p.strategies }

// Fitness returns the fitness array. The slice must not be modified.
func (p *Population) Fitness() []float64 { return p.fitness }

// Scores returns the effective scores of all agents.
func (p *Population) Scores() []float64 {
	out := make([]float64, p.n)
	for i := range out {
		out[i] = p.score(i)
	}
	return out
}

// SumFitness returns the maintained total fitness.
func (p *Population) SumFitness() float64 { return p.sumFitness }

// ScoreBounds returns the lowest and highest current effective score.
func (p *Population) ScoreBounds() (lo, hi float64) {
	return p.score(p.minIdx), p.score(p.maxIdx)
}

// MaxFitness returns the index of an agent with the highest fitness.
func (p *Population) MaxFitness() int { return p.maxFitIdx }

// TypeCounts returns the number of agents of each type for discrete traits
// and nil otherwise.
func (p *Population) TypeCounts() []int {
	if p.typeVecs == nil {
		return nil
	}
	counts := make([]int, len(p.typeVecs))
	for i := 0; i < p.n; i++ {
		counts[int(p.strategies[i])]++
	}
	return counts
}
