package ibs

import (
	"fmt"
	"math"

	"github.com/pthm-cable/ibs/geometry"
	"github.com/pthm-cable/ibs/group"
)

// PopulationUpdate selects which agents update in a step.
type PopulationUpdate int

const (
	// Async updates one random agent per step.
	Async PopulationUpdate = iota
	// Sync updates all agents at once from a common snapshot.
	Sync
	// MoranBirthDeath picks a parent proportional to fitness whose
	// offspring replaces a random out-neighbor.
	MoranBirthDeath
	// MoranDeathBirth removes a random agent and refills the site with the
	// offspring of a fitness-proportionally chosen in-neighbor.
	MoranDeathBirth
	// MoranImitate is death-birth where the removed agent competes too.
	MoranImitate
	// Custom delegates the step to the population's Updater, for ecological
	// and other user-defined dynamics.
	Custom
)

var populationUpdateNames = []string{"async", "sync", "moran-bd", "moran-db", "moran-imitate", "custom"}

func (u PopulationUpdate) String() string { return enumName(populationUpdateNames, int(u)) }

// IsMoran reports whether the update is a birth-death process.
func (u PopulationUpdate) IsMoran() bool {
	return u == MoranBirthDeath || u == MoranDeathBirth || u == MoranImitate
}

// PlayerUpdate selects how the focal agent picks a model.
type PlayerUpdate int

const (
	Best PlayerUpdate = iota
	BestRandom
	BestResponse
	Proportional
	ImitateLinear
	ImitateBetter
	Thermal
)

var playerUpdateNames = []string{"best", "best-random", "best-response", "proportional", "imitate", "imitate-better", "thermal"}

func (u PlayerUpdate) String() string { return enumName(playerUpdateNames, int(u)) }

// FitnessMap converts scores into fitness.
type FitnessMap int

const (
	// Identity uses the score as fitness.
	Identity FitnessMap = iota
	// Static is baseline + selection*score.
	Static
	// Convex is baseline*(1-selection) + selection*score.
	Convex
	// Exponential is baseline*exp(selection*score).
	Exponential
)

var fitnessMapNames = []string{"identity", "static", "convex", "exponential"}

func (m FitnessMap) String() string { return enumName(fitnessMapNames, int(m)) }

// Apply maps score to fitness.
func (m FitnessMap) Apply(score, baseline, selection float64) float64 {
	switch m {
	case Static:
		return baseline + selection*score
	case Convex:
		return baseline*(1-selection) + selection*score
	case Exponential:
		return baseline * math.Exp(selection*score)
	}
	return score
}

// InitType selects the initial configuration.
type InitType int

const (
	// InitRandom draws every strategy from the traits' initial distribution.
	InitRandom InitType = iota
	// InitMono sets every agent to InitStrategy.
	InitMono
	// InitMutant is InitMono with one random agent mutated.
	InitMutant
)

var initNames = []string{"random", "mono", "mutant"}

func (t InitType) String() string { return enumName(initNames, int(t)) }

// ParsePopulationUpdate, ParsePlayerUpdate, ParseFitnessMap and ParseInit
// convert configuration names.
func ParsePopulationUpdate(s string) (PopulationUpdate, error) {
	i, err := parseEnum(populationUpdateNames, "population update", s)
	return PopulationUpdate(i), err
}

func ParsePlayerUpdate(s string) (PlayerUpdate, error) {
	i, err := parseEnum(playerUpdateNames, "player update", s)
	return PlayerUpdate(i), err
}

func ParseFitnessMap(s string) (FitnessMap, error) {
	i, err := parseEnum(fitnessMapNames, "fitness map", s)
	return FitnessMap(i), err
}

func ParseInit(s string) (InitType, error) {
	i, err := parseEnum(initNames, "init", s)
	return InitType(i), err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(names []string, what, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("ibs: unknown %s %q", what, s)
}

// Config holds the parameters of a population.
type Config struct {
	// Interaction is the geometry agents play on. Competition is the
	// geometry of reproduction and imitation; nil shares Interaction.
	Interaction geometry.Spec
	Competition *geometry.Spec

	PopulationUpdate PopulationUpdate
	PlayerUpdate     PlayerUpdate
	// PlayerError bounds adoption probabilities to [err, 1-err].
	PlayerError float64
	// Beta is the selection intensity of thermal updates.
	Beta float64

	InteractionSampling group.Sampling
	InteractionGroup    int
	ReferenceSampling   group.Sampling
	ReferenceGroup      int

	// MutationRate is the probability that an update is overridden by a
	// mutation; values >= 1 always mutate.
	MutationRate float64

	FitnessMap FitnessMap
	Baseline   float64
	Selection  float64

	// ResetOnChange keeps accumulating an agent's score while its strategy
	// is unchanged instead of resetting it on every update.
	ResetOnChange bool
	// Accumulated uses payoff sums instead of averages as scores.
	Accumulated bool
	// NoAdjust disables incremental score adjustments.
	NoAdjust bool

	// SelectionThreshold is the population size above which fitness
	// proportional selection uses rejection sampling.
	SelectionThreshold int

	Init         InitType
	InitStrategy []float64
}

// DefaultSelectionThreshold is used when SelectionThreshold is zero.
const DefaultSelectionThreshold = 100
