// Package config provides configuration loading and conversion into engine
// parameters.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/ibs/games"
	"github.com/pthm-cable/ibs/geometry"
	"github.com/pthm-cable/ibs/group"
	"github.com/pthm-cable/ibs/ibs"
	"github.com/pthm-cable/ibs/traits"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters. Competition is optional;
// when absent the interaction geometry is shared.
type Config struct {
	Seed        uint64           `yaml:"seed"`
	Population  PopulationConfig `yaml:"population"`
	Interaction GeometryConfig   `yaml:"interaction"`
	Competition *GeometryConfig  `yaml:"competition,omitempty"`
	Reference   SamplingConfig   `yaml:"reference"`
	Traits      TraitsConfig     `yaml:"traits"`
	Game        GameConfig       `yaml:"game"`
	Run         RunConfig        `yaml:"run"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Store       StoreConfig      `yaml:"store"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PopulationConfig holds the update dynamics and score policy.
type PopulationConfig struct {
	Update             string    `yaml:"update"`        // async, sync, moran-bd, moran-db, moran-imitate
	PlayerUpdate       string    `yaml:"player_update"` // best, best-random, best-response, proportional, imitate, imitate-better, thermal
	PlayerError        float64   `yaml:"player_error"`
	Beta               float64   `yaml:"beta"`
	MutationRate       float64   `yaml:"mutation_rate"`
	FitnessMap         string    `yaml:"fitness_map"` // identity, static, convex, exponential
	Baseline           float64   `yaml:"baseline"`
	Selection          float64   `yaml:"selection"`
	ResetOnChange      bool      `yaml:"reset_on_change"`
	Accumulated        bool      `yaml:"accumulated"`
	NoAdjust           bool      `yaml:"no_adjust"`
	SelectionThreshold int       `yaml:"selection_threshold"`
	Init               string    `yaml:"init"` // random, mono, mutant
	InitStrategy       []float64 `yaml:"init_strategy"`
}

// GeometryConfig describes a geometry and, for interactions, how groups
// are sampled from it.
type GeometryConfig struct {
	Kind             string  `yaml:"kind"` // family key letter or name
	Size             int     `yaml:"size"`
	Connectivity     float64 `yaml:"connectivity"`
	FixedBoundary    bool    `yaml:"fixed_boundary"`
	Petals           int     `yaml:"petals"`
	Amplification    int     `yaml:"amplification"`
	Exponent         float64 `yaml:"exponent"`
	Mixing           float64 `yaml:"mixing"`
	Levels           []int   `yaml:"levels"`
	LevelWeight      float64 `yaml:"level_weight"`
	RewireUndirected float64 `yaml:"rewire_undirected"`
	RewireDirected   float64 `yaml:"rewire_directed"`

	Sampling string `yaml:"sampling"` // none, all, count
	Group    int    `yaml:"group"`
}

// SamplingConfig holds the reference group sampling.
type SamplingConfig struct {
	Sampling string `yaml:"sampling"`
	Group    int    `yaml:"group"`
}

// TraitsConfig selects the strategy representation.
type TraitsConfig struct {
	Type        string    `yaml:"type"` // discrete or continuous
	Types       int       `yaml:"types"`
	Frequencies []float64 `yaml:"frequencies"`
	ToOther     bool      `yaml:"to_other"`
	Dims        int       `yaml:"dims"`
	Min         []float64 `yaml:"min"`
	Max         []float64 `yaml:"max"`
	Kernel      string    `yaml:"kernel"` // uniform or gaussian
	Sigma       float64   `yaml:"sigma"`
	Init        []float64 `yaml:"init"`
}

// GameConfig selects the payoff module.
type GameConfig struct {
	Kind   string      `yaml:"kind"` // matrix, pd, snowdrift, rps, cds
	Matrix [][]float64 `yaml:"matrix"`
	B      float64     `yaml:"b"`
	C      float64     `yaml:"c"`
	// Continuous snowdrift coefficients.
	B1 float64 `yaml:"b1"`
	B2 float64 `yaml:"b2"`
	C1 float64 `yaml:"c1"`
	C2 float64 `yaml:"c2"`
}

// RunConfig holds run length and reporting.
type RunConfig struct {
	Generations float64 `yaml:"generations"`
	ReportEvery float64 `yaml:"report_every"` // generations between samples
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	OutputDir     string  `yaml:"output_dir"` // empty disables CSV output
	HistogramBins int     `yaml:"histogram_bins"`
	SnapshotEvery float64 `yaml:"snapshot_every"` // generations; 0 disables
	CheckFitness  bool    `yaml:"check_fitness"`  // verify the fitness sum on every sample
}

// StoreConfig holds the run archive location.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables the archive
}

// DerivedConfig holds engine parameters converted from the loaded config.
type DerivedConfig struct {
	Engine ibs.Config
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve converts names into engine parameters. It must run again after
// fields are changed in place.
func (c *Config) Resolve() error {
	p := &c.Population
	e := ibs.Config{
		PlayerError:        p.PlayerError,
		Beta:               p.Beta,
		MutationRate:       p.MutationRate,
		Baseline:           p.Baseline,
		Selection:          p.Selection,
		ResetOnChange:      p.ResetOnChange,
		Accumulated:        p.Accumulated,
		NoAdjust:           p.NoAdjust,
		SelectionThreshold: p.SelectionThreshold,
		InitStrategy:       p.InitStrategy,
		InteractionGroup:   c.Interaction.Group,
		ReferenceGroup:     c.Reference.Group,
	}
	var err error
	if e.PopulationUpdate, err = ibs.ParsePopulationUpdate(p.Update); err != nil {
		return fmt.Errorf("config: population.update: %w", err)
	}
	if e.PlayerUpdate, err = ibs.ParsePlayerUpdate(p.PlayerUpdate); err != nil {
		return fmt.Errorf("config: population.player_update: %w", err)
	}
	if e.FitnessMap, err = ibs.ParseFitnessMap(p.FitnessMap); err != nil {
		return fmt.Errorf("config: population.fitness_map: %w", err)
	}
	if e.Init, err = ibs.ParseInit(p.Init); err != nil {
		return fmt.Errorf("config: population.init: %w", err)
	}
	if e.InteractionSampling, err = group.ParseSampling(c.Interaction.Sampling); err != nil {
		return fmt.Errorf("config: interaction.sampling: %w", err)
	}
	if e.ReferenceSampling, err = group.ParseSampling(c.Reference.Sampling); err != nil {
		return fmt.Errorf("config: reference.sampling: %w", err)
	}
	if e.Interaction, err = c.Interaction.Spec(); err != nil {
		return fmt.Errorf("config: interaction: %w", err)
	}
	if c.Competition != nil {
		comp, err := c.Competition.Spec()
		if err != nil {
			return fmt.Errorf("config: competition: %w", err)
		}
		e.Competition = &comp
	}
	c.Derived.Engine = e
	return nil
}

// Spec converts the geometry section into an unchecked geometry spec.
func (g GeometryConfig) Spec() (geometry.Spec, error) {
	kind, err := geometry.ParseKind(g.Kind)
	if err != nil {
		return geometry.Spec{}, err
	}
	return geometry.Spec{
		Kind:             kind,
		Size:             g.Size,
		Connectivity:     g.Connectivity,
		FixedBoundary:    g.FixedBoundary,
		Petals:           g.Petals,
		Amplification:    g.Amplification,
		Exponent:         g.Exponent,
		Mixing:           g.Mixing,
		Levels:           g.Levels,
		LevelWeight:      g.LevelWeight,
		RewireUndirected: g.RewireUndirected,
		RewireDirected:   g.RewireDirected,
	}, nil
}

// BuildTraits constructs the strategy representation.
func (c *Config) BuildTraits() (traits.Traits, error) {
	t := c.Traits
	switch t.Type {
	case "discrete":
		if t.Types < 1 {
			return nil, fmt.Errorf("config: traits.types must be positive, got %d", t.Types)
		}
		return &traits.Discrete{Types: t.Types, Frequencies: t.Frequencies, ToOther: t.ToOther}, nil
	case "continuous":
		if t.Dims < 1 {
			return nil, fmt.Errorf("config: traits.dims must be positive, got %d", t.Dims)
		}
		kernel, err := traits.ParseKernel(t.Kernel)
		if err != nil {
			return nil, fmt.Errorf("config: traits.kernel: %w", err)
		}
		return &traits.Continuous{N: t.Dims, Min: t.Min, Max: t.Max, Kernel: kernel, Sigma: t.Sigma, Init: t.Init}, nil
	}
	return nil, fmt.Errorf("config: unknown traits type %q", t.Type)
}

// BuildGame constructs the payoff module for tr.
func (c *Config) BuildGame(tr traits.Traits) (ibs.Game, error) {
	g := c.Game
	var m *games.Matrix
	switch g.Kind {
	case "matrix":
		var err error
		if m, err = games.NewMatrix(g.Matrix); err != nil {
			return nil, fmt.Errorf("config: game.matrix: %w", err)
		}
	case "pd":
		m = games.PrisonersDilemma(g.B, g.C)
	case "snowdrift":
		m = games.SnowdriftMatrix(g.B, g.C)
	case "rps":
		m = games.RockPaperScissors(g.B, g.C)
	case "cds":
		ct, ok := tr.(*traits.Continuous)
		if !ok || ct.N != 1 {
			return nil, fmt.Errorf("config: game cds needs one continuous trait")
		}
		return &games.Snowdrift{Traits: ct, B1: g.B1, B2: g.B2, C1: g.C1, C2: g.C2}, nil
	default:
		return nil, fmt.Errorf("config: unknown game %q", g.Kind)
	}
	d, ok := tr.(*traits.Discrete)
	if !ok || d.Types != m.Types() {
		return nil, fmt.Errorf("config: game %s needs %d discrete types", g.Kind, m.Types())
	}
	return m, nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return Parse(data)
}

// YAML returns the configuration as a YAML document.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return string(data), nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
