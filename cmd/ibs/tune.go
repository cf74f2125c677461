package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/runner"
	"github.com/pthm-cable/ibs/telemetry"
)

// tunable maps a parameter name to its field in a config.
var tunable = map[string]func(*config.Config) *float64{
	"game.b":                        func(c *config.Config) *float64 { return &c.Game.B },
	"game.c":                        func(c *config.Config) *float64 { return &c.Game.C },
	"population.mutation_rate":      func(c *config.Config) *float64 { return &c.Population.MutationRate },
	"population.selection":          func(c *config.Config) *float64 { return &c.Population.Selection },
	"population.baseline":           func(c *config.Config) *float64 { return &c.Population.Baseline },
	"population.beta":               func(c *config.Config) *float64 { return &c.Population.Beta },
	"population.player_error":       func(c *config.Config) *float64 { return &c.Population.PlayerError },
	"interaction.connectivity":      func(c *config.Config) *float64 { return &c.Interaction.Connectivity },
	"interaction.level_weight":      func(c *config.Config) *float64 { return &c.Interaction.LevelWeight },
	"interaction.rewire_undirected": func(c *config.Config) *float64 { return &c.Interaction.RewireUndirected },
	"interaction.rewire_directed":   func(c *config.Config) *float64 { return &c.Interaction.RewireDirected },
}

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name     string
	Min, Max float64
	Default  float64
}

// parseParam parses "name=min:max".
func parseParam(s string) (ParamSpec, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok {
		return ParamSpec{}, fmt.Errorf("parameter %q: want name=min:max", s)
	}
	if _, ok := tunable[name]; !ok {
		return ParamSpec{}, fmt.Errorf("parameter %q is not tunable (have %s)", name, strings.Join(tunableNames(), ", "))
	}
	loText, hiText, ok := strings.Cut(bounds, ":")
	if !ok {
		return ParamSpec{}, fmt.Errorf("parameter %q: want name=min:max", s)
	}
	lo, err := strconv.ParseFloat(loText, 64)
	if err != nil {
		return ParamSpec{}, fmt.Errorf("parameter %q: %w", s, err)
	}
	hi, err := strconv.ParseFloat(hiText, 64)
	if err != nil {
		return ParamSpec{}, fmt.Errorf("parameter %q: %w", s, err)
	}
	if !(hi > lo) {
		return ParamSpec{}, fmt.Errorf("parameter %q: empty range", s)
	}
	return ParamSpec{Name: name, Min: lo, Max: hi}, nil
}

func tunableNames() []string {
	names := make([]string, 0, len(tunable))
	for n := range tunable {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ParamVector holds the set of tuned parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector takes the defaults of specs from base, clamped into range.
func NewParamVector(specs []ParamSpec, base *config.Config) *ParamVector {
	pv := &ParamVector{Specs: slices.Clone(specs)}
	for i := range pv.Specs {
		s := &pv.Specs[i]
		s.Default = math.Min(s.Max, math.Max(s.Min, *tunable[s.Name](base)))
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return out
}

// Denormalize converts [0,1] values back to clamped raw parameter values.
func (pv *ParamVector) Denormalize(x []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v := spec.Min + x[i]*(spec.Max-spec.Min)
		out[i] = math.Min(spec.Max, math.Max(spec.Min, v))
	}
	return out
}

// Apply returns a copy of base with the parameter values set.
func (pv *ParamVector) Apply(base *config.Config, values []float64) (*config.Config, error) {
	cfg, err := base.Clone()
	if err != nil {
		return nil, err
	}
	for i, spec := range pv.Specs {
		*tunable[spec.Name](cfg) = values[i]
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Evaluator runs headless simulations and scores how far the late mean of
// the first trait lies from a target. For discrete traits that is the mean
// type index.
type Evaluator struct {
	params *ParamVector
	base   *config.Config
	seeds  []uint64
	target float64
	// window is the trailing fraction of a run that is averaged.
	window float64
}

// NewEvaluator creates an evaluator.
func NewEvaluator(params *ParamVector, base *config.Config, seeds []uint64, target, window float64) *Evaluator {
	if window <= 0 || window > 1 {
		window = 0.2
	}
	return &Evaluator{params: params, base: base, seeds: seeds, target: target, window: window}
}

// Evaluate returns the squared distance between the target and the trait
// mean averaged over the late samples of every seed (lower is better).
func (e *Evaluator) Evaluate(ctx context.Context, values []float64) (loss, mean float64, err error) {
	cfg, err := e.params.Apply(e.base, values)
	if err != nil {
		return 0, 0, err
	}
	cfg.Telemetry.OutputDir = ""
	cfg.Telemetry.SnapshotEvery = 0
	cfg.Store.Path = ""

	// every seed runs on its own copy
	cfgs := make([]*config.Config, len(e.seeds))
	for i := range cfgs {
		if cfgs[i], err = cfg.Clone(); err != nil {
			return 0, 0, err
		}
	}

	means := make([]float64, len(e.seeds))
	errs := make([]error, len(e.seeds))
	var wg sync.WaitGroup
	for i, seed := range e.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			means[idx], errs[idx] = e.runSeed(ctx, cfgs[idx], s)
		}(i, seed)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return 0, 0, err
		}
	}

	for _, m := range means {
		mean += m
	}
	mean /= float64(len(means))
	return (mean - e.target) * (mean - e.target), mean, nil
}

func (e *Evaluator) runSeed(ctx context.Context, cfg *config.Config, seed uint64) (float64, error) {
	from := (1 - e.window) * cfg.Run.Generations
	var sum float64
	var count int
	r, err := runner.New(ctx, cfg, runner.Options{
		Seed:   seed,
		Logger: slog.New(slog.DiscardHandler),
		StatsCallback: func(s telemetry.Sample) {
			if s.Generation >= from {
				sum += s.TraitMean
				count++
			}
		},
	})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	if err := r.Run(ctx); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("seed %d: no samples in the last %.0f%% of the run", seed, 100*e.window)
	}
	return sum / float64(count), nil
}
