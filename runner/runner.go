// Package runner drives a population through a configured run with
// telemetry, snapshots and the run archive.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/ibs"
	"github.com/pthm-cable/ibs/store"
	"github.com/pthm-cable/ibs/telemetry"
)

// timeTolerance absorbs rounding in generation counts accumulated from
// fractional steps.
const timeTolerance = 1e-9

// Options configures a run beyond the YAML configuration.
type Options struct {
	Seed        uint64 // 0 = use config seed
	OutputDir   string // overrides telemetry.output_dir when set
	SnapshotDir string // empty disables snapshot files
	LogStats    bool

	// Restore continues from a saved state.
	Restore *ibs.State
	// RunID continues an archived run instead of registering a new one.
	RunID string

	Logger        *slog.Logger
	StatsCallback func(telemetry.Sample)
}

// Runner owns a population and its telemetry.
type Runner struct {
	cfg        *config.Config
	configYAML string
	seed       uint64
	logger     *slog.Logger

	pop *ibs.Population

	// Telemetry
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	perfCollector    *telemetry.PerfCollector
	outputManager    *telemetry.OutputManager
	statsCallback    func(telemetry.Sample)
	logStats         bool
	snapshotDir      string
	nextSnapshot     float64

	// Archive
	archive *store.Store
	runID   string
}

// New builds the population described by cfg and prepares telemetry.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Seed
	}
	configYAML, err := cfg.YAML()
	if err != nil {
		return nil, err
	}

	tr, err := cfg.BuildTraits()
	if err != nil {
		return nil, err
	}
	game, err := cfg.BuildGame(tr)
	if err != nil {
		return nil, err
	}

	// A restored run continues on a stream derived from its progress so it
	// does not replay the draws that produced the saved state.
	stream := seed
	if opts.Restore != nil {
		stream ^= uint64(opts.Restore.Updates)
	}
	rng := rand.New(rand.NewPCG(seed, stream))

	pop := ibs.New(cfg.Derived.Engine, tr, game, rng, logger)
	if err := pop.Reset(); err != nil {
		return nil, fmt.Errorf("initializing population: %w", err)
	}
	if opts.Restore != nil {
		if err := pop.Restore(*opts.Restore); err != nil {
			return nil, fmt.Errorf("restoring population: %w", err)
		}
	}

	r := &Runner{
		cfg:              cfg,
		configYAML:       configYAML,
		seed:             seed,
		logger:           logger,
		pop:              pop,
		collector:        telemetry.NewCollector(cfg.Run.ReportEvery),
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		perfCollector:    telemetry.NewPerfCollector(60),
		statsCallback:    opts.StatsCallback,
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
		runID:            opts.RunID,
	}
	r.scheduleSnapshot()

	outputDir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	if r.outputManager, err = telemetry.NewOutputManager(outputDir); err != nil {
		return nil, err
	}
	if err := r.outputManager.WriteConfig(cfg); err != nil {
		r.Close()
		return nil, err
	}

	if cfg.Store.Path != "" {
		if r.archive, err = store.Open(ctx, cfg.Store.Path); err != nil {
			r.Close()
			return nil, err
		}
		if r.runID == "" {
			if r.runID, err = r.archive.CreateRun(ctx, seed, configYAML); err != nil {
				r.Close()
				return nil, err
			}
		}
	}

	logger.Info("population ready",
		"size", pop.Size(),
		"geometry", pop.Interaction().Kind.String(),
		"update", cfg.Derived.Engine.PopulationUpdate.String(),
		"player_update", cfg.Derived.Engine.PlayerUpdate.String(),
		"adjust_scores", pop.AdjustsScores(),
		"seed", seed,
		"run_id", r.runID,
	)
	return r, nil
}

// Population returns the simulated population.
func (r *Runner) Population() *ibs.Population { return r.pop }

// RunID returns the archive id of the run, or "" without an archive.
func (r *Runner) RunID() string { return r.runID }

// batchSteps is the number of steps in one generation.
func (r *Runner) batchSteps() int {
	if r.cfg.Derived.Engine.PopulationUpdate == ibs.Sync {
		return 1
	}
	return r.pop.Size()
}

// Run advances the population until the configured number of generations
// or until ctx is cancelled. The final state is archived in both cases.
func (r *Runner) Run(ctx context.Context) error {
	steps := r.batchSteps()
	r.flushTelemetry()

	var runErr error
	for r.pop.Generation() < r.cfg.Run.Generations-timeTolerance {
		if runErr = ctx.Err(); runErr != nil {
			break
		}

		r.perfCollector.StartBatch(steps)
		r.perfCollector.StartPhase(telemetry.PhaseStep)
		if err := r.pop.Run(steps); err != nil {
			r.perfCollector.EndBatch()
			var ie *ibs.InvariantError
			if errors.As(err, &ie) {
				r.logger.Error("population state dump", "dump", ie.Dump())
			}
			return fmt.Errorf("generation %.2f: %w", r.pop.Generation(), err)
		}

		r.perfCollector.StartPhase(telemetry.PhaseTelemetry)
		r.flushTelemetry()

		if r.snapshotDue() {
			r.perfCollector.StartPhase(telemetry.PhaseSnapshot)
			r.saveSnapshot(nil)
			r.perfCollector.StartPhase(telemetry.PhaseArchive)
			r.archiveState(ctx)
			r.scheduleSnapshot()
		}
		r.perfCollector.EndBatch()
	}

	// archive even when cancelled so the run can be resumed
	r.archiveState(context.WithoutCancel(ctx))
	r.logger.Info("run finished",
		"generation", r.pop.Generation(),
		"updates", r.pop.Updates(),
		"realtime", r.pop.RealTime(),
		"perf", r.perfCollector.Stats(),
	)
	return runErr
}

// Close flushes output and closes the archive.
func (r *Runner) Close() error {
	err := r.outputManager.Close()
	if r.archive != nil {
		if cerr := r.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.archive = nil
	}
	return err
}
