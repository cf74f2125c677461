package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/ibs"
	"github.com/pthm-cable/ibs/runner"
	"github.com/pthm-cable/ibs/store"
	"github.com/pthm-cable/ibs/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run builds the configured population and advances it for the
configured number of generations, writing telemetry and snapshots.

A run can continue from a snapshot file (--restore) or from the latest
archived state of a run (--resume).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			generations, _ := cmd.Flags().GetFloat64("generations")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")
			logStats, _ := cmd.Flags().GetBool("log-stats")
			restorePath, _ := cmd.Flags().GetString("restore")
			resumeID, _ := cmd.Flags().GetString("resume")
			configPath, _ := cmd.Flags().GetString("config")

			if restorePath != "" && resumeID != "" {
				return errors.New("--restore and --resume are mutually exclusive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.Cfg()
			opts := runner.Options{
				Seed:        seed,
				OutputDir:   outputDir,
				SnapshotDir: snapshotDir,
				LogStats:    logStats,
			}

			switch {
			case restorePath != "":
				snapshot, err := telemetry.LoadSnapshot(restorePath)
				if err != nil {
					return err
				}
				// the snapshot's own config applies unless one was given
				if configPath == "" && snapshot.Config != "" {
					if cfg, err = config.Parse([]byte(snapshot.Config)); err != nil {
						return fmt.Errorf("snapshot config: %w", err)
					}
				}
				if opts.Seed == 0 {
					opts.Seed = snapshot.RNGSeed
				}
				opts.Restore = &snapshot.State
			case resumeID != "":
				var err error
				if cfg, opts.Restore, err = loadArchivedRun(ctx, cfg.Store.Path, resumeID); err != nil {
					return err
				}
				opts.RunID = resumeID
			}

			if generations > 0 {
				cfg.Run.Generations = generations
			}

			r, err := runner.New(ctx, cfg, opts)
			if err != nil {
				return err
			}
			defer r.Close()

			slog.Info("starting simulation",
				"generations", cfg.Run.Generations,
				"report_every", cfg.Run.ReportEvery,
			)
			err = r.Run(ctx)
			if errors.Is(err, context.Canceled) {
				slog.Info("interrupted", "generation", r.Population().Generation(), "run_id", r.RunID())
				return nil
			}
			return err
		},
	}

	cmd.Flags().Uint64("seed", 0, "RNG seed (0 = use config)")
	cmd.Flags().Float64("generations", 0, "Stop after N generations (0 = use config)")
	cmd.Flags().String("output-dir", "", "Output directory for CSV logs and config snapshot")
	cmd.Flags().String("snapshot-dir", "", "Directory for snapshot files")
	cmd.Flags().Bool("log-stats", false, "Output stats via slog")
	cmd.Flags().String("restore", "", "Continue from a snapshot file")
	cmd.Flags().String("resume", "", "Continue the archived run with this id")

	return cmd
}

// loadArchivedRun reads the configuration and latest state of an archived run.
func loadArchivedRun(ctx context.Context, path, id string) (*config.Config, *ibs.State, error) {
	if path == "" {
		return nil, nil, errors.New("--resume needs store.path in the config")
	}
	s, err := store.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Parse([]byte(run.Config))
	if err != nil {
		return nil, nil, fmt.Errorf("run %s config: %w", id, err)
	}
	// keep archiving where the run was found
	cfg.Store.Path = path
	st, err := s.LatestSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &st, nil
}
