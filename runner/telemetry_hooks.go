package runner

import (
	"context"

	"github.com/pthm-cable/ibs/telemetry"
	"github.com/pthm-cable/ibs/traits"
)

// flushTelemetry samples the population when a report is due and handles
// bookmarks.
func (r *Runner) flushTelemetry() {
	if !r.collector.ShouldFlush(r.pop.Generation()) {
		return
	}

	stats := r.collector.Flush(r.pop)
	perfStats := r.perfCollector.Stats()

	if r.cfg.Telemetry.CheckFitness {
		if maintained, recomputed, ok := r.pop.Consistent(); !ok {
			r.logger.Warn("fitness sum drifted",
				"generation", stats.Generation,
				"maintained", maintained,
				"recomputed", recomputed,
			)
		}
	}

	// Call stats callback if provided
	if r.statsCallback != nil {
		r.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if r.logStats {
		stats.Log(r.logger)
		perfStats.Log(r.logger)
	}

	// Write to CSV if output manager is enabled
	if r.outputManager != nil {
		if err := r.outputManager.WriteSample(stats); err != nil {
			r.logger.Error("failed to write sample", "error", err)
		}
		if err := r.outputManager.WriteSummary(stats.Generation, telemetry.Summarize(r.pop)); err != nil {
			r.logger.Error("failed to write traits", "error", err)
		}
		r.writeHistograms(stats.Generation)
		if err := r.outputManager.WritePerf(perfStats, stats.Generation); err != nil {
			r.logger.Error("failed to write perf", "error", err)
		}
	}

	// Check for bookmarks
	for _, bm := range r.bookmarkDetector.Check(stats) {
		if r.logStats {
			bm.Log(r.logger)
		}
		if r.outputManager != nil {
			if err := r.outputManager.WriteBookmark(bm); err != nil {
				r.logger.Error("failed to write bookmark", "error", err)
			}
		}
		// Save snapshot on bookmark
		if r.snapshotDir != "" {
			r.saveSnapshot(&bm)
		}
	}
}

// writeHistograms bins every continuous trait over its normalized range.
// Discrete traits are covered by types.csv.
func (r *Runner) writeHistograms(generation float64) {
	if _, ok := r.pop.Traits().(*traits.Continuous); !ok {
		return
	}
	bins := r.cfg.Telemetry.HistogramBins
	if bins < 1 {
		return
	}
	n, dim := r.pop.Size(), r.pop.Dim()
	strat := r.pop.Strategies()
	col := make([]float64, n)
	for d := 0; d < dim; d++ {
		for i := range col {
			col[i] = strat[i*dim+d]
		}
		if err := r.outputManager.WriteHistogram(generation, d, telemetry.Histogram(col, bins, 0, 1)); err != nil {
			r.logger.Error("failed to write histogram", "error", err)
			return
		}
	}
}

func (r *Runner) snapshotDue() bool {
	every := r.cfg.Telemetry.SnapshotEvery
	return every > 0 && r.pop.Generation() >= r.nextSnapshot-timeTolerance
}

func (r *Runner) scheduleSnapshot() {
	every := r.cfg.Telemetry.SnapshotEvery
	if every <= 0 {
		return
	}
	for r.nextSnapshot <= r.pop.Generation()+timeTolerance {
		r.nextSnapshot += every
	}
}

// saveSnapshot creates and saves a snapshot to disk.
func (r *Runner) saveSnapshot(bookmark *telemetry.Bookmark) {
	if r.snapshotDir == "" {
		return
	}
	snapshot := r.createSnapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, r.snapshotDir)
	if err != nil {
		r.logger.Error("failed to save snapshot", "error", err)
		return
	}
	r.logger.Info("snapshot saved", "path", path, "generation", r.pop.Generation())
}

// createSnapshot builds a snapshot from the current state.
func (r *Runner) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := telemetry.NewSnapshot(r.pop, r.seed)
	snapshot.RunID = r.runID
	snapshot.Config = r.configYAML
	snapshot.Bookmark = bookmark
	return snapshot
}

// archiveState stores the current state in the run archive.
func (r *Runner) archiveState(ctx context.Context) {
	if r.archive == nil {
		return
	}
	if err := r.archive.SaveSnapshot(ctx, r.runID, r.pop.Encode()); err != nil {
		r.logger.Error("failed to archive state", "error", err)
	}
}
