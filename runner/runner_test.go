package runner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/store"
	"github.com/pthm-cable/ibs/telemetry"
)

const testConfig = `
seed: 3
interaction:
  kind: n
  size: 100
  connectivity: 4
run:
  generations: 5
  report_every: 1
telemetry:
  snapshot_every: 2
`

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	return cfg
}

func TestRunWritesTelemetry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := loadTestConfig(t)
	cfg.Store.Path = filepath.Join(dir, "runs.db")

	var samples []telemetry.Sample
	r, err := New(ctx, cfg, Options{
		OutputDir:     filepath.Join(dir, "out"),
		SnapshotDir:   filepath.Join(dir, "snapshots"),
		StatsCallback: func(s telemetry.Sample) { samples = append(samples, s) },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	runID := r.RunID()
	final := slices.Clone(r.Population().Strategies())
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if r.Population().Generation() < 5-timeTolerance {
		t.Errorf("generation = %v, want at least 5", r.Population().Generation())
	}
	// one sample at start plus one per generation
	if len(samples) != 6 {
		t.Errorf("got %d samples, want 6", len(samples))
	}
	for _, name := range []string{"samples.csv", "types.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	if err != nil || len(entries) == 0 {
		t.Errorf("expected periodic snapshots, got %d (%v)", len(entries), err)
	}

	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer s.Close()
	st, err := s.LatestSnapshot(ctx, runID)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if !slices.Equal(st.Strategies, final) {
		t.Error("archived state differs from the final population")
	}
}

func TestRunUsesInjectedLogger(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	r, err := New(ctx, loadTestConfig(t), Options{
		SnapshotDir: t.TempDir(),
		LogStats:    true,
		Logger:      slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := buf.String()
	for _, msg := range []string{`"msg":"stats"`, `"msg":"perf"`, `"msg":"snapshot saved"`, `"msg":"run finished"`} {
		if !strings.Contains(out, msg) {
			t.Errorf("injected logger did not receive %s", msg)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	ctx := context.Background()
	run := func() []float64 {
		r, err := New(ctx, loadTestConfig(t), Options{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer r.Close()
		if err := r.Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return slices.Clone(r.Population().Fitness())
	}
	if a, b := run(), run(); !slices.Equal(a, b) {
		t.Error("runs with the same seed diverged")
	}
}

func TestRunResume(t *testing.T) {
	ctx := context.Background()
	cfg := loadTestConfig(t)
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	r, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	runID := r.RunID()
	saved := r.Population().Encode()
	r.Close()

	cfg.Run.Generations = 8
	resumed, err := New(ctx, cfg, Options{Restore: &saved, RunID: runID})
	if err != nil {
		t.Fatalf("New with restore failed: %v", err)
	}
	defer resumed.Close()
	p := resumed.Population()
	if p.Generation() != saved.Generation || !slices.Equal(p.Strategies(), saved.Strategies) {
		t.Fatal("restored population differs from the saved state")
	}
	if resumed.RunID() != runID {
		t.Errorf("run id = %q, want %q", resumed.RunID(), runID)
	}
	if err := resumed.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.Generation() < 8-timeTolerance {
		t.Errorf("generation = %v, want at least 8", p.Generation())
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := New(context.Background(), loadTestConfig(t), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer r.Close()
	if err := r.Run(ctx); err == nil {
		t.Error("expected the cancellation error")
	}
	if r.Population().Updates() != 0 {
		t.Error("cancelled run should not step")
	}
}
