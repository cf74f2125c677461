package store

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pthm-cable/ibs/ibs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestCreateAndListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateRun(ctx, 1<<63+5, "seed: 5\n")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := s.CreateRun(ctx, 7, "seed: 7\n"); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}

	r, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if r.Seed != 1<<63+5 {
		t.Errorf("seed = %d, want %d", r.Seed, uint64(1<<63+5))
	}
	if r.Config != "seed: 5\n" {
		t.Errorf("config = %q", r.Config)
	}
	if r.Snapshots != 0 {
		t.Errorf("snapshots = %d, want 0", r.Snapshots)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateRun(ctx, 1, "")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := s.LatestSnapshot(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any snapshot, got %v", err)
	}

	first := ibs.State{Size: 2, Dim: 1, Strategies: []float64{0, 1}, Scores: []float64{0.5, 1}, Interactions: []int{1, 1}, Generation: 1, Updates: 2}
	second := ibs.State{Size: 2, Dim: 1, Strategies: []float64{1, 1}, Scores: []float64{0, 0}, Interactions: []int{1, 1}, Generation: 2, Updates: 4,
		Interaction: [][]int{{1}, {0}}}
	for _, st := range []ibs.State{second, first} {
		if err := s.SaveSnapshot(ctx, id, st); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}
	// same update count replaces
	if err := s.SaveSnapshot(ctx, id, first); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := s.LatestSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if got.Updates != 4 || !slices.Equal(got.Strategies, second.Strategies) {
		t.Errorf("latest snapshot = %+v, want updates 4", got)
	}
	if len(got.Interaction) != 2 || got.Interaction[0][0] != 1 {
		t.Errorf("adjacency not preserved: %v", got.Interaction)
	}

	r, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if r.Snapshots != 2 {
		t.Errorf("snapshots = %d, want 2", r.Snapshots)
	}
}

func TestSnapshotRequiresRun(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveSnapshot(context.Background(), "missing", ibs.State{Updates: 1})
	if err == nil {
		t.Error("expected a foreign key error for an unknown run")
	}
}
