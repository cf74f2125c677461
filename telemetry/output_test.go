package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/ibs/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager, got %v, %v", om, err)
	}
	// nil manager accepts every write
	if err := om.WriteSample(Sample{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	for g := 0; g < 3; g++ {
		if err := om.WriteSample(Sample{Generation: float64(g), FitnessMean: 1, Types: []int{3, 1}}); err != nil {
			t.Fatalf("WriteSample failed: %v", err)
		}
	}
	if err := om.WriteSummary(2, Summary{Traits: []Moments{{Mean: 0.5, Std: 0.1}}}); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if err := om.WriteHistogram(2, 0, []float64{1, 2, 3}); err != nil {
		t.Fatalf("WriteHistogram failed: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkStable, Generation: 2}); err != nil {
		t.Fatalf("WriteBookmark failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "samples.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("samples.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "generation,") {
		t.Errorf("unexpected header %q", lines[0])
	}

	data, err = os.ReadFile(filepath.Join(dir, "types.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 7 {
		t.Errorf("types.csv has %d lines, want header + 6", n)
	}
	if !strings.Contains(string(data), "0.75") {
		t.Error("types.csv lacks the type frequency")
	}

	for _, name := range []string{"config.yaml", "traits.csv", "histogram.csv", "bookmarks.csv", "perf.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}
