package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestTopologyCommand(t *testing.T) {
	if err := execute(t, "topology", "--kind", "n", "--size", "100"); err != nil {
		t.Fatalf("topology failed: %v", err)
	}
	if err := execute(t, "topology", "--kind", "no-such-kind"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := "interaction:\n  kind: n\n  size: 64\nstore:\n  path: " + filepath.Join(dir, "runs.db") + "\n"
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	if err := execute(t, "--config", configPath, "run", "--generations", "2", "--output-dir", out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "samples.csv"))
	if err != nil {
		t.Fatalf("samples.csv missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "generation,") {
		t.Errorf("unexpected samples.csv header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	if err := execute(t, "--config", configPath, "runs"); err != nil {
		t.Errorf("runs failed: %v", err)
	}
}

func TestRunFlagConflicts(t *testing.T) {
	err := execute(t, "run", "--restore", "a.json", "--resume", "abc")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("expected a conflict error, got %v", err)
	}
}

func TestResumeNeedsStore(t *testing.T) {
	if _, _, err := loadArchivedRun(t.Context(), "", "abc"); err == nil {
		t.Error("expected an error without a store path")
	}
}

func TestTuneCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := "interaction:\n  kind: n\n  size: 16\nrun:\n  generations: 2\n"
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "tune")
	err := execute(t, "--config", configPath, "tune",
		"--param", "game.b=1:2",
		"--seeds", "2",
		"--max-evals", "4",
		"--window", "1",
		"--output", out,
	)
	if err != nil {
		t.Fatalf("tune failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "tune_log.csv"))
	if err != nil {
		t.Fatalf("tune_log.csv missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "eval,loss,mean,game.b\n") {
		t.Errorf("unexpected tune_log.csv header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}
	if _, err := os.Stat(filepath.Join(out, "best_config.yaml")); err != nil {
		t.Errorf("best_config.yaml missing: %v", err)
	}
}

func TestTuneNeedsParams(t *testing.T) {
	if err := execute(t, "tune", "--output", t.TempDir()); err == nil {
		t.Error("expected an error without --param")
	}
	if err := execute(t, "tune", "--param", "game.b=1:2"); err == nil {
		t.Error("expected an error without --output")
	}
}
