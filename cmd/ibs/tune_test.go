package main

import (
	"math"
	"strings"
	"testing"

	"github.com/pthm-cable/ibs/config"
)

func TestParseParam(t *testing.T) {
	spec, err := parseParam("population.selection=0.1:2")
	if err != nil {
		t.Fatalf("parseParam failed: %v", err)
	}
	if spec.Name != "population.selection" || spec.Min != 0.1 || spec.Max != 2 {
		t.Errorf("parseParam = %+v", spec)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"game.b", "want name=min:max"},
		{"game.b=1", "want name=min:max"},
		{"game.b=x:2", "invalid syntax"},
		{"game.b=2:1", "empty range"},
		{"run.seed=1:2", "not tunable"},
	}
	for _, tc := range tests {
		_, err := parseParam(tc.in)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("parseParam(%q) error = %v, want %q", tc.in, err, tc.want)
		}
	}
}

func TestParamVector(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	pv := NewParamVector([]ParamSpec{
		{Name: "game.b", Min: 1, Max: 3},
		{Name: "population.mutation_rate", Min: 0.01, Max: 0.1},
	}, base)

	// defaults come from the config, clamped into range
	if got := pv.DefaultVector(); got[0] != 1.2 || got[1] != 0.01 {
		t.Errorf("DefaultVector = %v, want [1.2 0.01]", got)
	}
	x := pv.Normalize([]float64{2, 0.055})
	if math.Abs(x[0]-0.5) > 1e-12 || math.Abs(x[1]-0.5) > 1e-12 {
		t.Errorf("Normalize = %v, want [0.5 0.5]", x)
	}
	if raw := pv.Denormalize([]float64{-1, 2}); raw[0] != 1 || raw[1] != 0.1 {
		t.Errorf("Denormalize = %v, want clamped [1 0.1]", raw)
	}

	cfg, err := pv.Apply(base, []float64{2.5, 0.05})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if cfg.Game.B != 2.5 || cfg.Derived.Engine.MutationRate != 0.05 {
		t.Errorf("Apply: b=%g mutation=%g", cfg.Game.B, cfg.Derived.Engine.MutationRate)
	}
	if base.Game.B != 1.2 {
		t.Errorf("Apply changed the base config: b=%g", base.Game.B)
	}
}
