package games

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/ibs/traits"
)

func TestNewMatrix(t *testing.T) {
	if _, err := NewMatrix(nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for an empty matrix, got %v", err)
	}
	if _, err := NewMatrix([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for a ragged matrix, got %v", err)
	}
	m, err := NewMatrix([][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	if m.Types() != 2 || m.Payoff([]float64{1}, []float64{0}) != 3 {
		t.Error("unexpected matrix payoff")
	}
}

func TestPrisonersDilemma(t *testing.T) {
	pd := PrisonersDilemma(3, 1)
	c, d := []float64{0}, []float64{1}
	tests := []struct {
		me, other []float64
		want      float64
	}{
		{c, c, 2},
		{c, d, -1},
		{d, c, 3},
		{d, d, 0},
	}
	for _, tt := range tests {
		if got := pd.Payoff(tt.me, tt.other); got != tt.want {
			t.Errorf("Payoff(%v, %v) = %v, want %v", tt.me, tt.other, got, tt.want)
		}
	}
	// defection dominates
	if pd.Payoff(d, c) <= pd.Payoff(c, c) || pd.Payoff(d, d) <= pd.Payoff(c, d) {
		t.Error("defection should dominate cooperation")
	}
}

func TestSnowdriftMatrix(t *testing.T) {
	sd := SnowdriftMatrix(3, 2)
	c, d := []float64{0}, []float64{1}
	if sd.Payoff(c, c) != 2 || sd.Payoff(c, d) != 1 || sd.Payoff(d, c) != 3 || sd.Payoff(d, d) != 0 {
		t.Errorf("unexpected snowdrift payoffs %v", sd.Payoffs)
	}
	// cooperating against a defector beats mutual defection
	if sd.Payoff(c, d) <= sd.Payoff(d, d) {
		t.Error("snowdrift should reward cooperating against defectors")
	}
}

func TestRockPaperScissors(t *testing.T) {
	rps := RockPaperScissors(1, 2)
	for s := 0; s < 3; s++ {
		me := []float64{float64(s)}
		beats := []float64{float64((s + 1) % 3)}
		if rps.Payoff(me, beats) != 1 || rps.Payoff(beats, me) != -2 || rps.Payoff(me, me) != 0 {
			t.Errorf("type %d has the wrong cycle", s)
		}
	}
}

func TestContinuousSnowdrift(t *testing.T) {
	tr := &traits.Continuous{N: 1, Min: []float64{0}, Max: []float64{2}}
	g := &Snowdrift{Traits: tr, B1: 6, B2: -1.4, C1: 4.56, C2: -1.6}

	// normalized 0.5 is an investment of 1
	x, y := 1.0, 0.5
	want := -1.4*(x+y)*(x+y) + 6*(x+y) - (-1.6*x*x + 4.56*x)
	got := g.Payoff([]float64{0.5}, []float64{0.25})
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Payoff = %v, want %v", got, want)
	}
	if g.Payoff([]float64{0}, []float64{0}) != 0 {
		t.Error("no investment should pay nothing")
	}
}
