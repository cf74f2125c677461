// Package games provides payoff modules for populations: matrix games over
// discrete types and the continuous snowdrift game.
package games

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/ibs/traits"
)

// ErrShape is returned for payoff matrices that are not square.
var ErrShape = errors.New("games: payoff matrix must be square")

// Matrix is a symmetric two-player game over discrete types. Payoffs[s][t]
// is the payoff of type s against type t.
type Matrix struct {
	Payoffs [][]float64
}

// NewMatrix validates the payoff matrix.
func NewMatrix(payoffs [][]float64) (*Matrix, error) {
	n := len(payoffs)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrShape)
	}
	for s, row := range payoffs {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShape, s, len(row), n)
		}
	}
	return &Matrix{Payoffs: payoffs}, nil
}

// Types returns the number of strategy types.
func (m *Matrix) Types() int { return len(m.Payoffs) }

func (m *Matrix) Payoff(me, other []float64) float64 {
	return m.Payoffs[int(me[0])][int(other[0])]
}

// PrisonersDilemma is the donation game: cooperators (type 0) pay c to
// give b to their partner; defectors (type 1) pay nothing.
func PrisonersDilemma(b, c float64) *Matrix {
	return &Matrix{Payoffs: [][]float64{
		{b - c, -c},
		{b, 0},
	}}
}

// SnowdriftMatrix is the discrete snowdrift game: cooperators share the
// cost c of a benefit b that either player can produce alone.
func SnowdriftMatrix(b, c float64) *Matrix {
	return &Matrix{Payoffs: [][]float64{
		{b - c/2, b - c},
		{b, 0},
	}}
}

// RockPaperScissors is the cyclic game with win payoff w and loss
// payoff -l.
func RockPaperScissors(w, l float64) *Matrix {
	return &Matrix{Payoffs: [][]float64{
		{0, w, -l},
		{-l, 0, w},
		{w, -l, 0},
	}}
}

// Snowdrift is the continuous snowdrift game. An investment x yields the
// shared benefit B(x+y) = B2(x+y)^2 + B1(x+y) at private cost
// C(x) = C2 x^2 + C1 x. Strategies are normalized trait vectors of Traits.
type Snowdrift struct {
	Traits         *traits.Continuous
	B1, B2, C1, C2 float64

	buf [2]float64
}

func (g *Snowdrift) Payoff(me, other []float64) float64 {
	g.Traits.Decode(g.buf[:1], me)
	x := g.buf[0]
	g.Traits.Decode(g.buf[1:], other)
	y := g.buf[1]
	s := x + y
	return g.B2*s*s + g.B1*s - (g.C2*x*x + g.C1*x)
}
