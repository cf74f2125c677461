package geometry

import (
	"fmt"
	"strings"
)

// Kind identifies a graph family.
type Kind int

const (
	MeanField Kind = iota
	Complete
	Hierarchy
	Star
	Wheel
	SuperStar
	StrongAmplifier
	StrongSuppressor
	Linear
	SquareNeumann
	SquareNeumann2nd
	SquareMoore
	Square
	Cube
	Honeycomb
	Triangular
	Frucht
	Tietze
	Franklin
	Heawood
	Icosahedron
	Dodecahedron
	Desargues
	RandomRegular
	RandomGraph
	RandomGraphDirected
	ScaleFree
	ScaleFreeBA
	ScaleFreeKlemm
)

type kindInfo struct {
	key      string
	name     string
	unique   bool // random realization, must be serialized to be restored
	directed bool
	lattice  bool
}

var kinds = []kindInfo{
	MeanField:           {key: "M", name: "meanfield"},
	Complete:            {key: "c", name: "complete"},
	Hierarchy:           {key: "H", name: "hierarchy"},
	Star:                {key: "s", name: "star"},
	Wheel:               {key: "w", name: "wheel"},
	SuperStar:           {key: "p", name: "superstar", directed: true},
	StrongAmplifier:     {key: "+", name: "amplifier"},
	StrongSuppressor:    {key: "-", name: "suppressor"},
	Linear:              {key: "l", name: "linear", lattice: true},
	SquareNeumann:       {key: "n", name: "neumann", lattice: true},
	SquareNeumann2nd:    {key: "N", name: "neumann2nd", lattice: true},
	SquareMoore:         {key: "m", name: "moore", lattice: true},
	Square:              {key: "q", name: "square", lattice: true},
	Cube:                {key: "C", name: "cube", lattice: true},
	Honeycomb:           {key: "h", name: "honeycomb", lattice: true},
	Triangular:          {key: "t", name: "triangular", lattice: true},
	Frucht:              {key: "F", name: "frucht"},
	Tietze:              {key: "T", name: "tietze"},
	Franklin:            {key: "f", name: "franklin"},
	Heawood:             {key: "a", name: "heawood"},
	Icosahedron:         {key: "i", name: "icosahedron"},
	Dodecahedron:        {key: "d", name: "dodecahedron"},
	Desargues:           {key: "D", name: "desargues"},
	RandomRegular:       {key: "r", name: "random-regular", unique: true},
	RandomGraph:         {key: "R", name: "random", unique: true},
	RandomGraphDirected: {key: "G", name: "random-directed", unique: true, directed: true},
	ScaleFree:           {key: "S", name: "scalefree", unique: true},
	ScaleFreeBA:         {key: "B", name: "scalefree-ba", unique: true},
	ScaleFreeKlemm:      {key: "K", name: "scalefree-klemm", unique: true},
}

func (k Kind) info() kindInfo {
	if k < 0 || int(k) >= len(kinds) {
		return kindInfo{key: "?", name: fmt.Sprintf("kind(%d)", int(k))}
	}
	return kinds[k]
}

// String returns the long name of the family.
func (k Kind) String() string { return k.info().name }

// Key returns the single character key of the family.
func (k Kind) Key() string { return k.info().key }

// Unique reports whether every build of the family yields a different graph.
// Only unique geometries need their adjacency serialized.
func (k Kind) Unique() bool { return k.info().unique }

// Directed reports whether the family is built from directed links.
func (k Kind) Directed() bool { return k.info().directed }

// Lattice reports whether the family is a regular lattice.
func (k Kind) Lattice() bool { return k.info().lattice }

// Valid reports whether k names a known family.
func (k Kind) Valid() bool { return k >= 0 && int(k) < len(kinds) }

// ParseKind accepts either the key ("n") or the long name ("neumann").
func ParseKind(s string) (Kind, error) {
	for i, info := range kinds {
		if s == info.key {
			return Kind(i), nil
		}
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	for i, info := range kinds {
		if lower == info.name {
			return Kind(i), nil
		}
	}
	return MeanField, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds returns all known families in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	for i := range kinds {
		out[i] = Kind(i)
	}
	return out
}
