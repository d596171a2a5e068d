// Package highlight derives per-word and per-line highlight state from the active unit.
package highlight

import "github.com/agleyzer/lyricsync/internal/index"

// UnitState is the highlight state of a single unit.
type UnitState int

const (
	Upcoming UnitState = iota
	Active
	Sung
)

func (s UnitState) String() string {
	switch s {
	case Upcoming:
		return "upcoming"
	case Active:
		return "active"
	case Sung:
		return "sung"
	default:
		return "unknown"
	}
}

// LineState is the aggregate highlight state of a line.
type LineState int

const (
	LineNone LineState = iota
	LineActive
	LineAdjacent
)

func (s LineState) String() string {
	switch s {
	case LineNone:
		return "none"
	case LineActive:
		return "active-line"
	case LineAdjacent:
		return "adjacent-line"
	default:
		return "unknown"
	}
}

// Projection is the derived highlight state for one active unit.
type Projection struct {
	// ActiveIndex is the active unit, -1 when none is active
	ActiveIndex int

	// Complete is set once the timeline has ended and every unit is sung
	Complete bool

	Units []UnitState
	Lines []LineState
}

// ActiveLine returns the line holding the active unit, or -1.
func (p Projection) ActiveLine() int {
	for i, s := range p.Lines {
		if s == LineActive {
			return i
		}
	}
	return -1
}

// Project computes unit and line states for active. An active index of -1
// leaves every unit upcoming; an index at or past the end marks every unit
// sung with no line highlighted.
func Project(idx *index.Index, active int) Projection {
	n := idx.Len()
	p := Projection{
		ActiveIndex: active,
		Units:       make([]UnitState, n),
		Lines:       make([]LineState, idx.LineCount()),
	}

	if active >= n {
		p.ActiveIndex = -1
		p.Complete = true
		for i := range p.Units {
			p.Units[i] = Sung
		}
		return p
	}

	if active < 0 {
		p.ActiveIndex = -1
		return p
	}

	for i := range p.Units {
		switch {
		case i < active:
			p.Units[i] = Sung
		case i == active:
			p.Units[i] = Active
		}
	}

	line := idx.LineOf(active)
	p.Lines[line] = LineActive
	if line > 0 {
		p.Lines[line-1] = LineAdjacent
	}
	if line < len(p.Lines)-1 {
		p.Lines[line+1] = LineAdjacent
	}

	return p
}
