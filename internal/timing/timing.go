// Package timing defines the timing map that drives highlighting and the helpers that build it.
package timing

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed reports timing data the engine refuses to load.
var ErrMalformed = errors.New("malformed timing data")

// Word is a single timed word as it appears in the timing map.
type Word struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// Duration is informational and omitted by most producers
	Duration float64 `json:"duration,omitempty"`
}

// Line groups the words displayed together.
type Line struct {
	Words []Word `json:"words"`
}

// Map is a complete timing map for one track.
type Map struct {
	// Duration is the authoritative end of the timeline in seconds
	Duration float64 `json:"duration"`

	// Set names the lyric set the map was generated from, if any
	Set string `json:"set,omitempty"`

	// Bref is kept for compatibility with producers that flag the alternate lyric set
	Bref bool `json:"bref,omitempty"`

	Lines []Line `json:"lines"`
}

// WordCount returns the number of words across all lines.
func (m *Map) WordCount() int {
	n := 0
	for _, l := range m.Lines {
		n += len(l.Words)
	}
	return n
}

// Validate checks the invariants the engine relies on: a positive finite duration,
// finite non-negative timestamps and start times that never decrease.
func (m *Map) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil timing map", ErrMalformed)
	}

	if !isFinite(m.Duration) || m.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrMalformed, m.Duration)
	}

	prev := math.Inf(-1)
	for li, l := range m.Lines {
		for wi, w := range l.Words {
			if !isFinite(w.StartTime) || !isFinite(w.EndTime) {
				return fmt.Errorf("%w: line %d word %d has a non-numeric timestamp", ErrMalformed, li, wi)
			}
			if w.StartTime < 0 || w.EndTime < 0 {
				return fmt.Errorf("%w: line %d word %d has a negative timestamp", ErrMalformed, li, wi)
			}
			if w.StartTime < prev {
				return fmt.Errorf("%w: line %d word %d starts at %v before previous word at %v",
					ErrMalformed, li, wi, w.StartTime, prev)
			}
			prev = w.StartTime
		}
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
