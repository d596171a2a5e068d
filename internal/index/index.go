// Package index builds the immutable, time-sorted unit index and resolves
// elapsed time to the active unit.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/unit"
)

// Index is an immutable sequence of units ordered by start time.
type Index struct {
	units     []unit.Unit
	lineSizes []int
	total     float64
}

// Build flattens a timing map into an index.
// It fails with timing.ErrMalformed when the map violates the timing invariants.
func Build(tm *timing.Map) (*Index, error) {
	if err := tm.Validate(); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	idx := &Index{
		units:     make([]unit.Unit, 0, tm.WordCount()),
		lineSizes: make([]int, len(tm.Lines)),
		total:     tm.Duration,
	}

	for li, l := range tm.Lines {
		for wi, w := range l.Words {
			idx.units = append(idx.units, unit.Unit{
				Text:      w.Word,
				StartTime: w.StartTime,
				EndTime:   w.EndTime,
				LineID:    li,
				Position:  wi,
			})
		}
		idx.lineSizes[li] = len(l.Words)
	}

	return idx, nil
}

// Resolve returns the index of the last unit whose start time is <= elapsed,
// or -1 when elapsed precedes the first unit or the index is empty.
func (x *Index) Resolve(elapsed float64) int {
	if len(x.units) == 0 || math.IsNaN(elapsed) {
		return -1
	}

	// first unit starting strictly after elapsed
	next := sort.Search(len(x.units), func(i int) bool {
		return x.units[i].StartTime > elapsed
	})

	return next - 1
}

// Len returns the number of units.
func (x *Index) Len() int {
	return len(x.units)
}

// Unit returns the unit at position i.
func (x *Index) Unit(i int) unit.Unit {
	return x.units[i]
}

// LineOf returns the line containing unit i.
func (x *Index) LineOf(i int) int {
	return x.units[i].LineID
}

// LineCount returns the number of lines, including lines without words.
func (x *Index) LineCount() int {
	return len(x.lineSizes)
}

// LineSize returns the number of units in line l.
func (x *Index) LineSize(l int) int {
	return x.lineSizes[l]
}

// TotalDuration is the authoritative end of the timeline in seconds.
func (x *Index) TotalDuration() float64 {
	return x.total
}
