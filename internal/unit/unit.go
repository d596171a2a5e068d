// Package unit defines the timed units the highlight engine steps through.
package unit

// Unit is one highlightable word.
type Unit struct {
	// Text is the word as displayed
	Text string

	// StartTime is the inclusive start of activity in seconds
	StartTime float64

	// EndTime is informational only; a unit stays active until the next
	// unit starts or the timeline ends
	EndTime float64

	// LineID is the ordinal of the line containing this unit
	LineID int

	// Position is the ordinal of the unit inside its line
	Position int
}
