package timing

import (
	"fmt"
	"math"
)

const (
	// DefaultDuration is the track length used when none is requested.
	DefaultDuration = 120.5
	// MinDuration and MaxDuration bound requested track lengths.
	MinDuration = 30.0
	MaxDuration = 200.0

	// EndMarker rows carry trailing note length but are never displayed.
	EndMarker = "[end]"
)

// Grouping selects how generated words are split into display lines.
type Grouping string

const (
	// GroupByCount fills lines with a fixed number of rows each.
	GroupByCount Grouping = "count"
	// GroupByShare places words by how far through the song they fall,
	// for sets whose words do not line up with the reference lyric lines.
	GroupByShare Grouping = "share"
)

// NoteWord is one lyric row with its relative note length.
type NoteWord struct {
	Word       string  `json:"word"`
	NoteLength float64 `json:"noteLength"`
}

// ClampDuration bounds d to [MinDuration, MaxDuration].
func ClampDuration(d float64) float64 {
	if math.IsNaN(d) {
		return DefaultDuration
	}
	return math.Max(MinDuration, math.Min(MaxDuration, d))
}

// Generate spreads duration seconds over notes in proportion to their note
// lengths and groups the timed words into lines.
func Generate(notes []NoteWord, lineWordCounts []int, duration float64, grouping Grouping) (*Map, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: no notes", ErrMalformed)
	}

	if !isFinite(duration) || duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %v", ErrMalformed, duration)
	}

	var total float64
	for i, n := range notes {
		if !isFinite(n.NoteLength) || n.NoteLength < 0 {
			return nil, fmt.Errorf("%w: note %d (%q) has invalid length %v", ErrMalformed, i, n.Word, n.NoteLength)
		}
		total += n.NoteLength
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: note lengths sum to zero", ErrMalformed)
	}

	// Times are computed over every row, the end marker included.
	timed := make([]Word, len(notes))
	var cum float64
	for i, n := range notes {
		wordTime := n.NoteLength / total * duration
		start := cum
		cum += wordTime
		timed[i] = Word{
			Word:      n.Word,
			StartTime: round4(start),
			EndTime:   round4(cum),
			Duration:  round4(wordTime),
		}
	}

	var lines []Line
	switch grouping {
	case GroupByCount, "":
		lines = groupByCount(timed, lineWordCounts)
	case GroupByShare:
		var err error
		lines, err = groupByShare(timed, notes, lineWordCounts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown grouping %q", grouping)
	}

	return &Map{Duration: duration, Lines: lines}, nil
}

func groupByCount(timed []Word, counts []int) []Line {
	var lines []Line
	idx := 0
	for _, count := range counts {
		var words []Word
		for j := 0; j < count && idx < len(timed); j++ {
			w := timed[idx]
			idx++
			if w.Word == EndMarker {
				continue
			}
			words = append(words, w)
		}
		if len(words) > 0 {
			lines = append(lines, Line{Words: words})
		}
	}
	return lines
}

func groupByShare(timed []Word, notes []NoteWord, counts []int) ([]Line, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: share grouping needs reference line counts", ErrMalformed)
	}

	var countTotal int
	for _, c := range counts {
		countTotal += c
	}
	if countTotal <= 0 {
		return nil, fmt.Errorf("%w: reference line counts sum to zero", ErrMalformed)
	}

	thresholds := make([]float64, len(counts))
	running := 0
	for i, c := range counts {
		running += c
		thresholds[i] = float64(running) / float64(countTotal)
	}

	var noteTotal float64
	for _, n := range notes {
		if n.Word != EndMarker {
			noteTotal += n.NoteLength
		}
	}
	if noteTotal <= 0 {
		return nil, fmt.Errorf("%w: note lengths sum to zero", ErrMalformed)
	}

	buckets := make([][]Word, len(counts))
	var cumNotes float64
	for i, n := range notes {
		if n.Word == EndMarker {
			continue
		}
		cumNotes += n.NoteLength
		share := cumNotes / noteTotal

		lineIdx := len(thresholds) - 1
		for j, th := range thresholds {
			if share <= th+1e-9 {
				lineIdx = j
				break
			}
		}
		buckets[lineIdx] = append(buckets[lineIdx], timed[i])
	}

	var lines []Line
	for _, b := range buckets {
		if len(b) > 0 {
			lines = append(lines, Line{Words: b})
		}
	}
	return lines, nil
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
