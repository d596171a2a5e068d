// Package lyrics holds the lyric sets timing maps are generated from.
package lyrics

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/agleyzer/lyricsync/internal/timing"
)

//go:embed data/*.json
var embedded embed.FS

const (
	// DefaultSet is the embedded anthem.
	DefaultSet = "ssb"
	// BrefSet is the alternate set selected by the bref flag. It is not
	// embedded; users supply it as a lyrics file named "bref".
	BrefSet = "bref"
)

// ErrUnknownSet is returned for set names the library does not hold.
var ErrUnknownSet = errors.New("unknown lyric set")

// Set is one lyric sheet with per-word note lengths.
type Set struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Grouping timing.Grouping `json:"grouping"`

	// LinesFrom names the set whose lines define line boundaries.
	// Empty means this set's own lines.
	LinesFrom string `json:"lines_from,omitempty"`

	Lines []string          `json:"lines"`
	Notes []timing.NoteWord `json:"notes"`
}

// LineWordCounts returns the number of words on each line.
func (s *Set) LineWordCounts() []int {
	counts := make([]int, len(s.Lines))
	for i, l := range s.Lines {
		counts[i] = len(strings.Fields(l))
	}
	return counts
}

// Library is a read-only collection of sets.
type Library struct {
	sets map[string]*Set
}

// Load reads the embedded sets and then any extra set files; a file may
// replace an embedded set of the same name.
func Load(extraFiles ...string) (*Library, error) {
	lib := &Library{sets: make(map[string]*Set)}

	entries, err := fs.ReadDir(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("read embedded lyrics: %w", err)
	}
	for _, entry := range entries {
		data, err := embedded.ReadFile("data/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded lyrics %s: %w", entry.Name(), err)
		}
		if err := lib.add(data, entry.Name()); err != nil {
			return nil, err
		}
	}

	for _, path := range extraFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lyrics file %s: %w", path, err)
		}
		if err := lib.add(data, path); err != nil {
			return nil, err
		}
	}

	for _, s := range lib.sets {
		if s.LinesFrom != "" {
			if _, ok := lib.sets[s.LinesFrom]; !ok {
				return nil, fmt.Errorf("lyric set %q takes lines from %w %q", s.Name, ErrUnknownSet, s.LinesFrom)
			}
		}
	}

	return lib, nil
}

func (l *Library) add(data []byte, source string) error {
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse lyrics %s: %w", source, err)
	}

	if s.Name == "" {
		return fmt.Errorf("lyrics %s: missing name", source)
	}
	if len(s.Notes) == 0 {
		return fmt.Errorf("lyrics %s: no notes", source)
	}
	if s.LinesFrom == "" && len(s.Lines) == 0 {
		return fmt.Errorf("lyrics %s: no lines", source)
	}

	l.sets[s.Name] = &s
	return nil
}

// Get returns the named set.
func (l *Library) Get(name string) (*Set, error) {
	s, ok := l.sets[name]
	if !ok && name == BrefSet {
		return nil, fmt.Errorf("%w %q: add a lyrics file with \"name\": %q", ErrUnknownSet, name, BrefSet)
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSet, name)
	}
	return s, nil
}

// Names lists the available sets in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.sets))
	for name := range l.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Timing generates a timing map for the named set stretched to duration seconds.
func (l *Library) Timing(name string, duration float64) (*timing.Map, error) {
	s, err := l.Get(name)
	if err != nil {
		return nil, err
	}

	ref := s
	if s.LinesFrom != "" {
		if ref, err = l.Get(s.LinesFrom); err != nil {
			return nil, err
		}
	}

	tm, err := timing.Generate(s.Notes, ref.LineWordCounts(), duration, s.Grouping)
	if err != nil {
		return nil, fmt.Errorf("generate timing for %q: %w", name, err)
	}

	tm.Set = s.Name
	tm.Bref = s.Name == BrefSet
	return tm, nil
}
