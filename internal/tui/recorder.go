package tui

import (
	"sync"

	"github.com/agleyzer/lyricsync/internal/highlight"
	"github.com/agleyzer/lyricsync/internal/index"
	"github.com/agleyzer/lyricsync/internal/player"
)

// Recorder keeps the latest engine output for rendering. The engine writes
// from its own goroutines; the view reads a copy.
type Recorder struct {
	mu         sync.Mutex
	index      *index.Index
	projection highlight.Projection
	progress   player.Progress
	frames     uint64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		projection: highlight.Projection{ActiveIndex: -1},
		progress:   player.Progress{ActiveIndex: -1},
	}
}

// OnHighlight stores the projection.
func (r *Recorder) OnHighlight(idx *index.Index, p highlight.Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = idx
	r.projection = p
	r.frames++
}

// OnProgress stores the progress.
func (r *Recorder) OnProgress(p player.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

// Snapshot returns the latest index, projection and progress.
func (r *Recorder) Snapshot() (*index.Index, highlight.Projection, player.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index, r.projection, r.progress
}

// Highlights counts stored projections.
func (r *Recorder) Highlights() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
