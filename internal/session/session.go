// Package session binds a playback engine to the lyric library so callers
// can prepare timelines by set name.
package session

import (
	"errors"
	"log/slog"

	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/timing"
)

// ErrNotPrepared is returned by controls issued before any timeline is loaded.
var ErrNotPrepared = errors.New("no timeline prepared")

// Session is the local controller for one engine.
type Session struct {
	engine  *player.Engine
	library *lyrics.Library
	logger  *slog.Logger
}

// New creates a session.
func New(engine *player.Engine, library *lyrics.Library, logger *slog.Logger) *Session {
	return &Session{
		engine:  engine,
		library: library,
		logger:  logger,
	}
}

// Engine returns the underlying engine.
func (s *Session) Engine() *player.Engine {
	return s.engine
}

// Library returns the lyric library.
func (s *Session) Library() *lyrics.Library {
	return s.library
}

// Prepare generates the named set stretched to duration and loads it.
// The duration is clamped to the supported range.
func (s *Session) Prepare(set string, duration float64) error {
	tm, err := s.library.Timing(set, timing.ClampDuration(duration))
	if err != nil {
		return err
	}
	return s.PrepareMap(tm)
}

// PrepareMap loads an already built timing map.
func (s *Session) PrepareMap(tm *timing.Map) error {
	if err := s.engine.Prepare(tm); err != nil {
		return err
	}

	s.logger.Info("session prepared",
		"set", tm.Set,
		"duration", tm.Duration,
		"words", tm.WordCount(),
	)
	return nil
}

// Play starts or resumes playback.
func (s *Session) Play() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.Play()
	return nil
}

// Pause freezes playback.
func (s *Session) Pause() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.Pause()
	return nil
}

// Toggle flips between playing and paused.
func (s *Session) Toggle() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.Toggle()
	return nil
}

// SeekToFraction seeks to fraction f of the timeline.
func (s *Session) SeekToFraction(f float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.SeekToFraction(f)
	return nil
}

// SeekToTime seeks to t seconds.
func (s *Session) SeekToTime(t float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.SeekToTime(t)
	return nil
}

// Reset returns to idle at 0.
func (s *Session) Reset() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.engine.Reset()
	return nil
}

// Status returns the engine progress.
func (s *Session) Status() player.Progress {
	return s.engine.Status()
}

// Stats returns engine statistics plus the available sets.
func (s *Session) Stats() map[string]interface{} {
	stats := s.engine.GetStats()
	stats["sets"] = s.library.Names()
	if tm := s.engine.Timing(); tm != nil {
		stats["set"] = tm.Set
	}
	return stats
}

func (s *Session) ready() error {
	if s.engine.Index() == nil {
		return ErrNotPrepared
	}
	return nil
}
