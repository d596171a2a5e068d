package session

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/transport"
)

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

func newTestSession(t *testing.T) (*Session, *fakeTime) {
	t.Helper()

	lib, err := lyrics.Load()
	if err != nil {
		t.Fatalf("failed to load lyrics: %v", err)
	}

	clock := &fakeTime{now: time.Unix(1_700_000_000, 0)}
	engine := player.New(nil, player.Options{
		TimeSource: clock,
		Logger:     createTestLogger(),
	})

	return New(engine, lib, createTestLogger()), clock
}

func TestSession_ControlsBeforePrepare(t *testing.T) {
	s, _ := newTestSession(t)

	controls := map[string]func() error{
		"play":   s.Play,
		"pause":  s.Pause,
		"toggle": s.Toggle,
		"reset":  s.Reset,
		"seek":   func() error { return s.SeekToFraction(0.5) },
		"seekTo": func() error { return s.SeekToTime(3) },
	}

	for name, fn := range controls {
		if err := fn(); !errors.Is(err, ErrNotPrepared) {
			t.Errorf("%s: expected ErrNotPrepared, got %v", name, err)
		}
	}

	if s.Status().Prepared {
		t.Error("expected unprepared status")
	}
}

func TestSession_PrepareClampsDuration(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Prepare(lyrics.DefaultSet, 1000); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	st := s.Status()
	if st.Total != timing.MaxDuration {
		t.Errorf("Total = %v, want %v", st.Total, timing.MaxDuration)
	}
	if st.State != transport.Idle {
		t.Errorf("State = %v, want idle", st.State)
	}
}

func TestSession_PrepareUnknownSet(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Prepare("nope", 60); !errors.Is(err, lyrics.ErrUnknownSet) {
		t.Errorf("expected ErrUnknownSet, got %v", err)
	}
}

func TestSession_PlaybackFlow(t *testing.T) {
	s, clock := newTestSession(t)

	if err := s.Prepare(lyrics.DefaultSet, 60); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	if err := s.Play(); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	clock.Advance(10 * time.Second)
	s.Engine().Tick()

	st := s.Status()
	if st.State != transport.Playing {
		t.Fatalf("State = %v, want playing", st.State)
	}
	if st.Elapsed != 10 {
		t.Errorf("Elapsed = %v, want 10", st.Elapsed)
	}
	if st.ActiveIndex < 0 {
		t.Errorf("expected an active word at 10s, got %d", st.ActiveIndex)
	}

	if err := s.Toggle(); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if s.Status().State != transport.Paused {
		t.Errorf("State = %v, want paused", s.Status().State)
	}

	if err := s.SeekToFraction(1); err != nil {
		t.Fatalf("SeekToFraction returned error: %v", err)
	}
	if st := s.Status(); st.State != transport.Paused || st.Fraction != 1 {
		t.Errorf("status = %+v, want paused at the end", st)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	st = s.Status()
	if st.State != transport.Idle || st.Elapsed != 0 {
		t.Errorf("after reset: state %v elapsed %v", st.State, st.Elapsed)
	}
}

func TestSession_Stats(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Prepare(lyrics.DefaultSet, 60); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	stats := s.Stats()
	if stats["set"] != lyrics.DefaultSet {
		t.Errorf("set = %v, want %s", stats["set"], lyrics.DefaultSet)
	}
	names, ok := stats["sets"].([]string)
	if !ok || len(names) == 0 {
		t.Errorf("sets = %v", stats["sets"])
	}
	if stats["prepared"] != true {
		t.Errorf("prepared = %v", stats["prepared"])
	}
}
