package tui

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/session"
	"github.com/agleyzer/lyricsync/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
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
		Level: slog.LevelError,
	}))
}

func newTestModel(t *testing.T) (Model, *session.Session, *Recorder, *fakeTime) {
	t.Helper()

	lib, err := lyrics.Load()
	if err != nil {
		t.Fatalf("failed to load lyrics: %v", err)
	}

	clock := &fakeTime{now: time.Unix(1_700_000_000, 0)}
	rec := NewRecorder()
	engine := player.New(rec, player.Options{TimeSource: clock, Logger: createTestLogger()})
	s := session.New(engine, lib, createTestLogger())

	if err := s.Prepare(lyrics.DefaultSet, 60); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	return New("The Star-Spangled Banner", s, engine, rec, 0), s, rec, clock
}

func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, _ := m.Update(k)
	return next.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_InitSchedulesFrames(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	if m.Init() == nil {
		t.Fatal("expected Init to schedule a frame")
	}
	if m.interval != defaultFrames {
		t.Errorf("interval = %v, want %v", m.interval, defaultFrames)
	}
}

func TestModel_ToggleAndFrames(t *testing.T) {
	m, s, rec, clock := newTestModel(t)

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if s.Status().State != transport.Playing {
		t.Fatalf("state = %v, want playing", s.Status().State)
	}

	clock.Advance(10 * time.Second)
	next, cmd := m.Update(frameMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Error("expected the next frame to be scheduled")
	}

	_, proj, prog := rec.Snapshot()
	if prog.Elapsed != 10 {
		t.Errorf("elapsed = %v, want 10", prog.Elapsed)
	}
	if proj.ActiveIndex < 0 {
		t.Error("expected an active word after a frame at 10s")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if s.Status().State != transport.Paused {
		t.Errorf("state = %v, want paused", s.Status().State)
	}
}

func TestModel_SeekKeys(t *testing.T) {
	m, s, _, _ := newTestModel(t)

	tests := []struct {
		name        string
		key         tea.KeyMsg
		wantElapsed float64
	}{
		{"jump to half", runes("5"), 30},
		{"forward", tea.KeyMsg{Type: tea.KeyRight}, 35},
		{"back", tea.KeyMsg{Type: tea.KeyLeft}, 30},
		{"jump to start", runes("0"), 0},
		{"back clamps", tea.KeyMsg{Type: tea.KeyLeft}, 0},
		{"jump to nine tenths", runes("9"), 54},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m = press(t, m, tt.key)
			if got := s.Status().Elapsed; got != tt.wantElapsed {
				t.Errorf("elapsed = %v, want %v", got, tt.wantElapsed)
			}
		})
	}

	m = press(t, m, runes("r"))
	if st := s.Status(); st.State != transport.Idle || st.Elapsed != 0 {
		t.Errorf("after reset: %v at %v", st.State, st.Elapsed)
	}
}

func TestModel_Quit(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	next, cmd := m.Update(runes("q"))
	m = next.(Model)

	if !m.quitting {
		t.Error("expected quitting")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestModel_View(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	m = press(t, m, runes("5"))

	view := m.View()
	for _, want := range []string{"The Star-Spangled Banner", "ramparts", "0:30.0", "1:00.0", "paused", "play/pause"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ViewFinished(t *testing.T) {
	m, s, _, clock := newTestModel(t)

	if err := s.Play(); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if strings.Contains(m.View(), "Finished.") {
		t.Error("finished notice shown while playing")
	}

	clock.Advance(61 * time.Second)
	next, _ := m.Update(frameMsg{})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"finished", "Finished. Press space to sing it again.", "1:00.0 / 1:00.0"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestStateStyle(t *testing.T) {
	tests := []struct {
		state transport.State
		want  lipgloss.Style
	}{
		{transport.Idle, DimTextStyle},
		{transport.Playing, TextStyle},
		{transport.Paused, DimTextStyle},
		{transport.Finished, SuccessStyle},
	}

	for _, tt := range tests {
		if got := stateStyle(tt.state); got.GetForeground() != tt.want.GetForeground() {
			t.Errorf("stateStyle(%v) foreground = %v, want %v", tt.state, got.GetForeground(), tt.want.GetForeground())
		}
	}
}

type failingController struct {
	player.Progress
}

func (f failingController) Toggle() error                { return errors.New("not the cluster leader") }
func (f failingController) SeekToFraction(float64) error { return errors.New("not the cluster leader") }
func (f failingController) Reset() error                 { return nil }
func (f failingController) Status() player.Progress      { return f.Progress }

func TestModel_ShowsErrors(t *testing.T) {
	m := New("test", failingController{}, nil, NewRecorder(), time.Second)

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !strings.Contains(m.View(), "not the cluster leader") {
		t.Error("expected error in view")
	}
	if !strings.Contains(m.View(), "No timeline prepared") {
		t.Error("expected empty timeline notice")
	}

	m = press(t, m, runes("r"))
	if strings.Contains(m.View(), "not the cluster leader") {
		t.Error("expected error cleared after a successful control")
	}
}
