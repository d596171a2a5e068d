// Package tui renders the karaoke view in a terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/agleyzer/lyricsync/internal/highlight"
	"github.com/agleyzer/lyricsync/internal/index"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/transport"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	seekStep      = 5.0
	maxBarWidth   = 60
	defaultFrames = 33 * time.Millisecond
)

// Controller is the playback surface the view drives.
type Controller interface {
	Toggle() error
	SeekToFraction(f float64) error
	Reset() error
	Status() player.Progress
}

// Ticker advances an engine that has no scheduler of its own.
type Ticker interface {
	Tick() bool
}

type frameMsg struct{}

// Model is the bubbletea model for the karaoke view.
type Model struct {
	title    string
	ctrl     Controller
	ticker   Ticker
	recorder *Recorder
	interval time.Duration

	keys     keyMap
	help     help.Model
	progress progress.Model

	err      string
	quitting bool
}

// New creates the view. ticker may be nil when the engine schedules itself.
func New(title string, ctrl Controller, ticker Ticker, recorder *Recorder, interval time.Duration) Model {
	if interval <= 0 {
		interval = defaultFrames
	}

	return Model{
		title:    title,
		ctrl:     ctrl,
		ticker:   ticker,
		recorder: recorder,
		interval: interval,
		keys:     defaultKeys(),
		help:     help.New(),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

func (m Model) nextFrame() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(maxBarWidth, max(10, msg.Width-4))
		m.help.Width = msg.Width
		return m, nil

	case frameMsg:
		if m.ticker != nil {
			m.ticker.Tick()
		}
		return m, m.nextFrame()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			m.setErr(m.ctrl.Toggle())

		case key.Matches(msg, m.keys.Back):
			m.seekBy(-seekStep)

		case key.Matches(msg, m.keys.Forward):
			m.seekBy(seekStep)

		case key.Matches(msg, m.keys.Jump):
			tenths := float64(msg.String()[0]-'0') / 10
			m.setErr(m.ctrl.SeekToFraction(tenths))

		case key.Matches(msg, m.keys.Reset):
			m.setErr(m.ctrl.Reset())
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) seekBy(delta float64) {
	st := m.ctrl.Status()
	if !st.Prepared || st.Total <= 0 {
		return
	}
	m.setErr(m.ctrl.SeekToFraction((st.Elapsed + delta) / st.Total))
}

func (m *Model) setErr(err error) {
	if err != nil {
		m.err = err.Error()
		return
	}
	m.err = ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(BulletStyle.Render("┌") + TitleStyle.Render(m.title) + "\n\n")

	idx, proj, prog := m.recorder.Snapshot()
	if idx == nil {
		b.WriteString("  " + DimTextStyle.Render("No timeline prepared") + "\n")
	} else {
		b.WriteString(renderLines(idx, proj))
	}

	b.WriteString("\n  " + m.progress.ViewAs(prog.Fraction) + "\n")
	b.WriteString(StatusStyle.Render(fmt.Sprintf("%s / %s", prog.ElapsedText, prog.TotalText)) +
		"  " + stateStyle(prog.State).Render(prog.StateName) + "\n")
	if prog.State == transport.Finished {
		b.WriteString("  " + SuccessStyle.Render("Finished. Press space to sing it again.") + "\n")
	}

	if m.err != "" {
		b.WriteString("  " + ErrorStyle.Render(m.err) + "\n")
	}

	b.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return b.String()
}

func renderLines(idx *index.Index, proj highlight.Projection) string {
	lines := make([][]string, idx.LineCount())
	for i := 0; i < idx.Len(); i++ {
		state := highlight.Upcoming
		if i < len(proj.Units) {
			state = proj.Units[i]
		}
		l := idx.LineOf(i)
		lines[l] = append(lines[l], wordStyle(state).Render(idx.Unit(i).Text))
	}

	var b strings.Builder
	for l, words := range lines {
		text := strings.Join(words, " ")

		state := highlight.LineNone
		if l < len(proj.Lines) {
			state = proj.Lines[l]
		}

		switch state {
		case highlight.LineActive:
			b.WriteString(ActiveLineStyle.Render("▶ " + text))
		case highlight.LineAdjacent:
			b.WriteString(AdjacentLineStyle.Render(text))
		default:
			b.WriteString(LineStyle.Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func stateStyle(s transport.State) lipgloss.Style {
	switch s {
	case transport.Playing:
		return TextStyle
	case transport.Finished:
		return SuccessStyle
	default:
		return DimTextStyle
	}
}

func wordStyle(s highlight.UnitState) lipgloss.Style {
	switch s {
	case highlight.Active:
		return ActiveStyle
	case highlight.Sung:
		return SungStyle
	default:
		return UpcomingStyle
	}
}
