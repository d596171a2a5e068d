package player

import (
	"log/slog"

	"github.com/agleyzer/lyricsync/internal/highlight"
	"github.com/agleyzer/lyricsync/internal/index"
)

// Observer receives engine output. Calls are made while the engine lock is
// held, so an observer must not call back into the engine.
type Observer interface {
	// OnHighlight is called when the projected highlight state changes.
	OnHighlight(idx *index.Index, p highlight.Projection)

	// OnProgress is called on every cycle.
	OnProgress(p Progress)
}

type multiObserver []Observer

// Observers fans output out to every observer in order.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

func (m multiObserver) OnHighlight(idx *index.Index, p highlight.Projection) {
	for _, o := range m {
		o.OnHighlight(idx, p)
	}
}

func (m multiObserver) OnProgress(p Progress) {
	for _, o := range m {
		o.OnProgress(p)
	}
}

// LogObserver logs highlight changes, useful when no display is attached.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// OnHighlight logs the active word and line.
func (l *LogObserver) OnHighlight(idx *index.Index, p highlight.Projection) {
	switch {
	case p.Complete:
		l.logger.Info("all words sung", "units", len(p.Units))
	case p.ActiveIndex < 0:
		l.logger.Debug("no active word")
	default:
		u := idx.Unit(p.ActiveIndex)
		l.logger.Info("word",
			"index", p.ActiveIndex,
			"text", u.Text,
			"line", u.LineID,
			"start", u.StartTime,
		)
	}
}

// OnProgress logs at debug level only; progress fires every cycle.
func (l *LogObserver) OnProgress(p Progress) {
	l.logger.Debug("progress",
		"state", p.StateName,
		"elapsed", p.ElapsedText,
		"total", p.TotalText,
		"fraction", p.Fraction,
	)
}
