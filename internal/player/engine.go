// Package player implements the playback driver that steps the highlight
// engine along the virtual clock.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/agleyzer/lyricsync/internal/highlight"
	"github.com/agleyzer/lyricsync/internal/index"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/transport"
	"github.com/google/uuid"
)

// DefaultTickInterval approximates a display refresh.
const DefaultTickInterval = 16 * time.Millisecond

// Options configures an Engine.
type Options struct {
	// TickInterval is the scheduling period while playing. Zero means the
	// host drives cycles itself by calling Tick.
	TickInterval time.Duration

	// TimeSource defaults to transport.SystemTime
	TimeSource transport.TimeSource

	Logger *slog.Logger
}

// Progress is emitted on every cycle.
type Progress struct {
	State       transport.State `json:"-"`
	StateName   string          `json:"state"`
	Elapsed     float64         `json:"elapsed"`
	Total       float64         `json:"total"`
	Fraction    float64         `json:"fraction"`
	ElapsedText string          `json:"elapsedText"`
	TotalText   string          `json:"totalText"`
	ActiveIndex int             `json:"activeIndex"`
	Prepared    bool            `json:"prepared"`
}

// Engine owns one timeline: its index, transport clock and the last
// projected active unit. All methods are safe for concurrent use; cycles
// and control calls are serialized.
type Engine struct {
	mu sync.Mutex

	id       string
	observer Observer
	interval time.Duration
	src      transport.TimeSource
	logger   *slog.Logger

	timing *timing.Map
	index  *index.Index
	clock  *transport.Clock

	lastActive int // last projected active unit; index.Len() once complete
	projected  bool

	cancel     context.CancelFunc
	generation uint64
	cycles     uint64
	highlights uint64
}

// New creates an engine that reports to observer.
func New(observer Observer, opts Options) *Engine {
	if observer == nil {
		observer = Observers()
	}
	if opts.TimeSource == nil {
		opts.TimeSource = transport.SystemTime
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		id:         uuid.NewString(),
		observer:   observer,
		interval:   opts.TickInterval,
		src:        opts.TimeSource,
		logger:     opts.Logger,
		lastActive: -1,
	}
}

// ID identifies the engine instance in logs and stats.
func (e *Engine) ID() string {
	return e.id
}

// Prepare replaces the timing map. On error the previous timeline stays loaded.
func (e *Engine) Prepare(tm *timing.Map) error {
	idx, err := index.Build(tm)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	clock, err := transport.New(idx.TotalDuration(), e.src)
	if err != nil {
		return fmt.Errorf("prepare: %w: %v", timing.ErrMalformed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLoop()
	e.timing = tm
	e.index = idx
	e.clock = clock
	e.projected = false
	e.lastActive = -1

	e.logger.Info("prepared timeline",
		"engine", e.id,
		"units", idx.Len(),
		"lines", idx.LineCount(),
		"duration", idx.TotalDuration(),
	)

	e.cycle()
	return nil
}

// Timing returns the loaded timing map, or nil.
func (e *Engine) Timing() *timing.Map {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timing
}

// Index returns the loaded index, or nil.
func (e *Engine) Index() *index.Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Play starts or resumes playback; after the end it restarts from 0.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.play()
}

// Pause freezes playback. Pending cycles are cancelled.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pause()
}

// Toggle pauses when playing and plays otherwise.
func (e *Engine) Toggle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock != nil && e.clock.State() == transport.Playing {
		e.pause()
	} else {
		e.play()
	}
}

func (e *Engine) play() {
	if e.clock == nil || !e.clock.Play() {
		return
	}

	e.logger.Debug("play", "engine", e.id, "elapsed", e.clock.Elapsed())
	e.startLoop()
	e.cycle()
}

func (e *Engine) pause() {
	if e.clock == nil || !e.clock.Pause() {
		return
	}

	e.stopLoop()
	e.logger.Debug("pause", "engine", e.id, "elapsed", e.clock.Elapsed())
	e.cycle()
}

// Stop cancels scheduling and freezes the clock, e.g. when the view closes.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLoop()
	if e.clock != nil {
		e.clock.Pause()
	}
}

// SeekToFraction seeks to fraction f of the timeline, clamped to [0, 1],
// and updates the output immediately.
func (e *Engine) SeekToFraction(f float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil {
		return
	}

	target := e.clock.SeekFraction(f)
	e.logger.Debug("seek", "engine", e.id, "fraction", f, "target", target)
	e.cycle()
}

// SeekToTime seeks to t seconds, clamped to the timeline.
func (e *Engine) SeekToTime(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil {
		return
	}

	target := e.clock.Seek(t)
	e.logger.Debug("seek", "engine", e.id, "time", t, "target", target)
	e.cycle()
}

// Finish jumps to the end and completes playback the way running off the
// end of the timeline does. Replicas use it to mirror a finished timeline.
func (e *Engine) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil || e.clock.State() == transport.Finished {
		return
	}

	e.clock.Play()
	e.clock.Seek(e.clock.Total())
	e.cycle()
}

// Reset stops playback and returns to the idle state at 0.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil {
		return
	}

	e.stopLoop()
	e.clock.Reset()
	e.cycle()
}

// Tick runs one cycle if playing and reports whether playback continues.
// Hosts that set TickInterval to zero call it from their own scheduler.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil || e.clock.State() != transport.Playing {
		return false
	}

	e.cycle()
	return e.clock.State() == transport.Playing
}

// Status returns the current progress without emitting it.
func (e *Engine) Status() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress()
}

// GetStats returns current statistics about the engine.
func (e *Engine) GetStats() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := map[string]interface{}{
		"engine":        e.id,
		"prepared":      e.index != nil,
		"tick_interval": e.interval.String(),
		"cycles":        e.cycles,
		"highlights":    e.highlights,
	}

	if e.index != nil {
		stats["units"] = e.index.Len()
		stats["lines"] = e.index.LineCount()
		stats["duration"] = e.index.TotalDuration()
		stats["state"] = e.clock.State().String()
		stats["elapsed"] = e.clock.Elapsed()
		stats["active_index"] = e.activeIndex()
	}

	return stats
}

// cycle samples the clock, finishes at the end of the timeline, projects
// on change and emits progress. Caller must hold the lock.
func (e *Engine) cycle() {
	if e.clock == nil {
		return
	}
	e.cycles++

	elapsed := e.clock.Elapsed()
	if e.clock.State() == transport.Playing && elapsed >= e.index.TotalDuration() {
		e.clock.Finish()
		e.stopLoop()
		e.logger.Info("playback finished", "engine", e.id, "duration", e.index.TotalDuration())
	}

	active := e.index.Len()
	if e.clock.State() != transport.Finished {
		active = e.index.Resolve(e.clock.Elapsed())
	}
	e.project(active)

	e.observer.OnProgress(e.progress())
}

// project emits a projection only when the active unit changed.
func (e *Engine) project(active int) {
	if e.projected && active == e.lastActive {
		return
	}

	e.projected = true
	e.lastActive = active
	e.highlights++
	e.observer.OnHighlight(e.index, highlight.Project(e.index, active))
}

func (e *Engine) activeIndex() int {
	if !e.projected || e.lastActive >= e.index.Len() {
		return -1
	}
	return e.lastActive
}

func (e *Engine) progress() Progress {
	if e.clock == nil {
		return Progress{
			State:       transport.Idle,
			StateName:   transport.Idle.String(),
			ElapsedText: timing.FormatTime(0),
			TotalText:   timing.FormatTime(0),
			ActiveIndex: -1,
		}
	}

	elapsed := e.clock.Elapsed()
	total := e.clock.Total()

	return Progress{
		State:       e.clock.State(),
		StateName:   e.clock.State().String(),
		Elapsed:     elapsed,
		Total:       total,
		Fraction:    math.Max(0, math.Min(1, elapsed/total)),
		ElapsedText: timing.FormatTime(elapsed),
		TotalText:   timing.FormatTime(total),
		ActiveIndex: e.activeIndex(),
		Prepared:    true,
	}
}

// startLoop schedules cycles for the current play segment.
// Caller must hold the lock.
func (e *Engine) startLoop() {
	e.stopLoop()
	if e.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(ctx, e.generation, e.interval)
}

// stopLoop cancels scheduled cycles. A tick already in flight sees a new
// generation and does nothing. Caller must hold the lock.
func (e *Engine) stopLoop() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation++
}

func (e *Engine) run(ctx context.Context, generation uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.step(generation) {
				return
			}
		}
	}
}

func (e *Engine) step(generation uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation || e.clock == nil || e.clock.State() != transport.Playing {
		return false
	}

	e.cycle()
	return e.clock.State() == transport.Playing
}
