// Package transport implements the virtual playback clock.
//
// Elapsed time is derived from a reference instant while playing and frozen
// otherwise, so pausing and resuming never accumulates wall-clock drift.
package transport

import (
	"fmt"
	"math"
	"time"
)

// State is the transport state.
type State int

const (
	// Idle is the initial state: nothing highlighted, elapsed 0.
	Idle State = iota
	// Playing advances elapsed time with the time source.
	Playing
	// Paused holds elapsed time.
	Paused
	// Finished holds elapsed time at the total duration.
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// TimeSource supplies the current wall-clock instant.
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// SystemTime reads the monotonic system clock.
var SystemTime TimeSource = systemTime{}

// Clock tracks virtual elapsed time over [0, total].
type Clock struct {
	src    TimeSource
	total  float64
	state  State
	origin time.Time // instant of virtual time 0 for the current play segment
	frozen float64   // elapsed seconds, valid while not playing
}

// New creates an idle clock for a timeline of total seconds.
func New(total float64, src TimeSource) (*Clock, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %v", total)
	}

	if src == nil {
		src = SystemTime
	}

	return &Clock{src: src, total: total}, nil
}

// State returns the current transport state.
func (c *Clock) State() State {
	return c.state
}

// Total returns the timeline length in seconds.
func (c *Clock) Total() float64 {
	return c.total
}

// Elapsed returns virtual elapsed seconds, always within [0, total].
func (c *Clock) Elapsed() float64 {
	if c.state != Playing {
		return c.frozen
	}
	return c.clamp(c.src.Now().Sub(c.origin).Seconds())
}

// Play starts or resumes playback. Playing from the end of the timeline
// restarts at 0. It reports whether the state changed.
func (c *Clock) Play() bool {
	if c.state == Playing {
		return false
	}

	if c.frozen >= c.total {
		c.frozen = 0
	}

	c.origin = c.src.Now().Add(-seconds(c.frozen))
	c.state = Playing
	return true
}

// Pause freezes elapsed time. It reports whether the state changed.
func (c *Clock) Pause() bool {
	if c.state != Playing {
		return false
	}

	c.frozen = c.clamp(c.src.Now().Sub(c.origin).Seconds())
	c.state = Paused
	return true
}

// Seek moves to target seconds, clamped to [0, total], and returns the
// clamped target. A playing clock keeps playing from the new position.
// A stopped clock keeps its state, except that Finished re-arms to Paused
// below the end and Idle becomes Paused away from 0. Only a playing clock
// reaches Finished.
func (c *Clock) Seek(target float64) float64 {
	target = c.clamp(target)

	if c.state == Playing {
		c.origin = c.src.Now().Add(-seconds(target))
		return target
	}

	c.frozen = target
	switch {
	case c.state == Finished && target < c.total:
		c.state = Paused
	case c.state == Idle && target > 0:
		c.state = Paused
	}

	return target
}

// SeekFraction seeks to fraction f of the timeline, f clamped to [0, 1].
func (c *Clock) SeekFraction(f float64) float64 {
	if math.IsNaN(f) {
		f = 0
	}
	f = math.Max(0, math.Min(1, f))
	return c.Seek(f * c.total)
}

// Finish marks the end of the timeline. Only a playing clock can finish.
func (c *Clock) Finish() bool {
	if c.state != Playing {
		return false
	}

	c.frozen = c.total
	c.state = Finished
	return true
}

// Reset returns the clock to Idle at 0.
func (c *Clock) Reset() {
	c.state = Idle
	c.frozen = 0
	c.origin = time.Time{}
}

func (c *Clock) clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > c.total {
		return c.total
	}
	return v
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
