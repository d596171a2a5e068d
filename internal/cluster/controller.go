package cluster

import (
	"math"

	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/session"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/transport"
)

// Replicator submits commands and exposes the applied state.
// *Manager implements it.
type Replicator interface {
	Submit(cmd Command) error
	GetState() ClusterState
	GetStats() map[string]interface{}
}

// Controller turns playback controls into replicated commands. The local
// engine changes only when the command is applied, so on a follower node
// every control fails with ErrNotLeader.
type Controller struct {
	cluster Replicator
	session *session.Session
	src     transport.TimeSource
}

// NewController creates a controller. src defaults to the system clock.
func NewController(cluster Replicator, s *session.Session, src transport.TimeSource) *Controller {
	if src == nil {
		src = transport.SystemTime
	}
	return &Controller{
		cluster: cluster,
		session: s,
		src:     src,
	}
}

// Prepare replicates a new timeline for set.
func (c *Controller) Prepare(set string, duration float64) error {
	if _, err := c.session.Library().Get(set); err != nil {
		return err
	}

	return c.cluster.Submit(Command{
		Type: CommandPrepare,
		Data: PrepareCommand{
			Set:        set,
			Duration:   timing.ClampDuration(duration),
			AtUnixNano: c.now(),
		},
	})
}

// Play starts playback from the current position, or from 0 after the end.
func (c *Controller) Play() error {
	st, mode, pos, err := c.current()
	if err != nil {
		return err
	}
	if mode == transport.Playing {
		return nil
	}
	if mode == transport.Finished {
		pos = 0
	}

	return c.cluster.Submit(Command{
		Type: CommandPlay,
		Data: PlayCommand{Position: math.Min(pos, st.Duration), AtUnixNano: c.now()},
	})
}

// Pause freezes playback at the current position.
func (c *Controller) Pause() error {
	_, mode, pos, err := c.current()
	if err != nil {
		return err
	}
	if mode != transport.Playing {
		return nil
	}

	return c.cluster.Submit(Command{
		Type: CommandPause,
		Data: PauseCommand{Position: pos, AtUnixNano: c.now()},
	})
}

// Toggle pauses when playing and plays otherwise.
func (c *Controller) Toggle() error {
	_, mode, _, err := c.current()
	if err != nil {
		return err
	}
	if mode == transport.Playing {
		return c.Pause()
	}
	return c.Play()
}

// SeekToFraction replicates a seek to fraction f of the timeline.
func (c *Controller) SeekToFraction(f float64) error {
	st, mode, _, err := c.current()
	if err != nil {
		return err
	}

	if math.IsNaN(f) {
		f = 0
	}
	f = math.Max(0, math.Min(1, f))

	// a finished timeline stays finished at the end
	if mode == transport.Finished && f >= 1 {
		return nil
	}

	// playback ran off the end without a command; stop it first so the
	// seek re-arms instead of resuming
	if mode == transport.Finished && st.Mode == transport.Playing {
		if err := c.cluster.Submit(Command{
			Type: CommandPause,
			Data: PauseCommand{Position: st.Duration, AtUnixNano: c.now()},
		}); err != nil {
			return err
		}
	}

	return c.cluster.Submit(Command{
		Type: CommandSeek,
		Data: SeekCommand{Position: f * st.Duration, AtUnixNano: c.now()},
	})
}

// Reset replicates a return to idle at 0.
func (c *Controller) Reset() error {
	if _, _, _, err := c.current(); err != nil {
		return err
	}

	return c.cluster.Submit(Command{
		Type: CommandReset,
		Data: ResetCommand{AtUnixNano: c.now()},
	})
}

// Status returns the local engine progress.
func (c *Controller) Status() player.Progress {
	return c.session.Status()
}

// Stats returns session statistics with cluster details.
func (c *Controller) Stats() map[string]interface{} {
	stats := c.session.Stats()
	stats["cluster"] = c.cluster.GetStats()
	return stats
}

// current returns the applied state with its effective mode and position
// now; a playing state past the end counts as finished.
func (c *Controller) current() (ClusterState, transport.State, float64, error) {
	st := c.cluster.GetState()
	if !st.Prepared {
		return st, transport.Idle, 0, session.ErrNotPrepared
	}

	pos := st.PositionAt(c.now())
	mode := st.Mode
	if mode == transport.Playing && pos >= st.Duration {
		mode = transport.Finished
	}
	return st, mode, pos, nil
}

func (c *Controller) now() int64 {
	return c.src.Now().UnixNano()
}
