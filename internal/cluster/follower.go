package cluster

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/agleyzer/lyricsync/internal/session"
	"github.com/agleyzer/lyricsync/internal/transport"
)

// EngineFollower reconciles a local session with the replicated state.
type EngineFollower struct {
	mu      sync.Mutex
	session *session.Session
	src     transport.TimeSource
	logger  *slog.Logger

	loaded string // set@duration currently prepared
}

// NewEngineFollower creates a follower for s. src defaults to the system clock.
func NewEngineFollower(s *session.Session, src transport.TimeSource, logger *slog.Logger) *EngineFollower {
	if src == nil {
		src = transport.SystemTime
	}
	return &EngineFollower{
		session: s,
		src:     src,
		logger:  logger,
	}
}

// Follow brings the local engine to state. Playing positions are advanced
// by the wall time elapsed since the leader's anchor.
func (f *EngineFollower) Follow(state ClusterState) {
	if !state.Prepared {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%s@%g", state.Set, state.Duration)
	if key != f.loaded {
		if err := f.session.Prepare(state.Set, state.Duration); err != nil {
			f.logger.Error("failed to follow prepare", "set", state.Set, "duration", state.Duration, "error", err)
			return
		}
		f.loaded = key
	}

	engine := f.session.Engine()
	pos := state.PositionAt(f.src.Now().UnixNano())

	switch state.Mode {
	case transport.Idle:
		engine.Reset()
	case transport.Playing:
		if pos >= state.Duration {
			engine.Finish()
			break
		}
		engine.SeekToTime(pos)
		engine.Play()
	case transport.Paused:
		engine.Pause()
		engine.SeekToTime(pos)
	case transport.Finished:
		engine.Finish()
	}

	f.logger.Debug("followed cluster state",
		"sequence", state.Sequence,
		"mode", state.Mode.String(),
		"position", pos,
	)
}
