// Package cluster replicates playback control through Raft so every node's
// engine follows the same timeline.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/agleyzer/lyricsync/internal/transport"
	"github.com/hashicorp/raft"
)

func init() {
	// Register types for gob encoding/decoding
	gob.Register(PrepareCommand{})
	gob.Register(PlayCommand{})
	gob.Register(PauseCommand{})
	gob.Register(SeekCommand{})
	gob.Register(ResetCommand{})
}

// ClusterState is the replicated transport state.
type ClusterState struct {
	// Set and Duration identify the prepared timeline.
	Set      string
	Duration float64
	Prepared bool

	// Mode mirrors the leader's transport state.
	Mode transport.State

	// Position is the elapsed time in seconds at AnchorUnixNano. While
	// playing, the current position is Position plus the wall time since
	// the anchor.
	Position       float64
	AnchorUnixNano int64

	// Sequence counts applied commands.
	Sequence uint64
}

// PositionAt returns the timeline position at wall time nowUnixNano,
// clamped to the duration.
func (s ClusterState) PositionAt(nowUnixNano int64) float64 {
	pos := s.Position
	if s.Mode == transport.Playing {
		pos += float64(nowUnixNano-s.AnchorUnixNano) / 1e9
	}
	return math.Max(0, math.Min(s.Duration, pos))
}

// CommandType identifies the type of Raft command.
type CommandType uint8

const (
	// CommandPrepare loads a new timeline on every node.
	CommandPrepare CommandType = 1
	// CommandPlay starts playback at a position.
	CommandPlay CommandType = 2
	// CommandPause freezes playback at a position.
	CommandPause CommandType = 3
	// CommandSeek moves to a position without changing play state.
	CommandSeek CommandType = 4
	// CommandReset returns to idle at 0.
	CommandReset CommandType = 5
)

// Command represents a Raft log command.
type Command struct {
	Type CommandType
	Data any
}

// PrepareCommand selects the lyric set and duration.
type PrepareCommand struct {
	Set        string
	Duration   float64
	AtUnixNano int64
}

// PlayCommand starts playback from Position at AtUnixNano.
type PlayCommand struct {
	Position   float64
	AtUnixNano int64
}

// PauseCommand freezes playback at Position.
type PauseCommand struct {
	Position   float64
	AtUnixNano int64
}

// SeekCommand moves to Position.
type SeekCommand struct {
	Position   float64
	AtUnixNano int64
}

// ResetCommand stops playback and rewinds. gob refuses empty structs, so
// it carries the submit time.
type ResetCommand struct {
	AtUnixNano int64
}

// Follower is notified after every applied command and restore, outside
// the FSM lock.
type Follower interface {
	Follow(state ClusterState)
}

// TransportFSM implements the raft.FSM interface for transport state.
type TransportFSM struct {
	mu       sync.RWMutex
	state    ClusterState
	follower Follower
	logger   *slog.Logger
}

// NewTransportFSM creates a new TransportFSM. follower may be nil.
func NewTransportFSM(follower Follower, logger *slog.Logger) *TransportFSM {
	return &TransportFSM{
		state:    ClusterState{Mode: transport.Idle},
		follower: follower,
		logger:   logger,
	}
}

// Apply applies a Raft log entry to the FSM.
func (f *TransportFSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(log.Data)).Decode(&cmd); err != nil {
		f.logger.Error("failed to decode command", "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	f.mu.Lock()
	var result error
	switch cmd.Type {
	case CommandPrepare:
		result = f.applyPrepare(cmd.Data)
	case CommandPlay:
		result = f.applyPlay(cmd.Data)
	case CommandPause:
		result = f.applyPause(cmd.Data)
	case CommandSeek:
		result = f.applySeek(cmd.Data)
	case CommandReset:
		result = f.applyReset(cmd.Data)
	default:
		f.logger.Error("unknown command type", "type", cmd.Type)
		result = fmt.Errorf("unknown command type: %d", cmd.Type)
	}

	if result == nil {
		f.state.Sequence++
	}
	state := f.state
	f.mu.Unlock()

	if result != nil {
		return result
	}

	if f.follower != nil {
		f.follower.Follow(state)
	}
	return nil
}

func (f *TransportFSM) applyPrepare(data any) error {
	cmd, ok := data.(PrepareCommand)
	if !ok {
		return fmt.Errorf("invalid prepare command data")
	}
	if cmd.Set == "" || math.IsNaN(cmd.Duration) || cmd.Duration <= 0 {
		return fmt.Errorf("invalid prepare command: set %q duration %v", cmd.Set, cmd.Duration)
	}

	f.state.Set = cmd.Set
	f.state.Duration = cmd.Duration
	f.state.Prepared = true
	f.state.Mode = transport.Idle
	f.state.Position = 0
	f.state.AnchorUnixNano = cmd.AtUnixNano

	f.logger.Info("prepared timeline", "set", cmd.Set, "duration", cmd.Duration)
	return nil
}

func (f *TransportFSM) applyPlay(data any) error {
	cmd, ok := data.(PlayCommand)
	if !ok {
		return fmt.Errorf("invalid play command data")
	}
	if !f.state.Prepared {
		return fmt.Errorf("play before prepare")
	}

	pos := f.clamp(cmd.Position)
	if pos >= f.state.Duration {
		pos = 0
	}

	f.state.Mode = transport.Playing
	f.state.Position = pos
	f.state.AnchorUnixNano = cmd.AtUnixNano

	f.logger.Debug("play", "position", pos)
	return nil
}

func (f *TransportFSM) applyPause(data any) error {
	cmd, ok := data.(PauseCommand)
	if !ok {
		return fmt.Errorf("invalid pause command data")
	}
	if !f.state.Prepared {
		return fmt.Errorf("pause before prepare")
	}

	f.state.Mode = transport.Paused
	f.state.Position = f.clamp(cmd.Position)
	f.state.AnchorUnixNano = cmd.AtUnixNano

	f.logger.Debug("pause", "position", f.state.Position)
	return nil
}

// applySeek follows the clock's seek rules: playing keeps playing, a
// finished transport re-arms to paused below the end and idle becomes
// paused away from 0.
func (f *TransportFSM) applySeek(data any) error {
	cmd, ok := data.(SeekCommand)
	if !ok {
		return fmt.Errorf("invalid seek command data")
	}
	if !f.state.Prepared {
		return fmt.Errorf("seek before prepare")
	}

	pos := f.clamp(cmd.Position)
	switch {
	case f.state.Mode == transport.Finished && pos < f.state.Duration:
		f.state.Mode = transport.Paused
	case f.state.Mode == transport.Idle && pos > 0:
		f.state.Mode = transport.Paused
	}

	f.state.Position = pos
	f.state.AnchorUnixNano = cmd.AtUnixNano

	f.logger.Debug("seek", "position", pos, "mode", f.state.Mode.String())
	return nil
}

func (f *TransportFSM) applyReset(data any) error {
	cmd, ok := data.(ResetCommand)
	if !ok {
		return fmt.Errorf("invalid reset command data")
	}

	f.state.Mode = transport.Idle
	f.state.Position = 0
	f.state.AnchorUnixNano = cmd.AtUnixNano

	f.logger.Debug("reset")
	return nil
}

func (f *TransportFSM) clamp(pos float64) float64 {
	if math.IsNaN(pos) {
		return 0
	}
	return math.Max(0, math.Min(f.state.Duration, pos))
}

// Snapshot returns an FSMSnapshot for creating a point-in-time snapshot.
func (f *TransportFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return &fsmSnapshot{state: f.state}, nil
}

// Restore restores the FSM state from a snapshot.
func (f *TransportFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var state ClusterState
	if err := gob.NewDecoder(snapshot).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()

	f.logger.Info("restored FSM state from snapshot", "set", state.Set, "sequence", state.Sequence)

	if f.follower != nil && state.Prepared {
		f.follower.Follow(state)
	}
	return nil
}

// GetState returns a copy of the current FSM state.
func (f *TransportFSM) GetState() ClusterState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	state ClusterState
}

// Persist writes the snapshot to the given sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.state); err != nil {
		sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := sink.Write(buf.Bytes()); err != nil {
		sink.Cancel()
		return fmt.Errorf("write snapshot: %w", err)
	}

	return sink.Close()
}

// Release releases any resources held by the snapshot.
func (s *fsmSnapshot) Release() {}

// EncodeCommand encodes a command for Raft submission.
func EncodeCommand(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return buf.Bytes(), nil
}
