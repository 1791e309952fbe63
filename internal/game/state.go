package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrStalePhase   = errors.New("phase regression rejected")
	ErrHostChanged  = errors.New("host change rejected")
	ErrUnknownEvent = errors.New("unknown event")
)

// RoomState is one client's replica of the shared room. It is mutated only
// through the Apply* methods, which are deterministic and safe to re-run on
// duplicate delivery.
type RoomState struct {
	Game        GameState
	Submissions map[string]Submission
	Assignments map[string]Submission
	Answers     map[string]Answer
}

func NewRoomState() *RoomState {
	return &RoomState{
		Game:        DefaultState(),
		Submissions: make(map[string]Submission),
		Assignments: make(map[string]Submission),
		Answers:     make(map[string]Answer),
	}
}

// Apply routes a raw broadcast event through the matching reducer. Malformed
// payloads return an error and leave the state untouched; they must never be
// fatal to the caller.
func (s *RoomState) Apply(event string, payload json.RawMessage) error {
	switch event {
	case EventGameState:
		var next GameState
		if err := json.Unmarshal(payload, &next); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return s.ApplyGameState(next)
	case EventTopicSubmitted:
		var p TopicPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplySubmission(p.PlayerID, p.Data)
		return nil
	case EventAnswerSubmitted:
		var p AnswerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyAnswer(p.PlayerID, p.Data)
		return nil
	case EventAssignments:
		var p AssignmentsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyAssignments(p.Mapping)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
}

// ApplyGameState replaces the local GameState with a full snapshot. Two
// invariants gate acceptance: the phase never moves backward within the same
// round, and a non-empty hostId never changes for the lifetime of the room.
func (s *RoomState) ApplyGameState(next GameState) error {
	if !next.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", next.Phase)
	}
	if s.Game.HostID != "" && next.HostID != s.Game.HostID {
		return ErrHostChanged
	}
	if next.Round < s.Game.Round {
		return ErrStalePhase
	}
	if next.Round == s.Game.Round && phaseOrder[next.Phase] < phaseOrder[s.Game.Phase] {
		return ErrStalePhase
	}
	s.Game = next
	return nil
}

// ApplySubmission records a player's topic. First writer wins per player id,
// which makes reapplying a duplicate event a no-op. Reports whether the
// submission was recorded.
func (s *RoomState) ApplySubmission(playerID string, sub Submission) bool {
	if playerID == "" {
		return false
	}
	if _, exists := s.Submissions[playerID]; exists {
		return false
	}
	s.Submissions[playerID] = sub
	return true
}

// ApplyAnswer records a player's answer, first writer wins per player id.
func (s *RoomState) ApplyAnswer(playerID string, ans Answer) bool {
	if playerID == "" {
		return false
	}
	if _, exists := s.Answers[playerID]; exists {
		return false
	}
	s.Answers[playerID] = ans
	return true
}

// ApplyAssignments replaces the assignment mapping wholesale. The host
// broadcasts the full mapping atomically, so last value wins.
func (s *RoomState) ApplyAssignments(mapping map[string]Submission) {
	if mapping == nil {
		mapping = make(map[string]Submission)
	}
	s.Assignments = mapping
}

// ApplySnapshot overwrites every replica collection with the creator's
// current state. This is the reconciliation path and deliberately bypasses
// the phase-regression guard: a stale responder can move a receiver backward,
// a documented race of the timer-based sync protocol.
func (s *RoomState) ApplySnapshot(snap Snapshot) {
	s.Game = snap.GameState
	s.Submissions = cloneMap(snap.Submissions)
	s.Assignments = cloneMap(snap.Assignments)
	s.Answers = cloneMap(snap.Answers)
}

// Snapshot copies the current state for a sync response. The copy must
// reflect the responder's state at the moment of the call, never a value
// captured at subscription time.
func (s *RoomState) Snapshot() Snapshot {
	return Snapshot{
		GameState:   s.Game,
		Submissions: cloneMap(s.Submissions),
		Assignments: cloneMap(s.Assignments),
		Answers:     cloneMap(s.Answers),
	}
}

// Reset returns the replica to the default lobby state.
func (s *RoomState) Reset() {
	*s = *NewRoomState()
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
