package game

import (
	"time"
)

type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseTopicCreation Phase = "TOPIC_CREATION"
	PhaseShuffle       Phase = "SHUFFLE"
	PhaseRecording     Phase = "RECORDING"
	PhaseResult        Phase = "RESULT"
)

// phaseOrder defines the forward-only progression within a round.
var phaseOrder = map[Phase]int{
	PhaseLobby:         0,
	PhaseTopicCreation: 1,
	PhaseShuffle:       2,
	PhaseRecording:     3,
	PhaseResult:        4,
}

func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// GameState is the replicated authoritative room state. Every client holds a
// local copy updated by accepted broadcast events.
type GameState struct {
	Phase  Phase  `json:"phase"`
	Round  int    `json:"round"`
	HostID string `json:"hostId"`
}

// DefaultState is what a client starts from and what an unreconciled joiner
// falls back to.
func DefaultState() GameState {
	return GameState{Phase: PhaseLobby, Round: 1, HostID: ""}
}

type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Submission is a player's topic artifact: two media locators produced by the
// media service plus the answer label shown on the result screen.
type Submission struct {
	OriginalRef string `json:"originalRef"`
	ReversedRef string `json:"reversedRef"`
	AnswerLabel string `json:"answerLabel"`
}

// Answer is a player's attempt at an assigned topic.
type Answer struct {
	ResponseRef  string `json:"responseRef"`
	RecoveredRef string `json:"recoveredRef"`
	EffectTag    string `json:"effectTag"`
}

// Voice effect tags accepted by the media service.
const (
	EffectNone      = "none"
	EffectRobot     = "robot"
	EffectPitchUp   = "pitch_up"
	EffectPitchDown = "pitch_down"
)
