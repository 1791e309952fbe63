package game

// Broadcast event names. These are the wire contract; renaming any of them
// breaks interop with older clients in the same room.
const (
	EventGameState       = "gameStateUpdate"
	EventTopicSubmitted  = "topicSubmitted"
	EventAnswerSubmitted = "answerSubmitted"
	EventAssignments     = "assignments"
	EventRequestSync     = "requestSync"
	EventSyncAllData     = "sync_all_data"
)

// TopicPayload carries one player's Submission.
type TopicPayload struct {
	PlayerID string     `json:"playerId"`
	Data     Submission `json:"data"`
}

// AnswerPayload carries one player's Answer.
type AnswerPayload struct {
	PlayerID string `json:"playerId"`
	Data     Answer `json:"data"`
}

// AssignmentsPayload carries the full assignment mapping, broadcast atomically
// by the host after the shuffle.
type AssignmentsPayload struct {
	Mapping map[string]Submission `json:"mapping"`
}

// SyncRequest asks the room's creator for a full state snapshot.
type SyncRequest struct {
	RequesterID string `json:"requesterId"`
}

// Snapshot is the creator's answer to a SyncRequest: the complete current
// state, broadcast to the whole room.
type Snapshot struct {
	GameState   GameState             `json:"gameState"`
	Submissions map[string]Submission `json:"submissions"`
	Assignments map[string]Submission `json:"assignments"`
	Answers     map[string]Answer     `json:"answers"`
}
