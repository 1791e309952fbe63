package channel

// Frame is the message envelope between a client and the relay. Exactly one
// of the optional fields is set, selected by Type.
type Frame struct {
	// Type is one of "broadcast", "track", "presence_sync".
	Type     string         `json:"type"`
	Event    *Event         `json:"event,omitempty"`
	Presence *PresenceInfo  `json:"presence,omitempty"`
	Players  []PresenceInfo `json:"players,omitempty"`
}

const (
	FrameBroadcast    = "broadcast"
	FrameTrack        = "track"
	FramePresenceSync = "presence_sync"
)
