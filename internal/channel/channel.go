// Package channel defines the broadcast medium the game core runs on: a
// room-scoped publish/subscribe channel with at-least-once delivery,
// per-sender ordering, and no delivery to subscribers that join after a send.
package channel

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the wire envelope for room broadcasts. SenderID lets a client
// recognize and discard its own events on receipt, which is required for
// correctness under at-least-once delivery. CorrelationID ties a
// sync_all_data response to the requestSync that prompted it.
type Event struct {
	Name          string          `json:"event"`
	SenderID      string          `json:"senderId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event envelope.
func NewEvent(name, senderID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, SenderID: senderID, Payload: raw}, nil
}

// PresenceInfo is what a client announces about itself when tracking
// presence on a room channel.
type PresenceInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Channel is one subscriber's handle on a room. Implementations subscribe in
// their constructor, so any event sent after the handle exists is delivered.
type Channel interface {
	// Send publishes an event to every current subscriber, including the
	// sender itself.
	Send(ctx context.Context, ev Event) error
	// Track announces presence. Re-announcing with the same id replaces the
	// previous entry.
	Track(ctx context.Context, info PresenceInfo) error
	// Events delivers inbound broadcasts in per-sender order.
	Events() <-chan Event
	// Presence delivers the full roster after every presence change.
	Presence() <-chan []PresenceInfo
	Close() error
}
