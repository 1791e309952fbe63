// Package memory provides an in-process broadcast broker with the same
// delivery contract as the relay: per-sender ordering, delivery to current
// subscribers only, and optional duplicate delivery to exercise idempotent
// event application.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/utakingdom/reverse/internal/channel"
)

var ErrClosed = errors.New("channel closed")

type Broker struct {
	mu         sync.Mutex
	rooms      map[string]*room
	duplicates bool
}

type room struct {
	subs     []*Conn
	presence map[string]channel.PresenceInfo
}

func NewBroker() *Broker {
	return &Broker{rooms: make(map[string]*room)}
}

// SetDuplicates makes the broker deliver every broadcast twice, simulating
// the at-least-once posture of the real medium.
func (b *Broker) SetDuplicates(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.duplicates = on
}

// Join subscribes to a room and returns the subscriber's channel handle.
func (b *Broker) Join(code string) *Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.rooms[code]
	if rm == nil {
		rm = &room{presence: make(map[string]channel.PresenceInfo)}
		b.rooms[code] = rm
	}
	c := &Conn{
		broker:   b,
		code:     code,
		events:   make(chan channel.Event, 256),
		presence: make(chan []channel.PresenceInfo, 64),
	}
	rm.subs = append(rm.subs, c)
	return c
}

// Conn implements channel.Channel against the broker.
type Conn struct {
	broker    *Broker
	code      string
	trackedID string
	closed    bool

	events   chan channel.Event
	presence chan []channel.PresenceInfo
}

func (c *Conn) Send(_ context.Context, ev channel.Event) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	rm := b.rooms[c.code]
	for _, sub := range rm.subs {
		sub.deliver(ev)
		if b.duplicates {
			sub.deliver(ev)
		}
	}
	return nil
}

func (c *Conn) Track(_ context.Context, info channel.PresenceInfo) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	rm := b.rooms[c.code]
	c.trackedID = info.ID
	rm.presence[info.ID] = info
	fanoutPresence(rm)
	return nil
}

func (c *Conn) Events() <-chan channel.Event            { return c.events }
func (c *Conn) Presence() <-chan []channel.PresenceInfo { return c.presence }

func (c *Conn) Close() error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	rm := b.rooms[c.code]
	for i, sub := range rm.subs {
		if sub == c {
			rm.subs = append(rm.subs[:i], rm.subs[i+1:]...)
			break
		}
	}
	if c.trackedID != "" {
		stillTracked := false
		for _, sub := range rm.subs {
			if sub.trackedID == c.trackedID {
				stillTracked = true
				break
			}
		}
		if !stillTracked {
			delete(rm.presence, c.trackedID)
			fanoutPresence(rm)
		}
	}
	return nil
}

// deliver never blocks; a subscriber that stops draining loses events, which
// matches the non-durable medium.
func (c *Conn) deliver(ev channel.Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func fanoutPresence(rm *room) {
	list := make([]channel.PresenceInfo, 0, len(rm.presence))
	for _, info := range rm.presence {
		list = append(list, info)
	}
	for _, sub := range rm.subs {
		select {
		case sub.presence <- list:
		default:
		}
	}
}
