// Package ws is the websocket client side of the broadcast medium, speaking
// the relay's frame protocol.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/utakingdom/reverse/internal/channel"
)

const writeWait = 10 * time.Second

// Conn implements channel.Channel over a relay websocket.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	events   chan channel.Event
	presence chan []channel.PresenceInfo

	closeOnce sync.Once
	done      chan struct{}
}

// Dial subscribes to a room on the relay. serverURL is the relay's HTTP base
// URL; the room code is uppercased before use.
func Dial(ctx context.Context, serverURL, roomCode string) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + strings.ToUpper(roomCode)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Conn{
		ws:       ws,
		events:   make(chan channel.Event, 256),
		presence: make(chan []channel.PresenceInfo, 64),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Send(ctx context.Context, ev channel.Event) error {
	return c.writeFrame(ctx, channel.Frame{Type: channel.FrameBroadcast, Event: &ev})
}

func (c *Conn) Track(ctx context.Context, info channel.PresenceInfo) error {
	return c.writeFrame(ctx, channel.Frame{Type: channel.FrameTrack, Presence: &info})
}

func (c *Conn) Events() <-chan channel.Event            { return c.events }
func (c *Conn) Presence() <-chan []channel.PresenceInfo { return c.presence }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writeFrame(ctx context.Context, f channel.Frame) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteJSON(f)
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.events)
		close(c.presence)
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}
		var f channel.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		switch f.Type {
		case channel.FrameBroadcast:
			if f.Event == nil {
				continue
			}
			select {
			case c.events <- *f.Event:
			case <-c.done:
				return
			}
		case channel.FramePresenceSync:
			// Keep only the latest roster if the consumer is behind.
			select {
			case c.presence <- f.Players:
			default:
				select {
				case <-c.presence:
				default:
				}
				select {
				case c.presence <- f.Players:
				default:
				}
			}
		}
	}
}
