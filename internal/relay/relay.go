// Package relay implements the broadcast medium: a websocket fan-out server
// with room-scoped presence. It is deliberately dumb about the game; typed
// events pass through opaquely and nothing is persisted. Delivery is
// per-sender ordered, best-effort, and only reaches subscribers connected at
// send time.
package relay

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/utakingdom/reverse/internal/channel"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

type Server struct {
	mu    sync.Mutex
	rooms map[string]*room

	publicURL string
	pongWait  time.Duration
	upgrader  websocket.Upgrader
}

type room struct {
	code     string
	clients  map[*client]struct{}
	presence map[string]channel.PresenceInfo
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	// id is the presence key this connection tracked, if any.
	id string
}

func New(publicURL string, heartbeatTimeout time.Duration) *Server {
	return &Server{
		rooms:     make(map[string]*room),
		publicURL: strings.TrimSuffix(publicURL, "/"),
		pongWait:  heartbeatTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mount attaches the relay routes to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) {
	r.POST("/api/room", srv.handleCreateRoom)
	r.GET("/room/:code/qr.png", srv.handleQR)
	r.GET("/ws/:code", srv.handleSocket)
}

// handleCreateRoom mints a fresh room code. Rooms themselves come into
// existence when the first subscriber connects.
func (srv *Server) handleCreateRoom(c *gin.Context) {
	srv.mu.Lock()
	code := randomCode(6)
	for srv.rooms[code] != nil {
		code = randomCode(6)
	}
	srv.mu.Unlock()
	log.Info().Str("room", code).Msg("room created")
	c.JSON(http.StatusOK, gin.H{"roomCode": code})
}

// handleQR serves a scannable join code for a room.
func (srv *Server) handleQR(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	png, err := qrcode.Encode(srv.publicURL+"/room/"+code, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (srv *Server) handleSocket(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	conn, err := srv.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("room", code).Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 64)}
	rm := srv.joinRoom(code, cl)
	log.Info().Str("room", code).Str("addr", conn.RemoteAddr().String()).Msg("subscriber connected")

	go cl.writePump(srv.pongWait)
	srv.readPump(rm, cl)
}

func (srv *Server) joinRoom(code string, cl *client) *room {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	rm := srv.rooms[code]
	if rm == nil {
		rm = &room{
			code:     code,
			clients:  make(map[*client]struct{}),
			presence: make(map[string]channel.PresenceInfo),
		}
		srv.rooms[code] = rm
	}
	rm.clients[cl] = struct{}{}
	return rm
}

// readPump consumes frames from one connection. Frames are processed
// sequentially and fanned out under the server lock, which is what gives the
// medium its per-sender ordering.
func (srv *Server) readPump(rm *room, cl *client) {
	defer srv.disconnect(rm, cl)

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(srv.pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(srv.pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Str("room", rm.code).Err(err).Msg("read error")
			}
			return
		}
		var f channel.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Str("room", rm.code).Err(err).Msg("dropping malformed frame")
			continue
		}
		switch f.Type {
		case channel.FrameBroadcast:
			if f.Event == nil {
				continue
			}
			srv.broadcast(rm, data)
		case channel.FrameTrack:
			if f.Presence == nil {
				continue
			}
			srv.track(rm, cl, *f.Presence)
		default:
			log.Warn().Str("room", rm.code).Str("type", f.Type).Msg("dropping unknown frame type")
		}
	}
}

// broadcast fans a raw frame out to every current subscriber, the sender
// included. Subscribers that joined after the send never see it.
func (srv *Server) broadcast(rm *room, data []byte) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for cl := range rm.clients {
		cl.enqueue(rm.code, data)
	}
}

// track records or replaces a presence entry and pushes the full roster to
// everyone in the room.
func (srv *Server) track(rm *room, cl *client, info channel.PresenceInfo) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	cl.id = info.ID
	rm.presence[info.ID] = info
	srv.fanoutPresenceLocked(rm)
}

func (srv *Server) disconnect(rm *room, cl *client) {
	srv.mu.Lock()
	delete(rm.clients, cl)
	removed := false
	if cl.id != "" {
		stillTracked := false
		for other := range rm.clients {
			if other.id == cl.id {
				stillTracked = true
				break
			}
		}
		if !stillTracked {
			delete(rm.presence, cl.id)
			removed = true
		}
	}
	if removed {
		srv.fanoutPresenceLocked(rm)
	}
	if len(rm.clients) == 0 {
		delete(srv.rooms, rm.code)
	}
	srv.mu.Unlock()

	close(cl.send)
	_ = cl.conn.Close()
	log.Info().Str("room", rm.code).Str("id", cl.id).Msg("subscriber disconnected")
}

func (srv *Server) fanoutPresenceLocked(rm *room) {
	players := make([]channel.PresenceInfo, 0, len(rm.presence))
	for _, info := range rm.presence {
		players = append(players, info)
	}
	data, err := json.Marshal(channel.Frame{Type: channel.FramePresenceSync, Players: players})
	if err != nil {
		log.Error().Err(err).Msg("encode presence frame")
		return
	}
	for cl := range rm.clients {
		cl.enqueue(rm.code, data)
	}
}

// enqueue never blocks; a subscriber that cannot keep up loses frames, which
// the protocol layer above is built to tolerate.
func (cl *client) enqueue(roomCode string, data []byte) {
	select {
	case cl.send <- data:
	default:
		log.Warn().Str("room", roomCode).Str("id", cl.id).Msg("slow subscriber, frame dropped")
	}
}

func (cl *client) writePump(pongWait time.Duration) {
	pingPeriod := (pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
