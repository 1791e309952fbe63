// Package session runs one client's side of a room: it applies broadcast
// events to the local replica, performs late-joiner reconciliation, and
// activates the host orchestrator while this client holds the host role.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/utakingdom/reverse/internal/channel"
	"github.com/utakingdom/reverse/internal/game"
)

var (
	ErrNotHost          = errors.New("not host")
	ErrInvalidPhase     = errors.New("invalid phase for action")
	ErrAlreadySubmitted = errors.New("already submitted this round")
)

// SyncStatus tracks where a joiner is in the reconciliation protocol.
type SyncStatus int

const (
	// SyncAwaiting: subscribed, no snapshot yet.
	SyncAwaiting SyncStatus = iota
	// SyncReconciled: received a snapshot, or learned the host directly.
	SyncReconciled
	// SyncDefaulted: no responder within the window; running on default
	// state. This degraded mode is silent apart from a log line.
	SyncDefaulted
)

type Config struct {
	RoomCode string
	SelfID   string
	Name     string
	// Creator marks the client that opened the room. Only the creator ever
	// answers requestSync, and only the creator seeds hostId.
	Creator bool

	// JoinWait is how long a joiner gives the host's initial broadcast to
	// land before asking for a sync.
	JoinWait time.Duration
	// RespondWait is the creator's pause before answering a requestSync.
	RespondWait time.Duration
	// SyncTimeout bounds how long a joiner stays in AWAITING_SYNC.
	SyncTimeout time.Duration
	// ShuffleDelay holds the SHUFFLE phase on screen before RECORDING starts.
	ShuffleDelay time.Duration

	// ExportFile, if set, receives a plain-text transcript of the results
	// when the round reaches RESULT.
	ExportFile string
}

func (c Config) withDefaults() Config {
	if c.JoinWait == 0 {
		c.JoinWait = 500 * time.Millisecond
	}
	if c.RespondWait == 0 {
		c.RespondWait = 100 * time.Millisecond
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 5 * time.Second
	}
	if c.ShuffleDelay == 0 {
		c.ShuffleDelay = 3 * time.Second
	}
	return c
}

type Session struct {
	cfg Config
	ch  channel.Channel

	mu            sync.Mutex
	ctx           context.Context
	state         *game.RoomState
	roster        *game.Roster
	sync          SyncStatus
	orch          *hostOrchestrator
	rng           *rand.Rand
	exportedRound int
}

// New wraps an already-subscribed channel. The creator seeds hostId into its
// local state here, before any channel event is processed; this ordering is
// load-bearing, because a requestSync answered by the creator must always
// reflect a non-empty host.
func New(ch channel.Channel, cfg Config) *Session {
	s := &Session{
		cfg:    cfg.withDefaults(),
		ch:     ch,
		ctx:    context.Background(),
		state:  game.NewRoomState(),
		roster: game.NewRoster(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.Creator {
		s.state.Game.HostID = cfg.SelfID
		s.sync = SyncReconciled
	}
	s.refreshRole()
	return s
}

// Run announces presence, kicks off the reconciliation handshake, and then
// consumes channel events until ctx is cancelled or the channel closes.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.ch.Track(ctx, channel.PresenceInfo{
		ID:       s.cfg.SelfID,
		Name:     s.cfg.Name,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	if s.cfg.Creator {
		s.mu.Lock()
		s.publishLocked(game.EventGameState, s.state.Game, "")
		s.mu.Unlock()
	} else {
		time.AfterFunc(s.cfg.JoinWait, s.maybeRequestSync)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.ch.Events():
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		case players, ok := <-s.ch.Presence():
			if !ok {
				return nil
			}
			s.handlePresence(players)
		}
	}
}

// maybeRequestSync fires after JoinWait. If the host's initial broadcast
// already landed there is nothing to ask for.
func (s *Session) maybeRequestSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Game.HostID != "" {
		s.sync = SyncReconciled
		return
	}
	corr := uuid.NewString()
	log.Debug().Str("room", s.cfg.RoomCode).Str("correlationId", corr).Msg("requesting sync")
	s.publishLocked(game.EventRequestSync, game.SyncRequest{RequesterID: s.cfg.SelfID}, corr)
	time.AfterFunc(s.cfg.SyncTimeout, s.syncTimeout)
}

func (s *Session) syncTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sync != SyncAwaiting {
		return
	}
	if s.state.Game.HostID != "" {
		s.sync = SyncReconciled
		return
	}
	s.state.Reset()
	s.sync = SyncDefaulted
	log.Warn().Str("room", s.cfg.RoomCode).Msg("no sync response, falling back to default state")
}

func (s *Session) handleEvent(ev channel.Event) {
	// Our own broadcasts come back to us under at-least-once delivery; we
	// already applied them optimistically, so a second apply must not happen.
	if ev.SenderID == s.cfg.SelfID {
		return
	}

	switch ev.Name {
	case game.EventRequestSync:
		if !s.cfg.Creator {
			return
		}
		corr := ev.CorrelationID
		time.AfterFunc(s.cfg.RespondWait, func() { s.respondSync(corr) })

	case game.EventSyncAllData:
		var snap game.Snapshot
		if err := json.Unmarshal(ev.Payload, &snap); err != nil {
			log.Warn().Str("event", ev.Name).Err(err).Msg("dropping malformed event")
			return
		}
		s.mu.Lock()
		s.state.ApplySnapshot(snap)
		if s.sync == SyncAwaiting {
			s.sync = SyncReconciled
		}
		s.refreshRole()
		s.afterChangeLocked()
		s.mu.Unlock()

	default:
		s.mu.Lock()
		if err := s.state.Apply(ev.Name, ev.Payload); err != nil {
			log.Warn().Str("event", ev.Name).Str("sender", ev.SenderID).Err(err).Msg("dropping event")
			s.mu.Unlock()
			return
		}
		s.refreshRole()
		s.afterChangeLocked()
		s.mu.Unlock()
	}
}

// respondSync answers a requestSync with the creator's state as of now, not
// as of subscription time. Answering with stale empty collections would make
// a mid-round joiner lose sight of everything already submitted.
func (s *Session) respondSync(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state.Snapshot()
	log.Debug().Str("room", s.cfg.RoomCode).Str("correlationId", correlationID).Msg("answering sync request")
	s.publishLocked(game.EventSyncAllData, snap, correlationID)
}

func (s *Session) handlePresence(players []channel.PresenceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]game.Player, len(players))
	for i, p := range players {
		roster[i] = game.Player{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt}
	}
	s.roster.Sync(roster)
	s.afterChangeLocked()
}

// refreshRole constructs or drops the host orchestrator so that host-only
// logic exists exactly while selfId matches the replicated hostId.
func (s *Session) refreshRole() {
	if s.state.Game.HostID == s.cfg.SelfID && s.cfg.SelfID != "" {
		if s.orch == nil {
			s.orch = &hostOrchestrator{s: s}
		}
	} else {
		s.orch = nil
	}
}

func (s *Session) afterChangeLocked() {
	if s.orch != nil {
		s.orch.evaluate()
	}
	s.maybeExportLocked()
}

// updatePhaseLocked advances the local phase and broadcasts the full state.
func (s *Session) updatePhaseLocked(phase game.Phase) {
	next := s.state.Game
	next.Phase = phase
	if err := s.state.ApplyGameState(next); err != nil {
		log.Error().Str("phase", string(phase)).Err(err).Msg("refusing local phase update")
		return
	}
	log.Info().Str("room", s.cfg.RoomCode).Str("phase", string(phase)).Msg("phase transition")
	s.publishLocked(game.EventGameState, next, "")
}

// publishLocked sends an event, logging transport faults without touching
// the optimistic local state. There is no automatic retry.
func (s *Session) publishLocked(name string, payload any, correlationID string) {
	ev, err := channel.NewEvent(name, s.cfg.SelfID, payload)
	if err != nil {
		log.Error().Str("event", name).Err(err).Msg("encode event")
		return
	}
	ev.CorrelationID = correlationID
	if err := s.ch.Send(s.ctx, ev); err != nil {
		log.Warn().Str("event", name).Err(err).Msg("send failed, local state retained")
	}
}

// StartGame moves the lobby into topic creation. Host only, two players
// minimum.
func (s *Session) StartGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orch == nil {
		return ErrNotHost
	}
	return s.orch.startGame()
}

// SubmitTopic records and broadcasts this player's Submission.
func (s *Session) SubmitTopic(sub game.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Game.Phase != game.PhaseTopicCreation {
		return ErrInvalidPhase
	}
	if !s.state.ApplySubmission(s.cfg.SelfID, sub) {
		return ErrAlreadySubmitted
	}
	s.publishLocked(game.EventTopicSubmitted, game.TopicPayload{PlayerID: s.cfg.SelfID, Data: sub}, "")
	s.afterChangeLocked()
	return nil
}

// SubmitAnswer records and broadcasts this player's Answer.
func (s *Session) SubmitAnswer(ans game.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Game.Phase != game.PhaseRecording {
		return ErrInvalidPhase
	}
	if !s.state.ApplyAnswer(s.cfg.SelfID, ans) {
		return ErrAlreadySubmitted
	}
	s.publishLocked(game.EventAnswerSubmitted, game.AnswerPayload{PlayerID: s.cfg.SelfID, Data: ans}, "")
	s.afterChangeLocked()
	return nil
}

func (s *Session) GameState() game.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Game
}

func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Players returns the roster in join order with IsHost recomputed.
func (s *Session) Players() []game.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Players(s.state.Game.HostID)
}

// MyAssignment returns the submission assigned to this player, if any.
func (s *Session) MyAssignment() (game.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.state.Assignments[s.cfg.SelfID]
	return sub, ok
}

// Results pairs every topic with the answer it received.
func (s *Session) Results() []game.Pairing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.PairResults(s.state)
}

func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch != nil
}

func (s *Session) SyncStatus() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync
}

func (s *Session) SelfID() string   { return s.cfg.SelfID }
func (s *Session) RoomCode() string { return s.cfg.RoomCode }
