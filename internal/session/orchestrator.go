package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utakingdom/reverse/internal/game"
)

// hostOrchestrator drives phase transitions. It exists only while this
// client's id equals the replicated hostId, so non-host clients structurally
// cannot advance the game; they are passive appliers of broadcast events.
//
// Mutual exclusion on "who decides" comes from that gating alone. There is no
// lock between clients, and no host failover: if the host disconnects, no
// remaining client is promoted and the room stays where it is.
type hostOrchestrator struct {
	s *Session

	// shuffledRound guards the assignment computation. Re-publishing an
	// identical phase is harmless under idempotent application; re-running
	// the shuffle is not.
	shuffledRound int
}

// startGame handles the one manual transition, LOBBY -> TOPIC_CREATION.
// Caller holds s.mu.
func (o *hostOrchestrator) startGame() error {
	if o.s.state.Game.Phase != game.PhaseLobby {
		return ErrInvalidPhase
	}
	if o.s.roster.Len() < 2 {
		return game.ErrNotEnoughPlayers
	}
	o.s.updatePhaseLocked(game.PhaseTopicCreation)
	return nil
}

// evaluate recomputes the automatic trigger conditions. It runs after every
// roster, submission, answer, or state change while this client is host.
// Caller holds s.mu.
func (o *hostOrchestrator) evaluate() {
	st := o.s.state

	switch st.Game.Phase {
	case game.PhaseTopicCreation:
		if o.s.roster.Len() < 2 {
			return
		}
		ids := o.s.roster.IDs()
		if !allSubmitted(ids, st.Submissions) {
			return
		}
		if o.shuffledRound == st.Game.Round {
			return
		}
		mapping, err := game.AssignTopics(ids, st.Submissions, o.s.rng)
		if err != nil {
			log.Error().Err(err).Msg("assignment shuffle failed")
			return
		}
		o.shuffledRound = st.Game.Round
		st.ApplyAssignments(mapping)
		o.s.publishLocked(game.EventAssignments, game.AssignmentsPayload{Mapping: mapping}, "")
		o.s.updatePhaseLocked(game.PhaseShuffle)

		// Hold SHUFFLE on screen before recording starts. Observers use the
		// window for a transition animation; the protocol only needs some
		// delay > 0.
		round := st.Game.Round
		time.AfterFunc(o.s.cfg.ShuffleDelay, func() { o.s.advanceToRecording(round) })

	case game.PhaseRecording:
		if o.s.roster.Len() == 0 {
			return
		}
		if !allAnswered(o.s.roster.IDs(), st.Answers) {
			return
		}
		o.s.updatePhaseLocked(game.PhaseResult)
	}
}

// advanceToRecording fires after the shuffle presentation delay. The round
// and phase checks make a late timer from a previous round a no-op, and the
// orchestrator check covers losing the host role in the meantime.
func (s *Session) advanceToRecording(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orch == nil {
		return
	}
	if s.state.Game.Phase != game.PhaseShuffle || s.state.Game.Round != round {
		return
	}
	s.updatePhaseLocked(game.PhaseRecording)
}

func allSubmitted(ids []string, subs map[string]game.Submission) bool {
	for _, id := range ids {
		if _, ok := subs[id]; !ok {
			return false
		}
	}
	return true
}

func allAnswered(ids []string, answers map[string]game.Answer) bool {
	for _, id := range ids {
		if _, ok := answers[id]; !ok {
			return false
		}
	}
	return true
}
