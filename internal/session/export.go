package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utakingdom/reverse/internal/game"
)

// maybeExportLocked appends a results transcript once per round after the
// room reaches RESULT. Caller holds s.mu.
func (s *Session) maybeExportLocked() {
	if s.cfg.ExportFile == "" {
		return
	}
	if s.state.Game.Phase != game.PhaseResult {
		return
	}
	if s.exportedRound == s.state.Game.Round {
		return
	}
	s.exportedRound = s.state.Game.Round

	players := s.roster.Players(s.state.Game.HostID)
	if err := writeResults(s.cfg.ExportFile, s.cfg.RoomCode, s.state, players); err != nil {
		log.Error().Err(err).Str("file", s.cfg.ExportFile).Msg("failed to export results")
		return
	}
	log.Info().Str("file", s.cfg.ExportFile).Msg("exported results")
}

func writeResults(filename, roomCode string, st *game.RoomState, players []game.Player) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		if len(id) > 8 {
			return id[:8]
		}
		return id
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Room %s - Round %d - %s\n", roomCode, st.Game.Round, time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n")

	for i, pairing := range game.PairResults(st) {
		sb.WriteString(fmt.Sprintf("%d. %s's topic %q\n", i+1, name(pairing.TopicPlayerID), pairing.Topic.AnswerLabel))
		sb.WriteString(fmt.Sprintf("   original: %s\n", pairing.Topic.OriginalRef))
		sb.WriteString(fmt.Sprintf("   reversed: %s\n", pairing.Topic.ReversedRef))
		if pairing.Answer != nil {
			sb.WriteString(fmt.Sprintf("   answered by %s (effect: %s)\n", name(pairing.AnswerPlayerID), pairing.Answer.EffectTag))
			sb.WriteString(fmt.Sprintf("   response: %s\n", pairing.Answer.ResponseRef))
			sb.WriteString(fmt.Sprintf("   recovered: %s\n", pairing.Answer.RecoveredRef))
		} else {
			sb.WriteString("   no answer submitted\n")
		}
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
