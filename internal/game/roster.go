package game

import (
	"sort"
)

// Roster is the live set of connected players, fed by presence sync. Each
// re-announcement with a known id replaces the existing entry instead of
// duplicating it.
type Roster struct {
	players map[string]Player
}

func NewRoster() *Roster {
	return &Roster{players: make(map[string]Player)}
}

// Sync replaces the roster with the full presence map delivered by the
// channel.
func (r *Roster) Sync(players []Player) {
	next := make(map[string]Player, len(players))
	for _, p := range players {
		next[p.ID] = p
	}
	r.players = next
}

func (r *Roster) Len() int { return len(r.players) }

func (r *Roster) Has(id string) bool {
	_, ok := r.players[id]
	return ok
}

// Players returns the roster ordered by join time, with each player's IsHost
// flag recomputed against the current hostId.
func (r *Roster) Players(hostID string) []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		p.IsHost = hostID != "" && p.ID == hostID
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// IDs returns the player ids in join order.
func (r *Roster) IDs() []string {
	players := r.Players("")
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}
