package game

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrNotEnoughPlayers = errors.New("need at least two players")

// AssignTopics computes the per-round assignment mapping: shuffle the player
// ids uniformly, then give each player the submission of the next player in
// the cycle. The cyclic offset guarantees nobody receives their own
// submission for any n >= 2, regardless of the permutation; n == 1 would
// degenerate to self-assignment and is rejected.
func AssignTopics(playerIDs []string, submissions map[string]Submission, rng *rand.Rand) (map[string]Submission, error) {
	n := len(playerIDs)
	if n < 2 {
		return nil, ErrNotEnoughPlayers
	}
	for _, id := range playerIDs {
		if _, ok := submissions[id]; !ok {
			return nil, fmt.Errorf("missing submission for player %s", id)
		}
	}

	shuffled := make([]string, n)
	copy(shuffled, playerIDs)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if rng != nil {
		rng.Shuffle(n, swap)
	} else {
		rand.Shuffle(n, swap)
	}

	mapping := make(map[string]Submission, n)
	for i := 0; i < n; i++ {
		receiver := shuffled[i]
		giver := shuffled[(i+1)%n]
		mapping[receiver] = submissions[giver]
	}
	return mapping, nil
}
