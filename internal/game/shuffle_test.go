package game

import (
	"fmt"
	"math/rand"
	"testing"
)

func makeSubmissions(ids []string) map[string]Submission {
	subs := make(map[string]Submission, len(ids))
	for _, id := range ids {
		subs[id] = Submission{
			OriginalRef: "orig-" + id,
			ReversedRef: "rev-" + id,
			AnswerLabel: "label-" + id,
		}
	}
	return subs
}

func TestAssignTopicsNeverSelfAssigns(t *testing.T) {
	for n := 2; n <= 10; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d", i)
		}
		subs := makeSubmissions(ids)

		for seed := int64(0); seed < 50; seed++ {
			rng := rand.New(rand.NewSource(seed))
			mapping, err := AssignTopics(ids, subs, rng)
			if err != nil {
				t.Fatalf("n=%d seed=%d: %v", n, seed, err)
			}
			if len(mapping) != n {
				t.Fatalf("n=%d seed=%d: expected %d assignments, got %d", n, seed, n, len(mapping))
			}
			for _, id := range ids {
				assigned, ok := mapping[id]
				if !ok {
					t.Fatalf("n=%d seed=%d: no assignment for %s", n, seed, id)
				}
				if assigned == subs[id] {
					t.Fatalf("n=%d seed=%d: player %s assigned their own submission", n, seed, id)
				}
			}
		}
	}
}

func TestAssignTopicsEachSubmissionUsedOnce(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	subs := makeSubmissions(ids)
	rng := rand.New(rand.NewSource(42))

	mapping, err := AssignTopics(ids, subs, rng)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for _, assigned := range mapping {
		if seen[assigned.OriginalRef] {
			t.Fatalf("submission %s assigned twice", assigned.OriginalRef)
		}
		seen[assigned.OriginalRef] = true
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected %d distinct submissions assigned, got %d", len(ids), len(seen))
	}
}

func TestAssignTopicsRejectsSinglePlayer(t *testing.T) {
	ids := []string{"solo"}
	_, err := AssignTopics(ids, makeSubmissions(ids), nil)
	if err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
	if _, err := AssignTopics(nil, nil, nil); err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers for empty roster, got %v", err)
	}
}

func TestAssignTopicsRequiresAllSubmissions(t *testing.T) {
	ids := []string{"a", "b", "c"}
	subs := makeSubmissions(ids[:2])
	if _, err := AssignTopics(ids, subs, nil); err == nil {
		t.Fatal("expected error for missing submission")
	}
}
