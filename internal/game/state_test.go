package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestApplySubmissionIdempotent(t *testing.T) {
	s := NewRoomState()
	first := Submission{OriginalRef: "o1", ReversedRef: "r1", AnswerLabel: "apple"}
	second := Submission{OriginalRef: "o2", ReversedRef: "r2", AnswerLabel: "pear"}

	if !s.ApplySubmission("p1", first) {
		t.Fatal("first application should record the submission")
	}
	if s.ApplySubmission("p1", first) {
		t.Fatal("duplicate application should be a no-op")
	}
	if s.ApplySubmission("p1", second) {
		t.Fatal("later submission for the same player should not overwrite")
	}
	if s.Submissions["p1"] != first {
		t.Fatalf("expected first submission to win, got %+v", s.Submissions["p1"])
	}
}

func TestApplyAnswerIdempotent(t *testing.T) {
	s := NewRoomState()
	ans := Answer{ResponseRef: "a1", RecoveredRef: "rec1", EffectTag: EffectRobot}

	if !s.ApplyAnswer("p1", ans) {
		t.Fatal("first application should record the answer")
	}
	if s.ApplyAnswer("p1", Answer{ResponseRef: "a2"}) {
		t.Fatal("duplicate application should be a no-op")
	}
	if s.Answers["p1"] != ans {
		t.Fatalf("expected first answer to win, got %+v", s.Answers["p1"])
	}
}

func TestPhaseNeverRegresses(t *testing.T) {
	s := NewRoomState()
	if err := s.ApplyGameState(GameState{Phase: PhaseRecording, Round: 1, HostID: "h"}); err != nil {
		t.Fatal(err)
	}

	regressions := []Phase{PhaseLobby, PhaseTopicCreation, PhaseShuffle}
	for _, phase := range regressions {
		err := s.ApplyGameState(GameState{Phase: phase, Round: 1, HostID: "h"})
		if !errors.Is(err, ErrStalePhase) {
			t.Fatalf("expected ErrStalePhase applying %s after %s, got %v", phase, PhaseRecording, err)
		}
	}
	if s.Game.Phase != PhaseRecording {
		t.Fatalf("phase should remain %s, got %s", PhaseRecording, s.Game.Phase)
	}

	// forward is fine
	if err := s.ApplyGameState(GameState{Phase: PhaseResult, Round: 1, HostID: "h"}); err != nil {
		t.Fatal(err)
	}
}

func TestPhaseRegressionSequences(t *testing.T) {
	// Any sequence of gameStateUpdate events leaves the observed phase
	// monotonic within the round.
	sequence := []Phase{
		PhaseLobby, PhaseTopicCreation, PhaseLobby, PhaseShuffle,
		PhaseTopicCreation, PhaseRecording, PhaseShuffle, PhaseResult, PhaseLobby,
	}
	s := NewRoomState()
	highest := PhaseLobby
	for _, phase := range sequence {
		_ = s.ApplyGameState(GameState{Phase: phase, Round: 1, HostID: "h"})
		if phaseOrder[s.Game.Phase] < phaseOrder[highest] {
			t.Fatalf("phase regressed from %s to %s", highest, s.Game.Phase)
		}
		highest = s.Game.Phase
	}
	if s.Game.Phase != PhaseResult {
		t.Fatalf("expected final phase %s, got %s", PhaseResult, s.Game.Phase)
	}
}

func TestHostImmutableOnceSet(t *testing.T) {
	s := NewRoomState()
	if err := s.ApplyGameState(GameState{Phase: PhaseLobby, Round: 1, HostID: "h1"}); err != nil {
		t.Fatal(err)
	}

	err := s.ApplyGameState(GameState{Phase: PhaseTopicCreation, Round: 1, HostID: "h2"})
	if !errors.Is(err, ErrHostChanged) {
		t.Fatalf("expected ErrHostChanged, got %v", err)
	}
	err = s.ApplyGameState(GameState{Phase: PhaseTopicCreation, Round: 1, HostID: ""})
	if !errors.Is(err, ErrHostChanged) {
		t.Fatalf("expected ErrHostChanged clearing host, got %v", err)
	}
	if s.Game.HostID != "h1" {
		t.Fatalf("host should remain h1, got %q", s.Game.HostID)
	}
}

func TestApplyDropsMalformedPayloads(t *testing.T) {
	s := NewRoomState()
	cases := []struct {
		event   string
		payload string
	}{
		{EventGameState, `"not an object"`},
		{EventTopicSubmitted, `[1,2,3]`},
		{EventAnswerSubmitted, `{bad json`},
		{EventAssignments, `42`},
		{"someUnknownEvent", `{}`},
	}
	for _, tc := range cases {
		if err := s.Apply(tc.event, json.RawMessage(tc.payload)); err == nil {
			t.Fatalf("expected error for %s with payload %s", tc.event, tc.payload)
		}
	}
	// state untouched after all the garbage
	if s.Game != DefaultState() {
		t.Fatalf("state should be untouched, got %+v", s.Game)
	}
	if len(s.Submissions) != 0 || len(s.Answers) != 0 || len(s.Assignments) != 0 {
		t.Fatal("collections should be untouched")
	}
}

func TestApplyRoutesEvents(t *testing.T) {
	s := NewRoomState()

	statePayload, _ := json.Marshal(GameState{Phase: PhaseTopicCreation, Round: 1, HostID: "h"})
	if err := s.Apply(EventGameState, statePayload); err != nil {
		t.Fatal(err)
	}
	if s.Game.Phase != PhaseTopicCreation {
		t.Fatalf("expected phase %s, got %s", PhaseTopicCreation, s.Game.Phase)
	}

	topicPayload, _ := json.Marshal(TopicPayload{PlayerID: "p1", Data: Submission{OriginalRef: "o"}})
	if err := s.Apply(EventTopicSubmitted, topicPayload); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Submissions["p1"]; !ok {
		t.Fatal("submission not recorded")
	}

	assignPayload, _ := json.Marshal(AssignmentsPayload{Mapping: map[string]Submission{"p1": {OriginalRef: "o2"}}})
	if err := s.Apply(EventAssignments, assignPayload); err != nil {
		t.Fatal(err)
	}
	if s.Assignments["p1"].OriginalRef != "o2" {
		t.Fatal("assignments not replaced")
	}

	answerPayload, _ := json.Marshal(AnswerPayload{PlayerID: "p1", Data: Answer{ResponseRef: "a"}})
	if err := s.Apply(EventAnswerSubmitted, answerPayload); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Answers["p1"]; !ok {
		t.Fatal("answer not recorded")
	}
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	s := NewRoomState()
	_ = s.ApplyGameState(GameState{Phase: PhaseTopicCreation, Round: 1, HostID: "h"})
	s.ApplySubmission("p1", Submission{OriginalRef: "o1"})

	snap := s.Snapshot()
	if snap.GameState.Phase != PhaseTopicCreation {
		t.Fatalf("snapshot phase %s", snap.GameState.Phase)
	}
	if len(snap.Submissions) != 1 {
		t.Fatalf("snapshot should carry current submissions, got %d", len(snap.Submissions))
	}

	// mutating the snapshot must not leak back
	snap.Submissions["p2"] = Submission{}
	if len(s.Submissions) != 1 {
		t.Fatal("snapshot mutation leaked into state")
	}
}

func TestApplySnapshotOverwritesWholesale(t *testing.T) {
	s := NewRoomState()
	s.ApplySubmission("stale", Submission{OriginalRef: "old"})

	s.ApplySnapshot(Snapshot{
		GameState:   GameState{Phase: PhaseRecording, Round: 1, HostID: "h"},
		Submissions: map[string]Submission{"p1": {OriginalRef: "o1"}},
		Assignments: map[string]Submission{"p1": {OriginalRef: "o2"}},
		Answers:     map[string]Answer{},
	})

	if s.Game.Phase != PhaseRecording {
		t.Fatalf("expected phase %s, got %s", PhaseRecording, s.Game.Phase)
	}
	if _, ok := s.Submissions["stale"]; ok {
		t.Fatal("snapshot should replace collections wholesale")
	}
	if len(s.Submissions) != 1 || len(s.Assignments) != 1 {
		t.Fatal("snapshot collections not applied")
	}
}
