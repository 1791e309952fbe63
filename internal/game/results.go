package game

import (
	"sort"
)

// Pairing joins one topic with the answer attempt it received, resolved
// through the assignment mapping.
type Pairing struct {
	TopicPlayerID  string
	Topic          Submission
	AnswerPlayerID string
	Answer         *Answer
}

// PairResults builds the result-screen view: for every submission, locate the
// player who was assigned it and attach their answer if they produced one.
// Assignments carry submission values rather than ids, so the lookup matches
// on the original media locator, which is unique per submission.
func PairResults(s *RoomState) []Pairing {
	answererByRef := make(map[string]string, len(s.Assignments))
	for playerID, assigned := range s.Assignments {
		answererByRef[assigned.OriginalRef] = playerID
	}

	out := make([]Pairing, 0, len(s.Submissions))
	for topicPlayerID, topic := range s.Submissions {
		p := Pairing{TopicPlayerID: topicPlayerID, Topic: topic}
		if answererID, ok := answererByRef[topic.OriginalRef]; ok {
			p.AnswerPlayerID = answererID
			if ans, ok := s.Answers[answererID]; ok {
				a := ans
				p.Answer = &a
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicPlayerID < out[j].TopicPlayerID })
	return out
}
