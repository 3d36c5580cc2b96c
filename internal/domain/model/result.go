package model

import "time"

// Outcome is one participant's part of a round result.
type Outcome struct {
	ParticipantID ParticipantID `json:"participant_id"`
	Name          string        `json:"name"`
	Guessed       bool          `json:"guessed"`
	Guess         int           `json:"guess,omitempty"`
	Distance      int           `json:"distance"`
	Win           bool          `json:"win"`
	Delta         int           `json:"delta,omitempty"`
	Score         int           `json:"score"`
}

// RoundResult is announced after every round barrier.
// Outcomes lists guessing participants only; Forfeited holds active
// participants released by the round deadline and Departed those that
// left before their guess was applied.
type RoundResult struct {
	ContestID string          `json:"contest_id"`
	Round     int             `json:"round"`
	Target    int             `json:"target"`
	Ranked    bool            `json:"ranked"`
	Outcomes  []Outcome       `json:"outcomes"`
	Forfeited []ParticipantID `json:"forfeited,omitempty"`
	Departed  []ParticipantID `json:"departed,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Winners returns the participants that hit the target.
func (r RoundResult) Winners() []ParticipantID {
	var ids []ParticipantID
	for _, o := range r.Outcomes {
		if o.Win {
			ids = append(ids, o.ParticipantID)
		}
	}
	return ids
}

// Outcome returns the outcome for id.
func (r RoundResult) Outcome(id ParticipantID) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ParticipantID == id {
			return o, true
		}
	}
	return Outcome{}, false
}
