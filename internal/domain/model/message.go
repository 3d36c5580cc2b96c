package model

// MessageType names an outbound contest event.
type MessageType string

// Outbound message types.
const (
	MessageContestStart   MessageType = "contest_start"
	MessageRoundStart     MessageType = "round_start"
	MessageGuessPrompt    MessageType = "guess_prompt"
	MessageRoundResult    MessageType = "round_result"
	MessageContestOver    MessageType = "contest_over"
	MessageContestAborted MessageType = "contest_aborted"
	MessageQueued         MessageType = "queued"
	MessageError          MessageType = "error"
)

// Message is delivered to a whole contest or to a single participant.
type Message struct {
	Type      MessageType `json:"type"`
	ContestID string      `json:"contest_id,omitempty"`
	Round     int         `json:"round,omitempty"`
	Payload   any         `json:"payload,omitempty"`
}
