// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}
