// Package repository keeps the cross-contest standings.
package repository

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// Entry represents a leaderboard row.
type Entry = types.Entry

// Store provides read/write access to the standings.
type Store interface {
	// Set records the current cumulative score of a participant.
	Set(ctx context.Context, id model.ParticipantID, name string, score int) error

	// Rank returns the current rank and score for a participant.
	// Returns ErrNotFound if the participant is unknown.
	Rank(ctx context.Context, id model.ParticipantID) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of participants tracked.
	Count(ctx context.Context) int
}
