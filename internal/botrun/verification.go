package botrun

import (
	"context"
	"errors"
	"fmt"
)

// verifyResults checks the standings against the final score of each bot
// that finished, and that the leaderboard is ordered.
func verifyResults(ctx context.Context, client *HTTPClient, results []Result, top int) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil || r.ParticipantID == "" {
			continue
		}
		entry, err := client.rank(ctx, r.ParticipantID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
			continue
		}
		if entry.Score != r.Score {
			errs = append(errs, fmt.Errorf("%s: standings score %d, bot saw %d", r.Name, entry.Score, r.Score))
		}
	}

	leaderboard, err := client.leaderboard(ctx, top)
	if err != nil {
		errs = append(errs, err)
	} else if err := verifyOrder(leaderboard); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// verifyOrder checks scores never increase down the list and that ties share a rank.
func verifyOrder(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Score > prev.Score {
			return fmt.Errorf("entry %d scores %d above entry %d with %d", i+1, cur.Score, i, prev.Score)
		}
		if cur.Score == prev.Score && cur.Rank != prev.Rank {
			return fmt.Errorf("tied entries %d and %d have ranks %d and %d", i, i+1, prev.Rank, cur.Rank)
		}
		if cur.Score < prev.Score && cur.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i+1, cur.Rank)
		}
	}
	return nil
}
