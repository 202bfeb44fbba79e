// Package cleanup implements pruning of old archived assessments.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/berth-dev/gauge/internal/store"
)

// History lists and deletes archived sessions. The session Manager
// satisfies it.
type History interface {
	History(ctx context.Context) ([]store.Summary, error)
	DeleteHistorical(ctx context.Context, id string) error
}

// PruneByAge removes archived sessions completed more than maxAgeDays
// before now. If dryRun is true, nothing is deleted; the function only
// returns what would be removed. Returns the pruned sessions.
func PruneByAge(ctx context.Context, h History, maxAgeDays int, now time.Time, dryRun bool) ([]store.Summary, error) {
	list, err := h.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	cutoff := now.AddDate(0, 0, -maxAgeDays)
	var old []store.Summary
	for _, s := range list {
		if s.CompletedAt.Before(cutoff) {
			old = append(old, s)
		}
	}
	return remove(ctx, h, old, dryRun)
}

// PruneKeepRecent removes all archived sessions except the most recent keep.
// A negative keep is treated as 0. If dryRun is true, nothing is deleted.
// Returns the pruned sessions.
func PruneKeepRecent(ctx context.Context, h History, keep int, dryRun bool) ([]store.Summary, error) {
	if keep < 0 {
		keep = 0
	}
	list, err := h.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	// History is most recent first.
	if len(list) <= keep {
		return nil, nil
	}
	return remove(ctx, h, list[keep:], dryRun)
}

func remove(ctx context.Context, h History, sessions []store.Summary, dryRun bool) ([]store.Summary, error) {
	var pruned []store.Summary
	for _, s := range sessions {
		if !dryRun {
			if err := h.DeleteHistorical(ctx, s.ID); err != nil {
				return pruned, fmt.Errorf("removing %s: %w", s.ID, err)
			}
		}
		pruned = append(pruned, s)
	}
	return pruned, nil
}
