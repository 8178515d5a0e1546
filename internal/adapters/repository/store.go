// Package repository holds the authoritative player records and their ranking.
package repository

import (
	"context"

	"github.com/okian/lwwboard/internal/domain/model"
	"github.com/okian/lwwboard/internal/domain/types"
)

// Store provides read/write access to the leaderboard state.
type Store interface {
	// Update applies a last-write-wins update. A timestamp equal to or older
	// than the stored one is rejected and the record is left unchanged.
	Update(ctx context.Context, playerID, name string, score int64, ts float64) (model.UpdateResult, error)

	// Top returns up to n entries ordered by score desc with ranks 1..k.
	Top(ctx context.Context, n int) ([]types.Entry, error)

	// Lookup returns the record for a player or ErrNotFound.
	Lookup(ctx context.Context, playerID string) (model.Record, error)

	// Rank returns the player's current position or ErrNotFound.
	Rank(ctx context.Context, playerID string) (types.Entry, error)

	// Stats returns store counters.
	Stats(ctx context.Context) model.Stats

	// Count returns the number of players tracked.
	Count(ctx context.Context) int
}
