// Package countdown keeps the scheduled start time of each lobby's game.
package countdown

import (
	"context"
	"time"
)

// Store holds at most one start time per lobby
type Store interface {
	// Set records startAt for the lobby, replacing any previous entry
	Set(ctx context.Context, lobbyID string, startAt time.Time) error
	// Get returns the start time and whether an entry exists
	Get(ctx context.Context, lobbyID string) (time.Time, bool, error)
	// Delete removes the entry; deleting a missing entry is not an error
	Delete(ctx context.Context, lobbyID string) error
}
