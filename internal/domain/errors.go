package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrNotFound is the storage-level "no rows" condition. It is a normal branch, not a fault.
	ErrNotFound = errors.New("no rows")

	ErrMissingLobbyID       = errors.New("lobbyId is required")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidResults       = errors.New("results must be a non-empty array")
	ErrMissingPlayerAddress = errors.New("player_address is required")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrGameNotFound         = errors.New("no game found for lobby")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrInternalError        = errors.New("internal server error")
)

// Operation messages attached to StorageError
const (
	OpEnsureLobbyAndGame = "Failed to create lobby/game"
	OpUpsertResults      = "Failed to upsert results"
	OpLoadResults        = "Failed to load results"
	OpLoadLeaderboard    = "Failed to load leaderboard"
	OpCloseGame          = "Failed to close game"
)

// StorageError reports a genuine backing store fault together with the
// operation that was being attempted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err for the given operation
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsClientError checks if an error was caused by invalid client input
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingLobbyID) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidResults) ||
		errors.Is(err, ErrMissingPlayerAddress) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrGameNotFound)
}
