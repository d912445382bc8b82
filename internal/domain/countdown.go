package domain

import "time"

// CountdownDelay is how far in the future a started game is scheduled
const CountdownDelay = 10 * time.Second

// GameSyncAction is an action accepted by the game-sync endpoint
type GameSyncAction string

const (
	ActionStartGame    GameSyncAction = "start_game"
	ActionGetGameStart GameSyncAction = "get_game_start"
	ActionClearGame    GameSyncAction = "clear_game"
)

// Valid reports whether the action is known
func (a GameSyncAction) Valid() bool {
	switch a {
	case ActionStartGame, ActionGetGameStart, ActionClearGame:
		return true
	}
	return false
}

// CountdownStart is returned when a countdown is (re)started
type CountdownStart struct {
	LobbyID          string `json:"lobby_id"`
	StartAtMs        int64  `json:"start_at"`
	CountdownSeconds int    `json:"countdown"`
}

// CountdownStatus is the read view of a lobby's countdown
type CountdownStatus struct {
	Found       bool  `json:"found"`
	StartAtMs   int64 `json:"start_at,omitempty"`
	RemainingMs int64 `json:"remaining_ms"`
	HasStarted  bool  `json:"has_started"`
}

// NewCountdownStatus derives the status of a countdown entry at now
func NewCountdownStatus(startAt, now time.Time) CountdownStatus {
	remaining := startAt.UnixMilli() - now.UnixMilli()
	if remaining < 0 {
		remaining = 0
	}
	return CountdownStatus{
		Found:       true,
		StartAtMs:   startAt.UnixMilli(),
		RemainingMs: remaining,
		HasStarted:  remaining <= 0,
	}
}

// SecondsRemaining rounds the remaining time up to whole seconds
func (s CountdownStatus) SecondsRemaining() int64 {
	return (s.RemainingMs + 999) / 1000
}
