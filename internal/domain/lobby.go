package domain

import "time"

// GameStatus represents the scoring session state of a game
type GameStatus string

const (
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
)

// Placeholder values for lobbies created on demand by score submission
const (
	DefaultLobbyCategory   = "general"
	DefaultLobbyMaxPlayers = 10
)

// Lobby is a named room players join before a game round starts
type Lobby struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	EntryFeeWei string    `json:"entry_fee_wei"`
	MaxPlayers  int       `json:"max_players"`
	Creator     *string   `json:"creator"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlaceholderLobby returns the lobby row used when scores arrive for an unknown lobby
func PlaceholderLobby(lobbyID string, now time.Time) Lobby {
	return Lobby{
		ID:          lobbyID,
		Name:        "Lobby " + lobbyID,
		Category:    DefaultLobbyCategory,
		EntryFeeWei: "0",
		MaxPlayers:  DefaultLobbyMaxPlayers,
		Creator:     nil,
		CreatedAt:   now,
	}
}

// Game is one scored round of play tied to a lobby
type Game struct {
	ID        string     `json:"id"`
	LobbyID   string     `json:"lobby_id"`
	StartedAt time.Time  `json:"started_at"`
	Status    GameStatus `json:"status"`
}

// GameResult is one player's final score line for a specific game.
// Unique per (GameID, PlayerAddress).
type GameResult struct {
	GameID         string `json:"game_id"`
	LobbyID        string `json:"lobby_id"`
	PlayerAddress  string `json:"player_address"`
	Score          int64  `json:"score"`
	CorrectAnswers int64  `json:"correct_answers"`
	TotalQuestions int64  `json:"total_questions"`
	TimeBonus      int64  `json:"time_bonus"`
}

// ResultRow is a GameResult joined with its parent game
type ResultRow struct {
	GameResult
	GameStartedAt time.Time  `json:"started_at"`
	GameStatus    GameStatus `json:"status"`
}
