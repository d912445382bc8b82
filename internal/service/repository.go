package service

import (
	"context"
	"time"

	"github.com/arena-gamesync/internal/domain"
)

// Repository is the persistence contract shared by the postgres and memory
// storage drivers. Lookups that find nothing return domain.ErrNotFound.
type Repository interface {
	GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error)
	// UpsertLobby inserts the lobby, leaving an existing row untouched
	UpsertLobby(ctx context.Context, lobby domain.Lobby) error
	ListRecentLobbies(ctx context.Context, limit int) ([]domain.Lobby, error)

	// GetOpenGame returns the most recent in-progress game of the lobby
	GetOpenGame(ctx context.Context, lobbyID string) (*domain.Game, error)
	// GetLatestGame returns the most recent game of the lobby in any status
	GetLatestGame(ctx context.Context, lobbyID string) (*domain.Game, error)
	// CreateGame inserts an in-progress game. If the lobby already has one,
	// the existing game is returned instead.
	CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error)
	// CloseOpenGames completes every in-progress game of the lobby
	CloseOpenGames(ctx context.Context, lobbyID string) (int64, error)
	// CloseStaleGames completes in-progress games started before the cutoff
	CloseStaleGames(ctx context.Context, before time.Time) (int64, error)

	// UpsertResults writes all rows or none, keyed by (game, player)
	UpsertResults(ctx context.Context, results []domain.GameResult) error
	// ListGameResults returns a game's rows ordered by score descending
	ListGameResults(ctx context.Context, gameID string) ([]domain.GameResult, error)
	ListAllResults(ctx context.Context) ([]domain.ResultRow, error)
	ListLobbyResults(ctx context.Context, lobbyIDs []string) ([]domain.ResultRow, error)

	Ping(ctx context.Context) error
}

// Notifier receives lobby events for realtime delivery
type Notifier interface {
	GameStarted(lobbyID string, start domain.CountdownStart)
	GameCleared(lobbyID string)
	ResultsUpdated(lobbyID, gameID string, results []domain.GameResult)
}

type noopNotifier struct{}

func (noopNotifier) GameStarted(string, domain.CountdownStart)          {}
func (noopNotifier) GameCleared(string)                                 {}
func (noopNotifier) ResultsUpdated(string, string, []domain.GameResult) {}

// Clock returns the current time
type Clock func() time.Time
