package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
	"github.com/google/uuid"
)

// ScoreService resolves lobbies and games and records results in the ledger
type ScoreService struct {
	repo     Repository
	notifier Notifier
	metrics  *metrics.Metrics
	now      Clock
	newID    func() string
	logger   *slog.Logger
}

// NewScoreService creates a new score service
func NewScoreService(repo Repository, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *ScoreService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ScoreService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// SetClock replaces the time source
func (s *ScoreService) SetClock(c Clock) {
	s.now = c
}

// EnsureLobbyAndGame returns the lobby's open game, creating a placeholder
// lobby and a new game as needed.
func (s *ScoreService) EnsureLobbyAndGame(ctx context.Context, lobbyID string) (*domain.Game, error) {
	if lobbyID == "" {
		return nil, domain.ErrMissingLobbyID
	}

	if _, err := s.repo.GetLobby(ctx, lobbyID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, s.storageError(domain.OpEnsureLobbyAndGame, err)
		}
		if err := s.repo.UpsertLobby(ctx, domain.PlaceholderLobby(lobbyID, s.now())); err != nil {
			return nil, s.storageError(domain.OpEnsureLobbyAndGame, err)
		}
		s.logger.Info("created lobby", "lobby_id", lobbyID)
	}

	game, err := s.repo.GetOpenGame(ctx, lobbyID)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.storageError(domain.OpEnsureLobbyAndGame, err)
	}

	game, err = s.repo.CreateGame(ctx, domain.Game{
		ID:        s.newID(),
		LobbyID:   lobbyID,
		StartedAt: s.now(),
		Status:    domain.GameStatusInProgress,
	})
	if err != nil {
		return nil, s.storageError(domain.OpEnsureLobbyAndGame, err)
	}
	s.logger.Info("opened game", "lobby_id", lobbyID, "game_id", game.ID)
	return game, nil
}

// SubmitResults validates and records a batch of results against the lobby's
// open game. Either every row is written or none is.
func (s *ScoreService) SubmitResults(ctx context.Context, req domain.SubmitResultsRequest, source string) (*domain.SubmitResultsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lobbyID := req.LobbyID.String()
	game, err := s.EnsureLobbyAndGame(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	rows := req.Normalize(game.ID)
	if err := s.repo.UpsertResults(ctx, rows); err != nil {
		return nil, s.storageError(domain.OpUpsertResults, err)
	}

	s.metrics.ResultsUpserted(source, len(rows))
	s.notifier.ResultsUpdated(lobbyID, game.ID, rows)
	s.logger.Debug("results recorded",
		"lobby_id", lobbyID,
		"game_id", game.ID,
		"rows", len(rows),
		"source", source,
	)

	return &domain.SubmitResultsResponse{
		OK:       true,
		GameID:   game.ID,
		Inserted: len(rows),
	}, nil
}

// ResultsByLobby returns the results of the lobby's latest game, best first
func (s *ScoreService) ResultsByLobby(ctx context.Context, lobbyID string) (string, []domain.GameResult, error) {
	if lobbyID == "" {
		return "", nil, domain.ErrMissingLobbyID
	}

	game, err := s.repo.GetLatestGame(ctx, lobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrGameNotFound
		}
		return "", nil, s.storageError(domain.OpLoadResults, err)
	}

	results, err := s.repo.ListGameResults(ctx, game.ID)
	if err != nil {
		return "", nil, s.storageError(domain.OpLoadResults, err)
	}
	return game.ID, results, nil
}

// CloseLobbyGame completes the lobby's open game
func (s *ScoreService) CloseLobbyGame(ctx context.Context, lobbyID string) (int64, error) {
	if lobbyID == "" {
		return 0, domain.ErrMissingLobbyID
	}

	n, err := s.repo.CloseOpenGames(ctx, lobbyID)
	if err != nil {
		return 0, s.storageError(domain.OpCloseGame, err)
	}
	s.logger.Info("closed lobby game", "lobby_id", lobbyID, "closed", n)
	return n, nil
}

func (s *ScoreService) storageError(op string, err error) error {
	s.metrics.StorageError(op)
	return domain.NewStorageError(op, err)
}
