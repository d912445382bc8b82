package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-gamesync/internal/countdown"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
)

// GameSyncService schedules synchronized game starts for lobbies
type GameSyncService struct {
	countdowns countdown.Store
	games      Repository
	notifier   Notifier
	metrics    *metrics.Metrics
	now        Clock
	logger     *slog.Logger
}

// NewGameSyncService creates a new game sync service. games may be nil, in
// which case starting a countdown does not close the lobby's open game.
func NewGameSyncService(
	countdowns countdown.Store,
	games Repository,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *GameSyncService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &GameSyncService{
		countdowns: countdowns,
		games:      games,
		notifier:   notifier,
		metrics:    m,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the time source
func (s *GameSyncService) SetClock(c Clock) {
	s.now = c
}

// StartGame schedules the lobby's game CountdownDelay from now, replacing any
// pending countdown. The lobby's open game is closed so the next round of
// results is scored as a new game.
func (s *GameSyncService) StartGame(ctx context.Context, lobbyID string) (domain.CountdownStart, error) {
	if lobbyID == "" {
		return domain.CountdownStart{}, domain.ErrMissingLobbyID
	}

	startAt := s.now().Add(domain.CountdownDelay)
	if err := s.countdowns.Set(ctx, lobbyID, startAt); err != nil {
		return domain.CountdownStart{}, fmt.Errorf("starting countdown: %w", err)
	}

	if s.games != nil {
		if n, err := s.games.CloseOpenGames(ctx, lobbyID); err != nil {
			s.logger.Warn("failed to close previous game", "lobby_id", lobbyID, "error", err)
		} else if n > 0 {
			s.logger.Info("closed previous game", "lobby_id", lobbyID, "closed", n)
		}
	}

	start := domain.CountdownStart{
		LobbyID:          lobbyID,
		StartAtMs:        startAt.UnixMilli(),
		CountdownSeconds: int(domain.CountdownDelay / time.Second),
	}
	s.metrics.CountdownStarted()
	s.notifier.GameStarted(lobbyID, start)
	s.logger.Debug("countdown started", "lobby_id", lobbyID, "start_at", start.StartAtMs)

	return start, nil
}

// GetGameStart reports the lobby's countdown. A lobby without one yields a
// status with Found=false.
func (s *GameSyncService) GetGameStart(ctx context.Context, lobbyID string) (domain.CountdownStatus, error) {
	if lobbyID == "" {
		return domain.CountdownStatus{}, domain.ErrMissingLobbyID
	}

	startAt, ok, err := s.countdowns.Get(ctx, lobbyID)
	if err != nil {
		return domain.CountdownStatus{}, fmt.Errorf("reading countdown: %w", err)
	}
	if !ok {
		return domain.CountdownStatus{Found: false}, nil
	}
	return domain.NewCountdownStatus(startAt, s.now()), nil
}

// ClearGame removes the lobby's countdown. Clearing twice is not an error.
func (s *GameSyncService) ClearGame(ctx context.Context, lobbyID string) error {
	if lobbyID == "" {
		return domain.ErrMissingLobbyID
	}

	if err := s.countdowns.Delete(ctx, lobbyID); err != nil {
		return fmt.Errorf("clearing countdown: %w", err)
	}

	s.metrics.CountdownCleared()
	s.notifier.GameCleared(lobbyID)
	return nil
}
