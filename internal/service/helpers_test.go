package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock whose time can be moved by the test
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(ms int64) *fixedClock {
	return &fixedClock{now: time.UnixMilli(ms)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(ms int64) {
	c.mu.Lock()
	c.now = time.UnixMilli(ms)
	c.mu.Unlock()
}

// faultyRepo fails the configured operations and delegates the rest
type faultyRepo struct {
	*memstore.Store
	getLobbyErr      error
	openGameErr      error
	latestGameErr    error
	closeErr         error
	upsertResultsErr error
	listErr          error
	calls            int
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{Store: memstore.New()}
}

func (r *faultyRepo) GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	r.calls++
	if r.getLobbyErr != nil {
		return nil, r.getLobbyErr
	}
	return r.Store.GetLobby(ctx, lobbyID)
}

func (r *faultyRepo) GetOpenGame(ctx context.Context, lobbyID string) (*domain.Game, error) {
	r.calls++
	if r.openGameErr != nil {
		return nil, r.openGameErr
	}
	return r.Store.GetOpenGame(ctx, lobbyID)
}

func (r *faultyRepo) GetLatestGame(ctx context.Context, lobbyID string) (*domain.Game, error) {
	r.calls++
	if r.latestGameErr != nil {
		return nil, r.latestGameErr
	}
	return r.Store.GetLatestGame(ctx, lobbyID)
}

func (r *faultyRepo) CloseOpenGames(ctx context.Context, lobbyID string) (int64, error) {
	r.calls++
	if r.closeErr != nil {
		return 0, r.closeErr
	}
	return r.Store.CloseOpenGames(ctx, lobbyID)
}

func (r *faultyRepo) UpsertResults(ctx context.Context, results []domain.GameResult) error {
	r.calls++
	if r.upsertResultsErr != nil {
		return r.upsertResultsErr
	}
	return r.Store.UpsertResults(ctx, results)
}

func (r *faultyRepo) ListAllResults(ctx context.Context) ([]domain.ResultRow, error) {
	r.calls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Store.ListAllResults(ctx)
}

func (r *faultyRepo) ListRecentLobbies(ctx context.Context, limit int) ([]domain.Lobby, error) {
	r.calls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Store.ListRecentLobbies(ctx, limit)
}

type recordingNotifier struct {
	mu      sync.Mutex
	started []domain.CountdownStart
	cleared []string
	updated []string
}

func (n *recordingNotifier) GameStarted(_ string, start domain.CountdownStart) {
	n.mu.Lock()
	n.started = append(n.started, start)
	n.mu.Unlock()
}

func (n *recordingNotifier) GameCleared(lobbyID string) {
	n.mu.Lock()
	n.cleared = append(n.cleared, lobbyID)
	n.mu.Unlock()
}

func (n *recordingNotifier) ResultsUpdated(_ string, gameID string, _ []domain.GameResult) {
	n.mu.Lock()
	n.updated = append(n.updated, gameID)
	n.mu.Unlock()
}
