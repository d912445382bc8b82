// Package memstore is an in-process storage driver with the same uniqueness
// rules as the postgres schema: one lobby per id, at most one in-progress game
// per lobby, one result per (game, player).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arena-gamesync/internal/domain"
)

type resultKey struct {
	gameID string
	player string
}

type lobbyEntry struct {
	lobby domain.Lobby
	seq   int
}

// Store keeps lobbies, games and results in memory
type Store struct {
	mu      sync.RWMutex
	seq     int
	lobbies map[string]lobbyEntry
	games   []domain.Game
	results map[resultKey]domain.GameResult
	order   []resultKey
}

// New creates an empty store
func New() *Store {
	return &Store{
		lobbies: make(map[string]lobbyEntry),
		results: make(map[resultKey]domain.GameResult),
	}
}

func (s *Store) GetLobby(_ context.Context, lobbyID string) (*domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	lobby := entry.lobby
	return &lobby, nil
}

func (s *Store) UpsertLobby(_ context.Context, lobby domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lobbies[lobby.ID]; ok {
		return nil
	}
	s.seq++
	s.lobbies[lobby.ID] = lobbyEntry{lobby: lobby, seq: s.seq}
	return nil
}

func (s *Store) ListRecentLobbies(_ context.Context, limit int) ([]domain.Lobby, error) {
	s.mu.RLock()
	entries := make([]lobbyEntry, 0, len(s.lobbies))
	for _, e := range s.lobbies {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].lobby.CreatedAt.Equal(entries[j].lobby.CreatedAt) {
			return entries[i].lobby.CreatedAt.After(entries[j].lobby.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	lobbies := make([]domain.Lobby, len(entries))
	for i, e := range entries {
		lobbies[i] = e.lobby
	}
	return lobbies, nil
}

// latestGame scans newest first. Callers hold the lock.
func (s *Store) latestGame(lobbyID string, match func(domain.Game) bool) (*domain.Game, bool) {
	var best *domain.Game
	for i := len(s.games) - 1; i >= 0; i-- {
		g := s.games[i]
		if g.LobbyID != lobbyID || !match(g) {
			continue
		}
		if best == nil || g.StartedAt.After(best.StartedAt) {
			game := g
			best = &game
		}
	}
	return best, best != nil
}

func isOpen(g domain.Game) bool { return g.Status == domain.GameStatusInProgress }

func (s *Store) GetOpenGame(_ context.Context, lobbyID string) (*domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.latestGame(lobbyID, isOpen)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return game, nil
}

func (s *Store) GetLatestGame(_ context.Context, lobbyID string) (*domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.latestGame(lobbyID, func(domain.Game) bool { return true })
	if !ok {
		return nil, domain.ErrNotFound
	}
	return game, nil
}

func (s *Store) CreateGame(_ context.Context, game domain.Game) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.latestGame(game.LobbyID, isOpen); ok {
		return existing, nil
	}
	game.Status = domain.GameStatusInProgress
	s.games = append(s.games, game)
	return &game, nil
}

func (s *Store) CloseOpenGames(_ context.Context, lobbyID string) (int64, error) {
	return s.closeWhere(func(g domain.Game) bool { return g.LobbyID == lobbyID }), nil
}

func (s *Store) CloseStaleGames(_ context.Context, before time.Time) (int64, error) {
	return s.closeWhere(func(g domain.Game) bool { return g.StartedAt.Before(before) }), nil
}

func (s *Store) closeWhere(match func(domain.Game) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.games {
		if isOpen(s.games[i]) && match(s.games[i]) {
			s.games[i].Status = domain.GameStatusCompleted
			n++
		}
	}
	return n
}

func (s *Store) UpsertResults(_ context.Context, results []domain.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		key := resultKey{gameID: r.GameID, player: r.PlayerAddress}
		if _, ok := s.results[key]; !ok {
			s.order = append(s.order, key)
		}
		s.results[key] = r
	}
	return nil
}

func (s *Store) ListGameResults(_ context.Context, gameID string) ([]domain.GameResult, error) {
	s.mu.RLock()
	results := make([]domain.GameResult, 0)
	for _, key := range s.order {
		if key.gameID == gameID {
			results = append(results, s.results[key])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (s *Store) ListAllResults(_ context.Context) ([]domain.ResultRow, error) {
	return s.resultRows(func(string) bool { return true }), nil
}

func (s *Store) ListLobbyResults(_ context.Context, lobbyIDs []string) ([]domain.ResultRow, error) {
	wanted := make(map[string]struct{}, len(lobbyIDs))
	for _, id := range lobbyIDs {
		wanted[id] = struct{}{}
	}
	return s.resultRows(func(lobbyID string) bool {
		_, ok := wanted[lobbyID]
		return ok
	}), nil
}

func (s *Store) resultRows(match func(lobbyID string) bool) []domain.ResultRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make(map[string]domain.Game, len(s.games))
	for _, g := range s.games {
		games[g.ID] = g
	}

	rows := make([]domain.ResultRow, 0, len(s.order))
	for _, key := range s.order {
		r := s.results[key]
		if !match(r.LobbyID) {
			continue
		}
		g := games[r.GameID]
		rows = append(rows, domain.ResultRow{
			GameResult:    r,
			GameStartedAt: g.StartedAt,
			GameStatus:    g.Status,
		})
	}
	return rows
}

func (s *Store) Ping(context.Context) error {
	return nil
}
