package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(lobbyID, gameID, player string, score, correct, total int64, startedAt int64) domain.ResultRow {
	return domain.ResultRow{
		GameResult: domain.GameResult{
			GameID:         gameID,
			LobbyID:        lobbyID,
			PlayerAddress:  player,
			Score:          score,
			CorrectAnswers: correct,
			TotalQuestions: total,
		},
		GameStartedAt: time.Unix(startedAt, 0),
		GameStatus:    domain.GameStatusCompleted,
	}
}

func TestComputeGlobalLeaderboardEmpty(t *testing.T) {
	players := ComputeGlobalLeaderboard(nil)
	assert.NotNil(t, players)
	assert.Empty(t, players)
}

func TestComputeGlobalLeaderboard(t *testing.T) {
	rows := []domain.ResultRow{
		row("l1", "g1", "0xaa", 960, 10, 10, 100),
		row("l1", "g1", "0xbb", 400, 3, 10, 100),
		row("l2", "g2", "0xaa", 700, 7, 10, 300),
		row("l2", "g2", "0xbb", 820, 0, 0, 300),
		row("l3", "g3", "0xcc", 2000, 1, 3, 200),
	}

	players := ComputeGlobalLeaderboard(rows)
	require.Len(t, players, 3)

	assert.Equal(t, "0xcc", players[0].PlayerAddress)
	assert.Equal(t, "0xaa", players[1].PlayerAddress)
	assert.Equal(t, "0xbb", players[2].PlayerAddress)

	aa := players[1]
	assert.Equal(t, int64(1660), aa.TotalScore)
	assert.Equal(t, int64(2), aa.GamesPlayed)
	assert.Equal(t, int64(1), aa.Wins)
	assert.Equal(t, int64(50), aa.WinRate)
	assert.Equal(t, int64(830), aa.AverageScore)
	assert.Equal(t, int64(960), aa.BestScore)
	assert.Equal(t, int64(17), aa.TotalCorrectAnswers)
	assert.Equal(t, int64(20), aa.TotalQuestions)
	assert.Equal(t, int64(85), aa.Accuracy)
	require.NotNil(t, aa.LastPlayed)
	assert.Equal(t, time.Unix(300, 0), *aa.LastPlayed)
	assert.Equal(t, []string{domain.AchievementQuizMaster}, aa.Achievements)

	bb := players[2]
	assert.Equal(t, int64(1), bb.Wins)
	assert.Equal(t, int64(30), bb.Accuracy)
	assert.Empty(t, bb.Achievements)
	assert.NotNil(t, bb.Achievements)

	cc := players[0]
	assert.Equal(t, int64(33), cc.Accuracy)
	assert.Equal(t, int64(100), cc.WinRate)
}

func TestComputeGlobalLeaderboardZeroQuestions(t *testing.T) {
	players := ComputeGlobalLeaderboard([]domain.ResultRow{row("l", "g", "0xaa", 10, 0, 0, 1)})
	require.Len(t, players, 1)
	assert.Equal(t, int64(0), players[0].Accuracy)
}

func TestGlobalAchievementThresholds(t *testing.T) {
	var rows []domain.ResultRow
	for i := 0; i < 10; i++ {
		rows = append(rows, row("l", "g", "0xaa", 800, 9, 10, int64(i)))
	}

	players := ComputeGlobalLeaderboard(rows)
	require.Len(t, players, 1)
	assert.Equal(t, int64(10), players[0].Wins)
	assert.Equal(t, []string{
		domain.AchievementArenaChampion,
		domain.AchievementKnowledgeSeeker,
		domain.AchievementAccuracyMaster,
	}, players[0].Achievements)
}

func TestComputeLobbyStandings(t *testing.T) {
	lobbies := []domain.Lobby{
		{ID: "l2", Name: "Second", CreatedAt: time.Unix(20, 0)},
		{ID: "l1", Name: "First", CreatedAt: time.Unix(10, 0)},
	}
	rows := []domain.ResultRow{
		row("l1", "g1", "0xaa", 300, 3, 10, 100),
		row("l1", "g1", "0xbb", 900, 9, 10, 100),
		row("l1", "g0", "0xaa", 500, 5, 10, 50),
	}

	standings := ComputeLobbyStandings(lobbies, rows, map[string]string{"l1": "completed"})
	require.Len(t, standings, 2)

	assert.Equal(t, "l2", standings[0].LobbyID)
	assert.Empty(t, standings[0].Players)
	assert.Equal(t, domain.LobbyStatusWaiting, standings[0].Status)

	l1 := standings[1]
	assert.Equal(t, "First", l1.LobbyName)
	assert.Equal(t, "completed", l1.Status)
	assert.Equal(t, 2, l1.TotalPlayers)
	require.Len(t, l1.Players, 3)

	winner := l1.Players[0]
	assert.Equal(t, "0xbb", winner.PlayerAddress)
	assert.Equal(t, int64(1), winner.Wins)
	assert.Equal(t, int64(100), winner.WinRate)
	assert.Equal(t, []string{domain.AchievementLobbyWinner}, winner.Achievements)
	assert.Equal(t, int64(90), winner.Accuracy)

	for _, p := range l1.Players[1:] {
		assert.Equal(t, int64(0), p.Wins)
		assert.Equal(t, int64(1), p.GamesPlayed)
		assert.Empty(t, p.Achievements)
	}
	assert.Equal(t, int64(500), l1.Players[1].TotalScore)
	assert.Equal(t, int64(300), l1.Players[2].TotalScore)
}

func TestLobbyLeaderboardUsesRecentLobbies(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.UpsertLobby(ctx, domain.PlaceholderLobby(id, time.Unix(int64(i), 0))))
	}
	_, err := repo.CreateGame(ctx, domain.Game{ID: "gc", LobbyID: "c", StartedAt: time.Unix(5, 0)})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertResults(ctx, []domain.GameResult{
		{GameID: "gc", LobbyID: "c", PlayerAddress: "0xaa", Score: 42},
	}))

	svc := NewLeaderboardService(repo, &config.LeaderboardConfig{LobbyLimit: 2}, nil, testLogger())
	standings, err := svc.LobbyLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, standings, 2)

	assert.Equal(t, "c", standings[0].LobbyID)
	assert.Equal(t, string(domain.GameStatusInProgress), standings[0].Status)
	require.Len(t, standings[0].Players, 1)
	assert.Equal(t, int64(42), standings[0].Players[0].TotalScore)

	assert.Equal(t, "b", standings[1].LobbyID)
	assert.Equal(t, domain.LobbyStatusWaiting, standings[1].Status)
}

func TestLeaderboardStorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFaultyRepo()
	repo.listErr = errors.New("relation does not exist")
	svc := NewLeaderboardService(repo, nil, nil, testLogger())

	_, err := svc.GlobalLeaderboard(ctx)
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, domain.OpLoadLeaderboard, storageErr.Op)

	_, err = svc.LobbyLeaderboard(ctx, 5)
	assert.ErrorAs(t, err, &storageErr)
}

func TestAchievementsCatalog(t *testing.T) {
	svc := NewLeaderboardService(memstore.New(), nil, nil, testLogger())
	catalog := svc.Achievements()
	require.Len(t, catalog, 5)
	for _, a := range catalog {
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.Name)
	}
}
