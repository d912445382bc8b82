package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
)

// LeaderboardService computes rankings from the score ledger on every read
type LeaderboardService struct {
	repo    Repository
	config  *config.LeaderboardConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	repo Repository,
	cfg *config.LeaderboardConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		repo:    repo,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// GlobalLeaderboard aggregates every result in the ledger by player
func (s *LeaderboardService) GlobalLeaderboard(ctx context.Context) ([]domain.PlayerAggregate, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLeaderboard("global", time.Since(start)) }()

	rows, err := s.repo.ListAllResults(ctx)
	if err != nil {
		s.metrics.StorageError(domain.OpLoadLeaderboard)
		return nil, domain.NewStorageError(domain.OpLoadLeaderboard, err)
	}
	return ComputeGlobalLeaderboard(rows), nil
}

// LobbyLeaderboard returns per-lobby standings for the most recently created
// lobbies. A non-positive limit uses the configured default.
func (s *LeaderboardService) LobbyLeaderboard(ctx context.Context, limit int) ([]domain.LobbyStanding, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLeaderboard("lobbies", time.Since(start)) }()

	if limit <= 0 {
		limit = domain.DefaultLobbyLeaderboardLimit
		if s.config != nil && s.config.LobbyLimit > 0 {
			limit = s.config.LobbyLimit
		}
	}

	lobbies, err := s.repo.ListRecentLobbies(ctx, limit)
	if err != nil {
		return nil, s.loadError(err)
	}
	if len(lobbies) == 0 {
		return []domain.LobbyStanding{}, nil
	}

	ids := make([]string, len(lobbies))
	statuses := make(map[string]string, len(lobbies))
	for i, lobby := range lobbies {
		ids[i] = lobby.ID
		game, err := s.repo.GetLatestGame(ctx, lobby.ID)
		switch {
		case err == nil:
			statuses[lobby.ID] = string(game.Status)
		case errors.Is(err, domain.ErrNotFound):
			statuses[lobby.ID] = domain.LobbyStatusWaiting
		default:
			return nil, s.loadError(err)
		}
	}

	rows, err := s.repo.ListLobbyResults(ctx, ids)
	if err != nil {
		return nil, s.loadError(err)
	}

	return ComputeLobbyStandings(lobbies, rows, statuses), nil
}

// Achievements returns the static achievements catalog
func (s *LeaderboardService) Achievements() []domain.Achievement {
	return domain.AchievementCatalog()
}

func (s *LeaderboardService) loadError(err error) error {
	s.metrics.StorageError(domain.OpLoadLeaderboard)
	return domain.NewStorageError(domain.OpLoadLeaderboard, err)
}

// ComputeGlobalLeaderboard folds result rows into one aggregate per player,
// sorted by total score descending. A result scoring at least
// domain.GlobalWinScore counts as a win.
func ComputeGlobalLeaderboard(rows []domain.ResultRow) []domain.PlayerAggregate {
	players := make([]domain.PlayerAggregate, 0)
	index := make(map[string]int)

	for _, row := range rows {
		i, ok := index[row.PlayerAddress]
		if !ok {
			i = len(players)
			index[row.PlayerAddress] = i
			players = append(players, domain.PlayerAggregate{PlayerAddress: row.PlayerAddress})
		}
		p := &players[i]

		p.TotalScore += row.Score
		p.GamesPlayed++
		p.TotalCorrectAnswers += row.CorrectAnswers
		p.TotalQuestions += row.TotalQuestions
		if p.GamesPlayed == 1 || row.Score > p.BestScore {
			p.BestScore = row.Score
		}
		if row.Score >= domain.GlobalWinScore {
			p.Wins++
		}
		if p.LastPlayed == nil || row.GameStartedAt.After(*p.LastPlayed) {
			played := row.GameStartedAt
			p.LastPlayed = &played
		}
	}

	for i := range players {
		p := &players[i]
		p.AverageScore = ratio(p.TotalScore, p.GamesPlayed, 1)
		p.WinRate = ratio(p.Wins, p.GamesPlayed, 100)
		p.Accuracy = ratio(p.TotalCorrectAnswers, p.TotalQuestions, 100)
		p.Achievements = globalAchievements(*p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].TotalScore > players[j].TotalScore
	})
	return players
}

func globalAchievements(p domain.PlayerAggregate) []string {
	achievements := make([]string, 0, 4)
	if p.BestScore >= domain.QuizMasterBestScore {
		achievements = append(achievements, domain.AchievementQuizMaster)
	}
	if p.Wins >= domain.ArenaChampionWins {
		achievements = append(achievements, domain.AchievementArenaChampion)
	}
	if p.GamesPlayed >= domain.KnowledgeSeekerGames {
		achievements = append(achievements, domain.AchievementKnowledgeSeeker)
	}
	if p.Accuracy >= domain.AccuracyMasterPercent {
		achievements = append(achievements, domain.AchievementAccuracyMaster)
	}
	return achievements
}

// ComputeLobbyStandings builds one standing per lobby, in the given lobby
// order. Every result is its own single-game record; the best record of the
// lobby is marked as the lobby winner.
func ComputeLobbyStandings(lobbies []domain.Lobby, rows []domain.ResultRow, statuses map[string]string) []domain.LobbyStanding {
	byLobby := make(map[string][]domain.ResultRow, len(lobbies))
	for _, row := range rows {
		byLobby[row.LobbyID] = append(byLobby[row.LobbyID], row)
	}

	standings := make([]domain.LobbyStanding, 0, len(lobbies))
	for _, lobby := range lobbies {
		lobbyRows := byLobby[lobby.ID]
		records := make([]domain.PlayerAggregate, 0, len(lobbyRows))
		distinct := make(map[string]struct{}, len(lobbyRows))

		for _, row := range lobbyRows {
			distinct[row.PlayerAddress] = struct{}{}
			played := row.GameStartedAt
			records = append(records, domain.PlayerAggregate{
				PlayerAddress:       row.PlayerAddress,
				TotalScore:          row.Score,
				GamesPlayed:         1,
				AverageScore:        row.Score,
				BestScore:           row.Score,
				TotalCorrectAnswers: row.CorrectAnswers,
				TotalQuestions:      row.TotalQuestions,
				Accuracy:            ratio(row.CorrectAnswers, row.TotalQuestions, 100),
				LastPlayed:          &played,
				Achievements:        []string{},
			})
		}

		sort.SliceStable(records, func(i, j int) bool {
			return records[i].TotalScore > records[j].TotalScore
		})
		if len(records) > 0 {
			records[0].Wins = 1
			records[0].WinRate = 100
			records[0].Achievements = []string{domain.AchievementLobbyWinner}
		}

		status, ok := statuses[lobby.ID]
		if !ok {
			status = domain.LobbyStatusWaiting
		}

		standings = append(standings, domain.LobbyStanding{
			LobbyID:      lobby.ID,
			LobbyName:    lobby.Name,
			Players:      records,
			TotalPlayers: len(distinct),
			CreatedAt:    lobby.CreatedAt,
			Status:       status,
		})
	}
	return standings
}

// ratio returns round(scale*num/den), or 0 when den is 0
func ratio(num, den, scale int64) int64 {
	if den == 0 {
		return 0
	}
	return int64(math.Round(float64(scale) * float64(num) / float64(den)))
}
