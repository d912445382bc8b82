package domain

import "time"

// Achievement tags
const (
	AchievementQuizMaster      = "Quiz Master"
	AchievementArenaChampion   = "Arena Champion"
	AchievementKnowledgeSeeker = "Knowledge Seeker"
	AchievementAccuracyMaster  = "Accuracy Master"
	AchievementLobbyWinner     = "Lobby Winner"
)

// Fixed thresholds used by the global aggregate
const (
	// GlobalWinScore approximates "won that game": any single result at or above it counts as a win.
	GlobalWinScore        = 800
	QuizMasterBestScore   = 950
	ArenaChampionWins     = 5
	KnowledgeSeekerGames  = 10
	AccuracyMasterPercent = 90
)

// DefaultLobbyLeaderboardLimit bounds how many recent lobbies are returned
const DefaultLobbyLeaderboardLimit = 10

// PlayerAggregate holds derived per-player statistics. It is never persisted.
type PlayerAggregate struct {
	PlayerAddress       string     `json:"player_address"`
	TotalScore          int64      `json:"totalScore"`
	GamesPlayed         int64      `json:"gamesPlayed"`
	Wins                int64      `json:"wins"`
	WinRate             int64      `json:"winRate"`
	AverageScore        int64      `json:"averageScore"`
	BestScore           int64      `json:"bestScore"`
	TotalCorrectAnswers int64      `json:"totalCorrectAnswers"`
	TotalQuestions      int64      `json:"totalQuestions"`
	Accuracy            int64      `json:"accuracy"`
	LastPlayed          *time.Time `json:"lastPlayed"`
	Achievements        []string   `json:"achievements"`
}

// LobbyStanding is one lobby's "who won this round" view
type LobbyStanding struct {
	LobbyID      string            `json:"lobby_id"`
	LobbyName    string            `json:"lobby_name"`
	Players      []PlayerAggregate `json:"players"`
	TotalPlayers int               `json:"total_players"`
	CreatedAt    time.Time         `json:"created_at"`
	Status       string            `json:"status"`
}

// LobbyStatusWaiting is reported for lobbies that have no games yet
const LobbyStatusWaiting = "waiting"

// Achievement is an entry of the static achievements catalog
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      string `json:"rarity"`
	Unlocked    bool   `json:"unlocked"`
}

// AchievementCatalog lists every achievement the leaderboards can award
func AchievementCatalog() []Achievement {
	return []Achievement{
		{
			ID:          "quiz-master",
			Name:        AchievementQuizMaster,
			Description: "Score 950 or more in a single game",
			Icon:        "🧠",
			Rarity:      "legendary",
		},
		{
			ID:          "arena-champion",
			Name:        AchievementArenaChampion,
			Description: "Win 5 games",
			Icon:        "🏆",
			Rarity:      "epic",
		},
		{
			ID:          "knowledge-seeker",
			Name:        AchievementKnowledgeSeeker,
			Description: "Play 10 games",
			Icon:        "📚",
			Rarity:      "rare",
		},
		{
			ID:          "accuracy-master",
			Name:        AchievementAccuracyMaster,
			Description: "Keep 90% accuracy or better across all games",
			Icon:        "🎯",
			Rarity:      "epic",
		},
		{
			ID:          "lobby-winner",
			Name:        AchievementLobbyWinner,
			Description: "Finish first in a lobby",
			Icon:        "🥇",
			Rarity:      "common",
		},
	}
}
