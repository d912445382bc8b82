package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	return connect(ctx, poolConfig, logger)
}

func connect(ctx context.Context, poolConfig *pgxpool.Config, logger *slog.Logger) (*Repository, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS lobbies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'general',
			entry_fee_wei TEXT NOT NULL DEFAULT '0',
			max_players INT NOT NULL DEFAULT 10,
			creator TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			lobby_id TEXT NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status TEXT NOT NULL DEFAULT 'in_progress'
				CHECK (status IN ('in_progress', 'completed'))
		)`,
		`CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			lobby_id TEXT NOT NULL,
			player_address TEXT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			correct_answers BIGINT NOT NULL DEFAULT 0,
			total_questions BIGINT NOT NULL DEFAULT 0,
			time_bonus BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(game_id, player_address)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lobbies_created ON lobbies(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_games_lobby_started ON games(lobby_id, started_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_games_open_per_lobby ON games(lobby_id) WHERE status = 'in_progress'`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_lobby ON game_results(lobby_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_player ON game_results(player_address)`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetLobby retrieves a lobby by ID
func (r *Repository) GetLobby(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	query := `
		SELECT id, name, category, entry_fee_wei, max_players, creator, created_at
		FROM lobbies
		WHERE id = $1
	`
	var lobby domain.Lobby
	err := r.pool.QueryRow(ctx, query, lobbyID).Scan(
		&lobby.ID,
		&lobby.Name,
		&lobby.Category,
		&lobby.EntryFeeWei,
		&lobby.MaxPlayers,
		&lobby.Creator,
		&lobby.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting lobby: %w", err)
	}
	return &lobby, nil
}

// UpsertLobby inserts a lobby; concurrent creators converge on one row
func (r *Repository) UpsertLobby(ctx context.Context, lobby domain.Lobby) error {
	query := `
		INSERT INTO lobbies (id, name, category, entry_fee_wei, max_players, creator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		lobby.ID,
		lobby.Name,
		lobby.Category,
		lobby.EntryFeeWei,
		lobby.MaxPlayers,
		lobby.Creator,
		lobby.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting lobby: %w", err)
	}
	return nil
}

// ListRecentLobbies returns the newest lobbies first
func (r *Repository) ListRecentLobbies(ctx context.Context, limit int) ([]domain.Lobby, error) {
	query := `
		SELECT id, name, category, entry_fee_wei, max_players, creator, created_at
		FROM lobbies
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing lobbies: %w", err)
	}
	defer rows.Close()

	lobbies := make([]domain.Lobby, 0, limit)
	for rows.Next() {
		var lobby domain.Lobby
		err := rows.Scan(
			&lobby.ID,
			&lobby.Name,
			&lobby.Category,
			&lobby.EntryFeeWei,
			&lobby.MaxPlayers,
			&lobby.Creator,
			&lobby.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning lobby: %w", err)
		}
		lobbies = append(lobbies, lobby)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing lobbies: %w", err)
	}
	return lobbies, nil
}

func (r *Repository) queryGame(ctx context.Context, query string, args ...any) (*domain.Game, error) {
	var game domain.Game
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&game.ID,
		&game.LobbyID,
		&game.StartedAt,
		&game.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &game, nil
}

// GetOpenGame returns the lobby's in-progress game
func (r *Repository) GetOpenGame(ctx context.Context, lobbyID string) (*domain.Game, error) {
	return r.queryGame(ctx, `
		SELECT id, lobby_id, started_at, status
		FROM games
		WHERE lobby_id = $1 AND status = 'in_progress'
		ORDER BY started_at DESC
		LIMIT 1
	`, lobbyID)
}

// GetLatestGame returns the lobby's most recently started game
func (r *Repository) GetLatestGame(ctx context.Context, lobbyID string) (*domain.Game, error) {
	return r.queryGame(ctx, `
		SELECT id, lobby_id, started_at, status
		FROM games
		WHERE lobby_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, lobbyID)
}

// CreateGame inserts an in-progress game. The partial unique index allows
// one open game per lobby; losing a race returns the winner's game.
func (r *Repository) CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error) {
	created, err := r.queryGame(ctx, `
		INSERT INTO games (id, lobby_id, started_at, status)
		VALUES ($1, $2, $3, 'in_progress')
		ON CONFLICT (lobby_id) WHERE status = 'in_progress' DO NOTHING
		RETURNING id, lobby_id, started_at, status
	`, game.ID, game.LobbyID, game.StartedAt)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("open game already exists", "lobby_id", game.LobbyID)
		return r.GetOpenGame(ctx, game.LobbyID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	return created, nil
}

// CloseOpenGames completes the lobby's in-progress games
func (r *Repository) CloseOpenGames(ctx context.Context, lobbyID string) (int64, error) {
	query := `UPDATE games SET status = 'completed' WHERE lobby_id = $1 AND status = 'in_progress'`
	result, err := r.pool.Exec(ctx, query, lobbyID)
	if err != nil {
		return 0, fmt.Errorf("closing games: %w", err)
	}
	return result.RowsAffected(), nil
}

// CloseStaleGames completes in-progress games started before the cutoff
func (r *Repository) CloseStaleGames(ctx context.Context, before time.Time) (int64, error) {
	query := `UPDATE games SET status = 'completed' WHERE status = 'in_progress' AND started_at < $1`
	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("closing stale games: %w", err)
	}
	return result.RowsAffected(), nil
}

// UpsertResults writes every row in one transaction. A resubmitted
// (game, player) pair overwrites the stored values.
func (r *Repository) UpsertResults(ctx context.Context, results []domain.GameResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO game_results (game_id, lobby_id, player_address, score, correct_answers, total_questions, time_bonus, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (game_id, player_address)
		DO UPDATE SET
			score = EXCLUDED.score,
			correct_answers = EXCLUDED.correct_answers,
			total_questions = EXCLUDED.total_questions,
			time_bonus = EXCLUDED.time_bonus,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, res := range results {
			batch.Queue(query,
				res.GameID,
				res.LobbyID,
				res.PlayerAddress,
				res.Score,
				res.CorrectAnswers,
				res.TotalQuestions,
				res.TimeBonus,
				now,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range results {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("upserting results: %w", err)
	}
	return nil
}

// ListGameResults returns a game's results, best score first
func (r *Repository) ListGameResults(ctx context.Context, gameID string) ([]domain.GameResult, error) {
	query := `
		SELECT game_id, lobby_id, player_address, score, correct_answers, total_questions, time_bonus
		FROM game_results
		WHERE game_id = $1
		ORDER BY score DESC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing game results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.GameResult, 0)
	for rows.Next() {
		var res domain.GameResult
		err := rows.Scan(
			&res.GameID,
			&res.LobbyID,
			&res.PlayerAddress,
			&res.Score,
			&res.CorrectAnswers,
			&res.TotalQuestions,
			&res.TimeBonus,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing game results: %w", err)
	}
	return results, nil
}

const resultRowColumns = `
	r.game_id, r.lobby_id, r.player_address, r.score, r.correct_answers,
	r.total_questions, r.time_bonus, g.started_at, g.status
`

// ListAllResults returns every result joined with its game
func (r *Repository) ListAllResults(ctx context.Context) ([]domain.ResultRow, error) {
	query := `
		SELECT ` + resultRowColumns + `
		FROM game_results r
		JOIN games g ON g.id = r.game_id
		ORDER BY r.id ASC
	`
	return r.queryResultRows(ctx, query)
}

// ListLobbyResults returns the results of the given lobbies joined with their games
func (r *Repository) ListLobbyResults(ctx context.Context, lobbyIDs []string) ([]domain.ResultRow, error) {
	if len(lobbyIDs) == 0 {
		return []domain.ResultRow{}, nil
	}
	query := `
		SELECT ` + resultRowColumns + `
		FROM game_results r
		JOIN games g ON g.id = r.game_id
		WHERE r.lobby_id = ANY($1)
		ORDER BY r.id ASC
	`
	return r.queryResultRows(ctx, query, lobbyIDs)
}

func (r *Repository) queryResultRows(ctx context.Context, query string, args ...any) ([]domain.ResultRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ResultRow, 0)
	for rows.Next() {
		var row domain.ResultRow
		err := rows.Scan(
			&row.GameID,
			&row.LobbyID,
			&row.PlayerAddress,
			&row.Score,
			&row.CorrectAnswers,
			&row.TotalQuestions,
			&row.TimeBonus,
			&row.GameStartedAt,
			&row.GameStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	return out, nil
}
