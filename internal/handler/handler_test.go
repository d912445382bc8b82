package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arena-gamesync/internal/auth"
	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/countdown"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/memstore"
	"github.com/arena-gamesync/internal/metrics"
	"github.com/arena-gamesync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminSecret = "test-admin-secret"

type testServer struct {
	router   http.Handler
	repo     service.Repository
	gameSync *service.GameSyncService
	nowMs    int64
}

type brokenLobbyRepo struct {
	*memstore.Store
}

func (brokenLobbyRepo) GetLobby(context.Context, string) (*domain.Lobby, error) {
	return nil, errors.New("connection refused")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, repo service.Repository, mutate func(*config.Config)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	if mutate != nil {
		mutate(cfg)
	}

	if repo == nil {
		repo = memstore.New()
	}
	m := metrics.New()

	ts := &testServer{repo: repo, nowMs: 1000}
	ts.gameSync = service.NewGameSyncService(countdown.NewMemoryStore(), repo, nil, m, logger)
	ts.gameSync.SetClock(func() time.Time { return time.UnixMilli(ts.nowMs) })

	h := NewHandler(Dependencies{
		GameSync:    ts.gameSync,
		Scores:      service.NewScoreService(repo, nil, m, logger),
		Leaderboard: service.NewLeaderboardService(repo, &cfg.Leaderboard, m, logger),
		Verifier:    auth.NewVerifier(adminSecret),
		Metrics:     m,
		Checks:      map[string]Pinger{"storage": repo},
	}, cfg, logger)
	ts.router = h.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestGameSyncFlow(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec, body := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"start_game"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "start_game", body["action"])
	assert.Equal(t, float64(11000), body["gameStartTime"])
	assert.Equal(t, float64(10), body["countdown"])

	rec, body = ts.do(t, http.MethodGet, "/api/game-sync?lobbyId=L1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(11000), body["gameStartTime"])
	assert.Equal(t, float64(10000), body["timeUntilStart"])
	assert.Equal(t, float64(10), body["countdown"])
	assert.Equal(t, false, body["hasStarted"])

	ts.nowMs = 11001
	_, body = ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"get_game_start"}`)
	assert.Equal(t, float64(0), body["timeUntilStart"])
	assert.Equal(t, float64(0), body["countdown"])
	assert.Equal(t, true, body["hasStarted"])

	rec, body = ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"clear_game"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = ts.do(t, http.MethodGet, "/api/game-sync?lobbyId=L1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Game not started yet", body["message"])
}

func TestGameSyncNumericLobbyID(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec, _ := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":42,"action":"start_game"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, body := ts.do(t, http.MethodGet, "/api/game-sync?lobbyId=42", "")
	assert.Equal(t, true, body["success"])
}

func TestGameSyncClientErrors(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   string
	}{
		{"missing lobby", http.MethodPost, "/api/game-sync", `{"action":"start_game"}`, domain.ErrMissingLobbyID.Error()},
		{"unknown action", http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"explode"}`, domain.ErrInvalidAction.Error()},
		{"malformed body", http.MethodPost, "/api/game-sync", `{"lobbyId":`, domain.ErrInvalidRequest.Error()},
		{"missing query", http.MethodGet, "/api/game-sync", "", domain.ErrMissingLobbyID.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestScoresUpsertAndByLobby(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec, body := ts.do(t, http.MethodPost, "/api/scores/upsert", `{"lobbyId":"lobby-9","results":[
		{"player_address":"0xAA","score":900,"correct_answers":9,"total_questions":10,"time_bonus":50},
		{"player_address":"0xBB","score":"450","correct_answers":4,"total_questions":10}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(2), body["inserted"])
	gameID, _ := body["gameId"].(string)
	require.NotEmpty(t, gameID)

	rec, body = ts.do(t, http.MethodGet, "/api/scores/by-lobby?lobbyId=lobby-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gameID, body["gameId"])
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "0xaa", first["player_address"])
	assert.Equal(t, float64(900), first["score"])

	rec, _ = ts.do(t, http.MethodGet, "/api/scores/by-lobby?lobbyId=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/scores/by-lobby", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoresUpsertRejectsInvalidPayloads(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing lobby", `{"results":[{"player_address":"0xaa"}]}`, domain.ErrMissingLobbyID.Error()},
		{"empty results", `{"lobbyId":"L","results":[]}`, domain.ErrInvalidResults.Error()},
		{"results not an array", `{"lobbyId":"L","results":"nope"}`, domain.ErrInvalidResults.Error()},
		{"missing address", `{"lobbyId":"L","results":[{"score":5}]}`, domain.ErrMissingPlayerAddress.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodPost, "/api/scores/upsert", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	rows, err := ts.repo.ListAllResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScoresUpsertStorageFailure(t *testing.T) {
	ts := newTestServer(t, brokenLobbyRepo{Store: memstore.New()}, nil)

	rec, body := ts.do(t, http.MethodPost, "/api/scores/upsert", `{"lobbyId":"L","results":[{"player_address":"0xaa","score":1}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to create lobby/game", body["error"])
	assert.Equal(t, "connection refused", body["details"])
}

func TestLeaderboardEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec, body := ts.do(t, http.MethodGet, "/api/leaderboard/global", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, body["players"])

	ts.do(t, http.MethodPost, "/api/scores/upsert", `{"lobbyId":"lobby-9","results":[
		{"player_address":"0xAA","score":900,"correct_answers":9,"total_questions":10,"time_bonus":50}
	]}`)

	_, body = ts.do(t, http.MethodGet, "/api/leaderboard/global", "")
	players := body["players"].([]interface{})
	require.Len(t, players, 1)
	p := players[0].(map[string]interface{})
	assert.Equal(t, "0xaa", p["player_address"])
	assert.Equal(t, float64(900), p["totalScore"])
	assert.Equal(t, float64(1), p["gamesPlayed"])
	assert.Equal(t, float64(900), p["bestScore"])
	assert.Equal(t, float64(1), p["wins"])
	assert.Equal(t, float64(90), p["accuracy"])

	rec, body = ts.do(t, http.MethodGet, "/api/leaderboard/lobbies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lobbies := body["lobbies"].([]interface{})
	require.Len(t, lobbies, 1)
	lobby := lobbies[0].(map[string]interface{})
	assert.Equal(t, "lobby-9", lobby["lobby_id"])
	assert.Equal(t, "Lobby lobby-9", lobby["lobby_name"])
	assert.Equal(t, float64(1), lobby["total_players"])
	assert.Equal(t, "in_progress", lobby["status"])
	winner := lobby["players"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"Lobby Winner"}, winner["achievements"])

	rec, body = ts.do(t, http.MethodGet, "/api/leaderboard/achievements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["achievements"], 5)
}

func TestAdminCloseRequiresBearer(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.do(t, http.MethodPost, "/api/scores/upsert", `{"lobbyId":"L","results":[{"player_address":"0xaa","score":1}]}`)

	rec, body := ts.do(t, http.MethodPost, "/api/admin/lobbies/L/close", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrUnauthorized.Error(), body["error"])

	rec, _ = ts.do(t, http.MethodPost, "/api/admin/lobbies/L/close", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/admin/lobbies/L/close", "", "Authorization", "Bearer "+adminSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["closed"])

	token, err := auth.NewVerifier(adminSecret).Mint("ops", time.Hour)
	require.NoError(t, err)
	rec, body = ts.do(t, http.MethodPost, "/api/admin/lobbies/L/close", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["closed"])

	// the next submission opens a fresh game
	_, body = ts.do(t, http.MethodPost, "/api/scores/upsert", `{"lobbyId":"L","results":[{"player_address":"0xaa","score":2}]}`)
	assert.Equal(t, true, body["ok"])
}

func TestRateLimitOnWrites(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})

	rec, _ := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"start_game"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"start_game"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.ErrRateLimited.Error(), body["error"])

	rec, _ = ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"clear_game"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	rec, _ = ts.do(t, http.MethodGet, "/api/game-sync?lobbyId=L1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCountdownPollingIsNotRateLimited(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})

	rec, _ := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"start_game"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 10; i++ {
		rec, body := ts.do(t, http.MethodPost, "/api/game-sync", `{"lobbyId":"L1","action":"get_game_start"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
	}
}

func TestOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, _ = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.do(t, http.MethodGet, "/api/leaderboard/achievements", "")
	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/leaderboard/achievements"`)

	rec, _ = ts.do(t, http.MethodOptions, "/api/scores/upsert", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestReadyReportsFailingDependency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	repo := memstore.New()

	h := NewHandler(Dependencies{
		Leaderboard: service.NewLeaderboardService(repo, &cfg.Leaderboard, nil, logger),
		Checks: map[string]Pinger{
			"storage": repo,
			"redis":   pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		},
	}, cfg, logger)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, map[string]interface{}{"storage": "ok", "redis": "unavailable"}, body.Data)
}
