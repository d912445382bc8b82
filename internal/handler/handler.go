package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arena-gamesync/internal/auth"
	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
	"github.com/arena-gamesync/internal/service"
	"github.com/arena-gamesync/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies bundles everything the HTTP layer calls into
type Dependencies struct {
	GameSync    *service.GameSyncService
	Scores      *service.ScoreService
	Leaderboard *service.LeaderboardService
	Hub         *websocket.Hub
	Verifier    *auth.Verifier
	Metrics     *metrics.Metrics
	Checks      map[string]Pinger
}

// Handler provides HTTP handlers for the game sync API
type Handler struct {
	gameSync    *service.GameSyncService
	scores      *service.ScoreService
	leaderboard *service.LeaderboardService
	hub         *websocket.Hub
	verifier    *auth.Verifier
	metrics     *metrics.Metrics
	checks      map[string]Pinger
	limiter     *IPRateLimiter
	metricsCfg  config.MetricsConfig
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies, cfg *config.Config, logger *slog.Logger) *Handler {
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}
	return &Handler{
		gameSync:    deps.GameSync,
		scores:      deps.Scores,
		leaderboard: deps.Leaderboard,
		hub:         deps.Hub,
		verifier:    verifier,
		metrics:     deps.Metrics,
		checks:      deps.Checks,
		limiter:     NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		metricsCfg:  cfg.Metrics,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(h.metricsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metricsCfg.Enabled && h.metrics != nil {
		r.Handle(h.metricsCfg.Path, h.metrics.Handler())
	}

	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		limited := RateLimitMiddleware(h.limiter)

		// PostGameSync limits start_game and clear_game only
		r.Post("/game-sync", h.PostGameSync)
		r.Get("/game-sync", h.GetGameSync)

		r.With(limited).Post("/scores/upsert", h.UpsertScores)
		r.Get("/scores/by-lobby", h.ScoresByLobby)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/global", h.GlobalLeaderboard)
			r.Get("/lobbies", h.LobbyLeaderboard)
			r.Get("/achievements", h.Achievements)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/lobbies/{lobbyID}/close", h.CloseLobbyGame)
		})

		if h.hub != nil {
			r.Get("/ws/stats", h.GetWebSocketStats)
		}
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// handleError maps a service error onto a response. Storage faults carry the
// failed operation and the store's message; anything unclassified becomes a
// generic 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var storageErr *domain.StorageError
	switch {
	case domain.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.As(err, &storageErr):
		h.logger.Error("storage failure",
			"op", storageErr.Op,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", storageErr.Err,
		)
		h.writeJSON(w, http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   storageErr.Op,
			Details: storageErr.Err.Error(),
		})
	default:
		h.logger.Error("unexpected error",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":  h.hub.GetTotalConnections(),
		"subscribed_lobbies": h.hub.GetLobbyCount(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    status,
			Error:   "not ready",
		})
		return
	}
	status["status"] = "ready"
	h.writeSuccess(w, status)
}
