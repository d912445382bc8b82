package handler

import (
	"net/http"
	"strconv"

	"github.com/arena-gamesync/internal/domain"
)

// GlobalLeaderboard returns every player's aggregate, best total first
func (h *Handler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	players, err := h.leaderboard.GlobalLeaderboard(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]domain.PlayerAggregate{"players": players})
}

// LobbyLeaderboard returns standings for the most recent lobbies
func (h *Handler) LobbyLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	lobbies, err := h.leaderboard.LobbyLeaderboard(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]domain.LobbyStanding{"lobbies": lobbies})
}

// Achievements returns the static catalog
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]domain.Achievement{"achievements": h.leaderboard.Achievements()})
}
