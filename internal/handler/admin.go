package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CloseLobbyGame completes the lobby's open game so the next submission
// starts a new one
func (h *Handler) CloseLobbyGame(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")

	closed, err := h.scores.CloseLobbyGame(r.Context(), lobbyID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"lobby_id": lobbyID,
		"closed":   closed,
	})
}
