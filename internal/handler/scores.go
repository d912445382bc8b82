package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
)

type lobbyResultsResponse struct {
	GameID  string              `json:"gameId"`
	Results []domain.GameResult `json:"results"`
}

// UpsertScores records a batch of results for a lobby's open game
func (h *Handler) UpsertScores(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitResultsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "results" {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidResults)
			return
		}
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.scores.SubmitResults(r.Context(), req, metrics.SourceHTTP)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ScoresByLobby returns the latest game's results for ?lobbyId=
func (h *Handler) ScoresByLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobbyId")

	gameID, results, err := h.scores.ResultsByLobby(r.Context(), lobbyID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lobbyResultsResponse{GameID: gameID, Results: results})
}
