package handler

import (
	"net/http"

	"github.com/arena-gamesync/internal/domain"
)

type gameStartResponse struct {
	Success       bool   `json:"success"`
	Action        string `json:"action"`
	GameStartTime int64  `json:"gameStartTime"`
	Countdown     int    `json:"countdown"`
}

type gameStatusResponse struct {
	Success        bool  `json:"success"`
	GameStartTime  int64 `json:"gameStartTime"`
	TimeUntilStart int64 `json:"timeUntilStart"`
	Countdown      int64 `json:"countdown"`
	HasStarted     bool  `json:"hasStarted"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const msgGameNotStarted = "Game not started yet"

// PostGameSync dispatches start_game, get_game_start and clear_game
func (h *Handler) PostGameSync(w http.ResponseWriter, r *http.Request) {
	var req domain.GameSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Action != domain.ActionGetGameStart && !h.limiter.Allow(r) {
		writeRateLimited(w)
		return
	}

	lobbyID := req.LobbyID.String()
	switch req.Action {
	case domain.ActionStartGame:
		start, err := h.gameSync.StartGame(r.Context(), lobbyID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, gameStartResponse{
			Success:       true,
			Action:        string(req.Action),
			GameStartTime: start.StartAtMs,
			Countdown:     start.CountdownSeconds,
		})

	case domain.ActionGetGameStart:
		h.writeGameStatus(w, r, lobbyID)

	case domain.ActionClearGame:
		if err := h.gameSync.ClearGame(r.Context(), lobbyID); err != nil {
			h.handleError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Game cleared"})
	}
}

// GetGameSync reports the countdown for ?lobbyId=
func (h *Handler) GetGameSync(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobbyId")
	if lobbyID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingLobbyID)
		return
	}
	h.writeGameStatus(w, r, lobbyID)
}

func (h *Handler) writeGameStatus(w http.ResponseWriter, r *http.Request, lobbyID string) {
	status, err := h.gameSync.GetGameStart(r.Context(), lobbyID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if !status.Found {
		h.writeJSON(w, http.StatusOK, messageResponse{Success: false, Message: msgGameNotStarted})
		return
	}
	h.writeJSON(w, http.StatusOK, gameStatusResponse{
		Success:        true,
		GameStartTime:  status.StartAtMs,
		TimeUntilStart: status.RemainingMs,
		Countdown:      status.SecondsRemaining(),
		HasStarted:     status.HasStarted,
	})
}
