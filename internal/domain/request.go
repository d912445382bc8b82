package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// LobbyID accepts both JSON strings and numbers
type LobbyID string

func (id *LobbyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LobbyID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidRequest
	}
	*id = LobbyID(n.String())
	return nil
}

// String returns the identifier as stored
func (id LobbyID) String() string {
	return string(id)
}

// Address is a wallet address, lower-cased when decoded from text
type Address string

func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Address(strings.ToLower(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidRequest
		}
		*a = Address(n.String())
	}
	return nil
}

// Number is a lenient numeric field. Anything that is not a finite number or a
// numeric string within the int64 range decodes to zero instead of failing the
// request.
type Number int64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(parseLenient(bytes.TrimSpace(data)))
	return nil
}

func parseLenient(data []byte) int64 {
	if len(data) == 0 {
		return 0
	}
	var raw string
	switch data[0] {
	case '"':
		if err := json.Unmarshal(data, &raw); err != nil {
			return 0
		}
		raw = strings.TrimSpace(raw)
	case 't':
		if bytes.Equal(data, []byte("true")) {
			return 1
		}
		return 0
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		raw = string(data)
	default:
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Round(f)
	if f >= 1<<63 || f < -(1<<63) {
		return 0
	}
	return int64(f)
}

// GameSyncRequest is the body of POST game-sync
type GameSyncRequest struct {
	LobbyID LobbyID        `json:"lobbyId"`
	Action  GameSyncAction `json:"action"`
}

// Validate checks required fields
func (r GameSyncRequest) Validate() error {
	if r.LobbyID == "" {
		return ErrMissingLobbyID
	}
	if !r.Action.Valid() {
		return ErrInvalidAction
	}
	return nil
}

// ResultInput is one submitted result row before normalization
type ResultInput struct {
	PlayerAddress  Address `json:"player_address"`
	Score          Number  `json:"score"`
	CorrectAnswers Number  `json:"correct_answers"`
	TotalQuestions Number  `json:"total_questions"`
	TimeBonus      Number  `json:"time_bonus"`
}

// SubmitResultsRequest is the body of POST scores/upsert and of Kafka result messages
type SubmitResultsRequest struct {
	LobbyID LobbyID       `json:"lobbyId"`
	Results []ResultInput `json:"results"`
}

// Validate checks the request before any storage access
func (r SubmitResultsRequest) Validate() error {
	if r.LobbyID == "" {
		return ErrMissingLobbyID
	}
	if len(r.Results) == 0 {
		return ErrInvalidResults
	}
	for _, res := range r.Results {
		if res.PlayerAddress == "" {
			return ErrMissingPlayerAddress
		}
	}
	return nil
}

// Normalize produces ledger rows for gameID. When the same address appears
// more than once the last row wins, keeping the first row's position.
func (r SubmitResultsRequest) Normalize(gameID string) []GameResult {
	rows := make([]GameResult, 0, len(r.Results))
	index := make(map[string]int, len(r.Results))
	for _, res := range r.Results {
		row := GameResult{
			GameID:         gameID,
			LobbyID:        r.LobbyID.String(),
			PlayerAddress:  string(res.PlayerAddress),
			Score:          int64(res.Score),
			CorrectAnswers: int64(res.CorrectAnswers),
			TotalQuestions: int64(res.TotalQuestions),
			TimeBonus:      int64(res.TimeBonus),
		}
		if i, ok := index[row.PlayerAddress]; ok {
			rows[i] = row
			continue
		}
		index[row.PlayerAddress] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// SubmitResultsResponse is returned after a successful upsert
type SubmitResultsResponse struct {
	OK       bool   `json:"ok"`
	GameID   string `json:"gameId"`
	Inserted int    `json:"inserted"`
}
