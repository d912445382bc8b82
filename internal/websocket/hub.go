package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/arena-gamesync/internal/domain"
	"github.com/arena-gamesync/internal/metrics"
)

// Message types
const (
	MessageTypeGameStart      = "game_start"
	MessageTypeGameCleared    = "game_cleared"
	MessageTypeResultsUpdated = "results_updated"
	MessageTypeSubscribe      = "subscribe"
	MessageTypeUnsubscribe    = "unsubscribe"
	MessageTypeSubscribed     = "subscribed"
	MessageTypeUnsubscribed   = "unsubscribed"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeError          = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	LobbyID   string      `json:"lobby_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ResultsUpdate is pushed after a result batch is recorded
type ResultsUpdate struct {
	GameID  string              `json:"game_id"`
	Results []domain.GameResult `json:"results"`
}

// Hub tracks connected clients and their lobby subscriptions
type Hub struct {
	// Subscribed clients by lobby ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu      sync.RWMutex
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	lobbyID string
}

// NewHub creates a new Hub
func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		metrics:     m,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run processes hub events until Stop is called
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			n := len(h.allClients)
			h.mu.Unlock()
			h.metrics.SetWebsocketConnections(n)
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for lobbyID, clients := range h.clients {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.clients, lobbyID)
					}
				}
				close(client.send)
			}
			n := len(h.allClients)
			h.mu.Unlock()
			h.metrics.SetWebsocketConnections(n)
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.allClients[req.client]; ok {
				if _, ok := h.clients[req.lobbyID]; !ok {
					h.clients[req.lobbyID] = make(map[*Client]bool)
				}
				h.clients[req.lobbyID][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "lobby_id", req.lobbyID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.lobbyID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.lobbyID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "lobby_id", req.lobbyID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the lobby's subscribers
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[message.LobbyID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", message.Type, "lobby_id", message.LobbyID)
	}
}

// GameStarted notifies lobby subscribers of a new countdown
func (h *Hub) GameStarted(lobbyID string, start domain.CountdownStart) {
	h.publish(&Message{
		Type:      MessageTypeGameStart,
		LobbyID:   lobbyID,
		Data:      start,
		Timestamp: time.Now(),
	})
}

// GameCleared notifies lobby subscribers that the countdown was removed
func (h *Hub) GameCleared(lobbyID string) {
	h.publish(&Message{
		Type:      MessageTypeGameCleared,
		LobbyID:   lobbyID,
		Timestamp: time.Now(),
	})
}

// ResultsUpdated pushes a freshly recorded result batch
func (h *Hub) ResultsUpdated(lobbyID, gameID string, results []domain.GameResult) {
	h.publish(&Message{
		Type:      MessageTypeResultsUpdated,
		LobbyID:   lobbyID,
		Data:      ResultsUpdate{GameID: gameID, Results: results},
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a lobby subscription
func (h *Hub) Subscribe(client *Client, lobbyID string) {
	h.subscribe <- &subscriptionRequest{client: client, lobbyID: lobbyID}
}

// Unsubscribe removes a client from a lobby subscription
func (h *Hub) Unsubscribe(client *Client, lobbyID string) {
	h.unsubscribe <- &subscriptionRequest{client: client, lobbyID: lobbyID}
}

// GetSubscriberCount returns the number of subscribers for a lobby
func (h *Hub) GetSubscriberCount(lobbyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[lobbyID])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// GetLobbyCount returns the number of lobbies with at least one subscriber
func (h *Hub) GetLobbyCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
