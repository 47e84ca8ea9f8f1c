package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/airies-ai/backend/events"
	"github.com/airies-ai/backend/metrics"
	ws "github.com/airies-ai/backend/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// safeSend tries to send a message to the client channel, recovers if closed
func safeSend(ch chan<- []byte, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Channel is closed, ignore
		}
	}()
	select {
	case ch <- msg:
		// sent
	default:
		// channel full or closed
	}
}

// StreamHandler upgrades authenticated clients onto the event stream.
// Browsers cannot set headers on WebSocket dials, so auth rides in a
// short-lived token minted by POST /telephony/stream-token.
type StreamHandler struct {
	hub      *ws.Hub
	auth     *AuthService
	upgrader websocket.Upgrader
}

func NewStreamHandler(hub *ws.Hub, auth *AuthService, allowedOrigins string) *StreamHandler {
	return &StreamHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigins)
			},
		},
	}
}

// checkOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func checkOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	// Parse allowed origins (comma-separated list)
	allowedOrigins := strings.Split(allowedOriginsStr, ",")

	// Trim whitespace from origins
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	// Check if origin is in allowed list
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/telephony/stream", h.HandleStream)
}

func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.auth.VerifyStreamToken(r.Context(), token)
	if err != nil {
		slog.Warn("Stream token rejected", "error", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "user_id", user.ID)
		return
	}

	client := h.hub.RegisterClient(conn, user.ID, user.AccountID)
	client.MessageHandler = h.HandleStreamMessage

	hello, err := json.Marshal(map[string]string{
		"type":       "connected",
		"session_id": client.SessionID,
	})
	if err == nil {
		safeSend(client.Send, hello)
	}

	metrics.Global().StreamClients.Inc()
	defer metrics.Global().StreamClients.Dec()

	go client.WritePump()
	client.ReadPump()
}

// HandleStreamMessage processes the small client-to-server control
// protocol: topic subscriptions and keepalive pings.
func (h *StreamHandler) HandleStreamMessage(client *ws.Client, messageBytes []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		slog.Error("Failed to unmarshal stream message", "error", err, "session_id", client.SessionID)
		return
	}

	switch msg.Type {
	case "subscribe":
		client.Subscribe(msg.Topics)
		reply, err := json.Marshal(map[string]interface{}{
			"type":   "subscribed",
			"topics": msg.Topics,
		})
		if err == nil {
			safeSend(client.Send, reply)
		}
	case "ping":
		reply, err := json.Marshal(map[string]string{"type": "pong"})
		if err == nil {
			safeSend(client.Send, reply)
		}
	default:
		slog.Warn("Unknown stream message type", "type", msg.Type, "session_id", client.SessionID)
	}
}

// StreamPublisher mirrors domain events onto the WebSocket hub so that
// connected dashboards see them without a broker round trip.
type StreamPublisher struct {
	hub *ws.Hub
}

func NewStreamPublisher(hub *ws.Hub) *StreamPublisher {
	return &StreamPublisher{hub: hub}
}

func (p *StreamPublisher) Publish(ctx context.Context, key string, msg events.Envelope) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.hub.Publish(msg.Meta.AccountID, key, payload)
	return nil
}

func (p *StreamPublisher) Close() error {
	return nil
}
