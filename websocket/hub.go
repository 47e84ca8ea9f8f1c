// Package websocket carries the live event stream: telephony events are
// fanned out to the connected clients of the owning account.
package websocket

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type event struct {
	accountID string
	topic     string
	payload   []byte
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	publish    chan event
	mu         sync.RWMutex
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	UserID         string
	AccountID      string
	SessionID      string
	MessageHandler func(*Client, []byte) // Function to handle incoming messages
	topics         []string
	mu             sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan event, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Stream client registered", "user_id", client.UserID, "account_id", client.AccountID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Stream client unregistered", "user_id", client.UserID, "session_id", client.SessionID)

		case ev := <-h.publish:
			// Full lock: the sweep evicts clients whose send queue is
			// saturated, which mutates the map.
			h.mu.Lock()
			for client := range h.clients {
				if client.AccountID != ev.accountID || !client.wantsTopic(ev.topic) {
					continue
				}
				select {
				case client.Send <- ev.payload:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for every client of the account subscribed to
// the topic. It never blocks the caller; bursts beyond the queue are
// dropped.
func (h *Hub) Publish(accountID, topic string, payload []byte) {
	select {
	case h.publish <- event{accountID: accountID, topic: topic, payload: payload}:
	default:
		slog.Warn("Stream publish queue full, dropping event", "account_id", accountID, "topic", topic)
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, accountID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		UserID:    userID,
		AccountID: accountID,
		SessionID: uuid.New().String(),
	}

	h.register <- client
	return client
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe restricts the client to the given topics. Patterns may end
// in ".*" to match a whole family, e.g. "call.*". An empty list means
// all topics.
func (c *Client) Subscribe(topics []string) {
	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()
}

func (c *Client) wantsTopic(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if pattern == "*" || pattern == topic {
			return true
		}
		if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(topic, pattern[:len(pattern)-1]) {
			return true
		}
	}
	return false
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(32 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			break
		}

		if c.MessageHandler != nil {
			go c.MessageHandler(c, messageBytes)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
