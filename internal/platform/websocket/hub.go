// Package websocket delivers consultation events to connected clients.
// It implements a hub-and-spoke pattern where a client subscribes to the
// consultations it participates in and receives events broadcast to them.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event is a real-time notification scoped to one consultation.
type Event struct {
	Type           string          `json:"type"`
	ConsultationID string          `json:"consultation_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// ClientMessage represents an inbound message from a WebSocket client.
type ClientMessage struct {
	Action        string   `json:"action"`
	Consultations []string `json:"consultations"`
}

// EventPublisher defines the interface for publishing events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection.
type Client struct {
	ID            string
	Consultations []string
	Send          chan []byte
	hub           *Hub
	conn          Conn
}

// Hub is the central connection manager that tracks clients and their
// consultation subscriptions. All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // consultation id -> set of clients
	all     map[*Client]struct{}            // all connected clients
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub and subscribes it to its initial consultations.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, id := range client.Consultations {
		if h.clients[id] == nil {
			h.clients[id] = make(map[*Client]struct{})
		}
		h.clients[id][client] = struct{}{}
	}
}

// Unregister removes a client from the hub, all subscriptions, and closes
// the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, id := range client.Consultations {
		if subscribers, ok := h.clients[id]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, id)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe dynamically adds consultations to an already-registered client.
func (h *Hub) Subscribe(client *Client, consultations []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range consultations {
		if h.clients[id] == nil {
			h.clients[id] = make(map[*Client]struct{})
		}
		h.clients[id][client] = struct{}{}
	}
	client.Consultations = append(client.Consultations, consultations...)
}

// Unsubscribe dynamically removes consultations from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, consultations []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(consultations))
	for _, id := range consultations {
		removeSet[id] = struct{}{}
	}

	for _, id := range consultations {
		if subscribers, ok := h.clients[id]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, id)
			}
		}
	}

	remaining := make([]string, 0, len(client.Consultations))
	for _, id := range client.Consultations {
		if _, rm := removeSet[id]; !rm {
			remaining = append(remaining, id)
		}
	}
	client.Consultations = remaining
}

// ProcessMessage handles an inbound ClientMessage, dispatching to Subscribe
// or Unsubscribe as appropriate.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Consultations)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Consultations)
	}
}

// Broadcast sends an event to all clients subscribed to the event's consultation.
func (h *Hub) Broadcast(consultationID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.clients[consultationID]
	if !ok {
		return
	}

	for client := range subscribers {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// Publish implements the EventPublisher interface by broadcasting the event
// to subscribers of the event's consultation.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.ConsultationID, event)
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// SubscriberCount returns the number of clients subscribed to a consultation.
func (h *Hub) SubscriberCount(consultationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[consultationID])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// WebSocketHandler handles HTTP-to-WebSocket upgrades and message routing.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a new handler bound to the given Hub.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wsh *WebSocketHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the hub, and starts read/write pumps.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:            uuid.New().String(),
		Consultations: []string{},
		Send:          make(chan []byte, 256),
		hub:           wsh.hub,
		conn:          &gorillaConnAdapter{ws},
	}

	wsh.hub.Register(client)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)

	return nil
}

// readPump reads messages from the WebSocket connection and processes them.
func (wsh *WebSocketHandler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		wsh.hub.ProcessMessage(client, msg)
	}
}

// writePump writes messages from the Send channel to the WebSocket connection.
func (wsh *WebSocketHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
