package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/longregen/cogito/internal/adapters/http/middleware"
	"github.com/longregen/cogito/internal/ports"
)

const eventWriteTimeout = 10 * time.Second

// EventBroadcaster fans turn lifecycle events out to WebSocket subscribers.
// It implements ports.TurnNotifier; broadcasting happens off the pipeline
// goroutine so a slow client cannot stall a turn.
type EventBroadcaster struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]struct{}
}

func NewEventBroadcaster(allowedOrigins []string, logger *slog.Logger) *EventBroadcaster {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &EventBroadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		logger:      logger,
		connections: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// HandleEvents upgrades the connection and streams the caller's turn events
// until the client disconnects.
// GET /api/v1/events
func (b *EventBroadcaster) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondError(w, r, "invalid_request", "user identity is required", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	b.subscribe(userID, conn)
	defer func() {
		b.unsubscribe(userID, conn)
		conn.Close()
	}()

	// Drain the read side to observe close frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NotifyTurnEvent implements ports.TurnNotifier.
func (b *EventBroadcaster) NotifyTurnEvent(event ports.TurnEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode turn event", "error", err)
		return
	}
	go b.broadcast(event.UserID, data)
}

// SubscriberCount reports connected clients for one user.
func (b *EventBroadcaster) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections[userID])
}

func (b *EventBroadcaster) subscribe(userID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connections[userID] == nil {
		b.connections[userID] = make(map[*websocket.Conn]struct{})
	}
	b.connections[userID][conn] = struct{}{}
	b.logger.Debug("event subscriber added", "user_id", userID, "total", len(b.connections[userID]))
}

func (b *EventBroadcaster) unsubscribe(userID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if conns, ok := b.connections[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, userID)
		}
	}
}

func (b *EventBroadcaster) broadcast(userID string, data []byte) {
	b.mu.RLock()
	conns := b.connections[userID]
	targets := make([]*websocket.Conn, 0, len(conns))
	for conn := range conns {
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	for _, conn := range targets {
		conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Debug("dropping event subscriber", "user_id", userID, "error", err)
			b.unsubscribe(userID, conn)
			conn.Close()
		}
	}
}
