package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// Manager tracks connected websocket clients and fans order events out to
// them. Clients that fail a write are dropped.
type Manager struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(w, r, nil)
}

func (m *Manager) Add(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn] = true
}

func (m *Manager) Remove(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, conn)
	conn.Close()
}

// Broadcast sends the event to every connected client.
func (m *Manager) Broadcast(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for conn := range m.conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(v); err != nil {
			m.logger.Debug("Dropping websocket client", "error", err)
			delete(m.conns, conn)
			conn.Close()
		}
	}
}

// WebSocketHandler exposes the order event stream so the wizard and the
// admin panel refresh on push instead of polling.
type WebSocketHandler struct {
	logger  *slog.Logger
	manager *Manager
}

func NewWebSocketHandler(logger *slog.Logger, manager *Manager) *WebSocketHandler {
	return &WebSocketHandler{logger: logger, manager: manager}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/orders", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.manager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}

	h.logger.Info("New WebSocket connection", "remote", conn.RemoteAddr().String())
	h.manager.Add(conn)

	// Keep the connection open until the client goes away; we never expect
	// inbound messages.
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			h.logger.Debug("WebSocket connection closed", "error", readErr)
			h.manager.Remove(conn)
			return
		}
	}
}
