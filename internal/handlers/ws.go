package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventTodoCreated = "todo_created"
	EventTodoUpdated = "todo_updated"
	EventTodoDeleted = "todo_deleted"
	EventTodosBatch  = "todos_batch"
)

// Event is pushed to every live connection of the owner who made a change.
type Event struct {
	Name   string        `json:"event"`
	TodoID int64         `json:"todo_id,omitempty"`
	Todo   *todoResponse `json:"todo,omitempty"`
	Action string        `json:"action,omitempty"`
	IDs    []int64       `json:"ids,omitempty"`
	Count  int           `json:"count,omitempty"`
}

// WSHub tracks websocket connections per owner.
type WSHub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

func (h *WSHub) register(owner uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[owner] == nil {
		h.connections[owner] = make(map[*websocket.Conn]bool)
	}
	h.connections[owner][conn] = true
}

func (h *WSHub) unregister(owner uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, ok := h.connections[owner]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, owner)
		}
	}
	conn.Close()
}

// Broadcast sends ev to owner's connections only. Broken connections are dropped.
func (h *WSHub) Broadcast(owner uuid.UUID, ev Event) {
	if h == nil {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[owner]
	if !exists {
		return
	}

	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", ev.Name, err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[ws] failed to send message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

// HandleWebSocket handles GET /api/ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	h.WSHub.register(userID, conn)

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			h.WSHub.unregister(userID, conn)
			return
		}
	}
}

// checkOrigin allows requests without an Origin header and, when a list is
// configured, only origins on it.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 || slices.Contains(h.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.AllowedOrigins, origin)
}
