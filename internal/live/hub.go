package live

import (
	"log"
	"net/http"
	"sync"
	"time"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/timeutil"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// BoardEvent tells connected key boards to refetch. Payload stays minimal:
// clients pull the board over HTTP, the socket only signals that it changed.
type BoardEvent struct {
	Type         string    `json:"type"`
	DealershipID string    `json:"dealership_id"`
	At           time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans board-change notifications out to the wall-mounted key boards.
// Connections are grouped per dealership; one dealership's checkouts never
// reach another's screens.
type Hub struct {
	jwtManager *auth.JWTManager

	rooms    map[string]map[*websocket.Conn]bool
	roomsMux sync.Mutex
	events   chan BoardEvent
}

func NewHub(jwtManager *auth.JWTManager) *Hub {
	return &Hub{
		jwtManager: jwtManager,
		rooms:      make(map[string]map[*websocket.Conn]bool),
		events:     make(chan BoardEvent, 64),
	}
}

// Start launches the broadcast loop.
func (h *Hub) Start() {
	go h.handleBroadcast()
}

// BoardChanged queues a refresh signal for one dealership's boards. Never
// blocks the request path: if the queue is full the signal is dropped and the
// boards catch up on their next poll.
func (h *Hub) BoardChanged(dealershipID string) {
	event := BoardEvent{
		Type:         "board_changed",
		DealershipID: dealershipID,
		At:           timeutil.Now(),
	}
	select {
	case h.events <- event:
	default:
		log.Printf("[Live] Dropping board event for %s: queue full", dealershipID)
	}
}

// HandleWS upgrades a board connection. Browsers cannot set an Authorization
// header on a websocket, so the token rides in the query string.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	claims, err := h.jwtManager.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Role != models.RoleOwner && claims.DealershipID != dealershipID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	h.roomsMux.Lock()
	if h.rooms[dealershipID] == nil {
		h.rooms[dealershipID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[dealershipID][conn] = true
	h.roomsMux.Unlock()

	// Boards never send anything meaningful; the read loop just detects
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.roomsMux.Lock()
			delete(h.rooms[dealershipID], conn)
			h.roomsMux.Unlock()
			break
		}
	}
}

func (h *Hub) handleBroadcast() {
	for event := range h.events {
		h.roomsMux.Lock()
		for conn := range h.rooms[event.DealershipID] {
			if err := conn.WriteJSON(event); err != nil {
				conn.Close()
				delete(h.rooms[event.DealershipID], conn)
			}
		}
		h.roomsMux.Unlock()
	}
}
