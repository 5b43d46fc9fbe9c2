package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/auth"
	"github.com/PryCoder/flowdesk/internal/ratelimit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWs upgrades an authenticated request and starts the two pumps.
// The auth middleware must run before this handler.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	uid, uname, displayName, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if displayName == "" {
		displayName = uname
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, 512),
		ConnID:      uuid.NewString(),
		UserID:      uid,
		Username:    uname,
		DisplayName: displayName,
		limiter:     ratelimit.NewLimiter(eventsPerSecond, eventBurst),
	}
	client.hub.register <- client

	// These run in new goroutines; ServeWs returns immediately.
	go client.writePump()
	go client.readPump()
}
