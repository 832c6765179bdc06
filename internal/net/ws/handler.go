package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	"footfall/server/internal/telemetry"
)

// Handler upgrades viewer connections and registers them with the hub.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	return &Handler{
		hub:    hub,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle streams frames until the client goes away. Inbound messages are
// ignored; the read loop only detects disconnects.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil {
		http.Error(w, "telemetry unavailable", http.StatusServiceUnavailable)
		return
	}

	format := ParseFormat(r.URL.Query().Get("format"))
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("upgrade failed: %v", err)
		}
		return
	}

	id := h.hub.Subscribe(conn, format)
	if h.logger != nil {
		h.logger.Printf("[ws] viewer %s connected (%s)", id, format)
	}
	defer h.hub.Unsubscribe(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.logger != nil {
				h.logger.Printf("[ws] viewer %s disconnected: %v", id, err)
			}
			return
		}
	}
}
