package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

type ManagerConfig struct {
	// OriginPatterns are host patterns allowed to open a socket cross-origin
	OriginPatterns []string
	SendBuffer     int
	MaxMessageSize int64
}

// Manager upgrades HTTP requests and hands the connections to the hub
type Manager struct {
	hub    *Hub
	config ManagerConfig
	log    *slog.Logger
}

func NewManager(hub *Hub, config ManagerConfig, log *slog.Logger) *Manager {
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaultSendBuffer
	}
	return &Manager{
		hub:    hub,
		config: config,
		log:    log,
	}
}

func (m *Manager) Hub() *Hub {
	return m.hub
}

// ServeWS upgrades the connection and blocks until it is closed
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: m.config.OriginPatterns,
	})
	if err != nil {
		m.log.Error("failed to accept websocket", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(m.config.MaxMessageSize)

	client := NewClient(conn, m.hub, r.RemoteAddr, m.config.SendBuffer, m.log)

	if !m.hub.submit(request{kind: requestRegister, client: client}) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump(ctx)
	client.readPump(ctx)
}
