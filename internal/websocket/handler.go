package websocket

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	manager *Manager
	log     *slog.Logger
}

func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleConnection)
}

// HandleConnection opens a signaling socket. Identity and room are
// declared later by join-room, so the upgrade itself is anonymous.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("establishing websocket connection",
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)

	h.manager.ServeWS(w, r)
}
