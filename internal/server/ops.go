package server

import (
	"log/slog"
	"net/http"

	"github.com/rx3lixir/astro_rtc/internal/archive"
	"github.com/rx3lixir/astro_rtc/internal/chat"
	"github.com/rx3lixir/astro_rtc/internal/websocket"
	"github.com/rx3lixir/astro_rtc/pkg/httputil"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Clients int64  `json:"clients"`
}

type StatsResponse struct {
	Hub         websocket.HubStats  `json:"hub"`
	Persistence chat.PersisterStats `json:"persistence"`
	Archive     *archive.Stats      `json:"archive,omitempty"`
}

// OpsHandler reports process health and counters
type OpsHandler struct {
	hub       *websocket.Hub
	persister *chat.Persister
	archiver  *archive.Archiver
	log       *slog.Logger
}

// NewOpsHandler builds the ops handler; archiver may be nil when archiving is off
func NewOpsHandler(hub *websocket.Hub, persister *chat.Persister, archiver *archive.Archiver, log *slog.Logger) *OpsHandler {
	return &OpsHandler{
		hub:       hub,
		persister: persister,
		archiver:  archiver,
		log:       log,
	}
}

func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.hub.Stats()

	status, code := "ok", http.StatusOK
	select {
	case <-h.hub.Done():
		status, code = "stopping", http.StatusServiceUnavailable
	default:
	}

	if err := httputil.RespondJSON(w, code, HealthResponse{
		Status:  status,
		Rooms:   stats.OpenRooms,
		Clients: stats.ConnectedClients,
	}); err != nil {
		h.log.Warn("failed to write health response", "error", err)
	}
}

func (h *OpsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Hub:         h.hub.Stats(),
		Persistence: h.persister.Stats(),
	}
	if h.archiver != nil {
		stats := h.archiver.Stats()
		resp.Archive = &stats
	}

	if err := httputil.RespondJSON(w, http.StatusOK, resp); err != nil {
		h.log.Warn("failed to write stats response", "error", err)
	}
}
