package room

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/astro_rtc/internal/chat"
	"github.com/rx3lixir/astro_rtc/pkg/httputil"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 500
)

type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Count int        `json:"count"`
}

type RoomResponse struct {
	Room    RoomInfo      `json:"room"`
	History []ChatMessage `json:"history"`
}

// Handler serves read-only snapshots of live rooms and their durable chat log
type Handler struct {
	registry  *Registry
	messages  chat.Store
	log       *slog.Logger
	dbTimeout time.Duration
}

func NewHandler(registry *Registry, messages chat.Store, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{registry, messages, log, dbTimeout}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", httputil.Handler(h.HandleListRooms, h.log))
	r.Get("/{roomID}", httputil.Handler(h.HandleGetRoom, h.log))
	r.Get("/{roomID}/messages", httputil.Handler(h.HandleGetRoomMessages, h.log))
}

func (h *Handler) dbCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.dbTimeout)
}

// HandleListRooms lists every open room, oldest first
func (h *Handler) HandleListRooms(w http.ResponseWriter, r *http.Request) error {
	rooms := h.registry.Rooms()

	h.log.Debug("rooms listed", "room_count", len(rooms))

	return httputil.RespondJSON(w, http.StatusOK, ListRoomsResponse{
		Rooms: rooms,
		Count: len(rooms),
	})
}

// HandleGetRoom returns one live room with its in-memory chat history
func (h *Handler) HandleGetRoom(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.URLParam(r, "roomID")
	if err != nil {
		return err
	}

	info, ok := h.registry.Room(roomID)
	if !ok {
		return httputil.NotFound("Room not found")
	}

	history := h.registry.History(roomID)
	if history == nil {
		history = []ChatMessage{}
	}

	return httputil.RespondJSON(w, http.StatusOK, RoomResponse{
		Room:    info,
		History: history,
	})
}

// HandleGetRoomMessages reads the durable chat log of a room's session.
// It works for closed rooms too.
func (h *Handler) HandleGetRoomMessages(w http.ResponseWriter, r *http.Request) error {
	roomID, err := httputil.URLParam(r, "roomID")
	if err != nil {
		return err
	}

	limit, err := httputil.QueryLimit(r, "limit", defaultMessagesLimit, maxMessagesLimit)
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	sessionID, err := h.messages.ResolveSessionID(ctx, roomID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			return httputil.NotFound("No consultation session for this room")
		}
		h.log.Error("failed to resolve session",
			"room_id", roomID,
			"error", err)
		return httputil.Internal(err)
	}

	messages, err := h.messages.ListChatMessages(ctx, sessionID, limit)
	if err != nil {
		h.log.Error("failed to list chat messages",
			"room_id", roomID,
			"session_id", sessionID,
			"error", err)
		return httputil.Internal(err)
	}

	h.log.Debug("chat messages retrieved",
		"room_id", roomID,
		"session_id", sessionID,
		"count", len(messages))

	return httputil.RespondJSON(w, http.StatusOK, chat.GetRoomMessagesResponse{
		RoomID:    roomID,
		SessionID: sessionID,
		Messages:  messages,
		Count:     len(messages),
	})
}
