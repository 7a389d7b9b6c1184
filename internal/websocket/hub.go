package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/rx3lixir/astro_rtc/internal/chat"
	"github.com/rx3lixir/astro_rtc/internal/room"
	"github.com/rx3lixir/astro_rtc/pkg/jwt"
)

// ChatPersister takes chat messages off the relay path
type ChatPersister interface {
	Enqueue(roomID string, msg chat.Message) bool
	Forget(roomID string)
}

// TranscriptArchiver stores the chat of a destroyed room
type TranscriptArchiver interface {
	Archive(t room.Transcript)
}

// AdmissionVerifier checks room admission tokens
type AdmissionVerifier interface {
	ValidateAdmissionToken(token string) (*jwt.AdmissionClaims, error)
}

type requestKind int

const (
	requestRegister requestKind = iota
	requestUnregister
	requestEvent
)

// request is everything a client asks of the hub. A single channel keeps
// each connection's events and its disconnect in the order they happened.
type request struct {
	kind   requestKind
	client *Client
	event  Event
	err    error
}

type HubConfig struct {
	// RequireAdmission makes join-room demand a valid admission token
	RequireAdmission bool
	QueueSize        int
}

type HubMetrics struct {
	ConnectedClients atomic.Int64
	ChatMessages     atomic.Int64
	FramesSent       atomic.Int64
	FramesDropped    atomic.Int64
	EventsRejected   atomic.Int64
}

type HubStats struct {
	ConnectedClients int64 `json:"connected_clients"`
	OpenRooms        int   `json:"open_rooms"`
	ChatMessages     int64 `json:"chat_messages"`
	FramesSent       int64 `json:"frames_sent"`
	FramesDropped    int64 `json:"frames_dropped"`
	EventsRejected   int64 `json:"events_rejected"`
}

// Hub owns every connection. Run handles all state changes sequentially,
// which makes it the single point where registry mutations and the
// broadcasts that follow them are ordered.
type Hub struct {
	registry  *room.Registry
	persister ChatPersister
	archiver  TranscriptArchiver
	admission AdmissionVerifier
	config    HubConfig

	// Registered clients (only accessed by hub goroutine)
	clients map[string]*Client

	// Clients whose send buffer overflowed during the current event
	slow []*Client

	requests chan request
	done     chan struct{}

	metrics *HubMetrics
	log     *slog.Logger
}

func NewHub(
	registry *room.Registry,
	persister ChatPersister,
	archiver TranscriptArchiver,
	admission AdmissionVerifier,
	config HubConfig,
	log *slog.Logger,
) *Hub {
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	return &Hub{
		registry:  registry,
		persister: persister,
		archiver:  archiver,
		admission: admission,
		config:    config,
		clients:   make(map[string]*Client),
		requests:  make(chan request, config.QueueSize),
		done:      make(chan struct{}),
		metrics:   &HubMetrics{},
		log:       log,
	}
}

// Run is the main event loop - handles ALL state changes sequentially
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	h.log.Info("hub started", "require_admission", h.config.RequireAdmission)

	for {
		select {
		case req := <-h.requests:
			switch req.kind {
			case requestRegister:
				h.handleRegister(req.client)
			case requestUnregister:
				h.handleDisconnect(req.client, "connection closed")
			case requestEvent:
				h.handleEvent(req.client, req.event, req.err)
			}
			h.flushSlow()

		case <-ctx.Done():
			h.handleShutdown()
			return nil
		}
	}
}

// submit hands a request to the loop; false once the hub has stopped
func (h *Hub) submit(req request) bool {
	select {
	case h.requests <- req:
		return true
	case <-h.done:
		return false
	}
}

// Done is closed when Run returns
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Registry() *room.Registry {
	return h.registry
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		ConnectedClients: h.metrics.ConnectedClients.Load(),
		OpenRooms:        h.registry.Len(),
		ChatMessages:     h.metrics.ChatMessages.Load(),
		FramesSent:       h.metrics.FramesSent.Load(),
		FramesDropped:    h.metrics.FramesDropped.Load(),
		EventsRejected:   h.metrics.EventsRejected.Load(),
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client.id] = client
	h.metrics.ConnectedClients.Add(1)

	h.log.Info("client registered",
		"conn_id", client.id,
		"remote_addr", client.remoteAddr,
		"total_clients", len(h.clients),
	)

	h.emitTo(client, NewConnected(client.id))
}

// handleDisconnect runs the same cleanup as an explicit leave
func (h *Hub) handleDisconnect(client *Client, reason string) {
	if h.clients[client.id] != client {
		return
	}

	h.closeClient(client, websocket.StatusNormalClosure, "")
	h.log.Info("client unregistered",
		"conn_id", client.id,
		"reason", reason,
		"remaining_clients", len(h.clients),
	)

	h.leaveRoom(client, reason)
}

// closeClient stops the write pump; the room slot is left untouched
func (h *Hub) closeClient(client *Client, status websocket.StatusCode, reason string) {
	if h.clients[client.id] != client {
		return
	}
	delete(h.clients, client.id)
	h.metrics.ConnectedClients.Add(-1)

	client.setClose(status, reason)
	close(client.send)
}

func (h *Hub) handleEvent(client *Client, ev Event, decodeErr error) {
	if h.clients[client.id] != client {
		return
	}

	if decodeErr != nil {
		h.reject(client, decodeErr)
		return
	}

	switch ev := ev.(type) {
	case *JoinRoom:
		h.handleJoin(client, ev)
	case *LeaveRoom:
		h.handleLeave(client, ev)
	case *Signal:
		h.handleSignal(client, ev)
	case *SendMessage:
		h.handleChatMessage(client, ev)
	case *Typing:
		h.handleTyping(client, ev)
	case *MediaStateChange:
		h.handleMediaState(client, ev)
	case *SyncTimer:
		h.handleSyncTimer(client, ev)
	default:
		h.reject(client, ErrUnknownEvent)
	}
}

// reject drops a bad event, logs it and tells the sender
func (h *Hub) reject(client *Client, err error) {
	h.metrics.EventsRejected.Add(1)

	code := CodeMalformedEvent
	if errors.Is(err, ErrUnknownEvent) {
		code = CodeUnknownEvent
	}

	h.log.Warn("event dropped", "conn_id", client.id, "error", err)
	h.emitTo(client, NewError(code, err.Error()))
}

func (h *Hub) handleShutdown() {
	h.log.Info("shutting down hub", "clients", len(h.clients))

	// Gracefully close all clients
	for _, client := range h.clients {
		h.closeClient(client, websocket.StatusGoingAway, "server shutting down")
	}
}

// emitTo sends a message to one connection
func (h *Hub) emitTo(client *Client, msg *Message) {
	data, err := msg.ToJSON()
	if err != nil {
		h.log.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	h.deliver(client, data)
}

// emitToParticipants sends one encoded message to every listed participant
// except the one holding exceptConnID
func (h *Hub) emitToParticipants(participants []room.Participant, msg *Message, exceptConnID string) {
	if len(participants) == 0 {
		return
	}

	data, err := msg.ToJSON()
	if err != nil {
		h.log.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}

	for _, p := range participants {
		if p.ConnID == exceptConnID {
			continue
		}
		if client, ok := h.clients[p.ConnID]; ok {
			h.deliver(client, data)
		}
	}
}

// emitToRoom sends to every occupant except the sender
func (h *Hub) emitToRoom(roomID string, msg *Message, exceptConnID string) {
	h.emitToParticipants(h.registry.Occupants(roomID), msg, exceptConnID)
}

// emitToRoomAll sends to every occupant
func (h *Hub) emitToRoomAll(roomID string, msg *Message) {
	h.emitToParticipants(h.registry.Occupants(roomID), msg, "")
}

func (h *Hub) deliver(client *Client, data []byte) {
	if h.clients[client.id] != client {
		return
	}
	if client.enqueue(data) {
		h.metrics.FramesSent.Add(1)
		return
	}

	// Client is too slow, disconnect it once this event is done
	h.metrics.FramesDropped.Add(1)
	h.log.Warn("client buffer full, disconnecting", "conn_id", client.id)
	h.slow = append(h.slow, client)
}

func (h *Hub) flushSlow() {
	for len(h.slow) > 0 {
		client := h.slow[0]
		h.slow = h.slow[1:]
		h.handleDisconnect(client, "send buffer full")
	}
	h.slow = nil
}
