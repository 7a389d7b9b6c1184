package websocket

import (
	"encoding/json"

	"github.com/rx3lixir/astro_rtc/internal/room"
)

// EventType names a frame on the wire
type EventType string

const (
	// Client -> Server
	EventJoinRoom         EventType = "join-room"
	EventLeaveRoom        EventType = "leave-room"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventICECandidate     EventType = "ice-candidate"
	EventMessage          EventType = "message"
	EventTyping           EventType = "typing"
	EventStopTyping       EventType = "stop-typing"
	EventMediaStateChange EventType = "media-state-change"
	EventSyncTimer        EventType = "sync-timer"

	// Server -> Client
	EventConnected             EventType = "connected"
	EventRoomJoined            EventType = "room-joined"
	EventParticipantJoined     EventType = "participant-joined"
	EventParticipantLeft       EventType = "participant-left"
	EventBothReady             EventType = "both-participants-ready"
	EventMessageHistory        EventType = "message-history"
	EventParticipantMediaState EventType = "participant-media-state"
	EventTimerSync             EventType = "timer-sync"
	EventError                 EventType = "error"
)

// Error codes carried by EventError frames
const (
	CodeMalformedEvent  = "malformed_event"
	CodeUnknownEvent    = "unknown_event"
	CodeNotInRoom       = "not_in_room"
	CodeAdmissionDenied = "admission_denied"
	CodeSuperseded      = "superseded"
	CodeJoinFailed      = "join_failed"
)

// Message is the envelope of every frame, both directions
type Message struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ConnectedData tells a client its own connection id
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}

// RoomJoinedData acknowledges a join
type RoomJoinedData struct {
	RoomID                  string             `json:"roomId"`
	SessionType             room.SessionType   `json:"sessionType"`
	ParticipantType         room.Role          `json:"participantType"`
	OtherParticipantPresent bool               `json:"otherParticipantPresent"`
	Participants            []room.Participant `json:"participants"`
}

// PresenceData announces a participant arriving or leaving
type PresenceData struct {
	RoomID          string    `json:"roomId"`
	ParticipantType room.Role `json:"participantType"`
	ParticipantID   string    `json:"participantId"`
	ConnectionID    string    `json:"connectionId"`
}

type BothReadyData struct {
	RoomID      string           `json:"roomId"`
	SessionType room.SessionType `json:"sessionType"`
}

// SignalData is a forwarded offer, answer or ICE candidate
type SignalData struct {
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
	From    string          `json:"from"`
}

type MessageHistoryData struct {
	RoomID   string             `json:"roomId"`
	Messages []room.ChatMessage `json:"messages"`
}

type TypingData struct {
	RoomID          string    `json:"roomId"`
	ParticipantType room.Role `json:"participantType"`
}

type MediaStateData struct {
	RoomID          string    `json:"roomId"`
	ParticipantType room.Role `json:"participantType"`
	MediaType       string    `json:"mediaType"`
	Enabled         bool      `json:"enabled"`
}

type TimerSyncData struct {
	RoomID          string    `json:"roomId"`
	ParticipantType room.Role `json:"participantType"`
	TimeRemaining   float64   `json:"timeRemaining"`
}

// ErrorData represents an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewConnected(connID string) *Message {
	return &Message{Type: EventConnected, Data: ConnectedData{ConnectionID: connID}}
}

func NewRoomJoined(info room.RoomInfo, role room.Role, otherPresent bool) *Message {
	return &Message{
		Type: EventRoomJoined,
		Data: RoomJoinedData{
			RoomID:                  info.ID,
			SessionType:             info.SessionType,
			ParticipantType:         role,
			OtherParticipantPresent: otherPresent,
			Participants:            info.Participants,
		},
	}
}

func NewParticipantJoined(roomID string, p room.Participant) *Message {
	return &Message{Type: EventParticipantJoined, Data: presence(roomID, p)}
}

func NewParticipantLeft(roomID string, p room.Participant) *Message {
	return &Message{Type: EventParticipantLeft, Data: presence(roomID, p)}
}

func presence(roomID string, p room.Participant) PresenceData {
	return PresenceData{
		RoomID:          roomID,
		ParticipantType: p.Role,
		ParticipantID:   p.ParticipantID,
		ConnectionID:    p.ConnID,
	}
}

func NewBothReady(info room.RoomInfo) *Message {
	return &Message{
		Type: EventBothReady,
		Data: BothReadyData{RoomID: info.ID, SessionType: info.SessionType},
	}
}

func NewSignal(kind EventType, roomID string, payload json.RawMessage, from string) *Message {
	return &Message{
		Type: kind,
		Data: SignalData{RoomID: roomID, Payload: payload, From: from},
	}
}

func NewChatMessage(msg room.ChatMessage) *Message {
	return &Message{Type: EventMessage, Data: msg}
}

func NewMessageHistory(roomID string, messages []room.ChatMessage) *Message {
	return &Message{
		Type: EventMessageHistory,
		Data: MessageHistoryData{RoomID: roomID, Messages: messages},
	}
}

func NewTyping(stopped bool, roomID string, role room.Role) *Message {
	kind := EventTyping
	if stopped {
		kind = EventStopTyping
	}
	return &Message{Type: kind, Data: TypingData{RoomID: roomID, ParticipantType: role}}
}

func NewMediaState(roomID string, role room.Role, mediaType string, enabled bool) *Message {
	return &Message{
		Type: EventParticipantMediaState,
		Data: MediaStateData{
			RoomID:          roomID,
			ParticipantType: role,
			MediaType:       mediaType,
			Enabled:         enabled,
		},
	}
}

func NewTimerSync(roomID string, role room.Role, remaining float64) *Message {
	return &Message{
		Type: EventTimerSync,
		Data: TimerSyncData{RoomID: roomID, ParticipantType: role, TimeRemaining: remaining},
	}
}

// NewError creates an error message
func NewError(code, message string) *Message {
	return &Message{
		Type: EventError,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	}
}

// ToJSON converts a message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
