package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rx3lixir/astro_rtc/internal/room"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event")
)

// ClientFrame is the raw envelope read off the socket
type ClientFrame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is one decoded inbound event. Every event is addressed to a room.
type Event interface {
	Kind() EventType
	Room() string
}

type JoinRoom struct {
	RoomID          string `json:"roomId"`
	ParticipantType string `json:"participantType"`
	ParticipantID   string `json:"participantId"`
	SessionType     string `json:"sessionType"`
	Token           string `json:"token,omitempty"`

	role        room.Role
	sessionType room.SessionType
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// Signal is an offer, answer or ICE candidate. Payload is never inspected.
type Signal struct {
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`

	kind EventType
}

type SendMessage struct {
	RoomID     string          `json:"roomId"`
	SenderID   string          `json:"senderId"`
	SenderType string          `json:"senderType"`
	Message    string          `json:"message"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
}

type Typing struct {
	RoomID          string `json:"roomId"`
	ParticipantType string `json:"participantType"`

	Stopped bool `json:"-"`
}

type MediaStateChange struct {
	RoomID    string `json:"roomId"`
	MediaType string `json:"mediaType"`
	Enabled   *bool  `json:"enabled"`
}

type SyncTimer struct {
	RoomID        string   `json:"roomId"`
	TimeRemaining *float64 `json:"timeRemaining"`
}

func (e *JoinRoom) Kind() EventType         { return EventJoinRoom }
func (e *LeaveRoom) Kind() EventType        { return EventLeaveRoom }
func (e *Signal) Kind() EventType           { return e.kind }
func (e *SendMessage) Kind() EventType      { return EventMessage }
func (e *MediaStateChange) Kind() EventType { return EventMediaStateChange }
func (e *SyncTimer) Kind() EventType        { return EventSyncTimer }
func (e *Typing) Kind() EventType {
	if e.Stopped {
		return EventStopTyping
	}
	return EventTyping
}

func (e *JoinRoom) Room() string         { return e.RoomID }
func (e *LeaveRoom) Room() string        { return e.RoomID }
func (e *Signal) Room() string           { return e.RoomID }
func (e *SendMessage) Room() string      { return e.RoomID }
func (e *Typing) Room() string           { return e.RoomID }
func (e *MediaStateChange) Room() string { return e.RoomID }
func (e *SyncTimer) Room() string        { return e.RoomID }

// Role is the parsed participantType
func (e *JoinRoom) Role() room.Role { return e.role }

// Session is the parsed sessionType, chat when omitted
func (e *JoinRoom) Session() room.SessionType { return e.sessionType }

// ClientTimestamp is the sender's own timestamp, as text
func (e *SendMessage) ClientTimestamp() string {
	return strings.Trim(string(e.Timestamp), `"`)
}

// DecodeEvent turns one text frame into a typed event
func DecodeEvent(raw []byte) (Event, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var ev interface {
		Event
		validate() error
	}

	switch frame.Type {
	case EventJoinRoom:
		ev = &JoinRoom{}
	case EventLeaveRoom:
		ev = &LeaveRoom{}
	case EventOffer, EventAnswer, EventICECandidate:
		ev = &Signal{kind: frame.Type}
	case EventMessage:
		ev = &SendMessage{}
	case EventTyping:
		ev = &Typing{}
	case EventStopTyping:
		ev = &Typing{Stopped: true}
	case EventMediaStateChange:
		ev = &MediaStateChange{}
	case EventSyncTimer:
		ev = &SyncTimer{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}

	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformedEvent, frame.Type)
	}
	if err := json.Unmarshal(frame.Data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, frame.Type, err)
	}
	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, frame.Type, err)
	}

	return ev, nil
}

func requireRoom(roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return errors.New("roomId is required")
	}
	return nil
}

func (e *JoinRoom) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	if e.ParticipantID == "" {
		return errors.New("participantId is required")
	}

	role, err := room.ParseRole(e.ParticipantType)
	if err != nil {
		return err
	}
	e.role = role

	e.sessionType = room.SessionChat
	if e.SessionType != "" {
		st, err := room.ParseSessionType(e.SessionType)
		if err != nil {
			return err
		}
		e.sessionType = st
	}
	return nil
}

func (e *LeaveRoom) validate() error {
	return requireRoom(e.RoomID)
}

func (e *Signal) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	if len(e.Payload) == 0 || bytes.Equal(e.Payload, []byte("null")) {
		return errors.New("payload is required")
	}
	return nil
}

func (e *SendMessage) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	if strings.TrimSpace(e.Message) == "" {
		return errors.New("message is required")
	}
	return nil
}

func (e *Typing) validate() error {
	return requireRoom(e.RoomID)
}

func (e *MediaStateChange) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	if e.MediaType == "" {
		return errors.New("mediaType is required")
	}
	if e.Enabled == nil {
		return errors.New("enabled is required")
	}
	return nil
}

func (e *SyncTimer) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	if e.TimeRemaining == nil {
		return errors.New("timeRemaining is required")
	}
	return nil
}
