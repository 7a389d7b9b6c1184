package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the side of the consultation a participant is on
type Role string

const (
	RoleUser       Role = "user"
	RoleAstrologer Role = "astrologer"
)

// Roles lists every role a room can hold, so occupancy can never exceed len(Roles)
var Roles = []Role{RoleUser, RoleAstrologer}

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAstrologer:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// SessionType is the kind of consultation a room was opened for
type SessionType string

const (
	SessionChat  SessionType = "chat"
	SessionVoice SessionType = "voice"
	SessionVideo SessionType = "video"
)

func ParseSessionType(s string) (SessionType, error) {
	switch st := SessionType(s); st {
	case SessionChat, SessionVoice, SessionVideo:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionType, s)
	}
}

var (
	ErrInvalidRole        = errors.New("invalid participant role")
	ErrInvalidSessionType = errors.New("invalid session type")
	ErrEmptyRoomID        = errors.New("room id is required")
	ErrEmptyConnID        = errors.New("connection id is required")
	ErrRoomNotFound       = errors.New("room not found")
)

// Participant occupies one role slot of a room
type Participant struct {
	Role          Role      `json:"participantType"`
	ParticipantID string    `json:"participantId"`
	ConnID        string    `json:"connectionId"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// ChatMessage is one chat line as kept in the room history
type ChatMessage struct {
	ID              uuid.UUID `json:"id"`
	RoomID          string    `json:"roomId"`
	SenderType      Role      `json:"senderType"`
	SenderID        string    `json:"senderId"`
	Body            string    `json:"message"`
	SentAt          time.Time `json:"timestamp"`
	ClientTimestamp string    `json:"clientTimestamp,omitempty"`
}

// RoomInfo is a read-only snapshot of a room
type RoomInfo struct {
	ID           string        `json:"roomId"`
	SessionType  SessionType   `json:"sessionType"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `json:"participants"`
	HistorySize  int           `json:"historySize"`
	Ready        bool          `json:"ready"`
}

// Transcript is what is left of a room's chat when the room is destroyed
type Transcript struct {
	RoomID      string        `json:"roomId"`
	SessionType SessionType   `json:"sessionType"`
	CreatedAt   time.Time     `json:"createdAt"`
	ClosedAt    time.Time     `json:"closedAt"`
	Messages    []ChatMessage `json:"messages"`
}

// AddResult describes what a join changed
type AddResult struct {
	Room       RoomInfo
	Superseded *Participant
	// Left is set when the connection gave up a slot it held before this join
	Left         *Removal
	OtherPresent bool
	BothReady    bool
	Occupants    []Participant
	History      []ChatMessage
}

// Removal describes what leaving a room changed
type Removal struct {
	RoomID      string
	Participant Participant
	Remaining   []Participant
	RoomDeleted bool
	Transcript  *Transcript
}
