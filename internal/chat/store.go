package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("consultation session not found")

// Store is the boundary to the external persistence service
type Store interface {
	ResolveSessionID(ctx context.Context, roomID string) (uuid.UUID, error)
	AppendChatMessage(ctx context.Context, sessionID uuid.UUID, msg *Message) error
	ListChatMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error)
}

// Message is a chat message record in the durable log
type Message struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	SenderType string    `json:"sender_type"`
	SenderID   string    `json:"sender_id"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetRoomMessagesResponse returns the durable chat log of a room
type GetRoomMessagesResponse struct {
	RoomID    string     `json:"room_id"`
	SessionID uuid.UUID  `json:"session_id"`
	Messages  []*Message `json:"messages"`
	Count     int        `json:"count"`
}
