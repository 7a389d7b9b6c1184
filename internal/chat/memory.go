package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions and chat logs in process.
// Used when no database is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]uuid.UUID
	messages map[uuid.UUID][]*Message
	failWith error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]uuid.UUID),
		messages: make(map[uuid.UUID][]*Message),
	}
}

// RegisterSession binds a room to a session, returning the session id
func (m *MemoryStore) RegisterSession(roomID string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.sessions[roomID]; ok {
		return id
	}
	id := uuid.New()
	m.sessions[roomID] = id
	return id
}

// FailAppends makes every following append return err (nil restores)
func (m *MemoryStore) FailAppends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryStore) ResolveSessionID(ctx context.Context, roomID string) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessions[roomID]
	if !ok {
		return uuid.Nil, fmt.Errorf("room %s: %w", roomID, ErrSessionNotFound)
	}
	return id, nil
}

func (m *MemoryStore) AppendChatMessage(ctx context.Context, sessionID uuid.UUID, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation cancelled: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.SessionID = sessionID

	stored := *msg
	m.messages[sessionID] = append(m.messages[sessionID], &stored)
	return nil
}

func (m *MemoryStore) ListChatMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.messages[sessionID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	out := make([]*Message, 0, limit)
	for _, msg := range all[:limit] {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}
