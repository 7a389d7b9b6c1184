package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultListLimit = 100

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// ResolveSessionID finds the newest consultation session booked for a room
func (s *PostgresStore) ResolveSessionID(ctx context.Context, roomID string) (uuid.UUID, error) {
	query := `
		SELECT id
		FROM consultation_sessions
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var sessionID uuid.UUID
	err := s.pool.QueryRow(ctx, query, roomID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("room %s: %w", roomID, ErrSessionNotFound)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return sessionID, nil
}

// AppendChatMessage stores one chat message against a session
func (s *PostgresStore) AppendChatMessage(ctx context.Context, sessionID uuid.UUID, msg *Message) error {
	query := `
		INSERT INTO chat_messages (id, session_id, sender_type, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.SessionID = sessionID

	_, err := s.pool.Exec(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.SenderType,
		msg.SenderID,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}

// ListChatMessages returns the oldest-first chat log of a session
func (s *PostgresStore) ListChatMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, session_id, sender_type, sender_id, message, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m := &Message{}
		err := rows.Scan(&m.ID, &m.SessionID, &m.SenderType, &m.SenderID, &m.Body, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	return messages, nil
}
