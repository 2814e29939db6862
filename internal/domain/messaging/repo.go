package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a message row does not exist.
var ErrNotFound = errors.New("message not found")

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// Conversation returns messages exchanged between the two usernames in
	// either direction, oldest first.
	Conversation(ctx context.Context, userA, userB string, limit, offset int) ([]*Message, int, error)
	// Inbox returns messages addressed to the username, newest first.
	Inbox(ctx context.Context, username string, limit, offset int) ([]*Message, int, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
}
