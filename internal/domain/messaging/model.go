// Package messaging implements direct messages between users. Messages are
// keyed on sender and receiver usernames; access is pair membership, not
// chart ownership.
package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// Message is one direct message.
type Message struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	SenderUsername   string      `db:"sender_username" json:"sender_username"`
	SenderRole       policy.Role `db:"sender_role" json:"sender_role"`
	ReceiverUsername string      `db:"receiver_username" json:"receiver_username"`
	ReceiverRole     policy.Role `db:"receiver_role" json:"receiver_role"`
	Content          string      `db:"content" json:"content"`
	SentAt           time.Time   `db:"sent_at" json:"sent_at"`
	ReadAt           *time.Time  `db:"read_at" json:"read_at,omitempty"`
}

// Describe implements policy.Resource.
func (m *Message) Describe() policy.Descriptor {
	return policy.Descriptor{
		Kind:         policy.KindMessage,
		RecordID:     m.ID,
		Participants: []string{m.SenderUsername, m.ReceiverUsername},
	}
}
