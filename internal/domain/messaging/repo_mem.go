package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Message
}

// NewMemRepo returns an in-memory Repository for tests.
func NewMemRepo() Repository {
	return &memRepo{rows: make(map[uuid.UUID]*Message)}
}

func (r *memRepo) Create(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.rows[m.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memRepo) Conversation(_ context.Context, userA, userB string, limit, offset int) ([]*Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Message
	for _, m := range r.rows {
		if (m.SenderUsername == userA && m.ReceiverUsername == userB) ||
			(m.SenderUsername == userB && m.ReceiverUsername == userA) {
			cp := *m
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SentAt.Before(matched[j].SentAt)
	})
	return slice(matched, limit, offset)
}

func (r *memRepo) Inbox(_ context.Context, username string, limit, offset int) ([]*Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Message
	for _, m := range r.rows {
		if m.ReceiverUsername == username {
			cp := *m
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SentAt.After(matched[j].SentAt)
	})
	return slice(matched, limit, offset)
}

func slice(matched []*Message, limit, offset int) ([]*Message, int, error) {
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil
	}
	if m.ReadAt == nil {
		m.ReadAt = &at
	}
	return nil
}
