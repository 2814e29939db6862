package prediction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Prediction
}

// NewMemRepo returns an in-memory Repository for tests.
func NewMemRepo() Repository {
	return &memRepo{rows: make(map[uuid.UUID]*Prediction)}
}

func (r *memRepo) Create(_ context.Context, p *Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) SetReview(_ context.Context, id uuid.UUID, rev *Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok || p.Review != nil {
		return ErrNotFound
	}
	cp := *rev
	p.Review = &cp
	return nil
}

func (r *memRepo) ListByClient(_ context.Context, clientID uuid.UUID, limit, offset int) ([]*Prediction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Prediction
	for _, p := range r.rows {
		if p.ClientID == clientID {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return slice(matched, limit, offset)
}

func (r *memRepo) ListUnreviewed(_ context.Context, limit, offset int) ([]*Prediction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Prediction
	for _, p := range r.rows {
		if p.Review == nil {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return slice(matched, limit, offset)
}

func slice(matched []*Prediction, limit, offset int) ([]*Prediction, int, error) {
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
