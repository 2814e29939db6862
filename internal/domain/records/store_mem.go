package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*ClinicalRecord
}

// NewMemStore returns an in-memory Store for tests.
func NewMemStore() Store {
	return &memStore{rows: make(map[uuid.UUID]*ClinicalRecord)}
}

func (s *memStore) Create(_ context.Context, r *ClinicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()
	cp := *r
	s.rows[r.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*ClinicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, r *ClinicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[r.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = r.Title
	cur.Notes = r.Notes
	cur.Attributes = r.Attributes
	cur.RecordedAt = r.RecordedAt
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) ListByClient(_ context.Context, clientID uuid.UUID, kind policy.ResourceKind, limit, offset int) ([]*ClinicalRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*ClinicalRecord
	for _, r := range s.rows {
		if r.ClientID == clientID && r.Kind == kind {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RecordedAt.After(matched[j].RecordedAt)
	})

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
