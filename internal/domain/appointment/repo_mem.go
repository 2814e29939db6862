package appointment

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository. The single mutex gives the same
// atomicity guarantee as the pg transaction: conflict check and insert are
// one critical section.
type memRepo struct {
	mu      sync.Mutex
	appts   map[uuid.UUID]*Appointment
	history map[uuid.UUID][]*History
}

// NewMemRepo returns an in-memory Repository for tests.
func NewMemRepo() Repository {
	return &memRepo{
		appts:   make(map[uuid.UUID]*Appointment),
		history: make(map[uuid.UUID][]*History),
	}
}

func (r *memRepo) conflictLocked(a *Appointment) bool {
	for _, other := range r.appts {
		if other.ID == a.ID || other.DoctorID != a.DoctorID ||
			!other.Date.Equal(a.Date) || other.Status == StatusCancelled {
			continue
		}
		if other.Overlaps(a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateWithHistory(_ context.Context, a *Appointment, h *History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictLocked(a) {
		return ErrConflict
	}
	cp := *a
	r.appts[a.ID] = &cp
	r.history[a.ID] = append(r.history[a.ID], h)
	return nil
}

func (r *memRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.appts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = a.Title
	cur.Description = a.Description
	cur.Location = a.Location
	cur.Notes = a.Notes
	cur.ClientID = a.ClientID
	return nil
}

func (r *memRepo) UpdateTimes(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[a.ID]; !ok {
		return ErrNotFound
	}
	if r.conflictLocked(a) {
		return ErrConflict
	}
	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r *memRepo) UpdateStatusWithHistory(_ context.Context, a *Appointment, h *History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.appts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = a.Status
	r.history[a.ID] = append(r.history[a.ID], h)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[id]; !ok {
		return ErrNotFound
	}
	delete(r.appts, id)
	delete(r.history, id)
	return nil
}

func (r *memRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*Appointment
	for _, a := range r.appts {
		if f.ClientID != nil && a.ClientID != *f.ClientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.From != nil && a.Date.Before(*f.From) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].StartTime.Before(matched[j].StartTime)
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

func (r *memRepo) History(_ context.Context, appointmentID uuid.UUID) ([]*History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*History(nil), r.history[appointmentID]...), nil
}
