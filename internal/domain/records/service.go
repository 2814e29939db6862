package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// Service guards the record store with the policy engine. Ownership is
// resolved from the stored row before any response is shaped.
type Service struct {
	store  Store
	engine *policy.Engine
	dir    policy.Directory
}

func NewService(store Store, engine *policy.Engine, dir policy.Directory) *Service {
	return &Service{store: store, engine: engine, dir: dir}
}

func (s *Service) authorize(ctx context.Context, p policy.Principal, action policy.Action, d policy.Descriptor) error {
	dec, err := s.engine.Authorize(ctx, p, action, d)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return policy.Denied(dec)
	}
	return nil
}

// Create adds a record to a client's chart. Doctors author records only for
// clients currently assigned to them; clients author only the self-reported
// kinds for themselves; admins author the admin-only kinds.
func (s *Service) Create(ctx context.Context, p policy.Principal, r *ClinicalRecord) error {
	if !IsRecordKind(r.Kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}
	if ok, err := s.dir.ClientExists(ctx, r.ClientID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("client %s: %w", r.ClientID, ErrNotFound)
	}

	switch p.Role {
	case policy.RoleDoctor:
		assigned, err := s.dir.IsAssigned(ctx, p.ID, r.ClientID)
		if err != nil {
			return err
		}
		if !assigned {
			return policy.Denied(policy.Decision{Reason: "client not assigned to doctor"})
		}
		r.DoctorID = &p.ID
	default:
		r.DoctorID = nil
	}

	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, r.Describe()); err != nil {
		return err
	}
	return s.store.Create(ctx, r)
}

// Get returns one record after a read authorization.
func (s *Service) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*ClinicalRecord, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionRead, r.Describe()); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateFields holds the mutable attributes of a record. Nil fields are left
// unchanged.
type UpdateFields struct {
	Title      *string
	Notes      *string
	Attributes map[string]any
	RecordedAt *time.Time
}

// Update edits a record. Kind, owner and author are immutable.
func (s *Service) Update(ctx context.Context, p policy.Principal, id uuid.UUID, f UpdateFields) (*ClinicalRecord, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, r.Describe()); err != nil {
		return nil, err
	}

	if f.Title != nil {
		r.Title = *f.Title
	}
	if f.Notes != nil {
		r.Notes = f.Notes
	}
	if f.Attributes != nil {
		r.Attributes = f.Attributes
	}
	if f.RecordedAt != nil {
		r.RecordedAt = *f.RecordedAt
	}
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, policy.ActionDelete, r.Describe()); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// ListByClient returns a client's records of one kind under the same read
// policy as a single record of that kind.
func (s *Service) ListByClient(ctx context.Context, p policy.Principal, clientID uuid.UUID, kind policy.ResourceKind, limit, offset int) ([]*ClinicalRecord, int, error) {
	if !IsRecordKind(kind) {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	d := policy.Descriptor{Kind: kind, OwnerClientID: clientID}
	if err := s.authorize(ctx, p, policy.ActionRead, d); err != nil {
		return nil, 0, err
	}
	return s.store.ListByClient(ctx, clientID, kind, limit, offset)
}
