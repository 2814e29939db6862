package records

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

var (
	// ErrNotFound is returned when a record row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownKind is returned for kinds this package does not store.
	ErrUnknownKind = errors.New("unknown record kind")
)

// Store persists clinical records of every kind.
type Store interface {
	Create(ctx context.Context, r *ClinicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalRecord, error)
	Update(ctx context.Context, r *ClinicalRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByClient returns a client's records of one kind, newest first.
	ListByClient(ctx context.Context, clientID uuid.UUID, kind policy.ResourceKind, limit, offset int) ([]*ClinicalRecord, int, error)
}
