package prediction

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a prediction row does not exist.
var ErrNotFound = errors.New("prediction not found")

// Repository persists predictions.
type Repository interface {
	Create(ctx context.Context, p *Prediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prediction, error)
	// SetReview writes the review fields. The caller guarantees the
	// prediction was unreviewed.
	SetReview(ctx context.Context, id uuid.UUID, r *Review) error
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Prediction, int, error)
	// ListUnreviewed returns predictions awaiting review, oldest first.
	ListUnreviewed(ctx context.Context, limit, offset int) ([]*Prediction, int, error)
}
