package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an appointment row does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrConflict is returned when a requested slot overlaps another
	// non-cancelled appointment of the same doctor on the same date.
	ErrConflict = errors.New("appointment time conflicts with an existing appointment")
)

// Filter narrows appointment listings. Zero-value fields are ignored.
type Filter struct {
	ClientID *uuid.UUID
	DoctorID *uuid.UUID
	// From keeps only appointments on or after the given instant.
	From *time.Time
	// Status keeps only appointments in the given state.
	Status *Status
}

// Repository persists appointments and their status history. Mutations that
// take a history row write both records atomically; CreateWithHistory and
// UpdateTimes additionally run the conflict check inside the same unit, so a
// concurrent booking race has exactly one winner.
type Repository interface {
	// CreateWithHistory checks for slot conflicts and, if the slot is free,
	// inserts the appointment together with its initial history row. Returns
	// ErrConflict when the slot is taken.
	CreateWithHistory(ctx context.Context, a *Appointment, h *History) error

	// Update rewrites mutable fields without touching history. Callers that
	// change the slot (times or doctor) must use UpdateTimes instead.
	Update(ctx context.Context, a *Appointment) error

	// UpdateTimes rewrites the appointment after re-running the conflict
	// check against all other appointments of the appointment's (possibly
	// reassigned) doctor.
	UpdateTimes(ctx context.Context, a *Appointment) error

	// UpdateStatusWithHistory rewrites the status and appends the transition
	// row atomically.
	UpdateStatusWithHistory(ctx context.Context, a *Appointment, h *History) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	History(ctx context.Context, appointmentID uuid.UUID) ([]*History, error)
}
