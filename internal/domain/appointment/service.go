package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/lock"
	"github.com/clinicore/clinicore/internal/policy"
)

var (
	// ErrInvalidTime is returned when an appointment's end does not follow
	// its start.
	ErrInvalidTime = errors.New("end time must be after start time")
	// ErrTimeOutsideDate is returned when the start or end time falls on a
	// different calendar day than the appointment date.
	ErrTimeOutsideDate = errors.New("start and end times must fall on the appointment date")
	// ErrTerminalStatus is returned for transitions out of Completed or
	// Cancelled, and for rescheduling a non-Scheduled appointment.
	ErrTerminalStatus = errors.New("appointment is no longer Scheduled")
	// ErrUnknownParticipant is returned when the referenced doctor or client
	// does not exist.
	ErrUnknownParticipant = errors.New("doctor or client not found")
)

// Service coordinates scheduling: every operation authorizes against the
// policy engine before touching the repository, and every status change
// appends exactly one history row.
type Service struct {
	repo   Repository
	engine *policy.Engine
	dir    policy.Directory
	locker lock.ScheduleLocker
}

func NewService(repo Repository, engine *policy.Engine, dir policy.Directory, locker lock.ScheduleLocker) *Service {
	if locker == nil {
		locker = lock.Noop()
	}
	return &Service{repo: repo, engine: engine, dir: dir, locker: locker}
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

// Create books a slot. The conflict check and the insert run atomically; on
// an overlapping slot the caller gets ErrConflict and nothing is written.
func (s *Service) Create(ctx context.Context, p policy.Principal, a *Appointment) error {
	if !a.EndTime.After(a.StartTime) {
		return ErrInvalidTime
	}
	if !a.WithinDate() {
		return ErrTimeOutsideDate
	}
	if ok, err := s.dir.DoctorExists(ctx, a.DoctorID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("doctor %s: %w", a.DoctorID, ErrUnknownParticipant)
	}
	if ok, err := s.dir.ClientExists(ctx, a.ClientID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("client %s: %w", a.ClientID, ErrUnknownParticipant)
	}

	a.ID = uuid.New()
	a.Status = StatusScheduled
	a.CreatedAt = time.Now().UTC()

	if err := s.authorize(ctx, p, policy.ActionWrite, a.Describe()); err != nil {
		return err
	}

	h := newHistory(a.ID, statusNone, StatusScheduled, "Appointment created", p)
	return s.locker.WithScheduleLock(ctx, a.DoctorID, a.Date, func(ctx context.Context) error {
		return s.repo.CreateWithHistory(ctx, a, h)
	})
}

// Get returns one appointment after a read authorization.
func (s *Service) Get(ctx context.Context, p policy.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionRead, a.Describe()); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateFields holds the mutable attributes of an appointment. Nil fields are
// left unchanged.
type UpdateFields struct {
	Title       *string
	Description *string
	Date        *time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	Location    *string
	Notes       *string
	DoctorID    *uuid.UUID
	ClientID    *uuid.UUID
	Status      *Status
}

// reschedules reports whether the update touches the slot itself. Moving the
// appointment to another doctor changes which calendar the conflict check
// runs against, so it reschedules even with unchanged times.
func (f UpdateFields) reschedules() bool {
	return f.Date != nil || f.StartTime != nil || f.EndTime != nil || f.DoctorID != nil
}

// Update edits appointment details. Date, time or doctor changes re-run the
// conflict check against the (possibly new) doctor's calendar and require the
// appointment to still be Scheduled. A status change through Update follows
// the status machine and appends one history row with reason
// "Appointment updated"; all other field edits write no history.
func (s *Service) Update(ctx context.Context, p policy.Principal, id uuid.UUID, f UpdateFields) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, a.Describe()); err != nil {
		return nil, err
	}

	if f.DoctorID != nil && *f.DoctorID != a.DoctorID {
		if ok, err := s.dir.DoctorExists(ctx, *f.DoctorID); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("doctor %s: %w", *f.DoctorID, ErrUnknownParticipant)
		}
	}
	if f.ClientID != nil && *f.ClientID != a.ClientID {
		if ok, err := s.dir.ClientExists(ctx, *f.ClientID); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("client %s: %w", *f.ClientID, ErrUnknownParticipant)
		}
	}

	if f.Title != nil {
		a.Title = *f.Title
	}
	if f.Description != nil {
		a.Description = f.Description
	}
	if f.Location != nil {
		a.Location = f.Location
	}
	if f.Notes != nil {
		a.Notes = f.Notes
	}
	if f.ClientID != nil {
		a.ClientID = *f.ClientID
	}

	if f.reschedules() {
		if a.Status != StatusScheduled {
			return nil, ErrTerminalStatus
		}
		if f.Date != nil {
			a.Date = *f.Date
		}
		if f.StartTime != nil {
			a.StartTime = *f.StartTime
		}
		if f.EndTime != nil {
			a.EndTime = *f.EndTime
		}
		if f.DoctorID != nil {
			a.DoctorID = *f.DoctorID
		}
		if !a.EndTime.After(a.StartTime) {
			return nil, ErrInvalidTime
		}
		if !a.WithinDate() {
			return nil, ErrTimeOutsideDate
		}

		err = s.locker.WithScheduleLock(ctx, a.DoctorID, a.Date, func(ctx context.Context) error {
			return s.repo.UpdateTimes(ctx, a)
		})
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.Update(ctx, a); err != nil {
			return nil, err
		}
	}

	// Setting the current status again is a no-op, not a transition.
	if f.Status != nil && *f.Status != a.Status {
		if !CanTransition(a.Status, *f.Status) {
			return nil, fmt.Errorf("cannot change status from %s to %s: %w", a.Status, *f.Status, ErrTerminalStatus)
		}
		h := newHistory(a.ID, a.Status, *f.Status, "Appointment updated", p)
		a.Status = *f.Status
		if err := s.repo.UpdateStatusWithHistory(ctx, a, h); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ChangeStatus moves the appointment through the status machine and appends
// the transition to its history.
func (s *Service) ChangeStatus(ctx context.Context, p policy.Principal, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionWrite, a.Describe()); err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("cannot change status from %s to %s: %w", a.Status, to, ErrTerminalStatus)
	}

	h := newHistory(a.ID, a.Status, to, reason, p)
	a.Status = to
	if err := s.repo.UpdateStatusWithHistory(ctx, a, h); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel is ChangeStatus to Cancelled.
func (s *Service) Cancel(ctx context.Context, p policy.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		reason = "Appointment cancelled"
	}
	return s.ChangeStatus(ctx, p, id, StatusCancelled, reason)
}

// Complete is ChangeStatus to Completed.
func (s *Service) Complete(ctx context.Context, p policy.Principal, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		reason = "Appointment completed"
	}
	return s.ChangeStatus(ctx, p, id, StatusCompleted, reason)
}

// Delete removes the appointment and, through the schema's cascade, its
// history. Deletion itself is not a status transition and writes no history
// row.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, policy.ActionDelete, a.Describe()); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ListForClient returns a client's appointments. Clients see only their own;
// doctors need a current assignment.
func (s *Service) ListForClient(ctx context.Context, p policy.Principal, clientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	d := policy.Descriptor{Kind: policy.KindAppointment, OwnerClientID: clientID}
	if err := s.authorize(ctx, p, policy.ActionRead, d); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, Filter{ClientID: &clientID}, limit, offset)
}

// ListForDoctor returns a doctor's calendar. Doctors see only their own.
func (s *Service) ListForDoctor(ctx context.Context, p policy.Principal, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if p.Role != policy.RoleAdmin && !(p.Role == policy.RoleDoctor && p.ID == doctorID) {
		return nil, 0, policy.Denied(policy.Decision{Reason: "not your calendar"})
	}
	return s.repo.List(ctx, Filter{DoctorID: &doctorID}, limit, offset)
}

// Upcoming lists the principal's future appointments, scoped by role.
func (s *Service) Upcoming(ctx context.Context, p policy.Principal, limit, offset int) ([]*Appointment, int, error) {
	from := time.Now().UTC().Truncate(24 * time.Hour)
	status := StatusScheduled
	f := Filter{From: &from, Status: &status}
	switch p.Role {
	case policy.RoleDoctor:
		f.DoctorID = &p.ID
	case policy.RoleClient:
		f.ClientID = &p.ID
	}
	return s.repo.List(ctx, f, limit, offset)
}

// History returns the append-only status history, guarded by the same read
// policy as the appointment itself.
func (s *Service) History(ctx context.Context, p policy.Principal, id uuid.UUID) ([]*History, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionRead, a.Describe()); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}
