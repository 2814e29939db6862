// Package appointment implements scheduling: conflict-checked booking, a
// small status machine, and an append-only status history per appointment.
package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/policy"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"

	// statusNone marks the previous-status column of the first history row.
	statusNone Status = "None"
)

// ParseStatus converts a request value into a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// CanTransition reports whether the status machine allows from -> to.
// Completed and Cancelled are terminal.
func CanTransition(from, to Status) bool {
	if from != StatusScheduled {
		return false
	}
	return to == StatusCompleted || to == StatusCancelled
}

// Appointment is a booked slot on a doctor's calendar. Date carries the
// calendar day; StartTime and EndTime carry the time of day on that date.
type Appointment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Date        time.Time  `db:"date" json:"date"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     time.Time  `db:"end_time" json:"end_time"`
	Status      Status     `db:"status" json:"status"`
	Location    *string    `db:"location" json:"location,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Describe implements policy.Resource.
func (a *Appointment) Describe() policy.Descriptor {
	doctorID := a.DoctorID
	return policy.Descriptor{
		Kind:          policy.KindAppointment,
		RecordID:      a.ID,
		OwnerClientID: a.ClientID,
		DoctorID:      &doctorID,
	}
}

// Overlaps reports whether [start, end) intersects the appointment's own
// half-open interval. Touching endpoints do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return start.Before(a.EndTime) && end.After(a.StartTime)
}

// WithinDate reports whether [StartTime, EndTime) lies on the appointment's
// calendar date. Conflicts are keyed on the date column, so times on any
// other day would escape the check. An end at exactly midnight closes the
// day's last slot and counts as on-date.
func (a *Appointment) WithinDate() bool {
	if !sameDay(a.Date, a.StartTime) {
		return false
	}
	nextMidnight := a.Date.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return sameDay(a.Date, a.EndTime) || a.EndTime.Equal(nextMidnight)
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.UTC().Date()
	y2, m2, d2 := b.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// History is one append-only status transition record. The first row of an
// appointment has PreviousStatus "None".
type History struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	AppointmentID  uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	PreviousStatus Status      `db:"previous_status" json:"previous_status"`
	NewStatus      Status      `db:"new_status" json:"new_status"`
	ChangeReason   string      `db:"change_reason" json:"change_reason"`
	ChangedBy      string      `db:"changed_by" json:"changed_by"`
	ChangedByRole  policy.Role `db:"changed_by_role" json:"changed_by_role"`
	ChangedAt      time.Time   `db:"changed_at" json:"changed_at"`
}

func newHistory(appointmentID uuid.UUID, prev, next Status, reason string, by policy.Principal) *History {
	return &History{
		ID:             uuid.New(),
		AppointmentID:  appointmentID,
		PreviousStatus: prev,
		NewStatus:      next,
		ChangeReason:   reason,
		ChangedBy:      by.Username,
		ChangedByRole:  by.Role,
		ChangedAt:      time.Now().UTC(),
	}
}
