package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/platform/lock"
	"github.com/clinicore/clinicore/internal/policy"
)

type fakeDirectory struct {
	doctors     map[uuid.UUID]bool
	clients     map[uuid.UUID]bool
	assignments map[uuid.UUID]uuid.UUID // clientID -> doctorID
}

func (d *fakeDirectory) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.doctors[id], nil
}

func (d *fakeDirectory) ClientExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.clients[id], nil
}

func (d *fakeDirectory) IsAssigned(_ context.Context, doctorID, clientID uuid.UUID) (bool, error) {
	return d.assignments[clientID] == doctorID, nil
}

type fixture struct {
	svc     *Service
	doctor  policy.Principal
	doctor2 policy.Principal
	client  policy.Principal
	admin   policy.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doctor := policy.Principal{ID: uuid.New(), Role: policy.RoleDoctor, Username: "drhouse"}
	doctor2 := policy.Principal{ID: uuid.New(), Role: policy.RoleDoctor, Username: "drgrey"}
	client := policy.Principal{ID: uuid.New(), Role: policy.RoleClient, Username: "pat"}
	admin := policy.Principal{ID: uuid.New(), Role: policy.RoleAdmin, Username: "root"}

	dir := &fakeDirectory{
		doctors:     map[uuid.UUID]bool{doctor.ID: true, doctor2.ID: true},
		clients:     map[uuid.UUID]bool{client.ID: true},
		assignments: map[uuid.UUID]uuid.UUID{client.ID: doctor.ID},
	}
	svc := NewService(NewMemRepo(), policy.NewEngine(dir), dir, nil)
	return &fixture{svc: svc, doctor: doctor, doctor2: doctor2, client: client, admin: admin}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 14, hour, min, 0, 0, time.UTC)
}

var day = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

func (f *fixture) newAppointment(doctorID uuid.UUID, start, end time.Time) *Appointment {
	return &Appointment{
		Title:     "Consultation",
		Date:      day,
		StartTime: start,
		EndTime:   end,
		ClientID:  f.client.ID,
		DoctorID:  doctorID,
	}
}

func TestCreateRejectsInvertedTimes(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Create(context.Background(), f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(9, 0)))
	assert.ErrorIs(t, err, ErrInvalidTime)

	err = f.svc.Create(context.Background(), f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(10, 0)))
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestCreateRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))))

	err := f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 30), at(11, 30)))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateAllowsBackToBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))))
	assert.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(11, 0), at(12, 0))))
}

func TestCreateAllowsOverlapAcrossDoctors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))))
	assert.NoError(t, f.svc.Create(ctx, f.admin, f.newAppointment(f.doctor2.ID, at(10, 0), at(11, 0))))
}

func TestCancelledSlotIsReusable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	_, err := f.svc.Cancel(ctx, f.doctor, a.ID, "patient request")
	require.NoError(t, err)

	assert.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))))
}

func TestCreateAndCancelWriteExactlyTwoHistoryRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	_, err := f.svc.Cancel(ctx, f.doctor, a.ID, "patient request")
	require.NoError(t, err)

	rows, err := f.svc.History(ctx, f.doctor, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, statusNone, rows[0].PreviousStatus)
	assert.Equal(t, StatusScheduled, rows[0].NewStatus)
	assert.Equal(t, "Appointment created", rows[0].ChangeReason)
	assert.Equal(t, "drhouse", rows[0].ChangedBy)
	assert.Equal(t, policy.RoleDoctor, rows[0].ChangedByRole)

	assert.Equal(t, StatusScheduled, rows[1].PreviousStatus)
	assert.Equal(t, StatusCancelled, rows[1].NewStatus)
	assert.Equal(t, "patient request", rows[1].ChangeReason)
}

func TestNotesOnlyUpdateWritesNoHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))

	notes := "bring previous lab work"
	_, err := f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{Notes: &notes})
	require.NoError(t, err)

	rows, err := f.svc.History(ctx, f.doctor, a.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreateRejectsTimesOffTheDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Times a day after the appointment date would dodge the per-date
	// conflict check.
	nextDay := func(hour int) time.Time { return at(hour, 0).AddDate(0, 0, 1) }
	err := f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, nextDay(10), nextDay(11)))
	assert.ErrorIs(t, err, ErrTimeOutsideDate)

	err = f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), nextDay(11)))
	assert.ErrorIs(t, err, ErrTimeOutsideDate)

	// The day's last slot may end exactly at midnight.
	err = f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(23, 0), nextDay(0)))
	assert.NoError(t, err)
}

func TestUpdateReassignsDoctorAndRechecksConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	// doctor2 already has the same slot booked.
	require.NoError(t, f.svc.Create(ctx, f.admin, f.newAppointment(f.doctor2.ID, at(10, 0), at(11, 0))))

	_, err := f.svc.Update(ctx, f.admin, a.ID, UpdateFields{DoctorID: &f.doctor2.ID})
	assert.ErrorIs(t, err, ErrConflict)

	// A free slot on the new doctor's calendar goes through.
	start, end := at(12, 0), at(13, 0)
	got, err := f.svc.Update(ctx, f.admin, a.ID, UpdateFields{
		DoctorID: &f.doctor2.ID, StartTime: &start, EndTime: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, f.doctor2.ID, got.DoctorID)

	// The vacated slot on the original doctor's calendar is reusable.
	assert.NoError(t, f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))))
}

func TestUpdateRejectsUnknownDoctor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))

	ghost := uuid.New()
	_, err := f.svc.Update(ctx, f.admin, a.ID, UpdateFields{DoctorID: &ghost})
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestUpdateStatusWritesHistoryRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))

	completed := StatusCompleted
	got, err := f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	rows, err := f.svc.History(ctx, f.doctor, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, StatusScheduled, rows[1].PreviousStatus)
	assert.Equal(t, StatusCompleted, rows[1].NewStatus)
	assert.Equal(t, "Appointment updated", rows[1].ChangeReason)

	// Completed is terminal, also through the update path.
	cancelled := StatusCancelled
	_, err = f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{Status: &cancelled})
	assert.ErrorIs(t, err, ErrTerminalStatus)

	// Re-stating the current status is a no-op and writes nothing.
	_, err = f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{Status: &completed})
	require.NoError(t, err)
	rows, err = f.svc.History(ctx, f.doctor, a.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRescheduleChecksConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	b := f.newAppointment(f.doctor.ID, at(14, 0), at(15, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, b))

	start, end := at(14, 30), at(15, 30)
	_, err := f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, ErrConflict)

	start, end = at(15, 0), at(16, 0)
	_, err = f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{StartTime: &start, EndTime: &end})
	assert.NoError(t, err)
}

func TestTerminalStatusesRejectFurtherTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	_, err := f.svc.Complete(ctx, f.doctor, a.ID, "seen")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.doctor, a.ID, "oops")
	assert.ErrorIs(t, err, ErrTerminalStatus)

	notes := "late note"
	start, end := at(12, 0), at(13, 0)
	_, err = f.svc.Update(ctx, f.doctor, a.ID, UpdateFields{Notes: &notes, StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, ErrTerminalStatus)
}

func TestClientCannotWriteAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.Create(ctx, f.client, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0)))
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	_, err = f.svc.Cancel(ctx, f.client, a.ID, "changed my mind")
	assert.ErrorAs(t, err, &denied)

	// Reading their own appointment is allowed.
	got, err := f.svc.Get(ctx, f.client, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestUnassignedDoctorCannotListClientAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.ListForClient(ctx, f.doctor2, f.client.ID, 20, 0)
	var denied *policy.DeniedError
	assert.ErrorAs(t, err, &denied)

	_, _, err = f.svc.ListForClient(ctx, f.doctor, f.client.ID, 20, 0)
	assert.NoError(t, err)
}

func TestListForDoctorScopedToSelf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.ListForDoctor(ctx, f.doctor2, f.doctor.ID, 20, 0)
	var denied *policy.DeniedError
	assert.ErrorAs(t, err, &denied)

	_, _, err = f.svc.ListForDoctor(ctx, f.admin, f.doctor.ID, 20, 0)
	assert.NoError(t, err)
}

func TestDeleteRemovesAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, f.svc.Create(ctx, f.doctor, a))
	require.NoError(t, f.svc.Delete(ctx, f.doctor, a.ID))

	_, err := f.svc.Get(ctx, f.doctor, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentCreateHasExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0)))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, ErrConflict):
			lost++
		}
	}
	assert.Equal(t, 1, won, "exactly one booking should win the race")
	assert.Equal(t, 1, lost)
}

// heldLocker simulates another instance holding the doctor's schedule lock.
type heldLocker struct{}

func (heldLocker) WithScheduleLock(context.Context, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return lock.ErrNotAcquired
}

func TestHeldScheduleLockStopsBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(NewMemRepo(), f.svc.engine, f.svc.dir, heldLocker{})

	err := svc.Create(ctx, f.doctor, f.newAppointment(f.doctor.ID, at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	// Nothing was written while the lock was held elsewhere.
	_, total, err := svc.ListForDoctor(ctx, f.doctor, f.doctor.ID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStatusMachine(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCompleted, StatusScheduled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}
