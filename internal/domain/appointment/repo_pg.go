package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, title, description, date, start_time, end_time, status,
	location, notes, client_id, doctor_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Date, &a.StartTime,
		&a.EndTime, &a.Status, &a.Location, &a.Notes, &a.ClientID, &a.DoctorID,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// asConflict converts an exclusion-constraint violation into ErrConflict.
// The advisory lock makes this a backstop, not the primary check.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return ErrConflict
	}
	return err
}

// lockSchedule serializes writers on the same doctor's calendar day for the
// duration of the surrounding transaction.
func lockSchedule(ctx context.Context, q db.Queryable, doctorID uuid.UUID, date time.Time) error {
	key := doctorID.String() + ":" + date.Format("2006-01-02")
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func (r *repoPG) hasConflict(ctx context.Context, a *Appointment) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND status <> $3
			  AND id <> $4
			  AND start_time < $5
			  AND end_time > $6
		)`,
		a.DoctorID, a.Date, StatusCancelled, a.ID, a.EndTime, a.StartTime).Scan(&exists)
	return exists, err
}

func (r *repoPG) CreateWithHistory(ctx context.Context, a *Appointment, h *History) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		if err := lockSchedule(ctx, conn, a.DoctorID, a.Date); err != nil {
			return fmt.Errorf("lock schedule: %w", err)
		}
		conflict, err := r.hasConflict(ctx, a)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if conflict {
			return ErrConflict
		}

		_, err = conn.Exec(ctx, `
			INSERT INTO appointments
				(id, title, description, date, start_time, end_time, status,
				 location, notes, client_id, doctor_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			a.ID, a.Title, a.Description, a.Date, a.StartTime, a.EndTime,
			a.Status, a.Location, a.Notes, a.ClientID, a.DoctorID)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", asConflict(err))
		}
		return r.insertHistory(ctx, h)
	})
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments
		SET title = $2, description = $3, location = $4, notes = $5,
		    client_id = $6, updated_at = now()
		WHERE id = $1`,
		a.ID, a.Title, a.Description, a.Location, a.Notes, a.ClientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateTimes(ctx context.Context, a *Appointment) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		if err := lockSchedule(ctx, conn, a.DoctorID, a.Date); err != nil {
			return fmt.Errorf("lock schedule: %w", err)
		}
		conflict, err := r.hasConflict(ctx, a)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if conflict {
			return ErrConflict
		}

		tag, err := conn.Exec(ctx, `
			UPDATE appointments
			SET title = $2, description = $3, date = $4, start_time = $5,
			    end_time = $6, location = $7, notes = $8, doctor_id = $9,
			    client_id = $10, updated_at = now()
			WHERE id = $1`,
			a.ID, a.Title, a.Description, a.Date, a.StartTime, a.EndTime,
			a.Location, a.Notes, a.DoctorID, a.ClientID)
		if err != nil {
			return asConflict(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repoPG) UpdateStatusWithHistory(ctx context.Context, a *Appointment, h *History) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
			UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`,
			a.ID, a.Status)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.insertHistory(ctx, h)
	})
}

func (r *repoPG) insertHistory(ctx context.Context, h *History) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_history
			(id, appointment_id, previous_status, new_status, change_reason,
			 changed_by, changed_by_role, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.AppointmentID, h.PreviousStatus, h.NewStatus, h.ChangeReason,
		h.ChangedBy, h.ChangedByRole, h.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if f.ClientID != nil {
		where += ` AND client_id = ` + arg(*f.ClientID)
	}
	if f.DoctorID != nil {
		where += ` AND doctor_id = ` + arg(*f.DoctorID)
	}
	if f.From != nil {
		where += ` AND date >= ` + arg(*f.From)
	}
	if f.Status != nil {
		where += ` AND status = ` + arg(*f.Status)
	}

	var total int
	conn := db.Conn(ctx, r.pool)
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		` ORDER BY date, start_time LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repoPG) History(ctx context.Context, appointmentID uuid.UUID) ([]*History, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, appointment_id, previous_status, new_status, change_reason,
		       changed_by, changed_by_role, changed_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY changed_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.AppointmentID, &h.PreviousStatus,
			&h.NewStatus, &h.ChangeReason, &h.ChangedBy, &h.ChangedByRole,
			&h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
