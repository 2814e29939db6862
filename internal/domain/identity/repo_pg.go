package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// =========== Admin Repository ===========

type adminRepoPG struct{ pool *pgxpool.Pool }

func NewAdminRepoPG(pool *pgxpool.Pool) AdminRepository { return &adminRepoPG{pool: pool} }

const adminCols = `id, username, password_hash, first_name, last_name, email, created_at, updated_at`

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.Email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO admins (id, username, password_hash, first_name, last_name, email)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.Username, a.PasswordHash, a.FirstName, a.LastName, a.Email)
	return err
}

func (r *adminRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+adminCols+` FROM admins WHERE id = $1`, id))
}

func (r *adminRepoPG) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+adminCols+` FROM admins WHERE username = $1`, username))
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `id, username, password_hash, first_name, last_name, email,
	specialization, license_number, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Username, &d.PasswordHash, &d.FirstName, &d.LastName,
		&d.Email, &d.Specialization, &d.LicenseNumber, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctors (id, username, password_hash, first_name, last_name, email,
			specialization, license_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.Username, d.PasswordHash, d.FirstName, d.LastName, d.Email,
		d.Specialization, d.LicenseNumber)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByUsername(ctx context.Context, username string) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE username = $1`, username))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctors SET first_name=$2, last_name=$3, email=$4, specialization=$5,
			license_number=$6, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Specialization, d.LicenseNumber)
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+doctorCols+` FROM doctors ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

// =========== Client Repository ===========

type clientRepoPG struct{ pool *pgxpool.Pool }

func NewClientRepoPG(pool *pgxpool.Pool) ClientRepository { return &clientRepoPG{pool: pool} }

const clientCols = `id, username, password_hash, first_name, last_name, email,
	date_of_birth, assigned_doctor_id, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.FirstName, &c.LastName,
		&c.Email, &c.DateOfBirth, &c.AssignedDoctorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *clientRepoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO clients (id, username, password_hash, first_name, last_name, email,
			date_of_birth, assigned_doctor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Username, c.PasswordHash, c.FirstName, c.LastName, c.Email,
		c.DateOfBirth, c.AssignedDoctorID)
	return err
}

func (r *clientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return scanClient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (r *clientRepoPG) GetByUsername(ctx context.Context, username string) (*Client, error) {
	return scanClient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE username = $1`, username))
}

func (r *clientRepoPG) Update(ctx context.Context, c *Client) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE clients SET first_name=$2, last_name=$3, email=$4, date_of_birth=$5,
			assigned_doctor_id=$6, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.Email, c.DateOfBirth, c.AssignedDoctorID)
	return err
}

func (r *clientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	return err
}

func (r *clientRepoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return r.list(ctx, `SELECT `+clientCols+` FROM clients ORDER BY username LIMIT $1 OFFSET $2`,
		`SELECT COUNT(*) FROM clients`, limit, offset)
}

func (r *clientRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Client, int, error) {
	return r.list(ctx,
		`SELECT `+clientCols+` FROM clients WHERE assigned_doctor_id = $3 ORDER BY username LIMIT $1 OFFSET $2`,
		`SELECT COUNT(*) FROM clients WHERE assigned_doctor_id = $1`, limit, offset, doctorID)
}

func (r *clientRepoPG) list(ctx context.Context, query, countQuery string, limit, offset int, args ...interface{}) ([]*Client, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	queryArgs := append([]interface{}{limit, offset}, args...)
	rows, err := conn.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}
