package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/policy"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

const recordCols = `id, kind, client_id, doctor_id, title, notes, attributes,
	recorded_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*ClinicalRecord, error) {
	var r ClinicalRecord
	err := row.Scan(&r.ID, &r.Kind, &r.ClientID, &r.DoctorID, &r.Title,
		&r.Notes, &r.Attributes, &r.RecordedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *storePG) Create(ctx context.Context, r *ClinicalRecord) error {
	r.ID = uuid.New()
	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO clinical_records
			(id, kind, client_id, doctor_id, title, notes, attributes, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.Kind, r.ClientID, r.DoctorID, r.Title, r.Notes, r.Attributes,
		r.RecordedAt)
	return err
}

func (s *storePG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalRecord, error) {
	return scanRecord(db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM clinical_records WHERE id = $1`, id))
}

func (s *storePG) Update(ctx context.Context, r *ClinicalRecord) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, `
		UPDATE clinical_records
		SET title = $2, notes = $3, attributes = $4, recorded_at = $5,
		    updated_at = now()
		WHERE id = $1`,
		r.ID, r.Title, r.Notes, r.Attributes, r.RecordedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *storePG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx,
		`DELETE FROM clinical_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *storePG) ListByClient(ctx context.Context, clientID uuid.UUID, kind policy.ResourceKind, limit, offset int) ([]*ClinicalRecord, int, error) {
	conn := db.Conn(ctx, s.pool)

	var total int
	err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_records WHERE client_id = $1 AND kind = $2`,
		clientID, kind).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+recordCols+`
		FROM clinical_records
		WHERE client_id = $1 AND kind = $2
		ORDER BY recorded_at DESC
		LIMIT $3 OFFSET $4`,
		clientID, kind, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*ClinicalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
