package prediction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const predictionCols = `id, client_id, model, input, output,
	reviewed_by, review_feedback, reviewed_at, created_at`

// scanPrediction folds the three nullable review columns into one value.
func scanPrediction(row pgx.Row) (*Prediction, error) {
	var (
		p          Prediction
		reviewedBy *uuid.UUID
		feedback   *string
		reviewedAt *time.Time
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.Model, &p.Input, &p.Output,
		&reviewedBy, &feedback, &reviewedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reviewedBy != nil {
		p.Review = &Review{DoctorID: *reviewedBy, Feedback: *feedback, At: *reviewedAt}
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prediction) error {
	p.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO predictions (id, client_id, model, input, output)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.ClientID, p.Model, p.Input, p.Output)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prediction, error) {
	return scanPrediction(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE id = $1`, id))
}

func (r *repoPG) SetReview(ctx context.Context, id uuid.UUID, rev *Review) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE predictions
		SET reviewed_by = $2, review_feedback = $3, reviewed_at = $4
		WHERE id = $1 AND reviewed_by IS NULL`,
		id, rev.DoctorID, rev.Feedback, rev.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Prediction, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM predictions WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+predictionCols+` FROM predictions
		WHERE client_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func (r *repoPG) ListUnreviewed(ctx context.Context, limit, offset int) ([]*Prediction, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM predictions WHERE reviewed_by IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+predictionCols+` FROM predictions
		WHERE reviewed_by IS NULL
		ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func collect(rows pgx.Rows, total int) ([]*Prediction, int, error) {
	var out []*Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
