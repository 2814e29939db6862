package messaging

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

const messageCols = `id, sender_username, sender_role, receiver_username,
	receiver_role, content, sent_at, read_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderUsername, &m.SenderRole,
		&m.ReceiverUsername, &m.ReceiverRole, &m.Content, &m.SentAt, &m.ReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO messages
			(id, sender_username, sender_role, receiver_username,
			 receiver_role, content, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.SenderUsername, m.SenderRole, m.ReceiverUsername,
		m.ReceiverRole, m.Content, m.SentAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE id = $1`, id))
}

func (r *repoPG) Conversation(ctx context.Context, userA, userB string, limit, offset int) ([]*Message, int, error) {
	conn := db.Conn(ctx, r.pool)
	pair := ` WHERE (sender_username = $1 AND receiver_username = $2)
	             OR (sender_username = $2 AND receiver_username = $1)`

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM messages`+pair, userA, userB).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+messageCols+` FROM messages`+pair+
			` ORDER BY sent_at LIMIT $3 OFFSET $4`,
		userA, userB, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func (r *repoPG) Inbox(ctx context.Context, username string, limit, offset int) ([]*Message, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_username = $1`, username).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+messageCols+` FROM messages
		 WHERE receiver_username = $1
		 ORDER BY sent_at DESC LIMIT $2 OFFSET $3`,
		username, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func collect(rows pgx.Rows, total int) ([]*Message, int, error) {
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	// Already-read messages keep their original read_at.
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE messages SET read_at = $2 WHERE id = $1 AND read_at IS NULL`, id, at)
	return err
}
