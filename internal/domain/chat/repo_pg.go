package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waddasfs/openmedical/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chat_message (id, consultation_id, sender_id, sender_type, message_type, content, attachments)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.ConsultationID, m.SenderID, m.SenderType, m.MessageType, m.Content, m.Attachments,
	)
	return err
}

func (r *repoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_message WHERE consultation_id = $1`, consultationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, consultation_id, sender_id, sender_type, message_type, content, attachments, created_at
		FROM chat_message WHERE consultation_id = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		consultationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.SenderType, &m.MessageType, &m.Content, &m.Attachments, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, &m)
	}
	return messages, total, rows.Err()
}

func (r *repoPG) LatestByConsultation(ctx context.Context, consultationID uuid.UUID) (*Message, error) {
	var m Message
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, consultation_id, sender_id, sender_type, message_type, content, attachments, created_at
		FROM chat_message WHERE consultation_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		consultationID).
		Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.SenderType, &m.MessageType, &m.Content, &m.Attachments, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
