package assignment

import (
	"context"

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

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_assignment (id, consultation_id, doctor_id, method)
		VALUES ($1,$2,$3,$4)`,
		rec.ID, rec.ConsultationID, rec.DoctorID, rec.Method,
	)
	return err
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_assignment WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, consultation_id, doctor_id, method, created_at
		FROM doctor_assignment WHERE doctor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ConsultationID, &rec.DoctorID, &rec.Method, &rec.CreatedAt); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, total, rows.Err()
}
