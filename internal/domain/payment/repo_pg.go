package payment

import (
	"context"
	"errors"
	"fmt"

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

const orderCols = `id, consultation_id, patient_id, amount, currency, receiving_address,
	payment_url, status, tx_ref, expires_at, paid_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment_order (
			id, consultation_id, patient_id, amount, currency, receiving_address,
			payment_url, status, tx_ref, expires_at, paid_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.ConsultationID, o.PatientID, o.Amount, o.Currency, o.ReceivingAddress,
		o.PaymentURL, o.Status, o.TxRef, o.ExpiresAt, o.PaidAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM payment_order WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, o *Order) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment_order SET
			status=$2, tx_ref=$3, paid_at=$4, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Status, o.TxRef, o.PaidAt,
	)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_order WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+orderCols+` FROM payment_order WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.ConsultationID, &o.PatientID, &o.Amount, &o.Currency, &o.ReceivingAddress,
			&o.PaymentURL, &o.Status, &o.TxRef, &o.ExpiresAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			continue
		}
		orders = append(orders, &o)
	}
	return orders, total, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ConsultationID, &o.PatientID, &o.Amount, &o.Currency, &o.ReceivingAddress,
		&o.PaymentURL, &o.Status, &o.TxRef, &o.ExpiresAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment order: %w", err)
	}
	return &o, nil
}
