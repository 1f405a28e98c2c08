package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const consultCols = `id, patient_id, mode, description, symptoms, history, attachments,
	level, status, assigned_doctor_id, price, payment_order_id,
	created_at, updated_at, started_at, completed_at`

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation (
			id, patient_id, mode, description, symptoms, history, attachments,
			level, status, assigned_doctor_id, price, payment_order_id,
			started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, c.PatientID, c.Mode, c.Description, c.Symptoms, c.History, c.Attachments,
		c.Level, c.Status, c.AssignedDoctorID, c.Price, c.PaymentOrderID,
		c.StartedAt, c.CompletedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultCols+` FROM consultation WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Consultation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET
			mode=$2, description=$3, symptoms=$4, history=$5, attachments=$6,
			level=$7, status=$8, assigned_doctor_id=$9, price=$10, payment_order_id=$11,
			started_at=$12, completed_at=$13, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Mode, c.Description, c.Symptoms, c.History, c.Attachments,
		c.Level, c.Status, c.AssignedDoctorID, c.Price, c.PaymentOrderID,
		c.StartedAt, c.CompletedAt,
	)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consultation WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+consultCols+` FROM consultation WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectConsults(rows, total)
}

func (r *repoPG) ListUnassigned(ctx context.Context, limit int) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+consultCols+` FROM consultation
		 WHERE status = $1 AND assigned_doctor_id IS NULL
		 ORDER BY created_at ASC LIMIT $2`,
		StatusPaid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	consults, _, err := collectConsults(rows, 0)
	return consults, err
}

func (r *repoPG) SetPaymentOrder(ctx context.Context, id, orderID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE consultation SET payment_order_id = $2, updated_at = NOW() WHERE id = $1`,
		id, orderID)
	return err
}

// ClaimAssignment is a conditional update: the WHERE clause only matches when
// no doctor is assigned, so concurrent claims resolve to exactly one winner.
func (r *repoPG) ClaimAssignment(ctx context.Context, id, doctorID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET assigned_doctor_id = $2, updated_at = NOW()
		WHERE id = $1 AND assigned_doctor_id IS NULL`,
		id, doctorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) FindRecentByPatient(ctx context.Context, patientID uuid.UUID, since time.Time) (*Consultation, error) {
	return scanConsult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultCols+` FROM consultation
		 WHERE patient_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT 1`,
		patientID, since))
}

func scanConsult(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(
		&c.ID, &c.PatientID, &c.Mode, &c.Description, &c.Symptoms, &c.History, &c.Attachments,
		&c.Level, &c.Status, &c.AssignedDoctorID, &c.Price, &c.PaymentOrderID,
		&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consultation: %w", err)
	}
	return &c, nil
}

func collectConsults(rows pgx.Rows, total int) ([]*Consultation, int, error) {
	var consults []*Consultation
	for rows.Next() {
		var c Consultation
		err := rows.Scan(
			&c.ID, &c.PatientID, &c.Mode, &c.Description, &c.Symptoms, &c.History, &c.Attachments,
			&c.Level, &c.Status, &c.AssignedDoctorID, &c.Price, &c.PaymentOrderID,
			&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.CompletedAt,
		)
		if err != nil {
			// A malformed row must not break the whole listing.
			continue
		}
		consults = append(consults, &c)
	}
	return consults, total, rows.Err()
}
