package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
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

const doctorCols = `id, name, email, license_number, title, specialties, level, bio, status,
	current_consultation_count, total_consultations, total_earnings, login_count, last_login_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor (
			id, name, email, license_number, title, specialties, level, bio, status,
			current_consultation_count, total_consultations, total_earnings, login_count, last_login_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.Name, d.Email, d.LicenseNumber, d.Title, d.Specialties, d.Level, d.Bio, d.Status,
		d.CurrentConsultationCount, d.TotalConsultations, d.TotalEarnings, d.LoginCount, d.LastLoginAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET
			name=$2, email=$3, license_number=$4, title=$5, specialties=$6, level=$7,
			bio=$8, status=$9, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Email, d.LicenseNumber, d.Title, d.Specialties, d.Level,
		d.Bio, d.Status,
	)
	return err
}

func (r *repoPG) ListByStatus(ctx context.Context, specialty, level string, statuses []string) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + ` FROM doctor WHERE status = ANY($1)`
	args := []interface{}{statuses}
	if specialty != "" {
		args = append(args, specialty)
		query += fmt.Sprintf(` AND $%d = ANY(specialties)`, len(args))
	}
	if level != "" {
		args = append(args, level)
		query += fmt.Sprintf(` AND level = $%d`, len(args))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDoctors(rows)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) RecordLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET login_count = login_count + 1, last_login_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *repoPG) AddEarnings(ctx context.Context, id uuid.UUID, amount float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET
			total_earnings = total_earnings + $2,
			total_consultations = total_consultations + 1,
			updated_at = NOW()
		WHERE id = $1`, id, amount)
	return err
}

func (r *repoPG) UpdateLoadCount(ctx context.Context, id uuid.UUID, count int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET current_consultation_count = $2, updated_at = NOW()
		WHERE id = $1`, id, count)
	return err
}

func (r *repoPG) CountActiveAssigned(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM consultation
		WHERE assigned_doctor_id = $1 AND status IN ($2, $3)`,
		doctorID, consultation.StatusPaid, consultation.StatusInProgress).Scan(&count)
	return count, err
}

func (r *repoPG) EarningsSummary(ctx context.Context, doctorID uuid.UUID) (*EarningsSummary, error) {
	var s EarningsSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(price) FILTER (WHERE completed_at >= date_trunc('day', NOW())), 0),
			COALESCE(SUM(price) FILTER (WHERE completed_at >= date_trunc('week', NOW())), 0),
			COALESCE(SUM(price) FILTER (WHERE completed_at >= date_trunc('month', NOW())), 0),
			COALESCE(SUM(price), 0),
			COUNT(*)
		FROM consultation
		WHERE assigned_doctor_id = $1 AND status = $2`,
		doctorID, consultation.StatusCompleted).
		Scan(&s.Today, &s.ThisWeek, &s.ThisMonth, &s.Total, &s.CompletedCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.LicenseNumber, &d.Title, &d.Specialties, &d.Level,
		&d.Bio, &d.Status, &d.CurrentConsultationCount, &d.TotalConsultations, &d.TotalEarnings,
		&d.LoginCount, &d.LastLoginAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}

func collectDoctors(rows pgx.Rows) ([]*Doctor, error) {
	var doctors []*Doctor
	for rows.Next() {
		var d Doctor
		err := rows.Scan(
			&d.ID, &d.Name, &d.Email, &d.LicenseNumber, &d.Title, &d.Specialties, &d.Level,
			&d.Bio, &d.Status, &d.CurrentConsultationCount, &d.TotalConsultations, &d.TotalEarnings,
			&d.LoginCount, &d.LastLoginAt, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			continue
		}
		doctors = append(doctors, &d)
	}
	return doctors, rows.Err()
}
