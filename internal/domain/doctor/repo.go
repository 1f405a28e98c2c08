package doctor

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for the doctor pool.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	ListByStatus(ctx context.Context, specialty, level string, statuses []string) ([]*Doctor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	RecordLogin(ctx context.Context, id uuid.UUID) error
	AddEarnings(ctx context.Context, id uuid.UUID, amount float64) error
	UpdateLoadCount(ctx context.Context, id uuid.UUID, count int) error

	// CountActiveAssigned counts consultations currently held by the
	// doctor, computed live from the consultation table.
	CountActiveAssigned(ctx context.Context, doctorID uuid.UUID) (int, error)

	EarningsSummary(ctx context.Context, doctorID uuid.UUID) (*EarningsSummary, error)
}
