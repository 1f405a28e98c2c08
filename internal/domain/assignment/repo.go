package assignment

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores assignment audit records.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error)
}
