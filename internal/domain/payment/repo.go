package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for payment orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error)
}
