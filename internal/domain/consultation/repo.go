package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for consultations.
type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error)
	ListUnassigned(ctx context.Context, limit int) ([]*Consultation, error)
	SetPaymentOrder(ctx context.Context, id, orderID uuid.UUID) error

	// ClaimAssignment sets the assigned doctor if and only if no doctor is
	// assigned yet. Returns false when another doctor already holds the
	// consultation.
	ClaimAssignment(ctx context.Context, id, doctorID uuid.UUID) (bool, error)

	// FindRecentByPatient returns the newest consultation created by the
	// patient at or after the given time, or ErrNotFound.
	FindRecentByPatient(ctx context.Context, patientID uuid.UUID, since time.Time) (*Consultation, error)
}
