package chat

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for chat messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	ListByConsultation(ctx context.Context, consultationID uuid.UUID, limit, offset int) ([]*Message, int, error)
	LatestByConsultation(ctx context.Context, consultationID uuid.UUID) (*Message, error)
}
