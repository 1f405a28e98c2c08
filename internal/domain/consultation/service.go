package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recoveryWindow bounds the lookback when a create reports failure but
// may still have reached the store.
const recoveryWindow = 30 * time.Second

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

var validModes = map[string]bool{
	ModeRealtime: true,
	ModeOnetime:  true,
}

// CreateRequest carries the patient-supplied fields of a new consultation.
type CreateRequest struct {
	Mode        string   `json:"mode"`
	Description string   `json:"description"`
	Symptoms    string   `json:"symptoms"`
	History     string   `json:"history"`
	Attachments []string `json:"attachments"`
	Level       string   `json:"level"`
}

// Create opens a new consultation in PENDING. The price is fixed server-side
// at creation and never trusted from the client: realtime consultations cost
// the flat base fee, one-time consultations cost their package price.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Consultation, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient id is required", ErrValidation)
	}
	if !validModes[req.Mode] {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}

	c := &Consultation{
		ID:          uuid.New(),
		PatientID:   patientID,
		Mode:        req.Mode,
		Description: req.Description,
		Symptoms:    req.Symptoms,
		History:     req.History,
		Attachments: req.Attachments,
		Status:      StatusPending,
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}

	switch req.Mode {
	case ModeRealtime:
		c.Price = RealtimeBaseFee
	case ModeOnetime:
		pkg, ok := PackageFor(req.Level)
		if !ok {
			return nil, fmt.Errorf("%w: unknown level %q", ErrValidation, req.Level)
		}
		c.Level = pkg.Level
		c.Price = pkg.Price
	}

	if err := s.repo.Create(ctx, c); err != nil {
		// The write may have landed before the error surfaced. Re-read
		// before telling the patient to retry, so a flaky store does not
		// produce duplicate consultations.
		if recovered, rerr := s.repo.FindRecentByPatient(ctx, patientID, time.Now().UTC().Add(-recoveryWindow)); rerr == nil {
			s.logger.Warn().Err(err).
				Str("consultation_id", recovered.ID.String()).
				Msg("create reported failure but record was persisted")
			return s.normalize(recovered), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.normalize(c), nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	consults, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i, c := range consults {
		consults[i] = s.normalize(c)
	}
	return consults, total, nil
}

// ListUnassigned returns paid consultations with no doctor, oldest first, so
// assignment drains the backlog in arrival order.
func (s *Service) ListUnassigned(ctx context.Context, limit int) ([]*Consultation, error) {
	consults, err := s.repo.ListUnassigned(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i, c := range consults {
		consults[i] = s.normalize(c)
	}
	return consults, nil
}

// Transition moves a consultation to the next status, enforcing the
// lifecycle order. Timestamps are set once: started_at on the move into
// IN_PROGRESS, completed_at on the move into COMPLETED.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, newStatus string) (*Consultation, error) {
	if newStatus != StatusCancelled {
		if _, ok := statusRank[newStatus]; !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
		}
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, newStatus)
	}

	now := time.Now().UTC()
	c.Status = newStatus
	switch newStatus {
	case StatusInProgress:
		if c.StartedAt == nil {
			c.StartedAt = &now
		}
	case StatusCompleted:
		if c.CompletedAt == nil {
			c.CompletedAt = &now
		}
	}
	c.UpdatedAt = now

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update consultation status: %w", err)
	}
	s.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("status", newStatus).
		Msg("consultation transitioned")
	return s.normalize(c), nil
}

// ClaimAssignment atomically assigns a doctor if the consultation is still
// unclaimed. False with a nil error means another doctor won the race.
func (s *Service) ClaimAssignment(ctx context.Context, id, doctorID uuid.UUID) (bool, error) {
	if doctorID == uuid.Nil {
		return false, fmt.Errorf("%w: doctor id is required", ErrValidation)
	}
	return s.repo.ClaimAssignment(ctx, id, doctorID)
}

// AttachPaymentOrder links the consultation to its payment order.
func (s *Service) AttachPaymentOrder(ctx context.Context, id, orderID uuid.UUID) error {
	if err := s.repo.SetPaymentOrder(ctx, id, orderID); err != nil {
		return fmt.Errorf("attach payment order: %w", err)
	}
	return nil
}

// normalize backfills defaults on records read from the store, so partially
// written or legacy rows never surface with holes.
func (s *Service) normalize(c *Consultation) *Consultation {
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	if c.Mode == ModeOnetime && c.Price == 0 {
		if pkg, ok := PackageFor(c.Level); ok {
			c.Price = pkg.Price
		}
	}
	return c
}
