package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/platform/websocket"
)

type Service struct {
	repo          Repository
	consultations *consultation.Service
	publisher     websocket.EventPublisher
	logger        zerolog.Logger
}

func NewService(repo Repository, consultations *consultation.Service, publisher websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		consultations: consultations,
		publisher:     publisher,
		logger:        logger,
	}
}

// Send stores a message on a consultation and pushes it to live listeners.
// Only the patient and the assigned doctor may write, and only while the
// consultation is in progress. A message needs text content or at least
// one attachment.
func (s *Service) Send(ctx context.Context, senderID uuid.UUID, senderType string, consultationID uuid.UUID, messageType, content string, attachments []string) (*Message, error) {
	if content == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if messageType == "" {
		messageType = TypeText
	}
	if !validMessageTypes[messageType] {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, messageType)
	}
	if !validSenderTypes[senderType] {
		return nil, fmt.Errorf("%w: unknown sender type %q", ErrValidation, senderType)
	}

	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(c, senderID, senderType) {
		return nil, ErrNotAuthorized
	}
	if c.Status != consultation.StatusInProgress {
		return nil, fmt.Errorf("%w: consultation is %s", ErrValidation, c.Status)
	}

	if attachments == nil {
		attachments = []string{}
	}
	m := &Message{
		ID:             uuid.New(),
		ConsultationID: consultationID,
		SenderID:       senderID,
		SenderType:     senderType,
		MessageType:    messageType,
		Content:        content,
		Attachments:    attachments,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}
	m.CreatedAt = time.Now().UTC()

	s.broadcast(ctx, m)
	return m, nil
}

// History returns the consultation's messages oldest first, for either
// participant.
func (s *Service) History(ctx context.Context, actorID uuid.UUID, actorType string, consultationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, 0, err
	}
	if actorType != "admin" && !isParticipant(c, actorID, actorType) {
		return nil, 0, ErrNotAuthorized
	}
	return s.repo.ListByConsultation(ctx, consultationID, limit, offset)
}

// Latest returns the most recent message on a consultation, subject to the
// same access rules as History.
func (s *Service) Latest(ctx context.Context, actorID uuid.UUID, actorType string, consultationID uuid.UUID) (*Message, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if actorType != "admin" && !isParticipant(c, actorID, actorType) {
		return nil, ErrNotAuthorized
	}
	return s.repo.LatestByConsultation(ctx, consultationID)
}

// broadcast pushes the stored message to websocket subscribers. Delivery is
// best effort; the message is already persisted.
func (s *Service) broadcast(ctx context.Context, m *Message) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(m)
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", m.ID.String()).Msg("chat message marshal failed")
		return
	}
	event := websocket.Event{
		Type:           "chat.message",
		ConsultationID: m.ConsultationID.String(),
		Timestamp:      m.CreatedAt,
		Data:           payload,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("message_id", m.ID.String()).Msg("chat broadcast failed")
	}
}

func isParticipant(c *consultation.Consultation, actorID uuid.UUID, actorType string) bool {
	switch actorType {
	case SenderPatient:
		return c.PatientID == actorID
	case SenderDoctor:
		return c.AssignedDoctorID != nil && *c.AssignedDoctorID == actorID
	default:
		return false
	}
}
