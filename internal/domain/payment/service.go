package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
)

// AssignFunc tries to hand a paid consultation to a doctor. False means no
// doctor could take it right now; the sweeper retries later.
type AssignFunc func(ctx context.Context, consultationID uuid.UUID) bool

type Service struct {
	repo          Repository
	consultations *consultation.Service
	logger        zerolog.Logger

	receivingAddress string
	expiry           time.Duration
	assign           AssignFunc
}

func NewService(repo Repository, consultations *consultation.Service, logger zerolog.Logger, receivingAddress string, expiry time.Duration) *Service {
	return &Service{
		repo:             repo,
		consultations:    consultations,
		logger:           logger,
		receivingAddress: receivingAddress,
		expiry:           expiry,
	}
}

// SetAssignHook wires the assignment engine in at startup. The hook is
// optional; without it paid consultations wait for the sweeper.
func (s *Service) SetAssignHook(fn AssignFunc) {
	s.assign = fn
}

// CreateOrder opens a payment order for a PENDING consultation. The amount
// always comes from the consultation record, never from the client. Calling
// again while a live order exists returns that order; a dead order (expired
// or failed) is replaced.
func (s *Service) CreateOrder(ctx context.Context, patientID, consultationID uuid.UUID) (*Order, error) {
	consult, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if consult.PatientID != patientID {
		return nil, ErrNotAuthorized
	}
	if consult.Status != consultation.StatusPending {
		return nil, fmt.Errorf("%w: consultation is %s, not awaiting payment", ErrValidation, consult.Status)
	}

	if consult.PaymentOrderID != nil {
		existing, err := s.repo.GetByID(ctx, *consult.PaymentOrderID)
		if err == nil && (existing.Status == OrderPending || existing.Status == OrderPaid) {
			existing.QRCodeURL = qrCodeURL(existing.PaymentURL)
			return existing, nil
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:               uuid.New(),
		ConsultationID:   consultationID,
		PatientID:        patientID,
		Amount:           consult.Price,
		Currency:         Currency,
		ReceivingAddress: s.receivingAddress,
		Status:           OrderPending,
		ExpiresAt:        now.Add(s.expiry),
	}
	o.PaymentURL = paymentURL(s.receivingAddress, consult.Price)
	o.QRCodeURL = qrCodeURL(o.PaymentURL)

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}
	if err := s.consultations.AttachPaymentOrder(ctx, consultationID, o.ID); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", o.ID.String()).
			Str("consultation_id", consultationID.String()).
			Msg("attach payment order failed")
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.QRCodeURL = qrCodeURL(o.PaymentURL)
	return o, nil
}

// GetByConsultation resolves the consultation's current payment order via
// the pointer the consultation record carries. Only the owning patient or
// an admin may look it up.
func (s *Service) GetByConsultation(ctx context.Context, actorID uuid.UUID, isAdmin bool, consultationID uuid.UUID) (*Order, error) {
	consult, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && consult.PatientID != actorID {
		return nil, ErrNotAuthorized
	}
	if consult.PaymentOrderID == nil {
		return nil, ErrNotFound
	}
	return s.GetOrder(ctx, *consult.PaymentOrderID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	orders, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		o.QRCodeURL = qrCodeURL(o.PaymentURL)
	}
	return orders, total, nil
}

// CheckStatus resolves the order's current status and applies any pending
// state change as a side effect. It never returns an error: an order that
// cannot be read reports FAILED, and a failed side-effect write leaves the
// order for the next check. Deadlines are enforced here, lazily, rather
// than by a expiry timer per order.
func (s *Service) CheckStatus(ctx context.Context, orderID uuid.UUID) string {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("payment status read failed")
		return OrderFailed
	}
	if o.Terminal() {
		return o.Status
	}

	now := time.Now().UTC()
	if o.Expired(now) {
		o.Status = OrderExpired
		if err := s.repo.Update(ctx, o); err != nil {
			s.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order expired failed")
			return OrderPending
		}
		s.logger.Info().Str("order_id", o.ID.String()).Msg("payment order expired")
		return OrderExpired
	}

	if o.TxRef == nil {
		return OrderPending
	}

	o.Status = OrderPaid
	o.PaidAt = &now
	if err := s.repo.Update(ctx, o); err != nil {
		s.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order paid failed")
		return OrderPending
	}
	s.settle(ctx, o)
	return OrderPaid
}

// ConfirmPayment records the chain transaction reference and settles the
// order. The returned status is whatever the settlement resolves to, so a
// confirmation arriving after the deadline reports EXPIRED.
func (s *Service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, txRef string) (string, error) {
	if txRef == "" {
		return "", fmt.Errorf("%w: tx_ref is required", ErrValidation)
	}
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.Terminal() {
		return o.Status, nil
	}
	o.TxRef = &txRef
	if err := s.repo.Update(ctx, o); err != nil {
		return "", fmt.Errorf("record tx_ref: %w", err)
	}
	return s.CheckStatus(ctx, orderID), nil
}

// settle moves the consultation to PAID and offers it to the assignment
// engine. Both steps are best-effort follow-ups to an already-paid order:
// failures are logged and the sweeper reconciles.
func (s *Service) settle(ctx context.Context, o *Order) {
	if _, err := s.consultations.Transition(ctx, o.ConsultationID, consultation.StatusPaid); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", o.ID.String()).
			Str("consultation_id", o.ConsultationID.String()).
			Msg("consultation transition to PAID failed")
		return
	}
	if s.assign != nil && !s.assign(ctx, o.ConsultationID) {
		s.logger.Info().
			Str("consultation_id", o.ConsultationID.String()).
			Msg("no doctor available, consultation queued for sweep")
	}
}

func paymentURL(address string, amount float64) string {
	return fmt.Sprintf("tronlink://send?to=%s&amount=%s&token=%s",
		url.QueryEscape(address), fmt.Sprintf("%.2f", amount), Currency)
}

// qrCodeURL is derived from the payment URL rather than stored, so the
// image always encodes the current link format.
func qrCodeURL(paymentURL string) string {
	return fmt.Sprintf("https://api.qrserver.com/v1/create-qr-code/?size=220x220&data=%s",
		url.QueryEscape(paymentURL))
}
