package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
)

// -- Mock order repository --

type mockRepo struct {
	orders     map[uuid.UUID]*Order
	failUpdate bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockRepo) Update(_ context.Context, o *Order) error {
	if m.failUpdate {
		return errors.New("store unavailable")
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	var result []*Order
	for _, o := range m.orders {
		if o.PatientID == patientID {
			result = append(result, o)
		}
	}
	return result, len(result), nil
}

// -- Mock consultation repository --

type consultRepo struct {
	consultations map[uuid.UUID]*consultation.Consultation
}

func newConsultRepo() *consultRepo {
	return &consultRepo{consultations: make(map[uuid.UUID]*consultation.Consultation)}
}

func (m *consultRepo) Create(_ context.Context, c *consultation.Consultation) error {
	m.consultations[c.ID] = c
	return nil
}

func (m *consultRepo) GetByID(_ context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	c, ok := m.consultations[id]
	if !ok {
		return nil, consultation.ErrNotFound
	}
	return c, nil
}

func (m *consultRepo) Update(_ context.Context, c *consultation.Consultation) error {
	m.consultations[c.ID] = c
	return nil
}

func (m *consultRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*consultation.Consultation, int, error) {
	return nil, 0, nil
}

func (m *consultRepo) ListUnassigned(_ context.Context, limit int) ([]*consultation.Consultation, error) {
	return nil, nil
}

func (m *consultRepo) SetPaymentOrder(_ context.Context, id, orderID uuid.UUID) error {
	c, ok := m.consultations[id]
	if !ok {
		return consultation.ErrNotFound
	}
	c.PaymentOrderID = &orderID
	return nil
}

func (m *consultRepo) ClaimAssignment(_ context.Context, id, doctorID uuid.UUID) (bool, error) {
	return false, nil
}

func (m *consultRepo) FindRecentByPatient(_ context.Context, patientID uuid.UUID, since time.Time) (*consultation.Consultation, error) {
	return nil, consultation.ErrNotFound
}

// -- Fixture --

type fixture struct {
	svc      *Service
	orders   *mockRepo
	consults *consultRepo
}

func newFixture() *fixture {
	orders := newMockRepo()
	consults := newConsultRepo()
	consultSvc := consultation.NewService(consults, zerolog.Nop())
	svc := NewService(orders, consultSvc, zerolog.Nop(), "TTestReceivingAddr", 24*time.Hour)
	return &fixture{svc: svc, orders: orders, consults: consults}
}

func (f *fixture) addConsultation(patientID uuid.UUID, status string, price float64) *consultation.Consultation {
	c := &consultation.Consultation{
		ID:        uuid.New(),
		PatientID: patientID,
		Mode:      consultation.ModeOnetime,
		Level:     consultation.LevelSenior,
		Status:    status,
		Price:     price,
	}
	f.consults.consultations[c.ID] = c
	return c
}

// -- Tests --

func TestCreateOrder(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)

	o, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.Amount != 50.0 {
		t.Errorf("amount should come from the consultation, got %v", o.Amount)
	}
	if o.Currency != Currency {
		t.Errorf("expected currency USDT, got %s", o.Currency)
	}
	if o.Status != OrderPending {
		t.Errorf("expected status PENDING, got %s", o.Status)
	}
	if !strings.HasPrefix(o.PaymentURL, "tronlink://") {
		t.Errorf("unexpected payment URL %q", o.PaymentURL)
	}
	if !strings.Contains(o.QRCodeURL, "create-qr-code") {
		t.Errorf("expected QR image URL, got %q", o.QRCodeURL)
	}
	if time.Until(o.ExpiresAt) < 23*time.Hour {
		t.Errorf("expected 24h expiry, got %v", time.Until(o.ExpiresAt))
	}
	if c.PaymentOrderID == nil || *c.PaymentOrderID != o.ID {
		t.Error("consultation should reference the new order")
	}
}

func TestCreateOrder_NotOwner(t *testing.T) {
	f := newFixture()
	c := f.addConsultation(uuid.New(), consultation.StatusPending, 50.0)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), c.ID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestCreateOrder_ConsultationNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, consultation.ErrNotFound) {
		t.Fatalf("expected consultation.ErrNotFound, got %v", err)
	}
}

func TestCreateOrder_ConsultationAlreadyPaid(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPaid, 50.0)

	_, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateOrder_ReturnsLiveExistingOrder(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)

	first, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	second, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if err != nil {
		t.Fatalf("second CreateOrder failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("a live pending order should be reused, not replaced")
	}
}

func TestCreateOrder_ReplacesExpiredOrder(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)

	first, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	f.orders.orders[first.ID].Status = OrderExpired

	second, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if err != nil {
		t.Fatalf("CreateOrder after expiry failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("an expired order should be replaced by a fresh one")
	}
}

func TestGetByConsultation(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, err := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	got, err := f.svc.GetByConsultation(context.Background(), patientID, false, c.ID)
	if err != nil {
		t.Fatalf("GetByConsultation failed: %v", err)
	}
	if got.ID != o.ID {
		t.Errorf("expected order %s, got %s", o.ID, got.ID)
	}

	if _, err := f.svc.GetByConsultation(context.Background(), uuid.New(), false, c.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger lookup: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := f.svc.GetByConsultation(context.Background(), uuid.New(), true, c.ID); err != nil {
		t.Errorf("admin lookup should succeed: %v", err)
	}
}

func TestGetByConsultation_NoOrderYet(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)

	_, err := f.svc.GetByConsultation(context.Background(), patientID, false, c.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckStatus_UnknownOrderReportsFailed(t *testing.T) {
	f := newFixture()
	if status := f.svc.CheckStatus(context.Background(), uuid.New()); status != OrderFailed {
		t.Fatalf("expected FAILED for unknown order, got %s", status)
	}
}

func TestCheckStatus_PendingWithoutTxRef(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)

	if status := f.svc.CheckStatus(context.Background(), o.ID); status != OrderPending {
		t.Fatalf("expected PENDING, got %s", status)
	}
}

func TestConfirmPayment_SettlesOrderAndConsultation(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)

	var hookCalled bool
	f.svc.SetAssignHook(func(_ context.Context, id uuid.UUID) bool {
		hookCalled = true
		if id != c.ID {
			t.Errorf("hook received wrong consultation %s", id)
		}
		return true
	})

	status, err := f.svc.ConfirmPayment(context.Background(), o.ID, "tx-abc123")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if status != OrderPaid {
		t.Fatalf("expected PAID, got %s", status)
	}
	if f.orders.orders[o.ID].PaidAt == nil {
		t.Error("paid_at should be set")
	}
	if got := f.consults.consultations[c.ID].Status; got != consultation.StatusPaid {
		t.Errorf("consultation should be PAID, got %s", got)
	}
	if !hookCalled {
		t.Error("assignment hook should fire on settlement")
	}
}

func TestConfirmPayment_RequiresTxRef(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ConfirmPayment(context.Background(), uuid.New(), "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)

	if _, err := f.svc.ConfirmPayment(context.Background(), o.ID, "tx-1"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	status, err := f.svc.ConfirmPayment(context.Background(), o.ID, "tx-2")
	if err != nil {
		t.Fatalf("repeat ConfirmPayment failed: %v", err)
	}
	if status != OrderPaid {
		t.Fatalf("expected PAID on repeat confirm, got %s", status)
	}
	if *f.orders.orders[o.ID].TxRef != "tx-1" {
		t.Error("a settled order must keep its original tx_ref")
	}
}

func TestCheckStatus_LazyExpiry(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	f.orders.orders[o.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	if status := f.svc.CheckStatus(context.Background(), o.ID); status != OrderExpired {
		t.Fatalf("expected EXPIRED, got %s", status)
	}

	// A confirmation after the deadline cannot revive the order.
	status, err := f.svc.ConfirmPayment(context.Background(), o.ID, "tx-late")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if status != OrderExpired {
		t.Fatalf("expected EXPIRED to be terminal, got %s", status)
	}
	if got := f.consults.consultations[c.ID].Status; got != consultation.StatusPending {
		t.Errorf("expired payment must not advance the consultation, got %s", got)
	}
}

func TestCheckStatus_UpdateFailureStaysPending(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	tx := "tx-1"
	f.orders.orders[o.ID].TxRef = &tx
	f.orders.failUpdate = true

	if status := f.svc.CheckStatus(context.Background(), o.ID); status != OrderPending {
		t.Fatalf("expected PENDING when the settle write fails, got %s", status)
	}
}

func TestCheckStatus_AssignHookFalseStillPaid(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	c := f.addConsultation(patientID, consultation.StatusPending, 50.0)
	o, _ := f.svc.CreateOrder(context.Background(), patientID, c.ID)
	f.svc.SetAssignHook(func(context.Context, uuid.UUID) bool { return false })

	status, err := f.svc.ConfirmPayment(context.Background(), o.ID, "tx-1")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if status != OrderPaid {
		t.Fatalf("expected PAID even with no doctor available, got %s", status)
	}
	if got := f.consults.consultations[c.ID].Status; got != consultation.StatusPaid {
		t.Errorf("consultation should stay PAID awaiting the sweeper, got %s", got)
	}
}
