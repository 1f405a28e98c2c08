package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Order statuses. PAID, EXPIRED and FAILED are terminal.
const (
	OrderPending = "PENDING"
	OrderPaid    = "PAID"
	OrderExpired = "EXPIRED"
	OrderFailed  = "FAILED"
)

// Currency is the only settlement currency the platform accepts.
const Currency = "USDT"

var (
	ErrNotFound      = errors.New("payment order not found")
	ErrNotAuthorized = errors.New("not the owner of this consultation")
	ErrValidation    = errors.New("invalid payment request")
)

// Order maps to the payment_order table. ExpiresAt is enforced lazily:
// an order past its deadline flips to EXPIRED the next time its status is
// checked, and the sweeper picks up the ones nobody asks about.
type Order struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ConsultationID   uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	Amount           float64    `db:"amount" json:"amount"`
	Currency         string     `db:"currency" json:"currency"`
	ReceivingAddress string     `db:"receiving_address" json:"receiving_address"`
	PaymentURL       string     `db:"payment_url" json:"payment_url"`
	QRCodeURL        string     `db:"-" json:"qr_code_url"`
	Status           string     `db:"status" json:"status"`
	TxRef            *string    `db:"tx_ref" json:"tx_ref,omitempty"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	PaidAt           *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the order can no longer change status.
func (o *Order) Terminal() bool {
	return o.Status == OrderPaid || o.Status == OrderExpired || o.Status == OrderFailed
}

// Expired reports whether the order's payment deadline has passed.
func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
