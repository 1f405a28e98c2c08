package assignment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Assignment methods.
const (
	MethodAuto  = "AUTO"
	MethodClaim = "CLAIM"
)

var ErrNotAssigned = errors.New("consultation not assigned to this doctor")

// Record is the audit row written for every successful assignment. The
// consultation itself carries the live assigned_doctor_id; records exist so
// a doctor's history survives reassignment and completion.
type Record struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConsultationID uuid.UUID `db:"consultation_id" json:"consultation_id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Method         string    `db:"method" json:"method"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
