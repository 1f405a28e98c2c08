package consultation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Consultation statuses. A consultation moves strictly forward through
// PENDING, PAID, IN_PROGRESS and COMPLETED; CANCELLED is reachable from
// any non-terminal status.
const (
	StatusPending    = "PENDING"
	StatusPaid       = "PAID"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Consultation modes.
const (
	ModeRealtime = "REALTIME"
	ModeOnetime  = "ONETIME"
)

// Doctor levels, doubling as package tiers for one-time consultations.
const (
	LevelNormal = "NORMAL"
	LevelSenior = "SENIOR"
	LevelExpert = "EXPERT"
)

// RealtimeBaseFee is the flat fee for realtime consultations, in USDT.
const RealtimeBaseFee = 20.0

var (
	ErrNotFound          = errors.New("consultation not found")
	ErrValidation        = errors.New("invalid consultation request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("consultation write not confirmed")
)

// Consultation maps to the consultation table.
type Consultation struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	Mode             string     `db:"mode" json:"mode"`
	Description      string     `db:"description" json:"description"`
	Symptoms         string     `db:"symptoms" json:"symptoms"`
	History          string     `db:"history" json:"history"`
	Attachments      []string   `db:"attachments" json:"attachments"`
	Level            string     `db:"level" json:"level,omitempty"`
	Status           string     `db:"status" json:"status"`
	AssignedDoctorID *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`
	Price            float64    `db:"price" json:"price"`
	PaymentOrderID   *uuid.UUID `db:"payment_order_id" json:"payment_order_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether no further transitions are allowed.
func (c *Consultation) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

var statusRank = map[string]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// CanTransition reports whether a consultation may move from one status to
// the next. Forward moves advance exactly one step; CANCELLED is allowed
// from any non-terminal status.
func CanTransition(from, to string) bool {
	if to == StatusCancelled {
		return from != StatusCompleted && from != StatusCancelled
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// Package is a one-time consultation tier: fixed price, feature list and
// service-level text. The table is static reference data.
type Package struct {
	Level        string   `json:"level"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	Features     []string `json:"features"`
	ResponseTime string   `json:"response_time"`
	Duration     string   `json:"duration"`
}

var packageTable = []Package{
	{
		Level:        LevelNormal,
		Name:         "Standard Consultation",
		Price:        10.0,
		Features:     []string{"Text consultation", "One follow-up question", "General practitioner"},
		ResponseTime: "within 24 hours",
		Duration:     "30 minutes",
	},
	{
		Level:        LevelSenior,
		Name:         "Senior Consultation",
		Price:        50.0,
		Features:     []string{"Text and image consultation", "Three follow-up questions", "Senior specialist", "Written summary"},
		ResponseTime: "within 12 hours",
		Duration:     "60 minutes",
	},
	{
		Level:        LevelExpert,
		Name:         "Expert Consultation",
		Price:        100.0,
		Features:     []string{"Text and image consultation", "Unlimited follow-up questions", "Department-head expert", "Written summary", "Treatment plan review"},
		ResponseTime: "within 6 hours",
		Duration:     "90 minutes",
	},
}

// Packages returns the level package table in tier order.
func Packages() []Package {
	out := make([]Package, len(packageTable))
	copy(out, packageTable)
	return out
}

// PackageFor looks up the package for a level.
func PackageFor(level string) (Package, bool) {
	for _, p := range packageTable {
		if p.Level == level {
			return p, true
		}
	}
	return Package{}, false
}
