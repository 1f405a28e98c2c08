package doctor

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Doctor availability statuses. SUSPENDED doctors keep their record but
// never appear in listings or the assignment pool.
const (
	StatusActive    = "ACTIVE"
	StatusBusy      = "BUSY"
	StatusOffline   = "OFFLINE"
	StatusSuspended = "SUSPENDED"
)

// Doctor levels mirror the consultation package tiers.
const (
	LevelNormal = "NORMAL"
	LevelSenior = "SENIOR"
	LevelExpert = "EXPERT"
)

var (
	ErrNotFound   = errors.New("doctor not found")
	ErrValidation = errors.New("invalid doctor record")
)

// Doctor maps to the doctor table. CurrentConsultationCount is a cached
// load counter; the live value is always recomputed from the consultation
// table before assignment decisions.
type Doctor struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	Name                     string     `db:"name" json:"name"`
	Email                    string     `db:"email" json:"email"`
	LicenseNumber            string     `db:"license_number" json:"license_number"`
	Title                    string     `db:"title" json:"title"`
	Specialties              []string   `db:"specialties" json:"specialties"`
	Level                    string     `db:"level" json:"level"`
	Bio                      string     `db:"bio" json:"bio"`
	Status                   string     `db:"status" json:"status"`
	CurrentConsultationCount int        `db:"current_consultation_count" json:"current_consultation_count"`
	TotalConsultations       int        `db:"total_consultations" json:"total_consultations"`
	TotalEarnings            float64    `db:"total_earnings" json:"total_earnings"`
	LoginCount               int        `db:"login_count" json:"login_count"`
	LastLoginAt              *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// EarningsSummary aggregates a doctor's completed consultation fees over
// the common reporting windows.
type EarningsSummary struct {
	Today          float64 `json:"today"`
	ThisWeek       float64 `json:"this_week"`
	ThisMonth      float64 `json:"this_month"`
	Total          float64 `json:"total"`
	CompletedCount int     `json:"completed_count"`
	ActiveCount    int     `json:"active_count"`
}

var validStatuses = map[string]bool{
	StatusActive:    true,
	StatusBusy:      true,
	StatusOffline:   true,
	StatusSuspended: true,
}

var validLevels = map[string]bool{
	LevelNormal: true,
	LevelSenior: true,
	LevelExpert: true,
}
