package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Register(ctx context.Context, d *Doctor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.LicenseNumber == "" {
		return fmt.Errorf("%w: license_number is required", ErrValidation)
	}
	if d.Level == "" {
		d.Level = LevelNormal
	}
	if !validLevels[d.Level] {
		return fmt.Errorf("%w: unknown level %q", ErrValidation, d.Level)
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if !validStatuses[d.Status] {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, d.Status)
	}
	if d.Specialties == nil {
		d.Specialties = []string{}
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAvailable returns doctors patients can see: ACTIVE and BUSY, with
// optional specialty and level filters. BUSY doctors stay listed so
// claiming a consultation does not make a doctor disappear from the
// public directory.
func (s *Service) ListAvailable(ctx context.Context, specialty, level string) ([]*Doctor, error) {
	return s.listWithLiveLoad(ctx, specialty, level, []string{StatusActive, StatusBusy})
}

// AssignmentPool returns the doctors auto-assignment may pick from:
// ACTIVE only, so BUSY and SUSPENDED doctors receive no new work.
func (s *Service) AssignmentPool(ctx context.Context, level string) ([]*Doctor, error) {
	return s.listWithLiveLoad(ctx, "", level, []string{StatusActive})
}

// listWithLiveLoad recomputes each doctor's load counter from the
// consultation table, so a stale cached column never skews selection;
// when the recount fails for a doctor, the cached value stands.
func (s *Service) listWithLiveLoad(ctx context.Context, specialty, level string, statuses []string) ([]*Doctor, error) {
	doctors, err := s.repo.ListByStatus(ctx, specialty, level, statuses)
	if err != nil {
		return nil, err
	}
	for _, d := range doctors {
		count, err := s.repo.CountActiveAssigned(ctx, d.ID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("doctor_id", d.ID.String()).
				Msg("load recount failed, using cached counter")
			continue
		}
		d.CurrentConsultationCount = count
	}
	return doctors, nil
}

// SetStatus updates a doctor's availability.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// RecordLogin bumps the doctor's login counter and brings an OFFLINE
// doctor back to ACTIVE. Bookkeeping must never block a login, so
// failures are logged and swallowed.
func (s *Service) RecordLogin(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusOffline {
		if err := s.repo.UpdateStatus(ctx, id, StatusActive); err != nil {
			s.logger.Warn().Err(err).
				Str("doctor_id", id.String()).
				Msg("status reactivation on login failed")
		} else {
			d.Status = StatusActive
		}
	}
	if err := s.repo.RecordLogin(ctx, id); err != nil {
		s.logger.Warn().Err(err).
			Str("doctor_id", id.String()).
			Msg("login counter update failed")
		return d, nil
	}
	d.LoginCount++
	now := time.Now().UTC()
	d.LastLoginAt = &now
	return d, nil
}

// RecordEarnings credits a completed consultation fee to the doctor.
func (s *Service) RecordEarnings(ctx context.Context, id uuid.UUID, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative earnings amount", ErrValidation)
	}
	return s.repo.AddEarnings(ctx, id, amount)
}

// RefreshLoadCounter recomputes the doctor's active consultation count and
// writes it back to the cached column.
func (s *Service) RefreshLoadCounter(ctx context.Context, id uuid.UUID) error {
	count, err := s.repo.CountActiveAssigned(ctx, id)
	if err != nil {
		return fmt.Errorf("recount active consultations: %w", err)
	}
	return s.repo.UpdateLoadCount(ctx, id, count)
}

func (s *Service) Earnings(ctx context.Context, id uuid.UUID) (*EarningsSummary, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.repo.EarningsSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountActiveAssigned(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("doctor_id", id.String()).
			Msg("active count for earnings summary failed")
		return summary, nil
	}
	summary.ActiveCount = active
	return summary, nil
}
