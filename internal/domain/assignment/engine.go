package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/domain/doctor"
)

// Engine matches paid consultations to the least-loaded available doctor.
// Selection is advisory; the conditional claim on the consultation row is
// what decides races, so two engines picking the same doctor cannot
// double-assign a consultation.
type Engine struct {
	consultations *consultation.Service
	doctors       *doctor.Service
	repo          Repository
	logger        zerolog.Logger

	// MarkBusyOnClaim flips a doctor to BUSY when they claim manually.
	// Auto-assignment never changes doctor status, so one consultation
	// does not take a doctor out of the pool.
	MarkBusyOnClaim bool
}

func NewEngine(consultations *consultation.Service, doctors *doctor.Service, repo Repository, logger zerolog.Logger) *Engine {
	return &Engine{
		consultations:   consultations,
		doctors:         doctors,
		repo:            repo,
		logger:          logger,
		MarkBusyOnClaim: true,
	}
}

// Assign picks a doctor for a paid consultation and claims it. False means
// the consultation stays queued: not paid yet, already taken, nobody
// available, or lost the claim race. Assignment never errors outward; every
// failure path reports false and logs, and the sweeper retries later.
func (e *Engine) Assign(ctx context.Context, consultationID uuid.UUID) bool {
	c, err := e.consultations.GetByID(ctx, consultationID)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("consultation_id", consultationID.String()).
			Msg("assignment target read failed")
		return false
	}
	if c.Status != consultation.StatusPaid || c.AssignedDoctorID != nil {
		return false
	}

	// Realtime consultations have no level and take any doctor; one-time
	// consultations only go to doctors of the purchased tier.
	candidates, err := e.doctors.AssignmentPool(ctx, c.Level)
	if err != nil {
		e.logger.Error().Err(err).Msg("doctor pool read failed")
		return false
	}
	best := leastLoaded(candidates)
	if best == nil {
		return false
	}

	won, err := e.consultations.ClaimAssignment(ctx, c.ID, best.ID)
	if err != nil {
		e.logger.Error().Err(err).
			Str("consultation_id", c.ID.String()).
			Msg("claim write failed")
		return false
	}
	if !won {
		return false
	}

	e.finalize(ctx, c.ID, best.ID, MethodAuto)
	e.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("doctor_id", best.ID.String()).
		Int("load", best.CurrentConsultationCount).
		Msg("consultation auto-assigned")
	return true
}

// Claim lets a doctor take a specific paid consultation directly. The same
// conditional update guards against races with auto-assignment and other
// claimers.
func (e *Engine) Claim(ctx context.Context, doctorID, consultationID uuid.UUID) (bool, error) {
	if _, err := e.doctors.GetByID(ctx, doctorID); err != nil {
		return false, err
	}
	c, err := e.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return false, err
	}
	if c.AssignedDoctorID != nil {
		// Already taken, including the window where a winner has moved it
		// to IN_PROGRESS. A late claim is not an error, it just lost.
		return false, nil
	}
	if c.Status != consultation.StatusPaid {
		return false, fmt.Errorf("%w: consultation is %s", consultation.ErrInvalidTransition, c.Status)
	}
	won, err := e.consultations.ClaimAssignment(ctx, consultationID, doctorID)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	e.finalize(ctx, consultationID, doctorID, MethodClaim)
	if e.MarkBusyOnClaim {
		if err := e.doctors.SetStatus(ctx, doctorID, doctor.StatusBusy); err != nil {
			e.logger.Warn().Err(err).
				Str("doctor_id", doctorID.String()).
				Msg("busy status update failed")
		}
	}
	e.logger.Info().
		Str("consultation_id", consultationID.String()).
		Str("doctor_id", doctorID.String()).
		Msg("consultation claimed")
	return true, nil
}

// Complete closes a consultation held by the doctor, credits the fee and
// returns the doctor to the active pool.
func (e *Engine) Complete(ctx context.Context, doctorID, consultationID uuid.UUID) (*consultation.Consultation, error) {
	c, err := e.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.AssignedDoctorID == nil || *c.AssignedDoctorID != doctorID {
		return nil, ErrNotAssigned
	}

	c, err = e.consultations.Transition(ctx, consultationID, consultation.StatusCompleted)
	if err != nil {
		return nil, err
	}

	// Earnings and pool bookkeeping follow a completion that already
	// happened; failures are logged, not rolled back.
	if err := e.doctors.RecordEarnings(ctx, doctorID, c.Price); err != nil {
		e.logger.Error().Err(err).
			Str("doctor_id", doctorID.String()).
			Float64("amount", c.Price).
			Msg("earnings credit failed")
	}
	if err := e.doctors.SetStatus(ctx, doctorID, doctor.StatusActive); err != nil {
		e.logger.Warn().Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("active status restore failed")
	}
	if err := e.doctors.RefreshLoadCounter(ctx, doctorID); err != nil {
		e.logger.Warn().Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("load counter refresh failed")
	}
	return c, nil
}

// DoctorHistory lists a doctor's assignment records, newest first.
func (e *Engine) DoctorHistory(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return e.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// finalize runs the follow-ups of a won claim: audit record, move to
// IN_PROGRESS, refresh the doctor's load counter. The claim already
// succeeded, so each failure is logged and the rest still run.
func (e *Engine) finalize(ctx context.Context, consultationID, doctorID uuid.UUID, method string) {
	if err := e.repo.Create(ctx, &Record{
		ConsultationID: consultationID,
		DoctorID:       doctorID,
		Method:         method,
	}); err != nil {
		e.logger.Error().Err(err).
			Str("consultation_id", consultationID.String()).
			Msg("assignment audit write failed")
	}
	if _, err := e.consultations.Transition(ctx, consultationID, consultation.StatusInProgress); err != nil {
		e.logger.Error().Err(err).
			Str("consultation_id", consultationID.String()).
			Msg("transition to IN_PROGRESS failed")
	}
	if err := e.doctors.RefreshLoadCounter(ctx, doctorID); err != nil {
		e.logger.Warn().Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("load counter refresh failed")
	}
}

// leastLoaded returns the candidate with the fewest active consultations.
// Ties go to the first encountered, which keeps selection stable for a
// given pool ordering.
func leastLoaded(candidates []*doctor.Doctor) *doctor.Doctor {
	var best *doctor.Doctor
	for _, d := range candidates {
		if best == nil || d.CurrentConsultationCount < best.CurrentConsultationCount {
			best = d
		}
	}
	return best
}
