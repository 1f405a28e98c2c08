package assignment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
)

// Sweeper is the reconciliation loop. It retries assignment for paid
// consultations that have no doctor, either because the payment-time
// attempt found nobody available or because its follow-ups failed. One
// broken item never stops the rest of the batch.
type Sweeper struct {
	engine        *Engine
	consultations *consultation.Service
	logger        zerolog.Logger

	// Interval controls how often the sweep runs.
	Interval time.Duration
	// BatchSize is the max number of unassigned consultations per sweep.
	BatchSize int
}

func NewSweeper(engine *Engine, consultations *consultation.Service, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		engine:        engine,
		consultations: consultations,
		logger:        logger,
		Interval:      5 * time.Minute,
		BatchSize:     20,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many consultations were
// assigned. Exposed for the admin trigger and for tests.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	backlog, err := s.consultations.ListUnassigned(ctx, s.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep backlog read failed")
		return 0
	}
	if len(backlog) == 0 {
		return 0
	}

	assigned := 0
	for _, c := range backlog {
		if ctx.Err() != nil {
			break
		}
		if s.engine.Assign(ctx, c.ID) {
			assigned++
		}
	}
	s.logger.Info().
		Int("backlog", len(backlog)).
		Int("assigned", assigned).
		Msg("assignment sweep finished")
	return assigned
}
