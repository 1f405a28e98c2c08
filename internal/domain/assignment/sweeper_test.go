package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/waddasfs/openmedical/internal/domain/consultation"
	"github.com/waddasfs/openmedical/internal/domain/doctor"
)

func newTestSweeper(f *fixture) *Sweeper {
	return NewSweeper(f.engine, consultation.NewService(f.consults, zerolog.Nop()), zerolog.Nop())
}

func TestRunOnce_DrainsBacklog(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	f.addDoctor("a", doctor.LevelNormal)
	f.addDoctor("b", doctor.LevelNormal)

	first := f.addConsultation(consultation.StatusPaid, doctor.LevelNormal, nil)
	second := f.addConsultation(consultation.StatusPaid, doctor.LevelNormal, nil)

	if assigned := s.RunOnce(context.Background()); assigned != 2 {
		t.Fatalf("expected 2 assignments, got %d", assigned)
	}
	for _, c := range []*consultation.Consultation{first, second} {
		got := f.consults.consultations[c.ID]
		if got.AssignedDoctorID == nil {
			t.Errorf("consultation %s should have a doctor", c.ID)
		}
		if got.Status != consultation.StatusInProgress {
			t.Errorf("consultation %s should be IN_PROGRESS, got %s", c.ID, got.Status)
		}
	}
}

func TestRunOnce_EmptyBacklog(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	if assigned := s.RunOnce(context.Background()); assigned != 0 {
		t.Fatalf("expected 0 assignments, got %d", assigned)
	}
}

func TestRunOnce_NoDoctorsLeavesBacklogIntact(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	target := f.addConsultation(consultation.StatusPaid, doctor.LevelNormal, nil)

	if assigned := s.RunOnce(context.Background()); assigned != 0 {
		t.Fatalf("expected 0 assignments with no doctors, got %d", assigned)
	}
	got := f.consults.consultations[target.ID]
	if got.Status != consultation.StatusPaid || got.AssignedDoctorID != nil {
		t.Error("consultation should stay PAID and unassigned for the next sweep")
	}
}

func TestRunOnce_RespectsBatchSize(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	s.BatchSize = 3
	f.addDoctor("a", doctor.LevelNormal)
	for i := 0; i < 5; i++ {
		f.addConsultation(consultation.StatusPaid, doctor.LevelNormal, nil)
	}

	if assigned := s.RunOnce(context.Background()); assigned != 3 {
		t.Fatalf("expected batch of 3, got %d", assigned)
	}
}

func TestRunOnce_OneBadItemDoesNotStopTheRest(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	f.addDoctor("a", doctor.LevelExpert)

	// This one can never assign: no NORMAL doctor exists.
	f.addConsultation(consultation.StatusPaid, doctor.LevelNormal, nil)
	assignable := f.addConsultation(consultation.StatusPaid, doctor.LevelExpert, nil)

	if assigned := s.RunOnce(context.Background()); assigned != 1 {
		t.Fatalf("expected 1 assignment, got %d", assigned)
	}
	if f.consults.consultations[assignable.ID].AssignedDoctorID == nil {
		t.Error("the assignable consultation should still get a doctor")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	f := newFixture()
	s := newTestSweeper(f)
	s.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
