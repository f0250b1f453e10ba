package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

func TestResetCreatesAndClears(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	s := repo.Reset("u1")
	if s.Step != domain.StepAwaitingName {
		t.Fatalf("step = %s, want %s", s.Step, domain.StepAwaitingName)
	}

	err := repo.Update("u1", func(session *domain.Session) error {
		session.Name = "Alice"
		session.Step = domain.StepAwaitingAge
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	s = repo.Reset("u1")
	if s.Name != "" || s.Step != domain.StepAwaitingName {
		t.Fatalf("reset did not clear session: %+v", s)
	}
}

func TestUpdateAbsentSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	err := repo.Update("ghost", func(session *domain.Session) error { return nil })
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	repo.Reset("u1")

	boom := errors.New("boom")
	err := repo.Update("u1", func(session *domain.Session) error {
		session.Name = "mutated"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	s, _ := repo.Snapshot("u1")
	if s.Name != "" {
		t.Fatalf("failed update leaked mutation: %+v", s)
	}
}

func TestBeginSubmissionSerializesPerSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	repo.Reset("u1")

	pass := func(*domain.Session) error { return nil }

	if _, err := repo.BeginSubmission("u1", pass); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := repo.BeginSubmission("u1", pass); !errors.Is(err, domain.ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy, got %v", err)
	}

	// A different session is not blocked.
	repo.Reset("u2")
	if _, err := repo.BeginSubmission("u2", pass); err != nil {
		t.Fatalf("other session blocked: %v", err)
	}

	repo.EndSubmission("u1", nil)
	if _, err := repo.BeginSubmission("u1", pass); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
}

func TestBeginSubmissionAbsent(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	_, err := repo.BeginSubmission("ghost", func(*domain.Session) error { return nil })
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestSweeperReportsRemaining(t *testing.T) {
	repo := NewSessionRepository(time.Nanosecond)
	repo.Reset("idle")
	time.Sleep(time.Millisecond)

	remaining := make(chan int, 1)
	stop := make(chan struct{})
	defer close(stop)

	repo.StartSweeper(time.Millisecond, stop, func(n int) {
		select {
		case remaining <- n:
		default:
		}
	})

	select {
	case n := <-remaining:
		if n != 0 {
			t.Fatalf("remaining after sweep = %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper never reported")
	}
}

func TestSweepEvictsIdleOnly(t *testing.T) {
	repo := NewSessionRepository(10 * time.Millisecond)
	repo.Reset("idle")
	repo.Reset("busy")

	if _, err := repo.BeginSubmission("busy", func(*domain.Session) error { return nil }); err != nil {
		t.Fatalf("begin: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if evicted := repo.Sweep(); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := repo.Snapshot("idle"); ok {
		t.Error("idle session survived sweep")
	}
	if _, ok := repo.Snapshot("busy"); !ok {
		t.Error("in-flight session was evicted")
	}
}
