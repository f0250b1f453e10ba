package storage

import (
	"sync"
	"time"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

// SessionRepository is the in-memory session table. The outer mutex only
// guards the map; each record carries its own lock so sessions never block
// each other. Idle sessions are evicted after the TTL; a session with a
// pipeline in flight is pinned.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	ttl      time.Duration
}

type sessionRecord struct {
	mu       sync.Mutex
	session  domain.Session
	inFlight bool
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*sessionRecord),
		ttl:      ttl,
	}
}

func (r *SessionRepository) record(id string, create bool) *sessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok && create {
		rec = &sessionRecord{session: domain.Session{ID: id, Step: domain.StepAwaitingName}}
		r.sessions[id] = rec
	}
	return rec
}

// Reset creates the session if needed and returns it to the first intake
// step with all fields cleared. Always succeeds.
func (r *SessionRepository) Reset(id string) domain.Session {
	rec := r.record(id, true)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.session = domain.Session{
		ID:        id,
		Step:      domain.StepAwaitingName,
		UpdatedAt: time.Now(),
	}
	return rec.session
}

// Snapshot returns a copy of the session, if present.
func (r *SessionRepository) Snapshot(id string) (domain.Session, bool) {
	rec := r.record(id, false)
	if rec == nil {
		return domain.Session{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session, true
}

// Update runs fn against the locked session. A nil return from fn commits the
// mutation and stamps UpdatedAt; an error leaves the session untouched.
// Absent sessions yield ErrInvalidState.
func (r *SessionRepository) Update(id string, fn func(*domain.Session) error) error {
	rec := r.record(id, false)
	if rec == nil {
		return domain.ErrInvalidState
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.session
	if err := fn(&working); err != nil {
		return err
	}
	working.UpdatedAt = time.Now()
	rec.session = working
	return nil
}

// BeginSubmission validates the session with check and, on success, marks a
// pipeline run in flight so a second submission for the same session is
// rejected until EndSubmission. The record lock is held only for the check,
// never across the pipeline itself.
func (r *SessionRepository) BeginSubmission(id string, check func(*domain.Session) error) (domain.Session, error) {
	rec := r.record(id, false)
	if rec == nil {
		return domain.Session{}, domain.ErrPreconditionFailed
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.inFlight {
		return domain.Session{}, domain.ErrPipelineBusy
	}
	if err := check(&rec.session); err != nil {
		return domain.Session{}, err
	}

	rec.inFlight = true
	return rec.session, nil
}

// EndSubmission clears the in-flight mark and applies the final transition,
// if any.
func (r *SessionRepository) EndSubmission(id string, apply func(*domain.Session)) {
	rec := r.record(id, false)
	if rec == nil {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.inFlight = false
	if apply != nil {
		apply(&rec.session)
		rec.session.UpdatedAt = time.Now()
	}
}

// Sweep evicts sessions idle longer than the TTL. In-flight sessions stay.
// Returns the number of evicted sessions.
func (r *SessionRepository) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, rec := range r.sessions {
		rec.mu.Lock()
		idle := !rec.inFlight && rec.session.UpdatedAt.Before(cutoff)
		rec.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on the given interval until stop is closed. After
// each sweep onSweep, if set, receives the number of sessions still tracked,
// so callers can keep gauges in step with evictions.
func (r *SessionRepository) StartSweeper(interval time.Duration, stop <-chan struct{}, onSweep func(remaining int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
				if onSweep != nil {
					onSweep(r.Len())
				}
			case <-stop:
				return
			}
		}
	}()
}

// Len reports the current number of tracked sessions.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
