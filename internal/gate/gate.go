// Package gate implements the two-phase exam entry gate: an eligibility
// check against a fresh trusted-time read, followed by a guarded session
// start. Gate state is an explicit finite-state value per (student, exam)
// attempt; there are no ambient module flags.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the position of one (student, exam) attempt in the entry flow.
type State string

const (
	StateIdle                 State = "IDLE"
	StateEligibilityChecking  State = "ELIGIBILITY_CHECKING"
	StateInstructionsShown    State = "INSTRUCTIONS_SHOWN"
	StateAgreeing             State = "AGREEING"
	StateStarting             State = "STARTING"
	StateNavigated            State = "NAVIGATED"
)

// Gate errors surfaced to handlers.
var (
	// ErrClockUnavailable: the fresh trusted-time read failed. The attempt
	// is aborted without mutating anything; the student may retry.
	ErrClockUnavailable = errors.New("unable to validate exam time")
	// ErrSessionOpen: another exam session is already open for this student.
	ErrSessionOpen = errors.New("an exam session is already open, submit the current exam first")
	// ErrStartInFlight: a second start arrived while one is in flight.
	ErrStartInFlight = errors.New("exam start already in progress")
	// ErrNotEligible: session start requested without a completed
	// eligibility check (instructions never shown).
	ErrNotEligible = errors.New("exam instructions have not been viewed")
)

// WindowError rejects an attempt outside the exam window, naming the exact
// boundary the student missed.
type WindowError struct {
	Before   bool // true: now precedes the window
	Boundary time.Time
}

func (e *WindowError) Error() string {
	when := e.Boundary.Format("02 Jan 2006 15:04")
	if e.Before {
		return fmt.Sprintf("exam has not started yet, it opens at %s", when)
	}
	return fmt.Sprintf("exam window has closed, it ended at %s", when)
}

// TrustedClock supplies a fresh authoritative time read. Window checks never
// trust a cached ticking value.
type TrustedClock interface {
	Fresh(ctx context.Context) (time.Time, error)
}

// SessionStore is the external session-state collaborator.
type SessionStore interface {
	// HasOpenSession reports whether the student has an exam session in
	// progress right now.
	HasOpenSession(ctx context.Context, studentID int) (bool, error)
	// ClearRefreshMarker drops the stale "submitted due to page refresh"
	// marker before a new attempt begins.
	ClearRefreshMarker(ctx context.Context, studentID int) error
	// Create opens a session for the exam's answer collection.
	Create(ctx context.Context, studentID int, examID uuid.UUID, collectionName string) (*model.ExamSession, error)
}

// RefreshSignaler asks the lobby to re-fetch the exam schedule, used when the
// window shifted between the eligibility check and the session start.
type RefreshSignaler interface {
	SignalRefresh(ctx context.Context) error
}

type attemptKey struct {
	studentID int
	examID    uuid.UUID
}

// Gate validates exam entry and serializes session starts per attempt.
type Gate struct {
	clock    TrustedClock
	sessions SessionStore
	refresh  RefreshSignaler
	log      zerolog.Logger

	mu     sync.Mutex
	states map[attemptKey]State
}

// New creates a Gate.
func New(clock TrustedClock, sessions SessionStore, refresh RefreshSignaler, log zerolog.Logger) *Gate {
	return &Gate{
		clock:    clock,
		sessions: sessions,
		refresh:  refresh,
		log:      log.With().Str("component", "entry_gate").Logger(),
		states:   make(map[attemptKey]State),
	}
}

// State returns the attempt's current state; attempts start Idle.
func (g *Gate) State(studentID int, examID uuid.UUID) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.states[attemptKey{studentID, examID}]; ok {
		return s
	}
	return StateIdle
}

func (g *Gate) setState(k attemptKey, s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Idle and Navigated entries are dropped so the registry stays bounded;
	// both read back as the default Idle for a fresh lifecycle.
	if s == StateIdle || s == StateNavigated {
		delete(g.states, k)
		return
	}
	g.states[k] = s
}

// CheckEligibility is phase A: re-fetch authoritative time and verify now
// lies inside the exam window before the instructions flow may proceed.
// Rejection mutates nothing beyond resetting the attempt to Idle.
func (g *Gate) CheckEligibility(ctx context.Context, studentID int, exam schedule.ScheduledExam) error {
	k := attemptKey{studentID, exam.ExamID}
	g.setState(k, StateEligibilityChecking)

	now, err := g.clock.Fresh(ctx)
	if err != nil {
		g.setState(k, StateIdle)
		return fmt.Errorf("%w: %s", ErrClockUnavailable, err)
	}

	if now.Before(exam.Window.Start) {
		g.setState(k, StateIdle)
		return &WindowError{Before: true, Boundary: exam.Window.Start}
	}
	if now.After(exam.Window.End) {
		g.setState(k, StateIdle)
		return &WindowError{Before: false, Boundary: exam.Window.End}
	}

	g.setState(k, StateInstructionsShown)
	return nil
}

// Dismiss abandons a shown instructions step, returning the attempt to Idle.
func (g *Gate) Dismiss(studentID int, examID uuid.UUID) {
	g.setState(attemptKey{studentID, examID}, StateIdle)
}

// StartSession is phase B: the student agreed to the instructions and asks
// to enter the exam.
//
// Order of checks is load-bearing: the open-session guard runs before any
// other collaborator call and before the refresh marker is cleared. The
// Agreeing/Starting states reject a concurrent second submit; the state is
// restored on every exit path.
func (g *Gate) StartSession(ctx context.Context, studentID int, exam schedule.ScheduledExam) (*model.ExamSession, error) {
	k := attemptKey{studentID, exam.ExamID}

	g.mu.Lock()
	switch g.states[k] {
	case StateAgreeing, StateStarting:
		g.mu.Unlock()
		return nil, ErrStartInFlight
	case StateInstructionsShown:
		g.states[k] = StateAgreeing
		g.mu.Unlock()
	default:
		g.mu.Unlock()
		return nil, ErrNotEligible
	}

	open, err := g.sessions.HasOpenSession(ctx, studentID)
	if err != nil {
		g.setState(k, StateInstructionsShown)
		return nil, fmt.Errorf("check open session: %w", err)
	}
	if open {
		g.setState(k, StateInstructionsShown)
		return nil, ErrSessionOpen
	}

	if err := g.sessions.ClearRefreshMarker(ctx, studentID); err != nil {
		// Stale marker only affects refresh detection; not worth aborting.
		g.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to clear refresh marker")
	}

	now, err := g.clock.Fresh(ctx)
	if err != nil {
		g.setState(k, StateInstructionsShown)
		return nil, fmt.Errorf("%w: %s", ErrClockUnavailable, err)
	}
	if !exam.Window.Contains(now) {
		// The window shifted between phases: close the instructions step and
		// ask the lobby to refresh rather than retrying silently.
		g.setState(k, StateIdle)
		if rerr := g.refresh.SignalRefresh(ctx); rerr != nil {
			g.log.Warn().Err(rerr).Msg("Failed to signal schedule refresh")
		}
		if now.Before(exam.Window.Start) {
			return nil, &WindowError{Before: true, Boundary: exam.Window.Start}
		}
		return nil, &WindowError{Before: false, Boundary: exam.Window.End}
	}

	g.setState(k, StateStarting)
	sess, err := g.sessions.Create(ctx, studentID, exam.ExamID, model.CollectionName(exam.ExamName))
	if err != nil {
		g.setState(k, StateInstructionsShown)
		return nil, fmt.Errorf("create exam session: %w", err)
	}

	// Terminal: the attempt leaves the gate's responsibility.
	g.setState(k, StateNavigated)
	g.log.Info().
		Int("student_id", studentID).
		Str("exam_id", exam.ExamID.String()).
		Str("collection", sess.CollectionName).
		Msg("Exam session started")
	return sess, nil
}
