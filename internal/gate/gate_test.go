package gate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeClock struct {
	now   time.Time
	err   error
	reads int32
}

func (f *fakeClock) Fresh(ctx context.Context) (time.Time, error) {
	atomic.AddInt32(&f.reads, 1)
	return f.now, f.err
}

type fakeSessions struct {
	open           bool
	openErr        error
	markersCleared int32
	creates        int32
	createErr      error
	block          chan struct{} // when non-nil, Create parks until closed
}

func (f *fakeSessions) HasOpenSession(ctx context.Context, studentID int) (bool, error) {
	return f.open, f.openErr
}

func (f *fakeSessions) ClearRefreshMarker(ctx context.Context, studentID int) error {
	atomic.AddInt32(&f.markersCleared, 1)
	return nil
}

func (f *fakeSessions) Create(ctx context.Context, studentID int, examID uuid.UUID, collectionName string) (*model.ExamSession, error) {
	atomic.AddInt32(&f.creates, 1)
	if f.block != nil {
		<-f.block
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.ExamSession{
		ID:             uuid.New(),
		ExamID:         examID,
		CollectionName: collectionName,
		StudentID:      studentID,
		StartedAt:      time.Now(),
		Status:         model.SessionStatusInProgress,
	}, nil
}

type fakeRefresh struct {
	signals int32
}

func (f *fakeRefresh) SignalRefresh(ctx context.Context) error {
	atomic.AddInt32(&f.signals, 1)
	return nil
}

func testExam(t *testing.T, start time.Time, minutes int) schedule.ScheduledExam {
	t.Helper()
	e := model.Exam{
		ExamID:        uuid.New(),
		ExamName:      "algebra-midterm-b1",
		StartDate:     start.Format(model.DateLayout),
		StartTime:     start.Format(model.TimeLayout),
		TotalExamTime: minutes,
		Status:        model.ExamStatusPublished,
	}
	w, err := model.NewExamWindow(e.StartDate, e.StartTime, e.TotalExamTime)
	if err != nil {
		t.Fatalf("NewExamWindow: %v", err)
	}
	return schedule.ScheduledExam{Exam: e, Window: w}
}

func newGate(clk *fakeClock, sess *fakeSessions, ref *fakeRefresh) *Gate {
	return New(clk, sess, ref, zerolog.Nop())
}

func TestEligibilityRejectsBeforeWindow(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	exam := testExam(t, start, 60)
	clk := &fakeClock{now: start.Add(-5 * time.Minute)}
	sess := &fakeSessions{}
	g := newGate(clk, sess, &fakeRefresh{})

	err := g.CheckEligibility(context.Background(), 7, exam)

	var we *WindowError
	if !errors.As(err, &we) || !we.Before {
		t.Fatalf("error = %v, want before-window WindowError", err)
	}
	if !strings.Contains(err.Error(), start.Format("02 Jan 2006 15:04")) {
		t.Fatalf("message %q does not name the start boundary", err.Error())
	}
	if got := g.State(7, exam.ExamID); got != StateIdle {
		t.Fatalf("state = %s after rejection, want IDLE", got)
	}
	if atomic.LoadInt32(&sess.creates) != 0 {
		t.Fatal("rejection must not create a session")
	}
}

func TestEligibilityRejectsAfterWindow(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	exam := testExam(t, start, 60)
	end := start.Add(60 * time.Minute)
	clk := &fakeClock{now: end.Add(time.Minute)}
	g := newGate(clk, &fakeSessions{}, &fakeRefresh{})

	err := g.CheckEligibility(context.Background(), 7, exam)

	var we *WindowError
	if !errors.As(err, &we) || we.Before {
		t.Fatalf("error = %v, want after-window WindowError", err)
	}
	if !strings.Contains(err.Error(), end.Format("02 Jan 2006 15:04")) {
		t.Fatalf("message %q does not name the end boundary", err.Error())
	}
}

func TestEligibilityInclusiveBoundaries(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	exam := testExam(t, start, 60)

	for _, now := range []time.Time{start, start.Add(60 * time.Minute)} {
		clk := &fakeClock{now: now}
		g := newGate(clk, &fakeSessions{}, &fakeRefresh{})
		if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
			t.Fatalf("CheckEligibility at %v: %v, want nil (inclusive boundary)", now, err)
		}
		if got := g.State(7, exam.ExamID); got != StateInstructionsShown {
			t.Fatalf("state = %s, want INSTRUCTIONS_SHOWN", got)
		}
	}
}

func TestEligibilityClockFailure(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{err: errors.New("connection refused")}
	g := newGate(clk, &fakeSessions{}, &fakeRefresh{})

	err := g.CheckEligibility(context.Background(), 7, exam)
	if !errors.Is(err, ErrClockUnavailable) {
		t.Fatalf("error = %v, want ErrClockUnavailable", err)
	}
	if got := g.State(7, exam.ExamID); got != StateIdle {
		t.Fatalf("state = %s, want IDLE", got)
	}
}

func TestStartRequiresEligibility(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	g := newGate(&fakeClock{now: exam.Window.Start}, &fakeSessions{}, &fakeRefresh{})

	if _, err := g.StartSession(context.Background(), 7, exam); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("error = %v, want ErrNotEligible", err)
	}
}

func TestStartSessionOpenGuardRunsFirst(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start.Add(time.Minute)}
	sess := &fakeSessions{open: true}
	g := newGate(clk, sess, &fakeRefresh{})

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	readsAfterPhaseA := atomic.LoadInt32(&clk.reads)

	_, err := g.StartSession(context.Background(), 7, exam)
	if !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("error = %v, want ErrSessionOpen", err)
	}

	// The guard aborts before the fresh time read and before the marker clear.
	if got := atomic.LoadInt32(&clk.reads); got != readsAfterPhaseA {
		t.Fatalf("fresh reads = %d during guarded start, want %d", got, readsAfterPhaseA)
	}
	if atomic.LoadInt32(&sess.markersCleared) != 0 {
		t.Fatal("refresh marker cleared despite open-session guard")
	}
	if atomic.LoadInt32(&sess.creates) != 0 {
		t.Fatal("session created despite open-session guard")
	}
	if got := g.State(7, exam.ExamID); got != StateInstructionsShown {
		t.Fatalf("state = %s, want INSTRUCTIONS_SHOWN", got)
	}
}

func TestStartDoubleSubmitGuard(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start.Add(time.Minute)}
	sess := &fakeSessions{block: make(chan struct{})}
	g := newGate(clk, sess, &fakeRefresh{})

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := g.StartSession(context.Background(), 7, exam)
		firstDone <- err
	}()

	// Wait until the first start is parked inside the collaborator call.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&sess.creates) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first start never reached session creation")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := g.StartSession(context.Background(), 7, exam); !errors.Is(err, ErrStartInFlight) {
		t.Fatalf("second start error = %v, want ErrStartInFlight", err)
	}

	close(sess.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if got := atomic.LoadInt32(&sess.creates); got != 1 {
		t.Fatalf("create calls = %d, want exactly 1", got)
	}
}

func TestStartWindowShiftTriggersRefresh(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start.Add(time.Minute)}
	sess := &fakeSessions{}
	ref := &fakeRefresh{}
	g := newGate(clk, sess, ref)

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}

	// Window closed between the two phases.
	clk.now = exam.Window.End.Add(time.Minute)

	_, err := g.StartSession(context.Background(), 7, exam)
	var we *WindowError
	if !errors.As(err, &we) {
		t.Fatalf("error = %v, want WindowError", err)
	}
	if atomic.LoadInt32(&ref.signals) != 1 {
		t.Fatal("schedule refresh not signaled after window shift")
	}
	if atomic.LoadInt32(&sess.creates) != 0 {
		t.Fatal("session created despite expired window")
	}
	if got := g.State(7, exam.ExamID); got != StateIdle {
		t.Fatalf("state = %s, want IDLE (instructions closed)", got)
	}
}

func TestStartSuccess(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start.Add(time.Minute)}
	sess := &fakeSessions{}
	g := newGate(clk, sess, &fakeRefresh{})

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}

	created, err := g.StartSession(context.Background(), 7, exam)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if created.CollectionName != "algebra-midterm" {
		t.Fatalf("collection = %q, want trailing segment stripped", created.CollectionName)
	}
	if atomic.LoadInt32(&sess.markersCleared) != 1 {
		t.Fatal("stale refresh marker was not cleared")
	}
}

func TestStartCreateFailureRestoresInstructions(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start.Add(time.Minute)}
	sess := &fakeSessions{createErr: errors.New("insert failed")}
	g := newGate(clk, sess, &fakeRefresh{})

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}

	if _, err := g.StartSession(context.Background(), 7, exam); err == nil {
		t.Fatal("StartSession succeeded, want collaborator error surfaced")
	}
	// The student can retry from the instructions step.
	if got := g.State(7, exam.ExamID); got != StateInstructionsShown {
		t.Fatalf("state = %s, want INSTRUCTIONS_SHOWN", got)
	}
}

func TestDismissResetsAttempt(t *testing.T) {
	exam := testExam(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)
	clk := &fakeClock{now: exam.Window.Start}
	g := newGate(clk, &fakeSessions{}, &fakeRefresh{})

	if err := g.CheckEligibility(context.Background(), 7, exam); err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	g.Dismiss(7, exam.ExamID)
	if got := g.State(7, exam.ExamID); got != StateIdle {
		t.Fatalf("state = %s after dismiss, want IDLE", got)
	}
}
