package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edupulse/portal-backend/internal/clock"
	"github.com/edupulse/portal-backend/internal/countdown"
	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/schedule"
	"github.com/rs/zerolog"

	"github.com/google/uuid"
)

// LobbyExam is one exam row in the student lobby.
type LobbyExam struct {
	ExamID        uuid.UUID            `json:"exam_id"`
	ExamName      string               `json:"exam_name"`
	Subjects      []string             `json:"subjects"`
	Window        model.ExamWindow     `json:"window"`
	StartsAtLabel string               `json:"starts_at_label"`
	EndsAtLabel   string               `json:"ends_at_label"`
	Countdown     string               `json:"countdown,omitempty"`
	AttemptStatus *model.SessionStatus `json:"attempt_status,omitempty"`
}

// Lobby is the categorized exam listing served to a student.
//
// ServerTime is nil while the trusted clock has no reading yet; the buckets
// are empty in that case and the client shows a syncing state.
type Lobby struct {
	ServerTime *time.Time  `json:"server_time"`
	Active     []LobbyExam `json:"active"`
	Upcoming   []LobbyExam `json:"upcoming"`
	Finished   []LobbyExam `json:"finished"`
}

// CountdownSnapshot is a point-in-time countdown reading for one exam.
type CountdownSnapshot struct {
	ExamID     uuid.UUID `json:"exam_id"`
	ServerTime time.Time `json:"server_time"`
	StartsAt   time.Time `json:"starts_at"`
	Remaining  int64     `json:"remaining_seconds"`
	Display    string    `json:"display"`
	Started    bool      `json:"started"`
}

// LobbyService assembles the student-facing exam lobby: published schedule,
// trusted time, categorization, countdowns and the student's own attempt
// history.
type LobbyService struct {
	exams    *ExamService
	sessions *SessionService
	clk      clock.Clock
	log      zerolog.Logger
}

// NewLobbyService creates a new LobbyService.
func NewLobbyService(exams *ExamService, sessions *SessionService, clk clock.Clock, log zerolog.Logger) *LobbyService {
	return &LobbyService{
		exams:    exams,
		sessions: sessions,
		clk:      clk,
		log:      log.With().Str("component", "lobby_service").Logger(),
	}
}

// GetLobby builds the categorized lobby for a student.
func (s *LobbyService) GetLobby(ctx context.Context, studentID int) (*Lobby, error) {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return nil, err
	}

	scheduled, invalid := schedule.Build(exams)
	for _, inv := range invalid {
		s.log.Error().
			Str("exam_id", inv.ExamID.String()).
			Str("reason", inv.Reason).
			Msg("Published exam has malformed schedule, quarantined from lobby")
	}

	lobby := &Lobby{
		Active:   []LobbyExam{},
		Upcoming: []LobbyExam{},
		Finished: []LobbyExam{},
	}

	now, err := s.clk.Now(ctx)
	if err != nil {
		if errors.Is(err, clock.ErrNoReading) {
			// Clock still syncing: serve empty buckets, never a stale view.
			return lobby, nil
		}
		return nil, fmt.Errorf("read trusted time: %w", err)
	}
	lobby.ServerTime = &now

	attempts, err := s.sessions.AttemptStatuses(ctx, studentID)
	if err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to load attempt statuses")
		attempts = map[uuid.UUID]model.SessionStatus{}
	}

	buckets := schedule.Categorize(scheduled, now)
	lobby.Active = s.rows(buckets.Active, now, attempts, false)
	lobby.Upcoming = s.rows(buckets.Upcoming, now, attempts, true)
	lobby.Finished = s.rows(buckets.Finished, now, attempts, false)
	return lobby, nil
}

func (s *LobbyService) rows(exams []schedule.ScheduledExam, now time.Time, attempts map[uuid.UUID]model.SessionStatus, withCountdown bool) []LobbyExam {
	out := make([]LobbyExam, 0, len(exams))
	for _, e := range exams {
		row := LobbyExam{
			ExamID:        e.ExamID,
			ExamName:      e.ExamName,
			Subjects:      e.Subjects,
			Window:        e.Window,
			StartsAtLabel: e.Window.FormatStart(),
			EndsAtLabel:   e.Window.FormatEnd(),
		}
		if withCountdown {
			row.Countdown = countdown.FormatRemaining(countdown.Remaining(e.Window.Start, now))
		}
		if st, ok := attempts[e.ExamID]; ok {
			status := st
			row.AttemptStatus = &status
		}
		out = append(out, row)
	}
	return out
}

// FindScheduled resolves a published exam and its validated window by ID.
// Used by the entry gate and countdown endpoints.
func (s *LobbyService) FindScheduled(ctx context.Context, examID uuid.UUID) (schedule.ScheduledExam, error) {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return schedule.ScheduledExam{}, err
	}

	for _, e := range exams {
		if e.ExamID != examID {
			continue
		}
		w, werr := model.NewExamWindow(e.StartDate, e.StartTime, e.TotalExamTime)
		if werr != nil {
			return schedule.ScheduledExam{}, werr
		}
		return schedule.ScheduledExam{Exam: e, Window: w}, nil
	}
	return schedule.ScheduledExam{}, ErrExamNotFound
}

// Countdown returns a point-in-time countdown reading for a published exam.
func (s *LobbyService) Countdown(ctx context.Context, examID uuid.UUID) (*CountdownSnapshot, error) {
	exam, err := s.FindScheduled(ctx, examID)
	if err != nil {
		return nil, err
	}

	now, err := s.clk.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read trusted time: %w", err)
	}

	rem := countdown.Remaining(exam.Window.Start, now)
	return &CountdownSnapshot{
		ExamID:     examID,
		ServerTime: now,
		StartsAt:   exam.Window.Start,
		Remaining:  int64(rem.Seconds()),
		Display:    countdown.FormatRemaining(rem),
		Started:    rem == 0,
	}, nil
}
