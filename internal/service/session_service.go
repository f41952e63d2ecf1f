package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/edupulse/portal-backend/internal/config"
	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoActiveSession is returned when a student has no session in progress.
var ErrNoActiveSession = errors.New("no active exam session")

// SessionService manages exam session state: the database rows, the Redis
// active-exam guard key, and the page-refresh marker. It is the session-state
// collaborator behind the entry gate.
type SessionService struct {
	sessions *repository.ExamSessionRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions *repository.ExamSessionRepository, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// HasOpenSession reports whether the student has an exam in progress. The
// Redis guard key is the fast path; on a miss the database is consulted and
// the key re-warmed so crashed sessions are still detected.
func (s *SessionService) HasOpenSession(ctx context.Context, studentID int) (bool, error) {
	activeKey := config.CacheKey.StudentActiveExamKey(studentID)

	_, err := s.rdb.Get(ctx, activeKey).Result()
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Redis unavailable, falling back to database")
	}

	open, err := s.sessions.GetOpenByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query open session: %w", err)
	}

	// Self-heal the guard key so the next check stays off the database.
	if err := s.rdb.Set(ctx, activeKey, open.ExamID.String(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to re-warm active exam key")
	}
	return true, nil
}

// ClearRefreshMarker removes the "submitted due to page refresh" marker left
// by a previous attempt.
func (s *SessionService) ClearRefreshMarker(ctx context.Context, studentID int) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentRefreshMarkerKey(studentID)).Err()
}

// SetRefreshMarker flags that the student's in-progress exam was force
// submitted by a page refresh, so the client can explain what happened.
func (s *SessionService) SetRefreshMarker(ctx context.Context, studentID int) error {
	return s.rdb.Set(ctx, config.CacheKey.StudentRefreshMarkerKey(studentID), "1", 0).Err()
}

// HasRefreshMarker reports whether the refresh marker is set.
func (s *SessionService) HasRefreshMarker(ctx context.Context, studentID int) (bool, error) {
	_, err := s.rdb.Get(ctx, config.CacheKey.StudentRefreshMarkerKey(studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create opens a session row and sets the Redis active-exam guard. A
// concurrent duplicate insert loses the ON CONFLICT race and re-reads the
// winning row, so both callers observe the same session.
func (s *SessionService) Create(ctx context.Context, studentID int, examID uuid.UUID, collectionName string) (*model.ExamSession, error) {
	sess := &model.ExamSession{
		ExamID:         examID,
		CollectionName: collectionName,
		StudentID:      studentID,
		Status:         model.SessionStatusInProgress,
	}

	err := s.sessions.Create(ctx, sess)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, gerr := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
		if gerr != nil {
			return nil, fmt.Errorf("re-read session after conflict: %w", gerr)
		}
		sess = existing
	} else if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.StudentActiveExamKey(studentID), examID.String(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to set active exam key")
	}
	return sess, nil
}

// ActiveSession returns the student's in-progress session, or
// ErrNoActiveSession.
func (s *SessionService) ActiveSession(ctx context.Context, studentID int) (*model.ExamSession, error) {
	sess, err := s.sessions.GetOpenByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("query open session: %w", err)
	}
	return sess, nil
}

// Complete closes the student's session for the exam and releases the
// active-exam guard.
func (s *SessionService) Complete(ctx context.Context, studentID int, examID uuid.UUID) error {
	if err := s.sessions.Complete(ctx, examID, studentID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if err := s.rdb.Del(ctx, config.CacheKey.StudentActiveExamKey(studentID)).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to release active exam key")
	}
	return nil
}

// AttemptStatuses returns the student's session status per exam, used to
// overlay the lobby listing.
func (s *SessionService) AttemptStatuses(ctx context.Context, studentID int) (map[uuid.UUID]model.SessionStatus, error) {
	list, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make(map[uuid.UUID]model.SessionStatus, len(list))
	for _, sess := range list {
		out[sess.ExamID] = sess.Status
	}
	return out, nil
}

// SignalRefresh enqueues a schedule refresh request for the background
// worker. Called when the published window shifted under a student mid-flow.
func (s *SessionService) SignalRefresh(ctx context.Context) error {
	if err := s.rdb.RPush(ctx, config.WorkerKey.ScheduleRefreshQueue, "refresh").Err(); err != nil {
		return fmt.Errorf("enqueue schedule refresh: %w", err)
	}
	return nil
}
