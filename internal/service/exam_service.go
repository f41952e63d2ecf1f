package service

import (
	"context"
	"encoding/json"
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

// Exam lifecycle errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotDraft     = errors.New("exam is not in draft status")
	ErrExamNotPublished = errors.New("exam is not published")
)

// ExamService manages the exam catalog and the published-schedule cache.
// Schedule fields are validated into a window at every write, so a malformed
// date never reaches the lobby or the gate.
type ExamService struct {
	exams *repository.ExamRepository
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams: exams,
		rdb:   rdb,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// Get returns a single exam by ID.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// List returns a paginated exam listing, optionally filtered by status.
func (s *ExamService) List(ctx context.Context, status *model.ExamStatus, limit, offset int) ([]model.Exam, int, error) {
	return s.exams.ListPaginated(ctx, status, limit, offset)
}

// Create ingests a new draft exam. The schedule fields must combine into a
// valid window or the request is rejected.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	if _, err := model.NewExamWindow(req.StartDate, req.StartTime, req.TotalExamTime); err != nil {
		return nil, err
	}

	exam := &model.Exam{
		ExamName:      req.ExamName,
		StartDate:     req.StartDate,
		StartTime:     req.StartTime,
		TotalExamTime: req.TotalExamTime,
		Subjects:      req.Subjects,
		Status:        model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ExamID.String()).Str("exam_name", exam.ExamName).Msg("Exam created")
	return exam, nil
}

// Update modifies a draft exam. Published and archived exams are immutable;
// unpublish first.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if req.ExamName != "" {
		exam.ExamName = req.ExamName
	}
	if req.StartDate != "" {
		exam.StartDate = req.StartDate
	}
	if req.StartTime != "" {
		exam.StartTime = req.StartTime
	}
	if req.TotalExamTime > 0 {
		exam.TotalExamTime = req.TotalExamTime
	}
	if req.Subjects != nil {
		exam.Subjects = req.Subjects
	}

	if _, err := model.NewExamWindow(exam.StartDate, exam.StartTime, exam.TotalExamTime); err != nil {
		return nil, err
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// Publish moves a draft exam into the published schedule. The window is
// validated once more here so a row edited out-of-band cannot publish broken.
func (s *ExamService) Publish(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	if _, err := model.NewExamWindow(exam.StartDate, exam.StartTime, exam.TotalExamTime); err != nil {
		return nil, err
	}

	if err := s.exams.UpdateStatus(ctx, id, model.ExamStatusPublished); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}
	exam.Status = model.ExamStatusPublished

	if err := s.WarmScheduleCache(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to warm schedule cache after publish")
	}

	s.log.Info().Str("exam_id", id.String()).Str("exam_name", exam.ExamName).Msg("Exam published")
	return exam, nil
}

// Archive retires a published exam from the schedule.
func (s *ExamService) Archive(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	if err := s.exams.UpdateStatus(ctx, id, model.ExamStatusArchived); err != nil {
		return nil, fmt.Errorf("archive exam: %w", err)
	}
	exam.Status = model.ExamStatusArchived

	if err := s.WarmScheduleCache(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to warm schedule cache after archive")
	}
	return exam, nil
}

// Delete removes a draft exam.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}

// ListPublished returns the published exams, preferring the Redis schedule
// cache. A cache miss or decode failure falls through to the database and
// re-warms the cache.
func (s *ExamService) ListPublished(ctx context.Context) ([]model.Exam, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.PublishedScheduleKey()).Result()
	if err == nil {
		var exams []model.Exam
		if jerr := json.Unmarshal([]byte(raw), &exams); jerr == nil {
			return exams, nil
		}
		s.log.Warn().Msg("Corrupt schedule cache, rebuilding from database")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Redis unavailable, reading schedule from database")
	}

	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}
	if err := s.writeScheduleCache(ctx, exams); err != nil {
		s.log.Warn().Err(err).Msg("Failed to re-warm schedule cache")
	}
	return exams, nil
}

// WarmScheduleCache rebuilds the published-schedule cache from the database.
func (s *ExamService) WarmScheduleCache(ctx context.Context) error {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	return s.writeScheduleCache(ctx, exams)
}

func (s *ExamService) writeScheduleCache(ctx context.Context, exams []model.Exam) error {
	payload, err := json.Marshal(exams)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.PublishedScheduleKey(), payload, config.PublishedScheduleTTL).Err()
}
