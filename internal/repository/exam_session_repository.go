package repository

import (
	"context"
	"time"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// GetByExamAndStudent retrieves a session for a specific exam-student combination.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, collection_name, student_id, started_at, finished_at, status
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.CollectionName, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetOpenByStudent retrieves the student's IN_PROGRESS session, if any.
func (r *ExamSessionRepository) GetOpenByStudent(ctx context.Context, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, collection_name, student_id, started_at, finished_at, status
		 FROM exam_sessions
		 WHERE student_id = $1 AND status = $2
		 ORDER BY started_at DESC
		 LIMIT 1`, studentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.ExamID, &s.CollectionName, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStudent retrieves all sessions for a given student.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, collection_name, student_id, started_at, finished_at, status
		 FROM exam_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.CollectionName, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Create inserts a new exam session. The unique (exam_id, student_id)
// constraint makes the insert a no-op on a concurrent duplicate start; the
// caller detects that via pgx.ErrNoRows and re-reads the winner's row.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, collection_name, student_id, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.CollectionName, s.StudentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// Complete marks a session as completed.
func (r *ExamSessionRepository) Complete(ctx context.Context, examID uuid.UUID, studentID int) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, finished_at = $2
		 WHERE exam_id = $3 AND student_id = $4`,
		model.SessionStatusCompleted, now, examID, studentID)
	return err
}
