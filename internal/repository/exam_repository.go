package repository

import (
	"context"
	"strconv"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam descriptor data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT exam_id, exam_name, start_date, start_time, total_exam_time,
		        subjects, status, created_at, updated_at
		 FROM exams WHERE exam_id = $1`, id,
	).Scan(&e.ExamID, &e.ExamName, &e.StartDate, &e.StartTime, &e.TotalExamTime,
		&e.Subjects, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPaginated retrieves exams with pagination, optionally filtered by status.
func (r *ExamRepository) ListPaginated(ctx context.Context, status *model.ExamStatus, limit, offset int) ([]model.Exam, int, error) {
	countQuery := `SELECT COUNT(*) FROM exams`
	var countArgs []interface{}
	if status != nil {
		countQuery += ` WHERE status = $1`
		countArgs = append(countArgs, *status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT exam_id, exam_name, start_date, start_time, total_exam_time,
	                 subjects, status, created_at, updated_at
	          FROM exams`
	var args []interface{}
	argIdx := 1

	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
		argIdx++
	}

	query += ` ORDER BY start_date, start_time LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ExamID, &e.ExamName, &e.StartDate, &e.StartTime, &e.TotalExamTime,
			&e.Subjects, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns all exams with PUBLISHED status in schedule order.
// Used by the student lobby and for schedule-cache rebuilds.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, exam_name, start_date, start_time, total_exam_time,
		        subjects, status, created_at, updated_at
		 FROM exams WHERE status = $1
		 ORDER BY start_date, start_time`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ExamID, &e.ExamName, &e.StartDate, &e.StartTime, &e.TotalExamTime,
			&e.Subjects, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (exam_name, start_date, start_time, total_exam_time, subjects, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING exam_id, created_at, updated_at`,
		e.ExamName, e.StartDate, e.StartTime, e.TotalExamTime, e.Subjects, e.Status,
	).Scan(&e.ExamID, &e.CreatedAt, &e.UpdatedAt)
}

// Update modifies an exam's descriptor fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET exam_name = $1, start_date = $2, start_time = $3, total_exam_time = $4,
		     subjects = $5, updated_at = NOW()
		 WHERE exam_id = $6`,
		e.ExamName, e.StartDate, e.StartTime, e.TotalExamTime, e.Subjects, e.ExamID)
	return err
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE exam_id = $2`,
		status, id)
	return err
}

// Delete removes an exam by ID.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE exam_id = $1`, id)
	return err
}
