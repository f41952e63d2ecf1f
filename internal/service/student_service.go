package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrStudentNotFound is returned when no student matches the lookup.
var ErrStudentNotFound = errors.New("student not found")

// StudentService manages student accounts.
type StudentService struct {
	students *repository.StudentRepository
	auth     *AuthService
	log      zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(students *repository.StudentRepository, auth *AuthService, log zerolog.Logger) *StudentService {
	return &StudentService{
		students: students,
		auth:     auth,
		log:      log.With().Str("component", "student_service").Logger(),
	}
}

// Authenticate verifies a student's email and password.
func (s *StudentService) Authenticate(ctx context.Context, email, password string) (*model.Student, error) {
	student, err := s.students.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	if err := s.auth.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return student, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id int) (*model.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// List returns a paginated student listing, optionally filtered by batch.
func (s *StudentService) List(ctx context.Context, batch *string, limit, offset int) ([]model.Student, int, error) {
	return s.students.ListPaginated(ctx, batch, limit, offset)
}

// Create registers a new student account with a hashed password.
func (s *StudentService) Create(ctx context.Context, req *model.CreateStudentRequest) (*model.Student, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		EnrollmentNo: req.EnrollmentNo,
		Email:        req.Email,
		Name:         req.Name,
		Batch:        req.Batch,
		PasswordHash: hash,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}

	s.log.Info().Int("student_id", student.ID).Str("enrollment_no", student.EnrollmentNo).Msg("Student created")
	return student, nil
}

// Update modifies a student's profile fields.
func (s *StudentService) Update(ctx context.Context, id int, req *model.UpdateStudentRequest) (*model.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	student.EnrollmentNo = req.EnrollmentNo
	student.Email = req.Email
	student.Name = req.Name
	student.Batch = req.Batch

	if err := s.students.Update(ctx, student); err != nil {
		return nil, err
	}

	if req.Password != "" {
		if err := s.ResetPassword(ctx, id, req.Password); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// ResetPassword sets a new password and invalidates the student's login
// session so a stolen token cannot outlive the reset.
func (s *StudentService) ResetPassword(ctx context.Context, id int, password string) error {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.students.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	return s.auth.ResetStudentSession(ctx, id)
}

// Delete removes a student account.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	return s.students.Delete(ctx, id)
}
