package model

import "time"

// Student represents a student user.
type Student struct {
	ID           int       `json:"id"`
	EnrollmentNo string    `json:"enrollment_no"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Batch        string    `json:"batch"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// CreateStudentRequest is the payload for creating a new student account.
type CreateStudentRequest struct {
	EnrollmentNo string `json:"enrollment_no" binding:"required,min=4,max=20"`
	Email        string `json:"email" binding:"required,email,max=255"`
	Name         string `json:"name" binding:"required,min=2,max=100"`
	Batch        string `json:"batch" binding:"required,min=2,max=50"`
	Password     string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateStudentRequest is the payload for updating an existing student.
type UpdateStudentRequest struct {
	EnrollmentNo string `json:"enrollment_no" binding:"required,min=4,max=20"`
	Email        string `json:"email" binding:"required,email,max=255"`
	Name         string `json:"name" binding:"required,min=2,max=100"`
	Batch        string `json:"batch" binding:"required,min=2,max=50"`
	Password     string `json:"password" binding:"omitempty,min=6,max=128"`
}
