package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam is a schedulable exam descriptor. StartDate and StartTime are kept as
// the calendar strings supplied by the scheduling office; they are combined
// and validated into an ExamWindow at the ingestion boundary, never ad hoc.
type Exam struct {
	ExamID        uuid.UUID  `json:"exam_id"`
	ExamName      string     `json:"exam_name"`
	StartDate     string     `json:"start_date"` // "2006-01-02"
	StartTime     string     `json:"start_time"` // "15:04"
	TotalExamTime int        `json:"total_exam_time"` // minutes
	Subjects      []string   `json:"subjects"`
	Status        ExamStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	ExamName      string   `json:"exam_name" binding:"required,min=3,max=255"`
	StartDate     string   `json:"start_date" binding:"required,datetime=2006-01-02"`
	StartTime     string   `json:"start_time" binding:"required,datetime=15:04"`
	TotalExamTime int      `json:"total_exam_time" binding:"required,min=1,max=480"`
	Subjects      []string `json:"subjects" binding:"omitempty,dive,min=1,max=100"`
}

// UpdateExamRequest is the payload for updating an existing draft exam.
type UpdateExamRequest struct {
	ExamName      string   `json:"exam_name" binding:"omitempty,min=3,max=255"`
	StartDate     string   `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime     string   `json:"start_time" binding:"omitempty,datetime=15:04"`
	TotalExamTime int      `json:"total_exam_time" binding:"omitempty,min=1,max=480"`
	Subjects      []string `json:"subjects" binding:"omitempty,dive,min=1,max=100"`
}
