package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// ExamSession represents one in-progress or finished exam attempt. The
// collection name is derived from the exam name at session-start time and
// recorded so the answer store knows where the attempt's answers live.
type ExamSession struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	CollectionName string        `json:"collection_name"`
	StudentID      int           `json:"student_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Status         SessionStatus `json:"status"`
}

// StartSessionRequest is the payload for the "agree & proceed" step of the
// entry gate. The student must explicitly accept the exam instructions.
type StartSessionRequest struct {
	Agreed bool `json:"agreed" binding:"required"`
}
