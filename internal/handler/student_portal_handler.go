package handler

import (
	"errors"
	"net/http"

	"github.com/edupulse/portal-backend/internal/gate"
	"github.com/edupulse/portal-backend/internal/middleware"
	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/response"
	"github.com/edupulse/portal-backend/internal/schedule"
	"github.com/edupulse/portal-backend/internal/service"
	"github.com/edupulse/portal-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StudentPortalHandler handles student-facing endpoints: the exam lobby,
// countdowns, and the two-phase exam entry flow.
type StudentPortalHandler struct {
	lobbyService   *service.LobbyService
	sessionService *service.SessionService
	entryGate      *gate.Gate
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	lobbyService *service.LobbyService,
	sessionService *service.SessionService,
	entryGate *gate.Gate,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		lobbyService:   lobbyService,
		sessionService: sessionService,
		entryGate:      entryGate,
	}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Returns the published exams categorized as active, upcoming and finished
// against trusted server time. Buckets are empty while the clock is syncing.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.lobbyService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, lobby)
}

// GetCountdown godoc
// GET /api/v1/student/exams/:exam_id/countdown
// Returns a point-in-time countdown reading for an upcoming exam. Clients
// that want a live stream use the WebSocket endpoint instead.
func (h *StudentPortalHandler) GetCountdown(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.lobbyService.Countdown(c.Request.Context(), examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, model.ErrMalformedSchedule):
			response.Fail(c, http.StatusConflict, response.ErrMalformedSchedule)
		default:
			response.Fail(c, http.StatusServiceUnavailable, response.ErrTimeUnavailable)
		}
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// CheckEligibility godoc
// POST /api/v1/student/exams/:exam_id/instructions
// Phase A of exam entry: re-validates the window against a fresh server-time
// read. On success the instructions step is open for this attempt.
func (h *StudentPortalHandler) CheckEligibility(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exam, ok := h.resolveExam(c)
	if !ok {
		return
	}

	if err := h.entryGate.CheckEligibility(c.Request.Context(), claims.UserID, exam); err != nil {
		h.failGate(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam_id":   exam.ExamID,
		"exam_name": exam.ExamName,
		"window":    exam.Window,
		"state":     h.entryGate.State(claims.UserID, exam.ExamID),
	})
}

// DismissInstructions godoc
// POST /api/v1/student/exams/:exam_id/instructions/dismiss
// Abandons the instructions step without starting the exam.
func (h *StudentPortalHandler) DismissInstructions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	h.entryGate.Dismiss(claims.UserID, examID)
	response.Success(c, http.StatusOK, gin.H{})
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/start
// Phase B of exam entry: the student agreed to the instructions. Guards
// against an open session and a concurrent double submit, re-validates the
// window, then opens the session.
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exam, ok := h.resolveExam(c)
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.entryGate.StartSession(c.Request.Context(), claims.UserID, exam)
	if err != nil {
		h.failGate(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session":            sess,
		"route":              "/exam/" + sess.ExamID.String(),
		"require_fullscreen": true,
	})
}

// GetActiveSession godoc
// GET /api/v1/student/session
// Returns the student's in-progress exam session, if any.
func (h *StudentPortalHandler) GetActiveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.sessionService.ActiveSession(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	refreshed, err := h.sessionService.HasRefreshMarker(c.Request.Context(), claims.UserID)
	if err != nil {
		refreshed = false
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":        sess,
		"refresh_submit": refreshed,
	})
}

// CompleteSession godoc
// POST /api/v1/student/exams/:exam_id/complete
// Closes the student's session for the exam and releases the open-session
// guard, allowing a new exam entry.
func (h *StudentPortalHandler) CompleteSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Complete(c.Request.Context(), claims.UserID, examID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// resolveExam parses :exam_id and resolves the published exam with its
// validated window, writing the failure response itself.
func (h *StudentPortalHandler) resolveExam(c *gin.Context) (schedule.ScheduledExam, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return schedule.ScheduledExam{}, false
	}

	exam, err := h.lobbyService.FindScheduled(c.Request.Context(), examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, model.ErrMalformedSchedule):
			response.Fail(c, http.StatusConflict, response.ErrMalformedSchedule)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return schedule.ScheduledExam{}, false
	}
	return exam, true
}

// failGate maps entry-gate errors onto HTTP responses. Window rejections
// carry the exact boundary in the message.
func (h *StudentPortalHandler) failGate(c *gin.Context, err error) {
	var werr *gate.WindowError
	switch {
	case errors.As(err, &werr):
		code := response.ErrExamWindowClosed
		if werr.Before {
			code = response.ErrExamNotStarted
		}
		response.FailMsg(c, http.StatusConflict, code, werr.Error())
	case errors.Is(err, gate.ErrClockUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrTimeUnavailable)
	case errors.Is(err, gate.ErrSessionOpen):
		response.FailMsg(c, http.StatusConflict, response.ErrExamSessionOpen, gate.ErrSessionOpen.Error())
	case errors.Is(err, gate.ErrStartInFlight):
		response.Fail(c, http.StatusConflict, response.ErrStartInFlight)
	case errors.Is(err, gate.ErrNotEligible):
		response.Fail(c, http.StatusConflict, response.ErrInstructionsNeeded)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
