package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Entry gate ────────────────────────────────────────────────────
	ErrExamNotStarted     ErrCode = "EXAM_NOT_STARTED"
	ErrExamWindowClosed   ErrCode = "EXAM_WINDOW_CLOSED"
	ErrExamSessionOpen    ErrCode = "EXAM_SESSION_OPEN"
	ErrStartInFlight      ErrCode = "START_IN_FLIGHT"
	ErrInstructionsNeeded ErrCode = "INSTRUCTIONS_NOT_VIEWED"
	ErrTimeUnavailable    ErrCode = "UNABLE_TO_VALIDATE_TIME"
	ErrMalformedSchedule  ErrCode = "MALFORMED_SCHEDULE"

	// ─── Exam administration ───────────────────────────────────────────
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already signed in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Entry gate ────────────────────────────────────────────────────
	case ErrExamNotStarted:
		return "This exam has not started yet."
	case ErrExamWindowClosed:
		return "The window for this exam has closed."
	case ErrExamSessionOpen:
		return "An exam is already in progress. Submit it before starting another."
	case ErrStartInFlight:
		return "Your exam is already being started."
	case ErrInstructionsNeeded:
		return "View the exam instructions before starting."
	case ErrTimeUnavailable:
		return "Unable to validate the exam time. Please try again."
	case ErrMalformedSchedule:
		return "The exam schedule is malformed."

	// ─── Exam administration ───────────────────────────────────────────
	case ErrExamNotDraft:
		return "This exam is not in DRAFT status."
	case ErrExamNotPublished:
		return "This exam has not been published."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
