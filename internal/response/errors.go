package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionActive    ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrNoActiveSession  ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionClosed    ErrCode = "SESSION_CLOSED"
	ErrAnswersMissing   ErrCode = "ANSWERS_INCOMPLETE"
	ErrSubmissionQueued ErrCode = "SUBMISSION_PENDING"

	// ─── Exam entry ────────────────────────────────────────────────────
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotOpen      ErrCode = "EXAM_NOT_OPEN"
	ErrAlreadyAttempted ErrCode = "EXAM_ALREADY_ATTEMPTED"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrLockdownDenied ErrCode = "LOCKDOWN_DENIED"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrNetworkUnavailable ErrCode = "NETWORK_UNAVAILABLE"
	ErrBackendError       ErrCode = "BACKEND_ERROR"

	// ─── Auth ──────────────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrSessionActive:
		return "An exam session is already in progress."
	case ErrNoActiveSession:
		return "No exam session is in progress."
	case ErrSessionClosed:
		return "The exam session is closed; answers can no longer be changed."
	case ErrAnswersMissing:
		return "All questions must be answered before submitting."
	case ErrSubmissionQueued:
		return "Your answers are saved and will be delivered when the connection returns."

	// ─── Exam entry ────────────────────────────────────────────────────
	case ErrExamNotFound:
		return "No exam was found for that code."
	case ErrExamNotOpen:
		return "This exam is not open yet. Try again later."
	case ErrAlreadyAttempted:
		return "You have already attempted this exam."

	// ─── Proctoring ────────────────────────────────────────────────────
	case ErrLockdownDenied:
		return "Fullscreen lockdown was refused. The exam continues without it."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrNetworkUnavailable:
		return "The exam server cannot be reached."
	case ErrBackendError:
		return "The exam server reported an error."

	// ─── Auth ──────────────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Sign in before starting an exam."
	case ErrTokenExpired:
		return "Your sign-in has expired. Sign in again."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal agent error occurred."
	default:
		return "An unexpected error occurred."
	}
}
