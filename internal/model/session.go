package model

import (
	"encoding/json"
	"time"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "IDLE"
	SessionStatusStarting   SessionStatus = "STARTING"
	SessionStatusRunning    SessionStatus = "RUNNING"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// SubmitReason identifies which trigger fired a submission.
type SubmitReason string

const (
	ReasonManual       SubmitReason = "manual"
	ReasonTimeExpired  SubmitReason = "time_expired"
	ReasonTabSwitch    SubmitReason = "tab_switch"
	ReasonWindowSwitch SubmitReason = "window_switch"
)

// Auto reports whether the reason is a system-triggered submission
// (timeout or integrity violation) rather than an explicit user action.
func (r SubmitReason) Auto() bool {
	return r != ReasonManual
}

// ViolationKind enumerates recorded proctoring violations.
type ViolationKind string

const (
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationTabHidden      ViolationKind = "tab_hidden"
	ViolationWindowBlur     ViolationKind = "window_blur"
)

// Violation is one recorded proctoring incident.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// SessionSnapshot is the durable mirror of an in-progress session. It is
// written only by the session controller and restored verbatim on reload.
type SessionSnapshot struct {
	ExamCode             string          `json:"exam_code"`
	Exam                 ExamPayload     `json:"exam"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
	QuestionIndex        int             `json:"question_index"`
	Answers              json.RawMessage `json:"answers"`
	Violations           []Violation     `json:"violations,omitempty"`
	StartedAt            time.Time       `json:"started_at"`
	SavedAt              time.Time       `json:"saved_at"`
}
