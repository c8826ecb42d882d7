package model

import (
	"encoding/json"
	"time"
)

// Submission is the wire payload for POST exam/submit. Answer option values
// are 1-indexed per the backend contract; single-choice answers are bare
// integers, multi-choice answers are integer arrays. Keys are the question
// indices as decimal strings.
type Submission struct {
	ExamID               string          `json:"examId"`
	Answers              map[string]any  `json:"answers"`
	IsAutoSubmit         bool            `json:"isAutoSubmit"`
	TotalQuestions       int             `json:"totalQuestions"`
	AttemptedCount       int             `json:"attemptedCount"`
	TimeRemainingSeconds int             `json:"timeRemainingSeconds"`
	Violations           []Violation     `json:"violations,omitempty"`
}

// PendingSubmission is a submission retained locally because delivery has
// not been confirmed. Body is the exact JSON that will be re-POSTed, so a
// retry can never drift from what was originally built.
type PendingSubmission struct {
	ExamID   string          `json:"exam_id"`
	ExamCode string          `json:"exam_code"`
	Reason   SubmitReason    `json:"reason"`
	Body     json.RawMessage `json:"body"`
	SavedAt  time.Time       `json:"saved_at"`
}
