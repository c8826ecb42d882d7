package model

// Option is a single answer choice. Either Text or ImageRef (or both) is set.
type Option struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image,omitempty"`
}

// Question is one exam question as delivered by the backend.
// Immutable after load.
type Question struct {
	Text          string   `json:"question"`
	ImageRef      string   `json:"image,omitempty"`
	Options       []Option `json:"options"`
	AllowMultiple bool     `json:"allowMultiple"`
}

// ExamPayload is the exam as returned by POST exam/start.
// TimeLimitMinutes comes from the backend in minutes; the session converts
// it to seconds once at start.
type ExamPayload struct {
	ExamID           string     `json:"_id"`
	Title            string     `json:"title,omitempty"`
	TimeLimitMinutes int        `json:"timeLimit"`
	Questions        []Question `json:"questions"`
}

// ExamModeResponse is the availability flag from GET exam-mode/{code}.
type ExamModeResponse struct {
	ExamMode bool `json:"examMode"`
}

// Result is one prior attempt from GET my-results. Only the exam code is
// needed by the agent: it drives the re-attempt guard.
type Result struct {
	ExamCode string  `json:"examCode"`
	ExamID   string  `json:"examId,omitempty"`
	Score    float64 `json:"score,omitempty"`
}
