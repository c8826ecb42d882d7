package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusedu/exam-agent/internal/auth"
	"github.com/nexusedu/exam-agent/internal/backend"
	"github.com/nexusedu/exam-agent/internal/model"
	"github.com/nexusedu/exam-agent/internal/response"
	"github.com/nexusedu/exam-agent/internal/session"
	"github.com/nexusedu/exam-agent/internal/validator"
)

// SessionHandler exposes the exam session state machine to the local UI.
type SessionHandler struct {
	session *session.Controller
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(controller *session.Controller) *SessionHandler {
	return &SessionHandler{session: controller}
}

// StartRequest is the payload for starting an exam attempt.
type StartRequest struct {
	ExamCode string `json:"exam_code" binding:"required,min=4,max=20"`
}

// AnswerRequest records one option pick. Pointers so index 0 passes
// required validation.
type AnswerRequest struct {
	QuestionIndex *int `json:"question_index" binding:"required,min=0"`
	OptionIndex   *int `json:"option_index" binding:"required,min=0"`
}

// NavigateRequest moves the current question cursor.
type NavigateRequest struct {
	QuestionIndex *int `json:"question_index" binding:"required,min=0"`
}

// Start godoc
// POST /api/v1/session/start
// Runs the full entry sequence: re-attempt guard, exam-mode gate, lockdown,
// payload fetch.
func (h *SessionHandler) Start(c *gin.Context) {
	var req StartRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.session.Start(c.Request.Context(), req.ExamCode)
	if err != nil {
		failStart(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetState godoc
// GET /api/v1/session
// Returns the full session view; the UI renders entirely from this.
func (h *SessionHandler) GetState(c *gin.Context) {
	response.Success(c, http.StatusOK, h.session.State())
}

// SelectAnswer godoc
// POST /api/v1/session/answer
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.session.SelectAnswer(c.Request.Context(), *req.QuestionIndex, *req.OptionIndex); err != nil {
		switch {
		case errors.Is(err, session.ErrNotRunning):
			response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
		case errors.Is(err, session.ErrOutOfRange):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, h.session.State())
}

// Navigate godoc
// POST /api/v1/session/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.session.Navigate(*req.QuestionIndex); err != nil {
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
		return
	}

	response.Success(c, http.StatusOK, h.session.State())
}

// Submit godoc
// POST /api/v1/session/submit
// Manual submission. Requires every question answered; auto-submission paths
// (timeout, violations) do not go through this endpoint.
func (h *SessionHandler) Submit(c *gin.Context) {
	err := h.session.Submit(c.Request.Context(), model.ReasonManual)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, h.session.State())
	case errors.Is(err, session.ErrNotRunning):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, session.ErrIncomplete):
		response.Fail(c, http.StatusBadRequest, response.ErrAnswersMissing)
	case errors.Is(err, session.ErrSubmissionPending):
		// The attempt is closed and retained locally; delivery is deferred.
		response.Success(c, http.StatusAccepted, h.session.State())
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// failStart maps start-sequence errors onto user-facing codes.
func failStart(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
	case errors.Is(err, session.ErrSubmissionPending):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionQueued)
	case errors.Is(err, session.ErrAlreadyAttempted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAttempted)
	case errors.Is(err, session.ErrNotOpen):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotOpen)
	case errors.Is(err, session.ErrEmptyCode):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, backend.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, backend.ErrUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrNetworkUnavailable)
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, auth.ErrNoToken):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, auth.ErrTokenExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
	case errors.Is(err, backend.ErrServer):
		response.Fail(c, http.StatusBadGateway, response.ErrBackendError)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
