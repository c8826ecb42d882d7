package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/backend"
	"github.com/nexusedu/exam-agent/internal/config"
	"github.com/nexusedu/exam-agent/internal/handler"
	"github.com/nexusedu/exam-agent/internal/model"
	"github.com/nexusedu/exam-agent/internal/proctor"
	"github.com/nexusedu/exam-agent/internal/response"
	"github.com/nexusedu/exam-agent/internal/router"
	"github.com/nexusedu/exam-agent/internal/session"
	"github.com/nexusedu/exam-agent/internal/store"
	"github.com/nexusedu/exam-agent/internal/validator"
	ws "github.com/nexusedu/exam-agent/internal/websocket"
)

type fakeBackend struct {
	mu          sync.Mutex
	results     []model.Result
	open        bool
	payload     model.ExamPayload
	submitErr   error
	submitCalls int
}

func (f *fakeBackend) ExamMode(ctx context.Context, code string) (bool, error) {
	return f.open, nil
}

func (f *fakeBackend) StartExam(ctx context.Context, code string) (*model.ExamPayload, error) {
	payload := f.payload
	return &payload, nil
}

func (f *fakeBackend) SubmitExam(ctx context.Context, body json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	return f.submitErr
}

func (f *fakeBackend) MyResults(ctx context.Context) ([]model.Result, error) {
	return f.results, nil
}

type noopLockdown struct{}

func (noopLockdown) Enter(ctx context.Context) error { return nil }
func (noopLockdown) Exit(ctx context.Context) error  { return nil }

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	be := &fakeBackend{
		open: true,
		payload: model.ExamPayload{
			ExamID:           "exam-1",
			Title:            "Sample",
			TimeLimitMinutes: 30,
			Questions: []model.Question{
				{Text: "q0", Options: []model.Option{{Text: "a"}, {Text: "b"}, {Text: "c"}}},
				{Text: "q1", Options: []model.Option{{Text: "a"}, {Text: "b"}}},
			},
		},
	}

	hub := ws.NewHub()
	controller := session.NewController("student-1", store.NewMemoryStore(), be, noopLockdown{}, nil, hub, zerolog.Nop())
	watcher := proctor.New(controller, hub, zerolog.Nop())

	cfg := &config.Config{GinMode: gin.TestMode}
	r := router.SetupRouter(&router.Handlers{
		Session: handler.NewSessionHandler(controller),
		WS:      handler.NewWSHandler(watcher, hub, zerolog.Nop(), nil),
	}, cfg)

	return &testEnv{router: r, backend: be}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var envelope response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope (%s): %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "ABC123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) answer(t *testing.T, question, option int) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/v1/session/answer", handler.AnswerRequest{
		QuestionIndex: &question,
		OptionIndex:   &option,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer q%d: status %d body %s", question, rec.Code, rec.Body.String())
	}
}

func stateOf(t *testing.T, envelope response.Response) session.State {
	t.Helper()
	data, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func errCodeOf(envelope response.Response) response.ErrCode {
	if envelope.Error == nil {
		return ""
	}
	return envelope.Error.Code
}

func TestStartEndpoint_HappyPath(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "ABC123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	state := stateOf(t, envelope)
	if state.Status != model.SessionStatusRunning {
		t.Errorf("expected RUNNING, got %s", state.Status)
	}
	if state.TimeRemainingSeconds != 1800 {
		t.Errorf("time remaining: %d", state.TimeRemainingSeconds)
	}
	if envelope.Metadata.RequestID == "" {
		t.Error("expected a request id in metadata")
	}
}

func TestStartEndpoint_ValidationRejectsShortCode(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "AB"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrValidation {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
	if envelope.Error.Fields["exam_code"] == "" {
		t.Errorf("expected a field-level message, got %v", envelope.Error.Fields)
	}
}

func TestStartEndpoint_SecondStartConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "XYZ789"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrSessionActive {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
}

func TestStartEndpoint_AlreadyAttempted(t *testing.T) {
	env := newTestEnv(t)
	env.backend.results = []model.Result{{ExamCode: "ABC123"}}

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "ABC123"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrAlreadyAttempted {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
}

func TestStartEndpoint_ExamClosed(t *testing.T) {
	env := newTestEnv(t)
	env.backend.open = false

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/start", handler.StartRequest{ExamCode: "ABC123"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrExamNotOpen {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
}

func TestAnswerEndpoint_IndexZeroPassesValidation(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	question, option := 0, 0
	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/answer", handler.AnswerRequest{
		QuestionIndex: &question,
		OptionIndex:   &option,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("index 0 must pass required validation: status %d body %s", rec.Code, rec.Body.String())
	}
	if state := stateOf(t, envelope); state.AttemptedCount != 1 {
		t.Errorf("attempted count: %d", state.AttemptedCount)
	}
}

func TestAnswerEndpoint_OutOfRange(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)

	question, option := 99, 0
	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/answer", handler.AnswerRequest{
		QuestionIndex: &question,
		OptionIndex:   &option,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrInvalidPayload {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
}

func TestAnswerEndpoint_NoSession(t *testing.T) {
	env := newTestEnv(t)

	question, option := 0, 0
	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/answer", handler.AnswerRequest{
		QuestionIndex: &question,
		OptionIndex:   &option,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrNoActiveSession {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}
}

func TestSubmitEndpoint_IncompleteThenComplete(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.answer(t, 0, 1)

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/submit", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete submit: status %d", rec.Code)
	}
	if errCodeOf(envelope) != response.ErrAnswersMissing {
		t.Errorf("error code: %s", errCodeOf(envelope))
	}

	env.answer(t, 1, 0)

	rec, envelope = env.do(t, http.MethodPost, "/api/v1/session/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete submit: status %d body %s", rec.Code, rec.Body.String())
	}
	if state := stateOf(t, envelope); state.Status != model.SessionStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if env.backend.submitCalls != 1 {
		t.Errorf("submit calls: %d", env.backend.submitCalls)
	}
}

func TestSubmitEndpoint_OfflineReturnsAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.answer(t, 0, 1)
	env.answer(t, 1, 0)
	env.backend.submitErr = backend.ErrUnavailable

	rec, envelope := env.do(t, http.MethodPost, "/api/v1/session/submit", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if state := stateOf(t, envelope); state.Status != model.SessionStatusSubmitting {
		t.Errorf("expected SUBMITTING, got %s", state.Status)
	}
}

func TestGetState_RendersIdle(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := env.do(t, http.MethodGet, "/api/v1/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if state := stateOf(t, envelope); state.Status != model.SessionStatusIdle {
		t.Errorf("expected IDLE, got %s", state.Status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
