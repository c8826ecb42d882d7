// Package session implements the exam attempt state machine: start,
// answering, countdown, exactly-once submission, and restore after a crash
// or reload. The controller is the single writer of both the in-memory
// session and its durable mirror in the store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/auth"
	"github.com/nexusedu/exam-agent/internal/model"
	"github.com/nexusedu/exam-agent/internal/store"
	ws "github.com/nexusedu/exam-agent/internal/websocket"
)

// Sentinel errors for the handler layer to match with errors.Is.
var (
	ErrSessionActive     = errors.New("a session is already active")
	ErrNotRunning        = errors.New("no running session")
	ErrAlreadyAttempted  = errors.New("exam already attempted")
	ErrNotOpen           = errors.New("exam is not open")
	ErrIncomplete        = errors.New("not all questions answered")
	ErrSubmissionPending = errors.New("submission pending delivery")
	ErrEmptyCode         = errors.New("exam code is required")
	ErrOutOfRange        = errors.New("index out of range")
)

// snapshotEverySeconds bounds the staleness of the durable session copy
// without persisting on every tick.
const snapshotEverySeconds = 30

// Backend is the subset of the backend client the controller needs.
type Backend interface {
	ExamMode(ctx context.Context, code string) (bool, error)
	StartExam(ctx context.Context, code string) (*model.ExamPayload, error)
	SubmitExam(ctx context.Context, body json.RawMessage) error
	MyResults(ctx context.Context) ([]model.Result, error)
}

// Lockdown acquires and releases the fullscreen lockdown. Enter failure is
// surfaced but never aborts a session.
type Lockdown interface {
	Enter(ctx context.Context) error
	Exit(ctx context.Context) error
}

// TokenSource supplies the cached bearer token for the lifetime gate. A nil
// source skips the gate.
type TokenSource interface {
	Token() (string, error)
}

// Publisher pushes events to the connected UI streams.
type Publisher interface {
	Publish(v interface{})
}

// State is a read-only view of the session for the UI.
type State struct {
	Status               model.SessionStatus `json:"status"`
	ExamCode             string              `json:"exam_code,omitempty"`
	Exam                 *model.ExamPayload  `json:"exam,omitempty"`
	TimeRemainingSeconds int                 `json:"time_remaining_seconds"`
	QuestionIndex        int                 `json:"question_index"`
	Answers              json.RawMessage     `json:"answers,omitempty"`
	AttemptedCount       int                 `json:"attempted_count"`
	RemainingCount       int                 `json:"remaining_count"`
	Violations           []model.Violation   `json:"violations,omitempty"`
	LockdownDegraded     bool                `json:"lockdown_degraded"`

	// LockdownRequired tells a (re)connecting UI whether it must be in
	// fullscreen right now. Lockdown commands can fire before any stream
	// subscriber exists (restore at startup), so the durable view carries
	// the state too.
	LockdownRequired bool `json:"lockdown_required"`
}

// Controller owns the exam session for one student. All mutation goes
// through its methods; concurrent triggers (timer expiry, proctoring
// violations, manual submit) are serialized by the internal mutex, and the
// Running→Submitting transition is the latch that makes submission
// exactly-once.
type Controller struct {
	studentID string
	store     store.Store
	backend   Backend
	lockdown  Lockdown
	tokens    TokenSource
	events    Publisher
	log       zerolog.Logger

	mu               sync.Mutex
	status           model.SessionStatus
	examCode         string
	exam             *model.ExamPayload
	timeRemaining    int
	questionIndex    int
	ledger           *Ledger
	violations       []model.Violation
	startedAt        time.Time
	lockdownDegraded bool
	reconciling      bool

	// attempt increments every time a session reaches Running. The proctor
	// keys its one-shot violation latch to it.
	attempt int

	// tickInterval is one second in production; tests shorten it or drive
	// Tick directly.
	tickInterval time.Duration
	stopTimer    chan struct{}
}

// NewController creates an idle controller. Call Restore before serving
// traffic so an interrupted session resumes instead of restarting.
func NewController(studentID string, st store.Store, be Backend, ld Lockdown, tokens TokenSource, events Publisher, log zerolog.Logger) *Controller {
	return &Controller{
		studentID:    studentID,
		store:        st,
		backend:      be,
		lockdown:     ld,
		tokens:       tokens,
		events:       events,
		log:          log.With().Str("component", "session").Logger(),
		status:       model.SessionStatusIdle,
		ledger:       NewLedger(),
		tickInterval: time.Second,
	}
}

// Status returns the current state-machine status.
func (c *Controller) Status() model.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Attempt returns a sequence number that changes whenever a new session
// reaches Running.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// State returns a snapshot view for the UI.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Status:               c.status,
		ExamCode:             c.examCode,
		Exam:                 c.exam,
		TimeRemainingSeconds: c.timeRemaining,
		QuestionIndex:        c.questionIndex,
		Violations:           append([]model.Violation(nil), c.violations...),
		LockdownDegraded:     c.lockdownDegraded,
		LockdownRequired:     c.status == model.SessionStatusRunning,
	}
	if c.exam != nil {
		s.AttemptedCount = c.ledger.AttemptedCount()
		s.RemainingCount = c.ledger.RemainingCount(c.exam.Questions)
		if answers, err := json.Marshal(c.ledger); err == nil {
			s.Answers = answers
		}
	}
	return s
}

// Start begins a new exam attempt for examCode.
//
// Order matters: the re-attempt guard runs before any start endpoint is
// touched, exam-mode gates entry, and the lockdown is acquired before the
// payload is fetched. Lockdown denial degrades the session instead of
// aborting it. Any failure rolls the machine back to Idle.
func (c *Controller) Start(ctx context.Context, examCode string) (State, error) {
	examCode = strings.TrimSpace(examCode)
	if examCode == "" {
		return c.State(), ErrEmptyCode
	}

	c.mu.Lock()
	switch c.status {
	case model.SessionStatusRunning, model.SessionStatusStarting:
		c.mu.Unlock()
		return c.State(), ErrSessionActive
	case model.SessionStatusSubmitting:
		c.mu.Unlock()
		return c.State(), ErrSubmissionPending
	}
	c.status = model.SessionStatusStarting
	c.mu.Unlock()

	state, err := c.start(ctx, examCode)
	if err != nil {
		c.mu.Lock()
		c.status = model.SessionStatusIdle
		c.mu.Unlock()
		return c.State(), err
	}
	return state, nil
}

func (c *Controller) start(ctx context.Context, examCode string) (State, error) {
	// Re-attempt guard: a prior result for this code is terminal.
	results, err := c.backend.MyResults(ctx)
	if err != nil {
		return State{}, fmt.Errorf("check prior attempts: %w", err)
	}
	for _, r := range results {
		if strings.EqualFold(r.ExamCode, examCode) {
			return State{}, ErrAlreadyAttempted
		}
	}

	open, err := c.backend.ExamMode(ctx, examCode)
	if err != nil {
		return State{}, fmt.Errorf("check exam mode: %w", err)
	}
	if !open {
		return State{}, ErrNotOpen
	}

	// Lockdown denial is non-fatal: the session proceeds degraded.
	degraded := false
	if err := c.lockdown.Enter(ctx); err != nil {
		degraded = true
		c.log.Warn().Err(err).Msg("Lockdown denied, session proceeds degraded")
		c.events.Publish(ws.WarningEvent{
			Event:   ws.EventWarning,
			Code:    "LOCKDOWN_DENIED",
			Message: "Fullscreen lockdown was refused. The exam continues without it.",
		})
	}

	exam, err := c.backend.StartExam(ctx, examCode)
	if err != nil {
		if !degraded {
			_ = c.lockdown.Exit(ctx)
		}
		return State{}, fmt.Errorf("start exam: %w", err)
	}

	// The token must outlive the exam, or mid-exam upstream calls and the
	// final submission would start failing with auth errors. The limit is
	// only known from the payload, so the gate runs here; aborting is safe
	// because the re-attempt guard keys off submitted results.
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err == nil {
			err = auth.CheckLifetime(token, time.Duration(exam.TimeLimitMinutes)*time.Minute)
		}
		if err != nil {
			if !degraded {
				_ = c.lockdown.Exit(ctx)
			}
			return State{}, fmt.Errorf("check token lifetime: %w", err)
		}
	}

	c.mu.Lock()
	c.examCode = examCode
	c.exam = exam
	c.timeRemaining = exam.TimeLimitMinutes * 60
	c.questionIndex = 0
	c.ledger = NewLedger()
	c.violations = nil
	c.startedAt = time.Now()
	c.lockdownDegraded = degraded
	c.status = model.SessionStatusRunning
	c.attempt++

	if err := c.persistLocked(ctx); err != nil {
		c.log.Error().Err(err).Msg("Initial snapshot persist failed")
	}
	c.startTimerLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", exam.ExamID).
		Int("questions", len(exam.Questions)).
		Int("time_limit_s", exam.TimeLimitMinutes*60).
		Bool("lockdown_degraded", degraded).
		Msg("Session running")

	return c.State(), nil
}

// SelectAnswer records an option pick. No-op outside Running. The ledger is
// the only source of truth on reload, so the snapshot persist after every
// mutation is synchronous and never skipped.
func (c *Controller) SelectAnswer(ctx context.Context, questionIndex, optionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.SessionStatusRunning {
		return ErrNotRunning
	}
	if questionIndex < 0 || questionIndex >= len(c.exam.Questions) {
		return fmt.Errorf("%w: question %d", ErrOutOfRange, questionIndex)
	}
	q := c.exam.Questions[questionIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("%w: option %d", ErrOutOfRange, optionIndex)
	}

	c.ledger.Set(questionIndex, optionIndex, q.AllowMultiple)

	if err := c.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist answers: %w", err)
	}
	return nil
}

// Navigate moves the current question index, clamped to the valid range.
// Never blocked by lockdown, no other side effects.
func (c *Controller) Navigate(questionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.SessionStatusRunning {
		return ErrNotRunning
	}
	if questionIndex < 0 {
		questionIndex = 0
	}
	if max := len(c.exam.Questions) - 1; questionIndex > max {
		questionIndex = max
	}
	c.questionIndex = questionIndex
	return nil
}

// RecordViolation appends a proctoring incident to the session record.
// Ignored outside Running.
func (c *Controller) RecordViolation(kind model.ViolationKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.SessionStatusRunning {
		return
	}
	c.violations = append(c.violations, model.Violation{
		Kind:       kind,
		RecordedAt: time.Now(),
	})
}

// Submit closes the attempt. The Running→Submitting transition is the
// exactly-once latch: concurrent triggers that lose the race return nil and
// do nothing. The lockdown is released strictly before the network call so a
// hung request never leaves the UI trapped in fullscreen. On delivery
// failure the submission is retained as pending; the attempt is never lost
// and answers are never reopened.
func (c *Controller) Submit(ctx context.Context, reason model.SubmitReason) error {
	c.mu.Lock()
	switch c.status {
	case model.SessionStatusSubmitting, model.SessionStatusCompleted:
		// Another trigger already fired.
		c.mu.Unlock()
		return nil
	case model.SessionStatusRunning:
	default:
		c.mu.Unlock()
		return ErrNotRunning
	}

	if reason == model.ReasonManual && !c.ledger.IsComplete(c.exam.Questions) {
		c.mu.Unlock()
		return ErrIncomplete
	}

	c.status = model.SessionStatusSubmitting
	c.stopTimerLocked()

	submission := model.Submission{
		ExamID:               c.exam.ExamID,
		Answers:              c.ledger.Wire(),
		IsAutoSubmit:         reason.Auto(),
		TotalQuestions:       len(c.exam.Questions),
		AttemptedCount:       c.ledger.AttemptedCount(),
		TimeRemainingSeconds: c.timeRemaining,
		Violations:           append([]model.Violation(nil), c.violations...),
	}
	examID := c.exam.ExamID
	examCode := c.examCode
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", examID).
		Str("reason", string(reason)).
		Int("attempted", submission.AttemptedCount).
		Msg("Submitting")

	// Release the lockdown before touching the network.
	if err := c.lockdown.Exit(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Lockdown release failed")
	}

	body, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	if err := c.backend.SubmitExam(ctx, body); err != nil {
		return c.retainPending(ctx, examID, examCode, reason, body, err)
	}

	return c.complete(ctx, examID, false)
}

// retainPending stores the undelivered submission and closes the session
// snapshot so a restart cannot resurrect a Running state for a closed
// attempt.
func (c *Controller) retainPending(ctx context.Context, examID, examCode string, reason model.SubmitReason, body json.RawMessage, cause error) error {
	pending := &model.PendingSubmission{
		ExamID:   examID,
		ExamCode: examCode,
		Reason:   reason,
		Body:     body,
		SavedAt:  time.Now(),
	}
	if err := c.store.SavePending(ctx, c.studentID, pending); err != nil {
		// Both the network and the local store failed; keep the session
		// snapshot so nothing is lost, and report the store error.
		c.log.Error().Err(err).Msg("CRITICAL: failed to retain pending submission")
		return fmt.Errorf("retain pending submission: %w", err)
	}
	if err := c.store.ClearSession(ctx, c.studentID); err != nil {
		c.log.Error().Err(err).Msg("Clear session snapshot failed")
	}

	c.events.Publish(ws.WarningEvent{
		Event:   ws.EventWarning,
		Code:    "SUBMISSION_PENDING",
		Message: "Your answers are saved and will be delivered when the connection returns.",
	})
	// The attempt is closed even though delivery is outstanding.
	c.events.Publish(ws.CompletedEvent{
		Event:   ws.EventCompleted,
		ExamID:  examID,
		Pending: true,
	})

	c.log.Warn().Err(cause).Str("exam_id", examID).Msg("Delivery failed, submission retained as pending")

	return fmt.Errorf("%w: %v", ErrSubmissionPending, cause)
}

// complete clears all persisted state and announces completion.
func (c *Controller) complete(ctx context.Context, examID string, wasPending bool) error {
	if err := c.store.ClearSession(ctx, c.studentID); err != nil {
		c.log.Error().Err(err).Msg("Clear session snapshot failed")
	}
	if err := c.store.ClearPending(ctx, c.studentID); err != nil {
		c.log.Error().Err(err).Msg("Clear pending submission failed")
	}

	c.mu.Lock()
	c.status = model.SessionStatusCompleted
	c.mu.Unlock()

	c.events.Publish(ws.CompletedEvent{
		Event:   ws.EventCompleted,
		ExamID:  examID,
		Pending: false,
	})

	c.log.Info().Str("exam_id", examID).Bool("was_pending", wasPending).Msg("Submission delivered")
	return nil
}

// Restore reconstitutes an interrupted session from the durable store.
// Invoked once at startup. A pending submission means the attempt is closed:
// the machine resumes in Submitting awaiting delivery, never Running. An
// in-progress snapshot resumes Running with the persisted remaining time,
// never the original limit.
func (c *Controller) Restore(ctx context.Context) error {
	if pending, err := c.store.LoadPending(ctx, c.studentID); err == nil {
		c.mu.Lock()
		c.status = model.SessionStatusSubmitting
		c.examCode = pending.ExamCode
		c.mu.Unlock()
		c.log.Info().Str("exam_id", pending.ExamID).Msg("Restored with pending submission, awaiting delivery")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load pending submission: %w", err)
	}

	snap, err := c.store.LoadSession(ctx, c.studentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session snapshot: %w", err)
	}

	ledger := NewLedger()
	if len(snap.Answers) > 0 {
		if err := json.Unmarshal(snap.Answers, ledger); err != nil {
			return fmt.Errorf("restore answers: %w", err)
		}
	}

	c.mu.Lock()
	c.examCode = snap.ExamCode
	c.exam = &snap.Exam
	c.timeRemaining = snap.TimeRemainingSeconds
	c.questionIndex = snap.QuestionIndex
	c.ledger = ledger
	c.violations = snap.Violations
	c.startedAt = snap.StartedAt
	c.status = model.SessionStatusRunning
	c.attempt++
	expired := c.timeRemaining <= 0
	if !expired {
		c.startTimerLocked()
	}
	c.mu.Unlock()

	if expired {
		// The clock ran out while the agent was down.
		return c.Submit(ctx, model.ReasonTimeExpired)
	}

	if err := c.lockdown.Enter(ctx); err != nil {
		c.mu.Lock()
		c.lockdownDegraded = true
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("Lockdown re-acquire failed after restore")
	}

	c.log.Info().
		Str("exam_id", snap.Exam.ExamID).
		Int("time_remaining_s", snap.TimeRemainingSeconds).
		Msg("Session restored")
	return nil
}

// HasPending reports whether an undelivered submission exists.
func (c *Controller) HasPending(ctx context.Context) bool {
	_, err := c.store.LoadPending(ctx, c.studentID)
	return err == nil
}

// ReconcilePending retries delivery of a stored pending submission. Safe to
// call when none exists. On success it runs the normal completion path.
func (c *Controller) ReconcilePending(ctx context.Context) error {
	c.mu.Lock()
	if c.reconciling {
		c.mu.Unlock()
		return nil
	}
	c.reconciling = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.reconciling = false
		c.mu.Unlock()
	}()

	pending, err := c.store.LoadPending(ctx, c.studentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load pending submission: %w", err)
	}

	if err := c.backend.SubmitExam(ctx, pending.Body); err != nil {
		return fmt.Errorf("redeliver submission: %w", err)
	}
	return c.complete(ctx, pending.ExamID, true)
}

// Shutdown persists a final snapshot so a machine reboot mid-exam behaves
// exactly like a reload, and stops the countdown.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == model.SessionStatusRunning {
		if err := c.persistLocked(ctx); err != nil {
			c.log.Error().Err(err).Msg("Final snapshot persist failed")
		}
	}
	c.stopTimerLocked()
}

// startTimerLocked arms the one-second countdown. Callers hold c.mu.
// The guard on stopTimer prevents double instantiation across restores.
func (c *Controller) startTimerLocked() {
	if c.stopTimer != nil {
		return
	}
	stop := make(chan struct{})
	c.stopTimer = stop

	go func() {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if c.Tick(context.Background()) {
					_ = c.Submit(context.Background(), model.ReasonTimeExpired)
					return
				}
			}
		}
	}()
}

// stopTimerLocked halts the countdown goroutine. Callers hold c.mu.
func (c *Controller) stopTimerLocked() {
	if c.stopTimer != nil {
		close(c.stopTimer)
		c.stopTimer = nil
	}
}

// Tick decrements the remaining time by one second and reports whether the
// clock reached zero. Every 30th second the snapshot is re-persisted.
// Exported so tests drive the countdown deterministically.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.SessionStatusRunning {
		return false
	}
	if c.timeRemaining > 0 {
		c.timeRemaining--
	}

	c.events.Publish(ws.TickEvent{
		Event:                ws.EventTick,
		TimeRemainingSeconds: c.timeRemaining,
	})

	if c.timeRemaining == 0 {
		return true
	}
	if c.timeRemaining%snapshotEverySeconds == 0 {
		if err := c.persistLocked(ctx); err != nil {
			c.log.Error().Err(err).Msg("Periodic snapshot persist failed")
		}
	}
	return false
}

// persistLocked writes the session snapshot. Callers hold c.mu.
func (c *Controller) persistLocked(ctx context.Context) error {
	answers, err := json.Marshal(c.ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	snap := &model.SessionSnapshot{
		ExamCode:             c.examCode,
		Exam:                 *c.exam,
		TimeRemainingSeconds: c.timeRemaining,
		QuestionIndex:        c.questionIndex,
		Answers:              answers,
		Violations:           append([]model.Violation(nil), c.violations...),
		StartedAt:            c.startedAt,
		SavedAt:              time.Now(),
	}
	return c.store.SaveSession(ctx, c.studentID, snap)
}
