// Package proctor turns raw platform events reported by the UI into
// session decisions. The policy is asymmetric on purpose: leaving
// fullscreen re-asserts the lockdown, while losing document visibility or
// window focus submits the attempt. Do not unify the two without a product
// decision.
package proctor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/model"
	ws "github.com/nexusedu/exam-agent/internal/websocket"
)

// Session is the subset of the session controller the proctor drives.
type Session interface {
	Status() model.SessionStatus
	Attempt() int
	RecordViolation(kind model.ViolationKind)
	Submit(ctx context.Context, reason model.SubmitReason) error
}

// Publisher pushes commands to the connected UI streams.
type Publisher interface {
	Publish(v interface{})
}

// Proctor applies the lockdown and visibility policy while a session runs.
type Proctor struct {
	session Session
	events  Publisher
	log     zerolog.Logger

	// latchedAttempt holds the attempt number whose violation already
	// fired. A new attempt carries a new number, so the latch resets
	// itself without any hook into the start path.
	mu             sync.Mutex
	latchedAttempt int
}

func New(session Session, events Publisher, log zerolog.Logger) *Proctor {
	return &Proctor{
		session: session,
		events:  events,
		log:     log.With().Str("component", "proctor").Logger(),
	}
}

// HandleFullscreenExit reacts to the UI reporting an external fullscreen
// exit. Exits initiated by submission land here after the session has
// already left Running and are ignored. Otherwise the violation is recorded
// and the UI is commanded back into fullscreen. This path never auto-submits.
func (p *Proctor) HandleFullscreenExit(ctx context.Context) {
	if p.session.Status() != model.SessionStatusRunning {
		return
	}

	p.session.RecordViolation(model.ViolationFullscreenExit)
	p.log.Warn().Msg("Fullscreen exited during exam, re-asserting lockdown")

	p.events.Publish(ws.LockdownCommand{
		Event:  ws.EventLockdown,
		Action: ws.LockdownReenter,
	})
}

// HandleHidden reacts to the document becoming hidden (tab switch).
func (p *Proctor) HandleHidden(ctx context.Context) {
	p.violate(ctx, model.ViolationTabHidden, model.ReasonTabSwitch)
}

// HandleBlur reacts to the window losing focus.
func (p *Proctor) HandleBlur(ctx context.Context) {
	p.violate(ctx, model.ViolationWindowBlur, model.ReasonWindowSwitch)
}

// violate submits the attempt once. The latch absorbs the blur+hidden
// double-fire a single alt-tab produces, so only the first qualifying event
// reaches Submit.
func (p *Proctor) violate(ctx context.Context, kind model.ViolationKind, reason model.SubmitReason) {
	p.mu.Lock()
	if p.session.Status() != model.SessionStatusRunning {
		p.mu.Unlock()
		return
	}
	attempt := p.session.Attempt()
	if p.latchedAttempt == attempt {
		p.mu.Unlock()
		return
	}
	p.latchedAttempt = attempt
	p.mu.Unlock()

	p.session.RecordViolation(kind)
	p.log.Warn().Str("kind", string(kind)).Msg("Integrity violation, submitting")

	if err := p.session.Submit(ctx, reason); err != nil {
		p.log.Error().Err(err).Str("reason", string(reason)).Msg("Violation submit failed")
	}
}
