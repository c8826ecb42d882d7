package proctor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	ws "github.com/nexusedu/exam-agent/internal/websocket"
)

// LockdownController acquires and releases the fullscreen lockdown. The
// browser UI executes the actual fullscreen request on receipt of the
// lockdown command; optional shell hooks cover kiosk window managers that
// need OS-level help (disabling task switching, pinning the window).
type LockdownController struct {
	enterCmd string
	exitCmd  string
	events   Publisher
	log      zerolog.Logger
}

func NewLockdownController(enterCmd, exitCmd string, events Publisher, log zerolog.Logger) *LockdownController {
	return &LockdownController{
		enterCmd: enterCmd,
		exitCmd:  exitCmd,
		events:   events,
		log:      log.With().Str("component", "lockdown").Logger(),
	}
}

// Enter commands the UI into fullscreen and runs the enter hook if
// configured. The hook failing is the only detectable denial at this layer;
// a browser-side refusal surfaces later as a fullscreen_exit event.
func (l *LockdownController) Enter(ctx context.Context) error {
	l.events.Publish(ws.LockdownCommand{
		Event:  ws.EventLockdown,
		Action: ws.LockdownEnter,
	})
	if err := l.runHook(ctx, l.enterCmd); err != nil {
		return fmt.Errorf("lockdown enter hook: %w", err)
	}
	l.log.Info().Msg("Lockdown acquired")
	return nil
}

// Exit commands the UI out of fullscreen and runs the exit hook.
func (l *LockdownController) Exit(ctx context.Context) error {
	l.events.Publish(ws.LockdownCommand{
		Event:  ws.EventLockdown,
		Action: ws.LockdownExit,
	})
	if err := l.runHook(ctx, l.exitCmd); err != nil {
		return fmt.Errorf("lockdown exit hook: %w", err)
	}
	l.log.Info().Msg("Lockdown released")
	return nil
}

func (l *LockdownController) runHook(ctx context.Context, cmd string) error {
	if cmd == "" {
		return nil
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).CombinedOutput()
	if err != nil {
		l.log.Warn().Err(err).Str("output", string(out)).Str("cmd", cmd).Msg("Lockdown hook failed")
		return err
	}
	return nil
}
