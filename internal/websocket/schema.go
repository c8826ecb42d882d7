package websocket

// ─── Actions (UI → Agent) ───────────────────────────────────────────
//
// The browser UI forwards raw platform events; the agent owns the policy.

type Action string

const (
	ActionFullscreenExit  Action = "fullscreen_exit"
	ActionFullscreenEnter Action = "fullscreen_enter"
	ActionHidden          Action = "visibility_hidden"
	ActionBlur            Action = "window_blur"
	ActionPing            Action = "ping"
)

// RequestPayload is a UI event. Fullscreen/visibility actions carry no body.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Agent → UI) ────────────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventLockdown  Event = "lockdown"
	EventWarning   Event = "warning"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// Lockdown commands the UI must execute.
const (
	LockdownEnter   = "enter"
	LockdownReenter = "reenter"
	LockdownExit    = "exit"
)

// TickEvent synchronizes the UI countdown with the agent's clock.
type TickEvent struct {
	Event                Event `json:"event"`
	TimeRemainingSeconds int   `json:"time_remaining_seconds"`
}

// LockdownCommand instructs the UI to enter, re-enter, or exit fullscreen.
type LockdownCommand struct {
	Event  Event  `json:"event"`
	Action string `json:"action"`
}

// WarningEvent surfaces a non-fatal condition (lockdown denial, violation
// recorded, pending delivery).
type WarningEvent struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CompletedEvent announces that the attempt is closed. Pending is true when
// delivery to the backend is still outstanding.
type CompletedEvent struct {
	Event   Event  `json:"event"`
	ExamID  string `json:"exam_id"`
	Pending bool   `json:"pending"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
