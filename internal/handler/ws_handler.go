package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/proctor"
	ws "github.com/nexusedu/exam-agent/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler bridges the UI event stream: inbound proctoring events,
// outbound session commands and notifications.
type WSHandler struct {
	proctor  *proctor.Proctor
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(p *proctor.Proctor, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:  p,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream
// The UI forwards raw fullscreen/visibility/blur events and receives
// lockdown commands, countdown ticks, and completion notifications.
func (h *WSHandler) SessionStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Msg("UI connected")

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Gorilla connections allow a single concurrent writer, so the read
	// loop never writes directly: its replies join the hub events in one
	// writer goroutine that owns the connection's write side.
	replies := make(chan interface{}, 8)

	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := ws.WriteTyped(conn, ev); err != nil {
					return
				}
			case r := <-replies:
				if err := ws.WriteTyped(conn, r); err != nil {
					return
				}
			}
		}
	}()

	// Reader: dispatch UI events to the proctor.
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			return
		}

		ctx := c.Request.Context()
		switch msg.Action {
		case ws.ActionFullscreenExit:
			h.proctor.HandleFullscreenExit(ctx)
		case ws.ActionFullscreenEnter:
			// Informational; the lockdown is considered re-acquired.
			h.log.Debug().Msg("Fullscreen entered")
		case ws.ActionHidden:
			h.proctor.HandleHidden(ctx)
		case ws.ActionBlur:
			h.proctor.HandleBlur(ctx)
		case ws.ActionPing:
			reply(replies, ws.PongResponse{Event: ws.EventPong})
		default:
			reply(replies, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action"})
		}
	}
}

// reply queues a message for the writer goroutine. Dropped if the
// connection cannot keep up; the UI treats a missed pong as latency, not
// failure.
func reply(replies chan<- interface{}, v interface{}) {
	select {
	case replies <- v:
	default:
	}
}
