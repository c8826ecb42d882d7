package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Deadlines for the local UI stream. The UI runs on the same machine, so a
// stalled write means the page is gone, not slow; reads idle for minutes
// between proctoring events.
const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends one event payload. Gorilla connections allow a single
// concurrent writer, so all calls for a given connection must come from the
// same goroutine (the stream handler's writer loop).
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadJSON reads and decodes the next UI message.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
