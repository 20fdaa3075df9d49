package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// conn wraps a WebSocket connection with serialized writes, a liveness
// flag for the heartbeat monitor, and idempotent termination. It is the
// registry's handle on the connection.
type conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
}

func newConn(wsc *websocket.Conn) *conn {
	c := &conn{ws: wsc}
	c.alive.Store(true)
	wsc.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

// writeJSON sends one frame. Writes from the protocol handler, the bot
// delivery path, and the heartbeat monitor may interleave, so they all
// go through this lock.
func (c *conn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// ping sends a WebSocket ping control frame.
func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// closeWithPolicy sends a 1008 close frame with reason and closes the
// connection. Used for admission rejections.
func (c *conn) closeWithPolicy(reason string) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.ws.Close()
	})
}

// Terminate forcibly closes the connection. Safe to call from any
// goroutine and more than once; the read loop unblocks with an error.
func (c *conn) Terminate() {
	c.closeOnce.Do(func() {
		c.ws.Close()
	})
}
