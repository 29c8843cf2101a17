package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Close codes sent by the server.
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	ClosePolicyViolation = websocket.ClosePolicyViolation
)

// NewUpgrader returns the websocket upgrader used by the chat endpoint.
// Browsers connect from the web app's own origin, any origin is accepted.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// WSConn adapts a gorilla websocket connection to Conn. Writes from
// different goroutines are serialized; Receive must only be called from
// one goroutine.
type WSConn struct {
	ID string

	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

// NewWSConn wraps conn. maxMessageBytes limits inbound frames; zero means
// no limit.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration, maxMessageBytes int64) *WSConn {
	if maxMessageBytes > 0 {
		conn.SetReadLimit(maxMessageBytes)
	}
	return &WSConn{
		ID:           uuid.New().String(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Send writes payload as a single text frame.
func (c *WSConn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Receive returns the payload of the next data frame.
func (c *WSConn) Receive() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame with code and reason, then closes the socket.
// Only the first call has any effect.
func (c *WSConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		if c.writeTimeout > 0 {
			deadline = time.Now().Add(c.writeTimeout)
		}
		// The peer may already be gone; the socket is closed regardless.
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		err = c.conn.Close()
	})
	return err
}

// IsExpectedClose reports whether err is an ordinary end of a session
// (peer close or going away) rather than a transport failure.
func IsExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

var _ Conn = (*WSConn)(nil)
