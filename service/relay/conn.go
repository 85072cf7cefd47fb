package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendQueueSize bounds the per-connection outbound queue. A member that
	// cannot drain this many frames is dropped instead of stalling the hub.
	sendQueueSize = 256
	writeWait     = 5 * time.Second
	pingPeriod    = 30 * time.Second
)

// wireConn is the slice of *websocket.Conn the relay needs for writing.
// Tests substitute an in-memory implementation.
type wireConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live relay session. Owned by the hub from Register to
// Unregister; the embedded user identity comes from the verified handshake.
type Conn struct {
	ID       string
	UserID   string
	UserName string

	ws        wireConn
	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	pingEvery time.Duration
}

func newConn(id, userID, userName string, ws wireConn) *Conn {
	return &Conn{
		ID:        id,
		UserID:    userID,
		UserName:  userName,
		ws:        ws,
		sendCh:    make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		pingEvery: pingPeriod,
	}
}

// writePump drains the outbound queue onto the socket and emits keepalive
// pings. It is the ONLY goroutine that writes to ws; gorilla allows a single
// concurrent writer, so pings must not come from anywhere else.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// enqueue hands a frame to the writer without blocking. Reports false when
// the queue is full or the connection is closed.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
