package client

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medisync/realtime/internal/observability"
	"go.uber.org/zap"
)

const (
	SendQueueSize = 128
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 1 << 20
)

// Dialer opens the websocket transport.
type Dialer interface {
	Dial(ctx context.Context, url string) (*websocket.Conn, error)
}

// WSDialer dials with gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WSDialer) Dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	return conn, err
}

// connection is one live transport. Frames are written by a single write loop
// and read by a single read loop, so inbound frames are handled in the order
// the server sent them.
type connection struct {
	gen    uint64
	userID string

	conn      *websocket.Conn
	sendQueue chan []byte
	done      chan struct{}
	closed    atomic.Int32
}

func newConnection(gen uint64, userID string, conn *websocket.Conn) *connection {
	return &connection{
		gen:       gen,
		userID:    userID,
		conn:      conn,
		sendQueue: make(chan []byte, SendQueueSize),
		done:      make(chan struct{}),
	}
}

func (c *connection) start() {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writeLoop()
}

// trySend queues a text frame without blocking. A full queue means the
// server stopped reading; the transport is closed and the close path takes
// over.
func (c *connection) trySend(msg []byte) bool {
	if c.closed.Load() == 1 {
		return false
	}
	select {
	case c.sendQueue <- msg:
		return true
	default:
		observability.GetLogger(context.Background()).Warn("client: backpressure overflow, dropping connection", zap.String("user_id", c.userID))
		c.closeWithReason(websocket.CloseGoingAway, "backpressure overflow")
		return false
	}
}

func (c *connection) isClosed() bool {
	return c.closed.Load() == 1
}

func (c *connection) close() {
	c.closeWithReason(websocket.CloseNormalClosure, "client closing")
}

func (c *connection) closeWithReason(code int, reason string) {
	if !c.closed.CompareAndSwap(0, 1) {
		return
	}
	close(c.done)

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.conn.Close()
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.sendQueue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				observability.GetLogger(context.Background()).Warn("client: write error", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				observability.GetLogger(context.Background()).Warn("client: ping error", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}
