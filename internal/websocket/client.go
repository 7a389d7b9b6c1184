package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 30 * time.Second

	// SDP offers with many candidates run to a few KiB; leave headroom
	defaultMaxMessageSize = 64 * 1024

	defaultSendBuffer = 256
)

// Client represents a single WebSocket connection
type Client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	hub        *Hub
	send       chan []byte
	log        *slog.Logger

	// set by the hub before it closes send
	closeMu     sync.Mutex
	closeStatus websocket.StatusCode
	closeReason string
}

// NewClient creates a new client instance
func NewClient(conn *websocket.Conn, hub *Hub, remoteAddr string, sendBuffer int, log *slog.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	id := uuid.NewString()
	return &Client{
		id:          id,
		remoteAddr:  remoteAddr,
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, sendBuffer),
		log:         log.With("conn_id", id),
		closeStatus: websocket.StatusNormalClosure,
	}
}

func (c *Client) ID() string {
	return c.id
}

// readPump pumps frames from the WebSocket connection to the hub.
// It returns when the connection dies; the hub then runs the leave path.
func (c *Client) readPump(ctx context.Context) {
	defer c.hub.submit(request{kind: requestUnregister, client: c})

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				c.log.Debug("client disconnected normally", "status", status)
			case errors.Is(err, context.Canceled):
				c.log.Debug("client read cancelled")
			default:
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}

		if typ != websocket.MessageText {
			c.hub.submit(request{kind: requestEvent, client: c, err: ErrMalformedEvent})
			continue
		}

		ev, err := DecodeEvent(data)
		if !c.hub.submit(request{kind: requestEvent, client: c, event: ev, err: err}) {
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		status, reason := c.closeParams()
		c.conn.Close(status, reason)
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				// Hub closed the channel; the deferred Close sends its status
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				c.log.Warn("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(writeCtx)
			cancel()

			if err != nil {
				c.log.Warn("failed to send ping", "error", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) setClose(status websocket.StatusCode, reason string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closeStatus = status
	c.closeReason = reason
}

func (c *Client) closeParams() (websocket.StatusCode, string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeStatus, c.closeReason
}

// enqueue hands a frame to the write pump without blocking.
// Only the hub goroutine calls it.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
