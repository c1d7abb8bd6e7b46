// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
	ErrMalformedFrame   = errors.New("malformed frame")
)

const writeWait = 10 * time.Second

// Connection is the transport seen by sessions. Send must not block on the
// network: implementations queue or hand off the payload.
type Connection interface {
	Send(event string, data []byte) error
	Close() error
	RemoteAddr() string
}

// WSConnection 基于 gorilla/websocket 的连接，写操作由独立的 writePump 完成
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	heartbeat time.Duration
}

// NewWSConnection starts the write pump. A positive heartbeat enables
// ping/pong keepalive: the peer must answer within two intervals or reads fail.
func NewWSConnection(conn *websocket.Conn, queueSize int, heartbeat time.Duration) *WSConnection {
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &WSConnection{
		conn:      conn,
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
		heartbeat: heartbeat,
	}
	if heartbeat > 0 {
		conn.SetReadDeadline(time.Now().Add(heartbeat * 2))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(heartbeat * 2))
		})
	}
	go c.writePump()
	return c
}

func (c *WSConnection) Send(event string, data []byte) error {
	frame, err := json.Marshal(Outbound{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// ReadInbound blocks for the next frame. Frames that are not a valid
// envelope yield an error wrapping ErrMalformedFrame; the connection is still
// usable afterwards.
func (c *WSConnection) ReadInbound() (*Inbound, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if in.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return &in, nil
}

func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *WSConnection) writePump() {
	var ping <-chan time.Time
	if c.heartbeat > 0 {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
