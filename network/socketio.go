package network

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

type emitter interface {
	Emit(ev string, args ...any) error
	Connected() bool
}

type sioFrame struct {
	event string
	data  []byte
}

// SIOConnection adapts a socket.io client to Connection. Each outbound
// event is emitted under its own name with the JSON payload as the single
// argument. Emits happen on a dedicated goroutine fed by a bounded queue,
// same as WSConnection's writePump.
type SIOConnection struct {
	client    *socket.Socket
	emitter   emitter
	send      chan sioFrame
	done      chan struct{}
	closeOnce sync.Once
}

func NewSIOConnection(client *socket.Socket, queueSize int) *SIOConnection {
	c := newSIOConnection(client, queueSize)
	c.client = client
	return c
}

func newSIOConnection(e emitter, queueSize int) *SIOConnection {
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &SIOConnection{
		emitter: e,
		send:    make(chan sioFrame, queueSize),
		done:    make(chan struct{}),
	}
	go c.emitPump()
	return c
}

func (c *SIOConnection) Send(event string, data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	if !c.emitter.Connected() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- sioFrame{event: event, data: append([]byte(nil), data...)}:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *SIOConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client != nil {
			c.client.Disconnect(true)
		}
	})
	return nil
}

func (c *SIOConnection) emitPump() {
	for {
		select {
		case f := <-c.send:
			if err := c.emitter.Emit(f.event, json.RawMessage(f.data)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *SIOConnection) RemoteAddr() string {
	return c.client.Handshake().Address
}

func (c *SIOConnection) ID() string {
	return string(c.client.Id())
}

// DecodeArgs turns socket.io handler arguments back into a raw JSON payload.
// Only the first argument is meaningful; a trailing ack callback is ignored.
func DecodeArgs(args []any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if _, isAck := args[0].(func([]any, error)); isAck {
		return nil, nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return data, nil
}
