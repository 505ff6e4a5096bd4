package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrClosed is returned when sending on a channel that has been closed.
	ErrClosed = errors.New("ipc: channel closed")

	// ErrNoPayload is returned when decoding a message that carries none.
	ErrNoPayload = errors.New("ipc: message has no payload")
)

const incomingBufferSize = 16

// Channel is a bidirectional message channel. Received messages are delivered
// on Incoming in arrival order; the Incoming channel is closed when the peer
// disconnects, the stream breaks, or Close is called.
type Channel struct {
	r io.ReadCloser
	w io.WriteCloser

	writeMu sync.Mutex
	enc     *json.Encoder

	incoming  chan Message
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	errMu   sync.Mutex
	readErr error
}

// NewChannel starts reading messages from r and returns a Channel that writes
// messages to w.
func NewChannel(r io.ReadCloser, w io.WriteCloser) *Channel {
	c := &Channel{
		r:        r,
		w:        w,
		enc:      json.NewEncoder(w),
		incoming: make(chan Message, incomingBufferSize),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Channel) readLoop() {
	defer close(c.incoming)

	dec := json.NewDecoder(c.r)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) && !c.isClosed() {
				c.setErr(err)
			}
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.closed:
			return
		}
	}
}

// Incoming returns the stream of received messages.
func (c *Channel) Incoming() <-chan Message {
	return c.incoming
}

// Send encodes payload and writes it as a message of the given type.
func (c *Channel) Send(msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if err := c.enc.Encode(msg); err != nil {
		return fmt.Errorf("sending %s: %w", msgType, err)
	}
	return nil
}

// SendReady announces handshake completion.
func (c *Channel) SendReady(ready Ready) error {
	return c.Send(TypeCoreReady, ready)
}

// SendStatus reports a status event.
func (c *Channel) SendStatus(status Status) error {
	return c.Send(TypeCoreStatus, status)
}

// SendCommand sends a command.
func (c *Channel) SendCommand(cmd Command) error {
	return c.Send(TypeCLICommand, cmd)
}

// Done is closed once Close has been called.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// Err returns the error that stopped the read loop, if it was not a clean
// disconnect.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

// Close disconnects both directions. It is safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.closed)
		c.writeMu.Unlock()

		c.closeErr = errors.Join(c.w.Close(), c.r.Close())
	})
	return c.closeErr
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Channel) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.readErr = err
}
