package communication

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrTimeout reports that no record arrived within the bounded wait. On the
// designated protocol paths this is a control signal, not a fault.
var ErrTimeout = errors.New("communication: receive timed out")

// ErrClosed reports a receive on a connection the peer has closed.
var ErrClosed = errors.New("communication: connection closed")

// Conn frames newline-delimited JSON records over a single persistent byte
// stream. Sends are serialized; receives are expected from one reader.
type Conn struct {
	raw     net.Conn
	scanner *bufio.Scanner

	sendMu sync.Mutex
}

// NewConn wraps raw with record framing capped at maxMessageSize bytes.
func NewConn(raw net.Conn, maxMessageSize int) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	return &Conn{raw: raw, scanner: scanner}
}

// Dial connects to addr and wraps the connection.
func Dial(addr string, maxMessageSize int) (*Conn, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(raw, maxMessageSize), nil
}

// Send writes one record, terminator included.
func (c *Conn) Send(msg *Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	buf = append(buf, '\n')

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if _, err := c.raw.Write(buf); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// SendError reports an error record to the peer. Failures are logged only:
// the peer may already be gone.
func (c *Conn) SendError(text string) {
	if err := c.Send(&Message{Type: TypeError, Message: text}); err != nil {
		log.Debugf("error record not delivered: %v", err)
	}
}

// Receive blocks until the next record arrives or the stream ends.
func (c *Conn) Receive() (*Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed
	}
	msg := &Message{}
	if err := json.Unmarshal(c.scanner.Bytes(), msg); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return msg, nil
}

// ReceiveTimeout is Receive with a bounded wait. An elapsed wait returns
// ErrTimeout; the connection must not be read again afterwards, since a
// record interrupted mid-frame cannot be resumed.
func (c *Conn) ReceiveTimeout(d time.Duration) (*Message, error) {
	if err := c.raw.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer c.raw.SetReadDeadline(time.Time{})

	msg, err := c.Receive()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return msg, nil
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Conn) Close() error {
	return c.raw.Close()
}
