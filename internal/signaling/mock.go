package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// MockConn is an in-memory Conn for tests. Reads block until a frame is
// enqueued or the connection is closed, which lets tests drive a full
// handler loop the same way a real client would.
type MockConn struct {
	mu      sync.Mutex
	closed  bool
	written [][]byte

	readCh chan []byte
	done   chan struct{}
}

// NewMockConn creates a new mock connection.
func NewMockConn() *MockConn {
	return &MockConn{
		readCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

// WriteMessage implements Conn.
func (m *MockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("mock conn: closed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.written = append(m.written, buf)
	return nil
}

// ReadMessage implements Conn. It blocks until EnqueueRead or Close.
func (m *MockConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.readCh:
		return TextMessage, data, nil
	case <-m.done:
		return 0, nil, errors.New("mock conn: closed")
	}
}

// Close implements Conn. Safe to call more than once.
func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// SetWriteDeadline implements Conn.
func (m *MockConn) SetWriteDeadline(t time.Time) error { return nil }

// SetReadLimit implements Conn.
func (m *MockConn) SetReadLimit(limit int64) {}

// --- Mock-specific helpers for tests ---

// EnqueueRead queues a raw frame for the handler to read.
func (m *MockConn) EnqueueRead(data []byte) {
	m.readCh <- data
}

// EnqueueJSON marshals v and queues it for the handler to read.
func (m *MockConn) EnqueueJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.EnqueueRead(data)
}

// Written returns a copy of every frame written to the connection so far.
func (m *MockConn) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// WrittenMessages decodes every written frame as a Message.
func (m *MockConn) WrittenMessages() []Message {
	frames := m.Written()
	msgs := make([]Message, 0, len(frames))
	for _, f := range frames {
		var msg Message
		if err := json.Unmarshal(f, &msg); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// IsClosed reports whether Close has been called.
func (m *MockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
