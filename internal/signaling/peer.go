package signaling

import (
	"fmt"
	"sync"
	"time"
)

// Conn abstracts a WebSocket connection for testability.
// This interface is satisfied by *websocket.Conn from gorilla/websocket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
}

// TextMessage matches the gorilla/websocket constant; every signaling
// frame is text.
const TextMessage = 1

const writeWait = 10 * time.Second

// Peer is a client registered into a room. A connection registers at most
// once, so a Peer owns its Conn for the remainder of the connection's life.
type Peer struct {
	ID       string
	Room     string
	UDPPort  int
	RemoteIP string
	JoinedAt time.Time

	conn   Conn
	mu     sync.Mutex // Protects conn writes and closed
	closed bool
}

// NewPeer creates a peer bound to the given connection.
func NewPeer(id, room string, udpPort int, remoteIP string, conn Conn) *Peer {
	return &Peer{
		ID:       id,
		Room:     room,
		UDPPort:  udpPort,
		RemoteIP: remoteIP,
		JoinedAt: time.Now(),
		conn:     conn,
	}
}

// Send marshals and writes a message to the peer. Thread-safe: broadcasts
// from other connections' handlers and replies from the peer's own handler
// go through the same lock.
func (p *Peer) Send(msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("peer %s: connection closed", p.ID)
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("peer %s: set write deadline: %w", p.ID, err)
	}
	if err := p.conn.WriteMessage(TextMessage, data); err != nil {
		return fmt.Errorf("peer %s: write: %w", p.ID, err)
	}
	return nil
}

// SendError sends an in-band error reply.
func (p *Peer) SendError(detail string) error {
	return p.Send(NewErrorMessage(detail))
}

// Close closes the peer's connection. Safe to call more than once.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Info returns the address projection broadcast to the other room members.
func (p *Peer) Info() PeerAddressInfo {
	return PeerAddressInfo{ID: p.ID, IP: p.RemoteIP, UDPPort: p.UDPPort}
}
