// Package session runs the peer side of a call: it registers with the
// rendezvous server, waits for a peer to appear in the room, punches
// through both NATs, then streams audio over UDP while chat continues over
// the signaling connection.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saintparish4/voicepunch/internal/signaling"
)

const (
	dialTimeout    = 10 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Client is the peer's signaling connection. A read pump decodes incoming
// frames onto Messages; writes are serialized by a mutex so the chat
// sender and the session loop never interleave frames.
type Client struct {
	conn *websocket.Conn

	incoming chan signaling.Message
	closed   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the rendezvous server's WebSocket endpoint and starts
// the read pump.
func Dial(serverURL string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server %s: %w", serverURL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:     conn,
		incoming: make(chan signaling.Message, 4),
		closed:   make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// Messages returns the channel of decoded server messages. The channel is
// closed when the connection closes, normally or otherwise.
func (c *Client) Messages() <-chan signaling.Message {
	return c.incoming
}

// Send writes one message. Thread-safe.
func (c *Client) Send(msg signaling.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signaling send: %w", err)
	}
	return nil
}

// Register announces this peer's identity and UDP port to the server.
func (c *Client) Register(room, id string, udpPort int) error {
	return c.Send(signaling.NewRegisterMessage(room, id, udpPort))
}

// Chat sends one chat line to the rest of the room.
func (c *Client) Chat(text string) error {
	return c.Send(signaling.NewChatMessage(text))
}

// ListRooms asks the server for its current room names.
func (c *Client) ListRooms() error {
	return c.Send(signaling.Message{Type: signaling.MessageTypeList})
}

// Close tears down the connection. The read pump then closes Messages.
// Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// readPump decodes frames until the connection dies, then closes the
// incoming channel so consumers observe the disconnect. Delivery gives up
// on Close so a consumer that stopped draining cannot strand the pump.
func (c *Client) readPump() {
	defer close(c.incoming)

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.closed:
			return
		}
	}
}
