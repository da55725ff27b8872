package signaling

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Upgrader abstracts the WebSocket upgrade so the handler can be exercised
// in tests without a real HTTP server. Satisfied by the gorilla adapter.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (Conn, error)
}

const maxMessageSize = 32 * 1024

// Handler serves one signaling connection per ServeHTTP call: it upgrades
// the request, runs the message loop, and guarantees the peer (if one was
// registered) is removed from the registry exactly once when the
// connection ends, whatever state the protocol reached. Every served
// connection is tracked from upgrade to loop exit, registered or not, so
// shutdown can close all of them.
type Handler struct {
	registry *Registry
	upgrader Upgrader

	mu      sync.Mutex
	conns   map[Conn]struct{}
	closing bool

	log *logrus.Entry
}

// NewHandler creates a handler backed by the given registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{
		registry: registry,
		conns:    make(map[Conn]struct{}),
		log:      logrus.WithField("component", "signaling"),
	}
}

// SetUpgrader sets the WebSocket upgrader.
func (h *Handler) SetUpgrader(u Upgrader) {
	h.upgrader = u
}

// ServeHTTP upgrades the connection and runs the protocol loop until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.upgrader == nil {
		http.Error(w, "websocket upgrader not configured", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("upgrade failed")
		return
	}

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	h.Serve(conn, remoteIP)
}

// Serve runs the message loop on an already-established connection.
// remoteIP is the address the peer's datagrams will appear to come from,
// as observed by this server.
func (h *Handler) Serve(conn Conn, remoteIP string) {
	conn.SetReadLimit(maxMessageSize)
	h.track(conn)

	var self *Peer
	defer func() {
		h.untrack(conn)
		if self != nil {
			self.Close()
			h.registry.Remove(self)
		} else {
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(conn, self, NewErrorMessage("invalid message"))
			continue
		}

		switch msg.Type {
		case MessageTypeRegister:
			self = h.handleRegister(conn, self, remoteIP, msg)
		case MessageTypeList:
			h.reply(conn, self, Message{Type: MessageTypeRooms, Rooms: h.registry.ListRooms()})
		case MessageTypeChat:
			h.handleChat(conn, self, msg)
		default:
			h.reply(conn, self, NewErrorMessage("unknown type"))
		}
	}
}

// handleRegister validates the registration request and enters the peer
// into its room. Returns the peer the connection now owns, or the previous
// value when the request is rejected.
func (h *Handler) handleRegister(conn Conn, self *Peer, remoteIP string, msg Message) *Peer {
	if self != nil {
		h.reply(conn, self, NewErrorMessage("already registered"))
		return self
	}
	if msg.Room == "" || msg.ID == "" || msg.UDPPort == nil {
		h.reply(conn, nil, NewErrorMessage("missing fields"))
		return nil
	}
	return h.registry.Register(msg.Room, msg.ID, *msg.UDPPort, remoteIP, conn)
}

// handleChat fans a chat message out to every other member of the sender's
// room. Delivery failures to individual members are swallowed; the dead
// connection's own handler cleans it up.
func (h *Handler) handleChat(conn Conn, self *Peer, msg Message) {
	if self == nil {
		h.reply(conn, nil, NewErrorMessage("not registered"))
		return
	}

	out := Message{Type: MessageTypeChat, From: self.ID, Text: msg.Text}
	for _, member := range h.registry.Members(self.Room) {
		if member == self {
			continue
		}
		if err := member.Send(out); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"from": self.ID,
				"to":   member.ID,
			}).Debug("chat delivery dropped")
		}
	}
}

// reply writes a server response on the connection. Before registration the
// connection has a single writer (this loop) so a direct write is safe;
// afterwards writes go through the peer's send lock to serialize with
// broadcasts.
func (h *Handler) reply(conn Conn, self *Peer, msg Message) {
	if self != nil {
		if err := self.Send(msg); err != nil {
			h.log.WithError(err).Debug("reply dropped")
		}
		return
	}

	data, err := msg.Encode()
	if err != nil {
		h.log.WithError(err).Debug("reply encode failed")
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(TextMessage, data); err != nil {
		h.log.WithError(err).Debug("reply dropped")
	}
}

// track records a served connection. A connection upgraded while CloseAll
// is in flight is closed on the spot; its loop then fails out of its first
// read and unwinds normally.
func (h *Handler) track(conn Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	closing := h.closing
	h.mu.Unlock()

	if closing {
		conn.Close()
	}
}

func (h *Handler) untrack(conn Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ConnCount returns the number of connections currently being served,
// registered or not.
func (h *Handler) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every served connection, including ones whose register
// frame has not arrived yet. Each loop then exits its read and runs its
// deferred cleanup.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	h.closing = true
	conns := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
