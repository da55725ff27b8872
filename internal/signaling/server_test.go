package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a server on an ephemeral port and returns its base
// host:port address.
func startTestServer(t *testing.T) *Server {
	t.Helper()

	srv := NewServer("127.0.0.1:0")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == "127.0.0.1:0" && time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			t.Fatalf("server failed to start: %v", err)
		default:
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotEqual(t, "127.0.0.1:0", srv.Addr(), "server did not bind in time")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", srv.Addr()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil reads messages until match holds, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool, what string) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("connection failed while waiting for %s: %v", what, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestServerLiveness(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerTwoPeerExchange(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))
	sendJSON(t, bob, NewRegisterMessage("lobby", "bob", 6000))

	msgA := readUntil(t, alice, func(m Message) bool {
		return m.Type == MessageTypePeers && len(m.Peers) > 0
	}, "alice's peers message")
	require.Len(t, msgA.Peers, 1)
	assert.Equal(t, "bob", msgA.Peers[0].ID)
	assert.Equal(t, 6000, msgA.Peers[0].UDPPort)
	assert.NotEmpty(t, msgA.Peers[0].IP)

	msgB := readUntil(t, bob, func(m Message) bool {
		return m.Type == MessageTypePeers && len(m.Peers) > 0
	}, "bob's peers message")
	require.Len(t, msgB.Peers, 1)
	assert.Equal(t, "alice", msgB.Peers[0].ID)
	assert.Equal(t, 5000, msgB.Peers[0].UDPPort)
}

func TestServerChatRoundTrip(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))
	sendJSON(t, bob, NewRegisterMessage("lobby", "bob", 6000))

	// Make sure both registrations are in place before chatting.
	readUntil(t, alice, func(m Message) bool {
		return m.Type == MessageTypePeers && len(m.Peers) > 0
	}, "alice's peers message")

	sendJSON(t, alice, NewChatMessage("are you there?"))

	chat := readUntil(t, bob, func(m Message) bool {
		return m.Type == MessageTypeChat
	}, "bob's chat message")
	assert.Equal(t, "alice", chat.From)
	assert.Equal(t, "are you there?", chat.Text)
}

func TestServerListRooms(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))

	other := dialWS(t, srv)
	sendJSON(t, other, Message{Type: MessageTypeList})

	rooms := readUntil(t, other, func(m Message) bool {
		return m.Type == MessageTypeRooms
	}, "rooms reply")
	assert.Contains(t, rooms.Rooms, "lobby")
}

func TestServerDisconnectBroadcast(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))
	sendJSON(t, bob, NewRegisterMessage("lobby", "bob", 6000))

	readUntil(t, bob, func(m Message) bool {
		return m.Type == MessageTypePeers && len(m.Peers) > 0
	}, "bob discovering alice")

	alice.Close()

	// Bob receives a fresh, now-empty membership broadcast. The raw JSON
	// may omit the peers key entirely when the list is empty.
	readUntil(t, bob, func(m Message) bool {
		return m.Type == MessageTypePeers && len(m.Peers) == 0
	}, "bob seeing alice leave")
}

func TestPeersKeyExactness(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))
	sendJSON(t, bob, NewRegisterMessage("lobby", "bob", 6000))

	// Read raw frames so key names are checked on the wire, not through
	// our own struct tags.
	alice.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := alice.ReadMessage()
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		if raw["type"] != "peers" || raw["peers"] == nil {
			continue
		}
		entry := raw["peers"].([]any)[0].(map[string]any)
		assert.Contains(t, entry, "id")
		assert.Contains(t, entry, "ip")
		assert.Contains(t, entry, "udp_port")
		return
	}
}

// An upgraded connection that never sends register is hijacked away from
// the HTTP server, so shutdown must reach it through the handler's
// connection tracking.
func TestShutdownClosesUnregisteredConnection(t *testing.T) {
	srv := startTestServer(t)
	conn := dialWS(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "shutdown should close a connection awaiting registration")
}

func TestShutdownClosesRegisteredPeers(t *testing.T) {
	srv := startTestServer(t)

	alice := dialWS(t, srv)
	sendJSON(t, alice, NewRegisterMessage("lobby", "alice", 5000))

	// Registration has no acknowledgment; wait for it to land.
	deadline := time.Now().Add(5 * time.Second)
	for srv.Registry().RoomCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, srv.Registry().RoomCount(), "registration did not land in time")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	assert.Equal(t, 0, srv.Registry().RoomCount(), "shutdown should unwind every handler's cleanup")

	alice.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err, "shutdown should close registered connections")
}

// Addr is polled by callers while Start binds the listener on its own
// goroutine; the two must be safe to run concurrently.
func TestServerAddrDuringStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	go srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(5 * time.Second)
			for srv.Addr() == "127.0.0.1:0" && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr(), "server did not bind in time")
}
