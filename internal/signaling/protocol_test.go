package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMessageWireFormat(t *testing.T) {
	data, err := NewRegisterMessage("lobby", "alice", 5000).Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "register", raw["type"])
	assert.Equal(t, "lobby", raw["room"])
	assert.Equal(t, "alice", raw["id"])
	assert.Equal(t, float64(5000), raw["udp_port"])
	assert.NotContains(t, raw, "peers")
	assert.NotContains(t, raw, "text")
}

func TestPeersMessageWireFormat(t *testing.T) {
	msg := Message{
		Type:  MessageTypePeers,
		Peers: []PeerAddressInfo{{ID: "bob", IP: "203.0.113.7", UDPPort: 6000}},
	}
	data, err := msg.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	peers, ok := raw["peers"].([]any)
	require.True(t, ok)
	require.Len(t, peers, 1)

	entry := peers[0].(map[string]any)
	assert.Equal(t, "bob", entry["id"])
	assert.Equal(t, "203.0.113.7", entry["ip"])
	assert.Equal(t, float64(6000), entry["udp_port"])
}

func TestErrorMessageWireFormat(t *testing.T) {
	data, err := NewErrorMessage("missing fields").Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "error", raw["type"])
	assert.Equal(t, "missing fields", raw["message"])
}

func TestRegisterMessageRoundTrip(t *testing.T) {
	data, err := NewRegisterMessage("lobby", "alice", 5000).Encode()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.NotNil(t, msg.UDPPort)
	assert.Equal(t, 5000, *msg.UDPPort)
}

func TestUDPPortAbsenceIsDetectable(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"register","room":"r","id":"a"}`), &msg))
	assert.Nil(t, msg.UDPPort)
}
