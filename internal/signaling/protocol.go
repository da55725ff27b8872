// Package signaling implements the rendezvous server for UDP hole-punching.
// Peers register into named rooms over a WebSocket connection; whenever a
// room's membership changes, every member is told the public address of
// every other member. Text chat rides the same connection.
package signaling

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the type of signaling message.
type MessageType string

const (
	// Client -> Server messages
	MessageTypeRegister MessageType = "register" // Join a room
	MessageTypeList     MessageType = "list"     // Request room name list
	MessageTypeChat     MessageType = "chat"     // Text message to room

	// Server -> Client messages
	MessageTypePeers MessageType = "peers" // Addresses of the other room members
	MessageTypeRooms MessageType = "rooms" // Response to list
	MessageTypeError MessageType = "error" // Malformed or unknown request
)

// Message is the wire envelope for every signaling exchange. The JSON key
// names are part of the protocol contract; only the fields relevant to a
// given message type are populated.
type Message struct {
	Type MessageType `json:"type"`

	// register
	Room    string `json:"room,omitempty"`
	ID      string `json:"id,omitempty"`
	UDPPort *int   `json:"udp_port,omitempty"`

	// chat (Text in both directions, From only server -> client)
	Text string `json:"text,omitempty"`
	From string `json:"from,omitempty"`

	// peers broadcast
	Peers []PeerAddressInfo `json:"peers,omitempty"`

	// rooms response
	Rooms []string `json:"rooms,omitempty"`

	// error detail
	Detail string `json:"message,omitempty"`
}

// PeerAddressInfo is the projection of a registered peer that is broadcast
// to the other members of its room.
type PeerAddressInfo struct {
	ID      string `json:"id"`
	IP      string `json:"ip"`
	UDPPort int    `json:"udp_port"`
}

func (i PeerAddressInfo) String() string {
	return fmt.Sprintf("%s@%s:%d", i.ID, i.IP, i.UDPPort)
}

// NewRegisterMessage builds the registration request a client sends after
// binding its local UDP socket.
func NewRegisterMessage(room, id string, udpPort int) Message {
	return Message{Type: MessageTypeRegister, Room: room, ID: id, UDPPort: &udpPort}
}

// NewChatMessage builds an outbound chat request.
func NewChatMessage(text string) Message {
	return Message{Type: MessageTypeChat, Text: text}
}

// NewErrorMessage builds an in-band error reply.
func NewErrorMessage(detail string) Message {
	return Message{Type: MessageTypeError, Detail: detail}
}

// Encode marshals the message for a text frame.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", m.Type, err)
	}
	return data, nil
}
