package signaling

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry owns the room table: room name -> members in join order. It is
// shared by every connection handler, so all mutations and membership
// snapshots are serialized behind one mutex. Message delivery happens
// outside the lock so a slow client cannot stall the registry.
type Registry struct {
	mu    sync.Mutex
	rooms map[string][]*Peer
	log   *logrus.Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string][]*Peer),
		log:   logrus.WithField("component", "registry"),
	}
}

// Register appends a new peer to the room, creating the room on first use,
// then broadcasts the updated membership to every member. Duplicate ids
// within a room are not rejected; callers that need uniqueness must enforce
// it themselves.
func (r *Registry) Register(room, id string, udpPort int, remoteIP string, conn Conn) *Peer {
	peer := NewPeer(id, room, udpPort, remoteIP, conn)

	r.mu.Lock()
	r.rooms[room] = append(r.rooms[room], peer)
	deliveries := r.membershipDeliveries(room)
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"id":       id,
		"room":     room,
		"remote":   remoteIP,
		"udp_port": udpPort,
	}).Info("peer registered")

	r.deliver(deliveries)
	return peer
}

// Remove takes the peer out of its room. The room is deleted when its last
// member leaves; otherwise the remaining members get a fresh membership
// broadcast. Removing a peer that is already gone is a no-op, so the
// handler's deferred cleanup is safe on every exit path.
func (r *Registry) Remove(peer *Peer) {
	r.mu.Lock()
	members, ok := r.rooms[peer.Room]
	if !ok {
		r.mu.Unlock()
		return
	}
	found := false
	for i, p := range members {
		if p == peer {
			r.rooms[peer.Room] = append(members[:i], members[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return
	}
	var deliveries []delivery
	if len(r.rooms[peer.Room]) == 0 {
		delete(r.rooms, peer.Room)
	} else {
		deliveries = r.membershipDeliveries(peer.Room)
	}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"id":   peer.ID,
		"room": peer.Room,
	}).Info("peer removed")

	r.deliver(deliveries)
}

// ListRooms returns a snapshot of the current room names. Order is not
// significant.
func (r *Registry) ListRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	return names
}

// Members returns a snapshot of the room's members in join order.
func (r *Registry) Members(room string) []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	out := make([]*Peer, len(members))
	copy(out, members)
	return out
}

// RoomCount returns the number of rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// delivery is one pending peers broadcast, captured under the lock.
type delivery struct {
	peer *Peer
	msg  Message
}

// membershipDeliveries builds one peers message per member, each excluding
// the recipient's own entry. Must be called with the lock held so every
// recipient sees the same membership snapshot.
func (r *Registry) membershipDeliveries(room string) []delivery {
	members := r.rooms[room]
	infos := make([]PeerAddressInfo, len(members))
	for i, p := range members {
		infos[i] = p.Info()
	}

	deliveries := make([]delivery, 0, len(members))
	for i, p := range members {
		others := make([]PeerAddressInfo, 0, len(infos)-1)
		others = append(others, infos[:i]...)
		others = append(others, infos[i+1:]...)
		deliveries = append(deliveries, delivery{
			peer: p,
			msg:  Message{Type: MessageTypePeers, Peers: others},
		})
	}
	return deliveries
}

// deliver sends the captured broadcasts. A failed send to one peer never
// affects the others; the dead connection is reaped by its own handler.
func (r *Registry) deliver(deliveries []delivery) {
	for _, d := range deliveries {
		if err := d.peer.Send(d.msg); err != nil {
			r.log.WithError(err).WithField("id", d.peer.ID).Debug("broadcast dropped")
		}
	}
}
