package media

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	// maxDatagram bounds a received frame; anything larger is truncated by
	// the socket.
	maxDatagram = 64 * 1024

	// punchProbes is how many hole-punch datagrams are fired at the peer.
	punchProbes = 6

	// sendQueueDepth bounds frames waiting for the send loop. The capture
	// callback drops frames rather than block when the queue is full.
	sendQueueDepth = 8
)

// punchPayload is the literal sent to open the NAT binding. The receive
// path tolerates it like any other short frame.
var punchPayload = []byte("PING")

// Transport carries PCM frames between the local UDP socket and the remote
// peer. Outbound frames flow capture callback -> send queue -> one datagram
// each; inbound datagrams land in the PlaybackSlot for the playback
// callback to drain. Send and receive failures are dropped, never retried:
// stale audio is worth less than fresh audio.
type Transport struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	slot   *PlaybackSlot

	sendCh  chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	closeOnce sync.Once
	log       *logrus.Entry
}

// NewTransport creates a transport over an already-bound UDP socket.
func NewTransport(conn *net.UDPConn, remote *net.UDPAddr) *Transport {
	return &Transport{
		conn:   conn,
		remote: remote,
		slot:   NewPlaybackSlot(),
		sendCh: make(chan []byte, sendQueueDepth),
		done:   make(chan struct{}),
		log: logrus.WithFields(logrus.Fields{
			"component": "media",
			"remote":    remote.String(),
		}),
	}
}

// Slot exposes the playback slot for the output stream's callback.
func (t *Transport) Slot() *PlaybackSlot {
	return t.slot
}

// Punch fires the hole-punch probes at the remote peer. Best-effort: no
// acknowledgment is awaited and individual send errors only abort the
// remaining probes.
func (t *Transport) Punch() error {
	for i := 0; i < punchProbes; i++ {
		if _, err := t.conn.WriteToUDP(punchPayload, t.remote); err != nil {
			return fmt.Errorf("punch probe %d: %w", i+1, err)
		}
	}
	t.log.WithField("probes", punchProbes).Info("hole-punch probes sent")
	return nil
}

// Start launches the send and receive loops.
func (t *Transport) Start() {
	t.wg.Add(2)
	go t.sendLoop()
	go t.recvLoop()
}

// EnqueueFrame serializes one captured frame and queues it for sending.
// Never blocks: when the send loop is behind, the frame is dropped and
// counted.
func (t *Transport) EnqueueFrame(pcm []int16) {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[2*i] = byte(s)
		data[2*i+1] = byte(s >> 8)
	}

	select {
	case t.sendCh <- data:
	default:
		t.dropped.Add(1)
	}
}

// DroppedFrames reports how many outbound frames were discarded because
// the send queue was full.
func (t *Transport) DroppedFrames() uint64 {
	return t.dropped.Load()
}

func (t *Transport) sendLoop() {
	defer t.wg.Done()

	for {
		select {
		case data := <-t.sendCh:
			if _, err := t.conn.WriteToUDP(data, t.remote); err != nil {
				t.log.WithError(err).Debug("frame send dropped")
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) recvLoop() {
	defer t.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			// Socket closed or fatal error; either way the path is gone.
			select {
			case <-t.done:
			default:
				t.log.WithError(err).Debug("receive loop ended")
			}
			return
		}
		t.slot.Write(buf[:n])
	}
}

// Close stops both loops and releases the socket. Closing the socket is
// what unblocks the receive loop's pending read. Safe to call more than
// once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
		t.wg.Wait()
	})
	return err
}
