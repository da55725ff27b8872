package media

import "sync"

// PlaybackSlot buffers at most one received frame. Each arriving datagram
// overwrites whatever the playback callback has not consumed yet, and a
// read drains the slot. Under packet loss the callback plays silence;
// under burst arrival only the newest frame survives. This single-slot
// policy caps buffered latency at one frame and is deliberately not a
// queue or ring buffer.
type PlaybackSlot struct {
	mu    sync.Mutex
	frame []byte
	have  bool
}

// NewPlaybackSlot creates an empty slot.
func NewPlaybackSlot() *PlaybackSlot {
	return &PlaybackSlot{}
}

// Write stores a copy of the frame, replacing any unconsumed one.
func (s *PlaybackSlot) Write(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = append(s.frame[:0], frame...)
	s.have = true
}

// ReadInto drains the slot into out. A stored frame is decoded as
// little-endian int16 samples, truncated or zero-padded to len(out); an
// empty slot yields silence. Returns whether a frame was present.
func (s *PlaybackSlot) ReadInto(out []int16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.have {
		for i := range out {
			out[i] = 0
		}
		return false
	}
	s.have = false

	samples := len(s.frame) / 2
	for i := range out {
		if i < samples {
			out[i] = int16(s.frame[2*i]) | int16(s.frame[2*i+1])<<8
		} else {
			out[i] = 0
		}
	}
	return true
}
