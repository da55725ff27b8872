// Package media moves raw PCM audio between local devices and the peer's
// UDP socket. Frames cross the wire as unframed little-endian 16-bit mono
// samples; the receive side keeps only the most recent frame, trading the
// occasional dropped packet for minimal latency.
package media

// Audio format shared by both peers. The sample rate is negotiated per
// session; everything else is fixed.
const (
	// FrameSize is the number of samples captured and played per callback.
	// Audio is mono throughout, so one sample is one frame slot.
	FrameSize = 1024
	// DefaultSampleRate is the hard fallback when a device reports nothing.
	DefaultSampleRate = 48000
)

// CaptureFunc receives one frame of captured samples. It is invoked from
// the device driver's context and must not block.
type CaptureFunc func(pcm []int16)

// PlayFunc fills out with one frame of samples to play. It is invoked from
// the device driver's context and must not block.
type PlayFunc func(out []int16)

// Stream is a running capture or playback stream.
type Stream interface {
	Stop() error
}

// DeviceProvider is the audio capability boundary. Device enumeration,
// capture, and playback hardware live behind it; the session only ever
// opens streams at a negotiated rate and exchanges fixed-size frames
// through callbacks.
type DeviceProvider interface {
	// DefaultRate returns the device's preferred sample rate, or ok=false
	// when the device does not report one.
	DefaultRate(device int, input bool) (rate int, ok bool)

	// SupportsRate reports whether the device can open at the given rate.
	SupportsRate(device int, input bool, rate int) bool

	// OpenInput starts capturing blockSize-sample frames at the given rate,
	// delivering each frame to cb.
	OpenInput(device, rate, blockSize int, cb CaptureFunc) (Stream, error)

	// OpenOutput starts playback at the given rate, pulling each
	// blockSize-sample frame from cb.
	OpenOutput(device, rate, blockSize int, cb PlayFunc) (Stream, error)
}
