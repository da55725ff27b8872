package media

import (
	"fmt"
	"sync"
)

// LoopbackProvider is an in-memory DeviceProvider. It backs tests and the
// CLI build, where no real hardware is wanted: captured frames
// are produced by the caller and rendered frames are pulled on demand
// instead of being driven by a device clock.
type LoopbackProvider struct {
	mu        sync.Mutex
	rates     map[int]int   // device id -> reported default rate
	supported map[int][]int // device id -> openable rates (nil = any)
	openErr   error

	input  *LoopbackStream
	output *LoopbackStream
}

// NewLoopbackProvider creates a provider with no devices configured.
// Unconfigured devices report no default rate and accept any rate.
func NewLoopbackProvider() *LoopbackProvider {
	return &LoopbackProvider{
		rates:     make(map[int]int),
		supported: make(map[int][]int),
	}
}

// SetDefaultRate makes the device report the given preferred rate.
func (p *LoopbackProvider) SetDefaultRate(device, rate int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[device] = rate
}

// SetSupportedRates restricts which rates the device can open at.
func (p *LoopbackProvider) SetSupportedRates(device int, rates ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported[device] = rates
}

// FailOpens makes every subsequent OpenInput/OpenOutput return err.
func (p *LoopbackProvider) FailOpens(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

// DefaultRate implements DeviceProvider.
func (p *LoopbackProvider) DefaultRate(device int, input bool) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rate, ok := p.rates[device]
	return rate, ok
}

// SupportsRate implements DeviceProvider.
func (p *LoopbackProvider) SupportsRate(device int, input bool, rate int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rates, ok := p.supported[device]
	if !ok || rates == nil {
		return true
	}
	for _, r := range rates {
		if r == rate {
			return true
		}
	}
	return false
}

// OpenInput implements DeviceProvider.
func (p *LoopbackProvider) OpenInput(device, rate, blockSize int, cb CaptureFunc) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openErr != nil {
		return nil, fmt.Errorf("open input device %d: %w", device, p.openErr)
	}
	s := &LoopbackStream{rate: rate, blockSize: blockSize, capture: cb}
	p.input = s
	return s, nil
}

// OpenOutput implements DeviceProvider.
func (p *LoopbackProvider) OpenOutput(device, rate, blockSize int, cb PlayFunc) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openErr != nil {
		return nil, fmt.Errorf("open output device %d: %w", device, p.openErr)
	}
	s := &LoopbackStream{rate: rate, blockSize: blockSize, play: cb}
	p.output = s
	return s, nil
}

// Input returns the most recently opened input stream, or nil.
func (p *LoopbackProvider) Input() *LoopbackStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// Output returns the most recently opened output stream, or nil.
func (p *LoopbackProvider) Output() *LoopbackStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// LoopbackStream is a loopback capture or playback stream. The caller
// stands in for the device clock: Capture feeds a frame to the capture
// callback, Render pulls one from the playback callback.
type LoopbackStream struct {
	rate      int
	blockSize int
	capture   CaptureFunc
	play      PlayFunc

	mu      sync.Mutex
	stopped bool
}

// Stop implements Stream. Safe to call more than once.
func (s *LoopbackStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Stopped reports whether Stop has been called.
func (s *LoopbackStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Rate returns the rate the stream was opened at.
func (s *LoopbackStream) Rate() int {
	return s.rate
}

// Capture delivers one frame to the capture callback, as a device driver
// would. No-op once stopped or on a playback stream.
func (s *LoopbackStream) Capture(frame []int16) {
	if s.Stopped() || s.capture == nil {
		return
	}
	s.capture(frame)
}

// Render pulls one frame from the playback callback, as a device driver
// would. Returns nil once stopped or on a capture stream.
func (s *LoopbackStream) Render() []int16 {
	if s.Stopped() || s.play == nil {
		return nil
	}
	out := make([]int16, s.blockSize)
	s.play(out)
	return out
}
