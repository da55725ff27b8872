package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saintparish4/voicepunch/internal/media"
	"github.com/saintparish4/voicepunch/internal/signaling"
)

// ErrNoPeerFound reports that the signaling connection closed before any
// peer appeared in the room. It is an informational outcome, not a fault.
var ErrNoPeerFound = errors.New("no peer found")

// errStopped marks a clean stop-flag exit internally.
var errStopped = errors.New("stop requested")

// stopPollInterval is how often the session checks the stop flag.
const stopPollInterval = 200 * time.Millisecond

// ChatFunc receives inbound chat lines. Invoked from the session's message
// loop with no queuing, so it must not block.
type ChatFunc func(from, text string)

// Options configures a session.
type Options struct {
	ServerURL string // rendezvous WebSocket URL, e.g. ws://host:8080/ws
	Room      string
	ID        string

	BindIP   string // local UDP bind address; empty means all interfaces
	BindPort int    // 0 means OS-assigned

	InputDevice  int
	OutputDevice int
	Devices      media.DeviceProvider

	Stop     *StopFlag     // optional; one is created when nil
	OnChat   ChatFunc      // optional inbound chat callback
	Outbound <-chan string // optional outbound chat queue; closing it ends chat sending
}

// Session is a running peer session. It owns the signaling connection and
// the local UDP socket; both are released on every exit path.
type Session struct {
	opts   Options
	stop   *StopFlag
	rate   int
	client *Client

	sock      *net.UDPConn
	localPort int

	remote    *net.UDPAddr
	transport *media.Transport
	inStream  media.Stream
	outStream media.Stream

	phase    atomic.Int32
	degraded atomic.Bool

	chatClose     chan struct{}
	chatCloseOnce sync.Once

	done chan struct{}
	err  error

	log *logrus.Entry
}

// Start binds the local UDP socket, connects to the rendezvous server, and
// sends the registration. Errors doing any of that are returned
// immediately with nothing left open; afterwards the session runs in the
// background until the stop flag is set or the lifecycle ends on its own.
func Start(opts Options) (*Session, error) {
	if opts.ServerURL == "" || opts.Room == "" || opts.ID == "" {
		return nil, errors.New("session: server URL, room, and id are required")
	}
	if opts.Devices == nil {
		return nil, errors.New("session: device provider is required")
	}

	stop := opts.Stop
	if stop == nil {
		stop = &StopFlag{}
	}

	s := &Session{
		opts:      opts,
		stop:      stop,
		rate:      media.NegotiateRate(opts.Devices, opts.InputDevice, opts.OutputDevice),
		chatClose: make(chan struct{}),
		done:      make(chan struct{}),
		log: logrus.WithFields(logrus.Fields{
			"component": "session",
			"id":        opts.ID,
			"room":      opts.Room,
		}),
	}

	bindIP := net.IPv4zero
	if opts.BindIP != "" {
		bindIP = net.ParseIP(opts.BindIP)
		if bindIP == nil {
			return nil, fmt.Errorf("session: invalid bind address %q", opts.BindIP)
		}
	}
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: bindIP, Port: opts.BindPort})
	if err != nil {
		return nil, fmt.Errorf("session: bind UDP socket: %w", err)
	}
	s.sock = sock
	s.localPort = sock.LocalAddr().(*net.UDPAddr).Port

	s.setPhase(PhaseRegistering)
	client, err := Dial(opts.ServerURL)
	if err != nil {
		sock.Close()
		return nil, err
	}
	s.client = client

	if err := client.Register(opts.Room, opts.ID, s.localPort); err != nil {
		client.Close()
		sock.Close()
		return nil, err
	}
	s.setPhase(PhaseAwaitingPeers)

	s.log.WithFields(logrus.Fields{
		"udp_port": s.localPort,
		"rate":     s.rate,
	}).Info("registered, waiting for peer")

	go s.chatSender()
	go s.run()
	return s, nil
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// Done is closed once the session has fully terminated and released its
// resources.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session terminates and returns its outcome: nil
// for a normal stop, ErrNoPeerFound when signaling closed before a peer
// appeared, or the fatal error otherwise.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Err returns the outcome once Done is closed, nil before that.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// StopFlag returns the flag that stops this session.
func (s *Session) StopFlag() *StopFlag {
	return s.stop
}

// LocalUDPPort returns the bound media port.
func (s *Session) LocalUDPPort() int {
	return s.localPort
}

// SampleRate returns the negotiated rate used for both streams.
func (s *Session) SampleRate() int {
	return s.rate
}

// Degraded reports that the signaling connection was lost while streaming:
// audio continues but chat is unavailable.
func (s *Session) Degraded() bool {
	return s.degraded.Load()
}

func (s *Session) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// run drives the lifecycle to completion and then tears everything down,
// whatever the exit path was.
func (s *Session) run() {
	err := s.runPhases()
	if errors.Is(err, errStopped) {
		err = nil
	}

	s.setPhase(PhaseClosing)
	s.shutdown()
	s.err = err
	s.setPhase(PhaseClosed)
	close(s.done)

	if err != nil {
		s.log.WithError(err).Info("session ended")
	} else {
		s.log.Info("session ended")
	}
}

func (s *Session) runPhases() error {
	remote, err := s.awaitPeer()
	if err != nil {
		return err
	}
	s.remote = remote
	s.log.WithField("peer", remote.String()).Info("peer discovered")

	s.transport = media.NewTransport(s.sock, remote)
	s.setPhase(PhaseHolePunching)
	if err := s.transport.Punch(); err != nil {
		// Punching is best-effort; a failed probe does not stop the session.
		s.log.WithError(err).Warn("hole punch incomplete")
	}

	s.setPhase(PhaseStreaming)
	s.transport.Start()

	slot := s.transport.Slot()
	outStream, err := s.opts.Devices.OpenOutput(s.opts.OutputDevice, s.rate, media.FrameSize, func(out []int16) {
		slot.ReadInto(out)
	})
	if err != nil {
		return fmt.Errorf("open output device %d at %d Hz: %w", s.opts.OutputDevice, s.rate, err)
	}
	s.outStream = outStream

	inStream, err := s.opts.Devices.OpenInput(s.opts.InputDevice, s.rate, media.FrameSize, s.transport.EnqueueFrame)
	if err != nil {
		return fmt.Errorf("open input device %d at %d Hz: %w", s.opts.InputDevice, s.rate, err)
	}
	s.inStream = inStream

	s.log.Info("streaming")
	s.stream()
	return nil
}

// awaitPeer consumes signaling messages until the first non-empty peers
// list arrives. Chat received while waiting goes to the callback without
// affecting the phase. A connection close before any peer appears is the
// no-peer-found outcome; a stop request exits cleanly.
func (s *Session) awaitPeer() (*net.UDPAddr, error) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.client.Messages():
			if !ok {
				return nil, ErrNoPeerFound
			}
			switch msg.Type {
			case signaling.MessageTypeChat:
				s.deliverChat(msg)
			case signaling.MessageTypePeers:
				if len(msg.Peers) == 0 {
					continue
				}
				first := msg.Peers[0]
				addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", first.IP, first.UDPPort))
				if err != nil {
					return nil, fmt.Errorf("resolve peer address %s: %w", first, err)
				}
				return addr, nil
			case signaling.MessageTypeError:
				s.log.WithField("message", msg.Detail).Warn("server error")
			}
		case <-ticker.C:
			if s.stop.IsSet() {
				return nil, errStopped
			}
		}
	}
}

// stream supervises the streaming phase: it polls the stop flag and keeps
// draining the signaling connection for chat. Losing signaling here only
// degrades the session; the established UDP path keeps flowing. Any
// further peers messages are ignored: pairing happens once per session.
func (s *Session) stream() {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	msgs := s.client.Messages()
	for {
		select {
		case <-ticker.C:
			if s.stop.IsSet() {
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				s.degraded.Store(true)
				s.log.Warn("signaling connection lost; chat unavailable, audio continues")
				continue
			}
			if msg.Type == signaling.MessageTypeChat {
				s.deliverChat(msg)
			}
		}
	}
}

func (s *Session) deliverChat(msg signaling.Message) {
	if s.opts.OnChat != nil {
		s.opts.OnChat(msg.From, msg.Text)
	}
}

// chatSender forwards the caller's outbound queue to the server. The queue
// being closed, a send failure, or session shutdown each end it; the
// latter two leave the queue to the caller.
func (s *Session) chatSender() {
	if s.opts.Outbound == nil {
		return
	}
	for {
		select {
		case text, ok := <-s.opts.Outbound:
			if !ok {
				return
			}
			if err := s.client.Chat(text); err != nil {
				s.log.WithError(err).Debug("chat send failed")
				return
			}
		case <-s.chatClose:
			return
		}
	}
}

// shutdown releases every resource the session may hold. Each release is
// independent and best-effort: one failing never skips the others.
func (s *Session) shutdown() {
	s.chatCloseOnce.Do(func() { close(s.chatClose) })

	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.log.WithError(err).Debug("transport close failed")
		}
	} else if s.sock != nil {
		if err := s.sock.Close(); err != nil {
			s.log.WithError(err).Debug("socket close failed")
		}
	}

	if s.inStream != nil {
		if err := s.inStream.Stop(); err != nil {
			s.log.WithError(err).Debug("input stream stop failed")
		}
	}
	if s.outStream != nil {
		if err := s.outStream.Stop(); err != nil {
			s.log.WithError(err).Debug("output stream stop failed")
		}
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.WithError(err).Debug("signaling close failed")
		}
	}
}
