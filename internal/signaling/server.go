package signaling

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Server ties the signaling handler to an HTTP listener. It serves the
// WebSocket endpoint at /ws and a plain-text liveness page at /.
type Server struct {
	registry *Registry
	handler  *Handler

	httpServer *http.Server

	mu       sync.Mutex // Protects listener
	listener net.Listener

	shutdownOnce sync.Once
	log          *logrus.Entry
}

// NewServer creates a signaling server listening on addr.
func NewServer(addr string) *Server {
	registry := NewRegistry()
	handler := NewHandler(registry)
	handler.SetUpgrader(NewGorillaUpgrader())

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, "Rendezvous server for UDP hole-punching")
	})

	return &Server{
		registry: registry,
		handler:  handler,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  0, // WebSocket connections are long-lived
			WriteTimeout: 0,
		},
		log: logrus.WithField("component", "server"),
	}
}

// Registry exposes the room table.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("rendezvous server listening")
	if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the bound listen address, useful when the configured port
// was 0. Returns the configured address until Start has bound the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown stops accepting connections, then closes every served signaling
// connection, registered or not, so each handler unwinds and cleans up its
// registry entry. An upgraded connection whose register frame has not been
// read yet is hijacked away from the HTTP server, so closing through the
// handler is the only thing that reaches it.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.log.Info("shutting down")
		err = s.httpServer.Shutdown(ctx)

		s.handler.CloseAll()

		// Give handlers a moment to run their deferred cleanup.
		deadline := time.Now().Add(2 * time.Second)
		for s.handler.ConnCount() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	})
	return err
}
