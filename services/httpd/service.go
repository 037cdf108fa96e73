package httpd

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

type Diagnostic interface {
	StartingService()
	StoppedService()
	ShutdownTimeout()
	ListeningOn(addr string)

	HTTP(
		host string,
		method string,
		uri string,
		status int,
		userAgent string,
		duration time.Duration,
	)

	Error(msg string, err error)
}

type Service struct {
	ln   net.Listener
	addr string
	err  chan error

	server *http.Server
	mu     sync.Mutex
	wg     sync.WaitGroup

	shutdownTimeout time.Duration

	Handler *Handler

	diag Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		addr:            c.BindAddress,
		err:             make(chan error, 1),
		shutdownTimeout: time.Duration(c.ShutdownTimeout),
		Handler:         NewHandler(c.LogEnabled, d),
		diag:            d,
	}
}

// Open starts the service
func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diag.StartingService()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.diag.ListeningOn(listener.Addr().String())
	s.ln = listener

	s.server = &http.Server{
		Handler: s.Handler,
	}

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Close stops accepting requests and waits for in-flight executions
// up to the shutdown timeout.
func (s *Service) Close() error {
	defer s.diag.StoppedService()
	s.mu.Lock()
	defer s.mu.Unlock()
	// If server is not set we were never started
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.diag.ShutdownTimeout()
		// Connections didn't close in time.
		s.server.Close()
	}
	s.wg.Wait()
	s.server = nil
	return nil
}

func (s *Service) Err() <-chan error {
	return s.err
}

// Addr returns the listener's address. Returns nil if listener is closed.
func (s *Service) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

// URL returns the URL the service can be reached at.
func (s *Service) URL() string {
	return "http://" + s.Addr().String()
}

// serve serves the handler from the listener.
func (s *Service) serve() {
	defer s.wg.Done()
	err := s.server.Serve(s.ln)
	// The listener was closed so exit
	// See https://github.com/golang/go/issues/4373
	if err != nil && err != http.ErrServerClosed {
		s.err <- err
	}
}
