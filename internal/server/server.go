// Package server accepts TCP connections and answers one static-file
// request on each of them.
//
// Every accepted connection gets its own goroutine. There is no pool and no
// cap on concurrent connections; a flood of slow clients is bounded only by
// the read deadline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/statichttpd/internal/config"
	"github.com/Brownie44l1/statichttpd/internal/static"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Close or
// Shutdown.
var ErrServerClosed = errors.New("server closed")

// ErrAlreadyServing is returned by a second call to Serve.
var ErrAlreadyServing = errors.New("server already serving")

// Server serves files from the configured document root, one request per
// connection. Create it with New.
type Server struct {
	cfg      *config.Config
	resolver *static.Resolver
	Logger   Logger
	metrics  *Metrics

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	serving  bool
	done     chan struct{}

	running atomic.Bool
	conns   sync.WaitGroup
}

// New creates a server for cfg. A nil logger discards all output.
func New(cfg *config.Config, logger Logger) (*Server, error) {
	containment, err := static.ParseContainment(cfg.Containment)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &NullLogger{}
	}

	return &Server{
		cfg: cfg,
		resolver: static.NewResolver(cfg.DocumentRoot, static.Options{
			Containment:  containment,
			SniffUnknown: cfg.SniffUnknown,
		}),
		Logger:  logger,
		metrics: NewMetrics(),
		done:    make(chan struct{}),
	}, nil
}

// ListenAndServe listens on the configured port and serves until Close.
// Failing to set up the socket is returned as is. The net package already
// marks listening sockets SO_REUSEADDR, so a restart does not wait out
// TIME_WAIT.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close is called, handing each one
// to its own goroutine. Before returning it waits for every dispatched
// connection to finish. It always returns a non-nil error and closes ln.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.serving {
		s.mu.Unlock()
		ln.Close()
		return ErrAlreadyServing
	}
	s.listener = ln
	s.serving = true
	s.running.Store(true)
	s.mu.Unlock()

	defer close(s.done)

	s.Logger.Info("server started",
		Field{"addr", ln.Addr().String()},
		Field{"root", s.resolver.Root()},
		Field{"containment", s.resolver.Containment().String()},
	)

	var tempDelay time.Duration
	for s.running.Load() {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				break
			}

			// Back off on transient failures such as running out of file descriptors
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.Logger.Error("accept failed", Field{"error", err}, Field{"retry_in", tempDelay})
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		s.metrics.ConnectionsTotal.Add(1)
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}

	s.running.Store(false)
	s.conns.Wait()
	s.Logger.Info("server stopped")
	return ErrServerClosed
}

// Close stops accepting new connections. Connections already being handled
// run to completion. It is safe to call more than once and from any
// goroutine.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.running.Store(false)

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Shutdown closes the listener and waits for in-flight connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Close()

	s.mu.Lock()
	serving := s.serving
	s.mu.Unlock()
	if !serving {
		return err
	}

	select {
	case <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the accept loop is active.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}
