// Package server accepts emulator connections and hands each one to a
// protocol session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/engine"
)

// acceptPollInterval bounds each Accept call so the loop notices shutdown.
const acceptPollInterval = 1 * time.Second

// bindRetryDelay is how long to wait before the single bind retry when the
// port is still held by a previous process.
const bindRetryDelay = 1 * time.Second

// keepAliveConfig mirrors the probing the emulator side expects: idle 60s,
// then probes every 10s, giving up after 6 misses.
var keepAliveConfig = net.KeepAliveConfig{
	Enable:   true,
	Idle:     60 * time.Second,
	Interval: 10 * time.Second,
	Count:    6,
}

// Server owns the TCP listener and the per-connection session goroutines.
type Server struct {
	addr            string
	engine          *engine.Engine
	logger          *zap.Logger
	shutdownTimeout time.Duration

	listener  *net.TCPListener
	closeOnce sync.Once
	closeErr  error
}

// New creates a Server listening address from host and port.
func New(host string, port int, eng *engine.Engine, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:            fmt.Sprintf("%s:%d", host, port),
		engine:          eng,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Listen binds the TCP listener. A bind conflict gets one retry after a short
// delay, covering restart races where the old process still holds the port.
func (s *Server) Listen() error {
	listener, err := s.bind()
	if err != nil {
		if !isAddrInUse(err) {
			return fmt.Errorf("socket setup error: %w", err)
		}
		s.logger.Warn("port is already in use, retrying", zap.String("addr", s.addr))
		time.Sleep(bindRetryDelay)
		listener, err = s.bind()
		if err != nil {
			return fmt.Errorf("socket setup error: %w", err)
		}
	}
	s.listener = listener
	s.logger.Info("socket server set up", zap.String("addr", s.addr))
	return nil
}

func (s *Server) bind() (*net.TCPListener, error) {
	lc := net.ListenConfig{KeepAliveConfig: keepAliveConfig}
	l, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	return l.(*net.TCPListener), nil
}

func isAddrInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "address already in use")
}

// Serve runs the accept loop until ctx is canceled. Each connection gets its
// own session goroutine; on shutdown, sessions get a bounded grace period.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer s.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	for {
		if err := ctx.Err(); err != nil {
			break
		}

		if err := s.listener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return fmt.Errorf("failed to set accept deadline: %w", err)
		}

		conn, err := s.listener.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", zap.Error(err))
			time.Sleep(bindRetryDelay)
			continue
		}

		if err := conn.SetKeepAliveConfig(keepAliveConfig); err != nil {
			s.logger.Debug("keepalive options not fully supported", zap.Error(err))
		}

		session := NewSession(conn, s.engine, s.logger)
		group.Go(func() error {
			if err := session.Run(groupCtx); err != nil {
				s.logger.Error("session ended with error", zap.Error(err))
			}
			return nil
		})
	}

	return s.waitForSessions(group)
}

// waitForSessions gives running sessions a bounded grace period to finish.
func (s *Server) waitForSessions(group *errgroup.Group) error {
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		s.logger.Info("server shut down cleanly")
		return err
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("shutdown grace period elapsed with sessions still running")
		return nil
	}
}

// Close releases the listener. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			s.closeErr = s.listener.Close()
		}
	})
	return s.closeErr
}
