// File: server/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Start, Close and error-driven teardown.

package server

import (
	"context"
	"fmt"
	"net"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-tcp/api"
)

// transition moves the state from -> to. Any other request is a no-op.
func (s *Server) transition(from, to api.ServerState) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from || !from.CanTransition(to) {
		return false
	}
	s.state = to
	return true
}

// Start binds 0.0.0.0:port with the given backlog and begins accepting.
// Unless the server is stopped it has no side effects and returns
// api.ErrServerStopping during a teardown, api.ErrAlreadyRunning otherwise.
// On failure the server is left stopped and restartable, OnStartFailed fires,
// and the cause is returned.
func (s *Server) Start(port, backlog int) error {
	if !s.transition(api.StateStopped, api.StateStarting) {
		if s.State() == api.StateStopping {
			return api.ErrServerStopping
		}
		return api.ErrAlreadyRunning
	}

	_, span := s.tracer.Start(context.Background(), "tcpserver.Start",
		trace.WithAttributes(attribute.Int("net.port", port), attribute.Int("backlog", backlog)))
	defer span.End()

	if err := s.start(port, backlog); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.lifecycle.WithLabelValues("start_failed").Inc()
		s.log.Error("server start failed", "port", port, "backlog", backlog, "err", err)
		s.notify("OnStartFailed", func() { s.handler.OnStartFailed(err) })
		return err
	}

	span.SetAttributes(attribute.Int("net.bound_port", s.Port()), attribute.Bool("keepalive", s.KeepAliveEnabled()))
	s.metrics.lifecycle.WithLabelValues("started").Inc()
	s.log.Info("server started", "port", s.Port(), "backlog", backlog, "keepalive", s.KeepAliveEnabled())
	s.notify("OnStarted", s.handler.OnStarted)
	return nil
}

func (s *Server) start(port, backlog int) (err error) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = api.WrapError(api.ErrCodeSetup, "start", fmt.Errorf("panic: %v", r))
		}
		if err == nil {
			return
		}
		s.port.Store(-1)
		s.backlog.Store(-1)
		if s.listener != nil {
			_ = s.listener.Close()
			s.listener = nil
		}
		s.transition(api.StateStarting, api.StateStopped)
	}()

	s.port.Store(int64(port))
	s.backlog.Store(int64(backlog))

	ln, keepAlive, err := s.listen(port, backlog, s.cfg.transportOptions(s.cfg.KeepAlive))
	if err != nil {
		return api.WrapError(api.ErrCodeSetup, "listen", err).WithContext("port", port)
	}
	s.listener = ln
	if s.cfg.KeepAlive && !keepAlive {
		s.log.Warn("keep-alive could not be applied, continuing without it", "port", port)
	}
	s.keepAlive.Store(keepAlive)
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port.Store(int64(addr.Port))
	}

	s.transition(api.StateStarting, api.StateRunning)
	go s.acceptLoop(ln)
	return nil
}

// Close gracefully stops a running server: every client socket is shut down,
// the registry cleared and the listener closed. It is a no-op unless running.
func (s *Server) Close() {
	_, span := s.tracer.Start(context.Background(), "tcpserver.Close")
	defer span.End()

	n, ok := s.teardown(nil)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("clients", n))
	s.metrics.lifecycle.WithLabelValues("closed").Inc()
	s.log.Info("server closed", "clients", n)
	s.notify("OnClosed", s.handler.OnClosed)
}

// closeByError tears the server down after a fatal accept failure on ln.
// A listener from an earlier run never affects the current one.
func (s *Server) closeByError(ln net.Listener, cause error) {
	_, span := s.tracer.Start(context.Background(), "tcpserver.CloseByError")
	defer span.End()
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	n, ok := s.teardown(ln)
	if !ok {
		return
	}
	s.metrics.lifecycle.WithLabelValues("closed_by_error").Inc()
	s.log.Error("server closed abnormally", "clients", n, "err", cause)
	s.notify("OnClosedByError", func() { s.handler.OnClosedByError(cause) })
}

// teardown runs the shared shutdown sequence. With a non-nil from it only
// proceeds if from is still the active listener. It reports the number of
// sessions closed and whether this call performed the teardown.
func (s *Server) teardown(from net.Listener) (int, bool) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	if from != nil && from != s.listener {
		return 0, false
	}
	if !s.transition(api.StateRunning, api.StateStopping) {
		return 0, false
	}

	sessions := s.clients.Drain()
	for _, sess := range sessions {
		sess.close()
	}

	s.port.Store(-1)
	s.backlog.Store(-1)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}

	s.transition(api.StateStopping, api.StateStopped)
	return len(sessions), true
}
