// File: server/accept.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/transport"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptLoop owns ln for one run. It starts once the server is Running and
// exits when it leaves that state or ln is closed; any other fatal error
// closes the server.
func (s *Server) acceptLoop(ln net.Listener) {
	defer func() {
		if r := recover(); r != nil {
			s.closeByError(ln, api.NewError(api.ErrCodeAccept, fmt.Sprintf("accept loop panic: %v", r)))
		}
	}()

	var delay time.Duration
	for {
		if !s.IsRunning() {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if isTemporaryAccept(err) {
				delay = nextAcceptDelay(delay)
				s.metrics.acceptErrors.Inc()
				s.log.Warn("accept error, retrying", "err", err, "delay", delay)
				time.Sleep(delay)
				continue
			}
			s.closeByError(ln, api.WrapError(api.ErrCodeAccept, "accept", err))
			return
		}
		delay = 0
		s.admit(ln, conn)
	}
}

// ownsListener reports whether ln belongs to the current run.
func (s *Server) ownsListener(ln net.Listener) bool {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	return s.listener == ln
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// admit applies the accept policy and socket options to conn, accepted on ln,
// registers its session and starts the receive cycle.
func (s *Server) admit(ln net.Listener, conn net.Conn) {
	if !s.accepting.Load() {
		_ = transport.Shutdown(conn)
		_ = conn.Close()
		s.rejected.Add(1)
		s.metrics.connections.WithLabelValues("rejected").Inc()
		s.log.Debug("connection rejected by accept policy", "remote", conn.RemoteAddr())
		return
	}

	if err := transport.ApplyConn(conn, s.cfg.transportOptions(s.keepAlive.Load())); err != nil {
		_ = conn.Close()
		s.metrics.connections.WithLabelValues("dropped").Inc()
		s.log.Warn("socket options failed, dropping connection", "remote", conn.RemoteAddr(), "err", err)
		return
	}

	sess := newSession(s.nextID.Add(1), conn, s.codec.HeaderSize())
	s.clients.Insert(sess.id, sess)
	// A teardown that drained the registry before the insert would miss this
	// session, and a listener from an earlier run must not feed the current one.
	if !s.IsRunning() || !s.ownsListener(ln) {
		if _, ok := s.clients.Remove(sess.id); ok {
			sess.close()
		}
		return
	}

	s.accepted.Add(1)
	s.metrics.connections.WithLabelValues("accepted").Inc()
	s.log.Debug("client connected", "session", sess.id, "remote", conn.RemoteAddr())
	s.notify("OnClientConnected", func() { s.handler.OnClientConnected(sess) })

	go s.receiveLoop(sess)
}
