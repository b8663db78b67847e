// File: server/disconnect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-tcp/api"
)

// DisconnectClient closes target and reports OnClientDisconnected.
// It only acts while the server is running, and only once per session.
func (s *Server) DisconnectClient(target api.Session) {
	if target == nil {
		return
	}
	sess, ok := s.detach(target.ID())
	if !ok {
		return
	}
	s.metrics.disconnects.WithLabelValues("graceful").Inc()
	s.log.Debug("client disconnected", "session", sess.id, "remote", sess.RemoteAddr())
	s.notify("OnClientDisconnected", func() { s.handler.OnClientDisconnected(sess) })
}

// disconnectByError closes sess and reports OnClientDisconnectedByError.
// Errors from an already-closed socket are reported as a graceful disconnect.
func (s *Server) disconnectByError(sess *Session, err error) {
	if isDisposed(err) {
		s.DisconnectClient(sess)
		return
	}
	if _, ok := s.detach(sess.id); !ok {
		return
	}
	s.metrics.disconnects.WithLabelValues("error").Inc()
	s.log.Warn("client disconnected by error", "session", sess.id, "remote", sess.RemoteAddr(), "err", err)
	s.notify("OnClientDisconnectedByError", func() { s.handler.OnClientDisconnectedByError(sess, err) })
}

// detach removes id from the registry and closes its socket. Only the
// first caller for a given session succeeds.
func (s *Server) detach(id uint64) (*Session, bool) {
	if !s.IsRunning() {
		return nil, false
	}
	sess, ok := s.clients.Remove(id)
	if !ok {
		return nil, false
	}
	sess.close()
	return sess, true
}
