// File: server/receive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session receive cycle: header phase, payload phase, repeat.

package server

import (
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
)

// receiveLoop runs until the session is disconnected.
func (s *Server) receiveLoop(sess *Session) {
	for {
		if !s.transfer(sess, sess.header, sess.conn.Read, &s.bytesIn, "in") {
			return
		}

		length := s.codec.DecodeHeader(sess.header)
		header := make([]byte, len(sess.header))
		copy(header, sess.header)
		s.notify("OnHeaderReceived", func() { s.handler.OnHeaderReceived(sess, header) })

		if length <= 0 {
			s.metrics.protocolErrors.Inc()
			s.disconnectByError(sess, api.WrapError(api.ErrCodeProtocol, "decode header", api.ErrInvalidPacketLength).
				WithContext("length", length))
			return
		}
		if s.cfg.MaxPacketSize > 0 && length > s.cfg.MaxPacketSize {
			s.metrics.protocolErrors.Inc()
			s.disconnectByError(sess, api.WrapError(api.ErrCodeProtocol, "decode header", api.ErrPacketTooLarge).
				WithContext("length", length).WithContext("max", s.cfg.MaxPacketSize))
			return
		}

		packet := make([]byte, length)
		if !s.transfer(sess, packet, sess.conn.Read, &s.bytesIn, "in") {
			return
		}
		s.packetsIn.Add(1)
		s.metrics.packets.WithLabelValues("in").Inc()
		s.notify("OnPacketReceived", func() { s.handler.OnPacketReceived(sess, packet) })
	}
}

// transfer drives op until buf is fully transferred. A partial transfer is
// re-issued for the remaining bytes at the current offset. It returns false
// once the session has been disconnected.
func (s *Server) transfer(sess *Session, buf []byte, op func([]byte) (int, error), counter *atomic.Uint64, direction string) bool {
	off := 0
	for {
		n, err := op(buf[off:])
		if n > 0 {
			counter.Add(uint64(n))
			s.metrics.bytes.WithLabelValues(direction).Add(float64(n))
		}
		switch classify(n, len(buf)-off, err) {
		case outcomeAvailable:
			return true
		case outcomePartial:
			off += n
		case outcomeGraceful:
			s.DisconnectClient(sess)
			return false
		default:
			s.disconnectByError(sess, socketError(direction, err))
			return false
		}
	}
}
