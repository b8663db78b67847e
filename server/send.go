// File: server/send.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session single-flight sender with an ordered overflow queue.

package server

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-tcp/api"
)

// SendTo frames payload and delivers it to target. If a write is already in
// flight the packet is queued behind it; packets reach the peer in call order.
// It fails with api.ErrSessionClosed when target is no longer connected.
func (s *Server) SendTo(target api.Session, payload []byte) error {
	if target == nil {
		return fmt.Errorf("nil session: %w", api.ErrInvalidArgument)
	}
	if !s.IsRunning() {
		return api.ErrServerNotRunning
	}
	header, err := s.encodeHeader(payload)
	if err != nil {
		return err
	}
	sess, ok := s.clients.Get(target.ID())
	if !ok {
		return api.ErrSessionClosed
	}
	return s.send(sess, header, payload)
}

// SendAll broadcasts payload to a snapshot of the connected clients.
// A stalled client only grows its own queue. Clients that disconnect
// mid-broadcast are skipped silently.
func (s *Server) SendAll(payload []byte) error {
	if !s.IsRunning() {
		return api.ErrServerNotRunning
	}
	header, err := s.encodeHeader(payload)
	if err != nil {
		return err
	}
	var errs []error
	for _, sess := range s.clients.Snapshot() {
		if err := s.send(sess, header, payload); err != nil && !errors.Is(err, api.ErrSessionClosed) {
			errs = append(errs, fmt.Errorf("session %d: %w", sess.id, err))
		}
	}
	return errors.Join(errs...)
}

// encodeHeader returns the header for payload. Lengths the codec cannot
// represent exactly are rejected; a clamped header would desynchronize the stream.
func (s *Server) encodeHeader(payload []byte) ([]byte, error) {
	header := s.codec.EncodeHeader(len(payload))
	if n := s.codec.DecodeHeader(header); n != len(payload) {
		return nil, api.WrapError(api.ErrCodeInvalidArgument, "encode header",
			fmt.Errorf("payload length %d: %w", len(payload), api.ErrInvalidArgument)).
			WithContext("encoded", n)
	}
	return header, nil
}

func (s *Server) send(sess *Session, header, payload []byte) error {
	packet := s.packets.Get(len(header) + len(payload))
	copy(packet, header)
	copy(packet[len(header):], payload)

	start, err := sess.enqueue(packet, s.cfg.MaxQueuedPackets)
	if err != nil {
		s.packets.Put(packet)
		if errors.Is(err, api.ErrSendQueueFull) {
			s.metrics.queueOverflows.Inc()
			err = api.WrapError(api.ErrCodeResourceExhausted, "enqueue", err).
				WithContext("limit", s.cfg.MaxQueuedPackets)
			s.disconnectByError(sess, err)
		}
		return err
	}
	if start {
		go s.writeLoop(sess, packet)
	}
	return nil
}

// writeLoop writes packet, then drains the session queue until it is empty
// or the session fails.
func (s *Server) writeLoop(sess *Session, packet []byte) {
	for packet != nil {
		ok := s.transfer(sess, packet, sess.conn.Write, &s.bytesOut, "out")
		s.packets.Put(packet)
		if !ok {
			return
		}
		s.packetsOut.Add(1)
		s.metrics.packets.WithLabelValues("out").Inc()
		packet = sess.next()
	}
}
