// File: server/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/transport"
)

// Session is the per-connection state of one client.
type Session struct {
	id        uint64
	conn      net.Conn
	header    []byte
	createdAt time.Time

	mu      sync.Mutex   // guards queue, sending and closed
	queue   *queue.Queue // pending outbound packets ([]byte), FIFO
	sending bool
	closed  bool

	closeOnce sync.Once
}

var _ api.Session = (*Session)(nil)

func newSession(id uint64, conn net.Conn, headerSize int) *Session {
	return &Session{
		id:        id,
		conn:      conn,
		header:    make([]byte, headerSize),
		createdAt: time.Now(),
		queue:     queue.New(),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() uint64 { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// LocalAddr returns the local socket address.
func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// ConnectedAt returns the accept time.
func (s *Session) ConnectedAt() time.Time { return s.createdAt }

// Pending returns the number of queued outbound packets, excluding the one in flight.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Length()
}

// Sending reports whether a write is in flight.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Closed reports whether the session socket has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// enqueue either queues packet behind an in-flight write or claims the writer.
// It returns start == true when the caller must launch the writer with packet.
func (s *Session) enqueue(packet []byte, limit int) (start bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, api.ErrSessionClosed
	}
	if !s.sending {
		s.sending = true
		return true, nil
	}
	if limit > 0 && s.queue.Length() >= limit {
		return false, api.ErrSendQueueFull
	}
	s.queue.Add(packet)
	return false, nil
}

// next pops the next non-empty queued packet. When the queue is exhausted
// it releases the writer and returns nil.
func (s *Session) next() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.Length() > 0 && !s.closed {
		if p, _ := s.queue.Remove().([]byte); len(p) > 0 {
			return p
		}
	}
	s.sending = false
	return nil
}

// close shuts the socket down once. Shutdown errors are ignored; close always runs.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = queue.New()
		s.mu.Unlock()

		_ = transport.Shutdown(s.conn)
		_ = s.conn.Close()
	})
}
