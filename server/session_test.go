package server

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/protocol"
)

func attach(t *testing.T, srv *Server, conn *fakeConn) *Session {
	t.Helper()
	sess := newSession(srv.nextID.Add(1), conn, srv.codec.HeaderSize())
	if !srv.clients.Insert(sess.id, sess) {
		t.Fatalf("duplicate session id %d", sess.id)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return sess
}

func TestQueuedSendsPreserveOrder(t *testing.T) {
	srv := runningServer(t, newRecorder())
	conn := newFakeConn(true)
	sess := attach(t, srv, conn)

	for i := 0; i < 10; i++ {
		if err := srv.SendTo(sess, []byte{byte(i)}); err != nil {
			t.Fatalf("SendTo %d: %v", i, err)
		}
	}
	if !sess.Sending() {
		t.Fatal("first send should hold the writer")
	}
	if got := sess.Pending(); got != 9 {
		t.Fatalf("Pending = %d, want 9", got)
	}

	close(conn.gate)
	eventually(t, "all packets written", func() bool { return len(conn.Writes()) == 10 })
	for i, w := range conn.Writes() {
		want := []byte{1, 0, 0, 0, byte(i)}
		if !bytes.Equal(w, want) {
			t.Fatalf("write %d = %v, want %v", i, w, want)
		}
	}
	eventually(t, "writer released", func() bool { return !sess.Sending() })
	if sess.Pending() != 0 {
		t.Errorf("Pending = %d after drain", sess.Pending())
	}

	// the writer can be claimed again
	if err := srv.SendTo(sess, []byte("again")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	eventually(t, "second burst written", func() bool { return len(conn.Writes()) == 11 })
}

func TestNextSkipsEmptyEntries(t *testing.T) {
	sess := newSession(1, newFakeConn(false), 4)
	sess.sending = true
	sess.queue.Add([]byte(nil))
	sess.queue.Add([]byte{})
	sess.queue.Add([]byte{7})

	if p := sess.next(); !bytes.Equal(p, []byte{7}) {
		t.Fatalf("next = %v, want [7]", p)
	}
	if !sess.Sending() {
		t.Fatal("writer released while a packet was returned")
	}
	if p := sess.next(); p != nil {
		t.Fatalf("next on empty queue = %v", p)
	}
	if sess.Sending() {
		t.Fatal("writer should be released once the queue is empty")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	conn := newFakeConn(false)
	sess := newSession(1, conn, 4)
	sess.close()
	sess.close()

	if !sess.Closed() {
		t.Fatal("session should report closed")
	}
	if _, err := sess.enqueue([]byte{1}, 0); !errors.Is(err, api.ErrSessionClosed) {
		t.Fatalf("enqueue after close = %v", err)
	}
	select {
	case <-conn.closed:
	default:
		t.Fatal("underlying connection not closed")
	}
}

func TestQueueOverflowDisconnects(t *testing.T) {
	rec := newRecorder()
	srv := runningServer(t, rec, WithMaxQueuedPackets(2))
	conn := newFakeConn(true)
	sess := attach(t, srv, conn)

	for i := 0; i < 3; i++ {
		if err := srv.SendTo(sess, []byte{byte(i)}); err != nil {
			t.Fatalf("SendTo %d: %v", i, err)
		}
	}
	err := srv.SendTo(sess, []byte{3})
	if !errors.Is(err, api.ErrSendQueueFull) {
		t.Fatalf("overflowing SendTo = %v", err)
	}
	if api.CodeOf(err) != api.ErrCodeResourceExhausted {
		t.Errorf("code = %v", api.CodeOf(err))
	}

	ev := rec.next(t, evDisconnectedByError)
	if !errors.Is(ev.err, api.ErrSendQueueFull) {
		t.Errorf("disconnect error = %v", ev.err)
	}
	if ev.sess.ID() != sess.ID() {
		t.Errorf("session %d, want %d", ev.sess.ID(), sess.ID())
	}
	rec.none(t, evDisconnected, 50*time.Millisecond)

	if err := srv.SendTo(sess, []byte{4}); !errors.Is(err, api.ErrSessionClosed) {
		t.Errorf("SendTo after overflow = %v", err)
	}
	if srv.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", srv.ClientCount())
	}
}

func TestSendToUnknownSession(t *testing.T) {
	srv := runningServer(t, newRecorder())
	stray := newSession(99, newFakeConn(false), 4)
	if err := srv.SendTo(stray, []byte("x")); !errors.Is(err, api.ErrSessionClosed) {
		t.Fatalf("SendTo unknown session = %v", err)
	}
}

func TestUnrepresentableLengthIsRejected(t *testing.T) {
	rec := newRecorder()
	srv := runningServer(t, rec, WithCodec(protocol.NewUint16Codec()))
	conn := newFakeConn(false)
	sess := attach(t, srv, conn)

	big := make([]byte, 70000)
	if err := srv.SendTo(sess, big); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("SendTo(70000 bytes) = %v, want ErrInvalidArgument", err)
	}
	if err := srv.SendAll(big); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("SendAll(70000 bytes) = %v, want ErrInvalidArgument", err)
	}
	if sess.Sending() || sess.Pending() != 0 {
		t.Fatal("rejected payload must not reach the writer")
	}
	rec.none(t, evDisconnectedByError, 20*time.Millisecond)
	if srv.ClientCount() != 1 {
		t.Fatalf("session dropped, ClientCount = %d", srv.ClientCount())
	}

	// the stream stays usable
	if err := srv.SendTo(sess, []byte("ok")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	eventually(t, "small packet written", func() bool { return len(conn.Writes()) == 1 })
	if w := conn.Writes()[0]; !bytes.Equal(w, []byte{0, 2, 'o', 'k'}) {
		t.Errorf("write = %v", w)
	}
}
