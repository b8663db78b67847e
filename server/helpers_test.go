package server

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/client"
)

const waitTimeout = 5 * time.Second

type event struct {
	sess api.Session
	err  error
	data []byte
}

const (
	evStarted             = "started"
	evStartFailed         = "start_failed"
	evClosed              = "closed"
	evClosedByError       = "closed_by_error"
	evConnected           = "connected"
	evDisconnected        = "disconnected"
	evDisconnectedByError = "disconnected_by_error"
	evHeader              = "header"
	evPacket              = "packet"
)

// recorder is an api.Handler that forwards every callback to a per-event channel.
type recorder struct {
	ch map[string]chan event
}

func newRecorder() *recorder {
	r := &recorder{ch: make(map[string]chan event)}
	for _, k := range []string{evStarted, evStartFailed, evClosed, evClosedByError, evConnected,
		evDisconnected, evDisconnectedByError, evHeader, evPacket} {
		r.ch[k] = make(chan event, 1024)
	}
	return r
}

func (r *recorder) OnStarted() { r.ch[evStarted] <- event{} }
func (r *recorder) OnStartFailed(err error) { r.ch[evStartFailed] <- event{err: err} }
func (r *recorder) OnClosed() { r.ch[evClosed] <- event{} }
func (r *recorder) OnClosedByError(err error) { r.ch[evClosedByError] <- event{err: err} }
func (r *recorder) OnClientConnected(s api.Session) {
	r.ch[evConnected] <- event{sess: s}
}
func (r *recorder) OnClientDisconnected(s api.Session) {
	r.ch[evDisconnected] <- event{sess: s}
}
func (r *recorder) OnClientDisconnectedByError(s api.Session, err error) {
	r.ch[evDisconnectedByError] <- event{sess: s, err: err}
}
func (r *recorder) OnHeaderReceived(s api.Session, h []byte) {
	r.ch[evHeader] <- event{sess: s, data: h}
}
func (r *recorder) OnPacketReceived(s api.Session, p []byte) {
	r.ch[evPacket] <- event{sess: s, data: p}
}

func (r *recorder) next(t *testing.T, kind string) event {
	t.Helper()
	select {
	case ev := <-r.ch[kind]:
		return ev
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", kind)
		return event{}
	}
}

func (r *recorder) none(t *testing.T, kind string, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch[kind]:
		t.Fatalf("unexpected %s event: %+v", kind, ev)
	case <-time.After(d):
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer runs a server on an ephemeral port and closes it at cleanup.
func startServer(t *testing.T, opts ...Option) (*Server, *recorder) {
	t.Helper()
	rec := newRecorder()
	srv, err := New(rec, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(0, 16); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.next(t, evStarted)
	t.Cleanup(srv.Close)
	return srv, rec
}

func dial(t *testing.T, srv *Server) *client.Conn {
	t.Helper()
	c, err := client.Dial(fmt.Sprintf("127.0.0.1:%d", srv.Port()),
		client.WithTimeouts(2*time.Second, waitTimeout, waitTimeout))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// connect dials and waits for the matching server-side session.
func connect(t *testing.T, srv *Server, rec *recorder) (*client.Conn, api.Session) {
	t.Helper()
	c := dial(t, srv)
	ev := rec.next(t, evConnected)
	return c, ev.sess
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", what)
}

// runningServer returns a server forced into the running state without a
// listener, for driving sessions over fake connections.
func runningServer(t *testing.T, h api.Handler, opts ...Option) *Server {
	t.Helper()
	srv, err := New(h, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.stateMu.Lock()
	srv.state = api.StateRunning
	srv.stateMu.Unlock()
	return srv
}

// fakeConn is a net.Conn whose writes can be held at a gate.
type fakeConn struct {
	gate chan struct{} // nil = writes pass immediately

	mu     sync.Mutex
	writes [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(gated bool) *fakeConn {
	c := &fakeConn{closed: make(chan struct{})}
	if gated {
		c.gate = make(chan struct{})
	}
	return c
}

func (c *fakeConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, net.ErrClosed
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-c.closed:
			return 0, net.ErrClosed
		}
	}
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()
	return len(p), nil
}

func (c *fakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1} }
func (c *fakeConn) SetDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// fakeListener returns scripted Accept errors, then blocks until closed.
type fakeListener struct {
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeListener(errs ...error) *fakeListener {
	l := &fakeListener{errs: make(chan error, len(errs)), closed: make(chan struct{})}
	for _, e := range errs {
		l.errs <- e
	}
	return l
}

func (l *fakeListener) Accept() (net.Conn, error) {
	select {
	case err := <-l.errs:
		return nil, err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fakeListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4zero, Port: 4242} }
