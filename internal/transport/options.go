// Package transport
// Author: momentics <momentics@gmail.com>
//
// Listening socket construction and per-connection TCP option tuning.
// Platform-specific parts live in *_linux.go and *_other.go.

package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/momentics/hioload-tcp/api"
)

// Options carries the TCP tuning applied to the listener and to every accepted connection.
type Options struct {
	NoDelay           bool
	KeepAlive         bool
	KeepAliveTime     time.Duration
	KeepAliveInterval time.Duration
	Linger            bool
	LingerTime        time.Duration
}

// Listen binds 0.0.0.0:port with the given accept backlog.
// keepAlive reports whether keep-alive could actually be enabled on the listener;
// a failure there downgrades keep-alive instead of failing the listen.
func Listen(port, backlog int, o Options) (ln net.Listener, keepAlive bool, err error) {
	if port < 0 || port > 65535 {
		return nil, false, fmt.Errorf("port %d: %w", port, api.ErrInvalidArgument)
	}
	if backlog < 0 {
		return nil, false, fmt.Errorf("backlog %d: %w", backlog, api.ErrInvalidArgument)
	}
	return listen(port, backlog, o)
}

// ApplyConn applies o to an accepted connection. Connections that do not
// expose a raw socket are left untouched.
func ApplyConn(conn net.Conn, o Options) error {
	return applyConn(conn, o)
}

// Shutdown disables both directions of conn. Errors are returned for logging only.
func Shutdown(conn net.Conn) error {
	return shutdown(conn)
}

// seconds converts d to whole seconds, rounding up, with a floor of one second.
func seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
