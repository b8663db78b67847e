// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux listener and socket options via raw setsockopt.

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// listen creates the socket by hand so the backlog reaches listen(2) unchanged.
func listen(port, backlog int, o Options) (net.Listener, bool, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, fmt.Errorf("socket create: %w", err)
	}
	fail := func(op string, err error) (net.Listener, bool, error) {
		_ = unix.Close(fd)
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	if err := setNoDelay(fd, o.NoDelay); err != nil {
		return fail("setsockopt TCP_NODELAY", err)
	}
	keepAlive := o.KeepAlive
	if err := setKeepAlive(fd, o); err != nil {
		keepAlive = false
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp-listener:%d", port))
	ln, err := net.FileListener(f)
	// FileListener dups the descriptor; the original is ours to close either way.
	_ = f.Close()
	if err != nil {
		return nil, false, fmt.Errorf("file listener: %w", err)
	}
	return ln, keepAlive, nil
}

func applyConn(conn net.Conn, o Options) error {
	raw, err := rawConn(conn)
	if raw == nil || err != nil {
		return err
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		if opErr = setNoDelay(int(fd), o.NoDelay); opErr != nil {
			return
		}
		if opErr = setKeepAlive(int(fd), o); opErr != nil {
			return
		}
		opErr = setLinger(int(fd), o)
	})
	return errors.Join(err, opErr)
}

func shutdown(conn net.Conn) error {
	raw, err := rawConn(conn)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	})
	return errors.Join(err, opErr)
}

func rawConn(conn net.Conn) (syscall.RawConn, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, nil
	}
	return sc.SyscallConn()
}

func setNoDelay(fd int, on bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(on))
}

func setKeepAlive(fd int, o Options) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolInt(o.KeepAlive)); err != nil {
		return err
	}
	if !o.KeepAlive {
		return nil
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, seconds(o.KeepAliveTime)); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, seconds(o.KeepAliveInterval))
}

func setLinger(fd int, o Options) error {
	l := &unix.Linger{Onoff: int32(boolInt(o.Linger)), Linger: int32(seconds(o.LingerTime))}
	return unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, l)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
