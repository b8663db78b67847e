//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable fallback built on net.TCPConn setters. The backlog is chosen by the runtime.

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

func listen(port, _ int, o Options) (net.Listener, bool, error) {
	lc := net.ListenConfig{KeepAlive: -1}
	ln, err := lc.Listen(context.Background(), "tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, false, fmt.Errorf("listen: %w", err)
	}
	return ln, o.KeepAlive, nil
}

func applyConn(conn net.Conn, o Options) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	errs := []error{tc.SetNoDelay(o.NoDelay), tc.SetKeepAlive(o.KeepAlive)}
	if o.KeepAlive {
		errs = append(errs, tc.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     o.KeepAliveTime,
			Interval: o.KeepAliveInterval,
			Count:    -1,
		}))
	}
	if o.Linger {
		errs = append(errs, tc.SetLinger(seconds(o.LingerTime)))
	} else {
		errs = append(errs, tc.SetLinger(-1))
	}
	return errors.Join(errs...)
}

func shutdown(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return errors.Join(tc.CloseRead(), tc.CloseWrite())
}
