// File: server/classify.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outcome classification shared by the receive and send paths.

package server

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/momentics/hioload-tcp/api"
)

// outcome is the verdict for one completed read or write.
type outcome int

const (
	outcomeAvailable outcome = iota // requested bytes fully transferred
	outcomePartial                  // re-issue for the remainder
	outcomeGraceful                 // peer went away; disconnect without error
	outcomeFailed                   // disconnect carrying the error
)

func (o outcome) String() string {
	switch o {
	case outcomeAvailable:
		return "available"
	case outcomePartial:
		return "partial"
	case outcomeGraceful:
		return "graceful"
	default:
		return "failed"
	}
}

// classify judges a single transfer of n out of want bytes.
func classify(n, want int, err error) outcome {
	if err != nil {
		if isBenign(err) {
			return outcomeGraceful
		}
		return outcomeFailed
	}
	switch {
	case n <= 0:
		return outcomeGraceful
	case n < want:
		return outcomePartial
	default:
		return outcomeAvailable
	}
}

// isBenign reports errors that mean the connection ended normally:
// orderly close, reset, broken pipe, timeout, or an already-closed handle.
// The set is platform-dependent; syscall constants map onto WSA codes on Windows.
func isBenign(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, os.ErrDeadlineExceeded),
		isDisposed(err):
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isDisposed reports errors caused by using a socket that was already closed.
func isDisposed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, api.ErrSessionClosed)
}

// isTemporaryAccept reports accept failures that should be retried.
func isTemporaryAccept(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.ENOBUFS):
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func socketError(op string, err error) error {
	return api.WrapError(api.ErrCodeSocket, op, err)
}
