// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-tcp.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrAlreadyRunning      = errors.New("server already running")
	ErrServerNotRunning    = errors.New("server is not running")
	ErrServerStopping      = errors.New("server is stopping")
	ErrSessionClosed       = errors.New("session is closed")
	ErrInvalidPacketLength = errors.New("invalid packet length")
	ErrPacketTooLarge      = errors.New("packet exceeds maximum allowed size")
	ErrSendQueueFull       = errors.New("send queue is full")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeProtocol
	ErrCodeSocket
	ErrCodeSetup
	ErrCodeAccept
	ErrCodeResourceExhausted
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeSocket:
		return "socket"
	case ErrCodeSetup:
		return "setup"
	case ErrCodeAccept:
		return "accept"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	default:
		return "internal"
	}
}

// Error represents a structured error with code, context and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error carrying cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the ErrorCode of the first *Error in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
